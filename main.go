package main

import (
	"context"
	"io"
	"log/slog"
	"meetassist/app/api"
	"meetassist/app/client/boltdb"
	"meetassist/app/client/ffmpeg"
	"meetassist/app/client/gemini"
	"meetassist/app/config"
	"meetassist/app/service/analysis"
	"meetassist/app/service/audio"
	"meetassist/app/service/conversation"
	"meetassist/app/service/customer"
	"meetassist/app/service/engine"
	"meetassist/app/service/export"
	"meetassist/app/service/queue"
	"meetassist/app/service/realtime"
	"meetassist/app/service/session"
	"meetassist/app/service/settings"
	"meetassist/app/service/tools"
	"meetassist/app/service/usage"
	"meetassist/app/tui"
	"meetassist/app/util/mylog"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gofiber/fiber/v2/log"
	"github.com/samber/do"
)

func main() {
	di := do.New()
	defer di.Shutdown()
	defer slog.Info("Waiting for services to finish...")

	mylog.Preinit()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	do.ProvideValue(di, appCtx)

	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	do.ProvideValue(di, cfg)

	logCloser, err := mylog.Init(cfg)
	if err != nil {
		log.Fatalf("logging init failed: %v", err)
	}
	defer logCloser.Close()

	do.Provide(di, gemini.NewClient)
	do.Provide(di, func(di *do.Injector) (realtime.Dialer, error) {
		return do.Invoke[*gemini.Client](di)
	})
	do.Provide(di, func(di *do.Injector) (analysis.Generator, error) {
		return do.Invoke[*gemini.Client](di)
	})

	do.ProvideNamedValue[session.Recorder](di, session.MicrophoneRecorder,
		audio.NewRecorder("microphone", ffmpeg.NewCaptureSource(ffmpeg.KindMicrophone, cfg.Live.MicrophoneDevice)))
	do.ProvideNamedValue[session.Recorder](di, session.SystemAudioRecorder,
		audio.NewRecorder("system audio", ffmpeg.NewCaptureSource(ffmpeg.KindSystemAudio, cfg.Live.SystemAudioDevice)))

	streamer := audio.NewStreamer(ffmpeg.NewPlayer())
	defer streamer.Close()
	do.ProvideValue[session.Player](di, streamer)

	do.Provide(di, boltdb.New)
	do.Provide(di, customer.New)
	do.Provide(di, tools.New)
	do.Provide(di, settings.New)
	do.Provide(di, conversation.New)
	do.Provide(di, usage.New)
	do.Provide(di, queue.New)
	do.Provide(di, session.New)
	do.Provide(di, analysis.New)
	do.Provide(di, export.New)
	do.Provide(di, engine.New)
	do.Provide(di, api.New)

	sessionSvc := do.MustInvoke[*session.Service](di)
	engineSvc := do.MustInvoke[*engine.Service](di)

	slog.Info("Service started", "headless", cfg.UI.Headless)

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		slog.Info("Shutting down...")

		cancel()
	}()

	if cfg.HTTP.Addr != "" {
		go func() {
			if err := do.MustInvoke[*api.Server](di).Run(appCtx); err != nil {
				slog.Error("API server failed", "error", err)
			}
		}()
	}

	if cfg.UI.Headless {
		go engineSvc.Run(appCtx, engine.LogSink)
		<-appCtx.Done()
	} else {
		runConsole(appCtx, di, engineSvc)
		cancel()
	}

	// finalize the session snapshot before the store closes
	sessionSvc.Disconnect()
}

func runConsole(ctx context.Context, di *do.Injector, engineSvc *engine.Service) {
	model := tui.NewModel(ctx,
		do.MustInvoke[*session.Service](di),
		do.MustInvoke[*analysis.Service](di),
		do.MustInvoke[*conversation.Service](di),
		do.MustInvoke[*export.Service](di),
	)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx), tea.WithOutput(os.Stdout))

	go engineSvc.Run(ctx, func(notice queue.Notice) {
		program.Send(tui.NoticeMsg{Notice: notice})
	})

	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		slog.Error("Console view failed", "error", err)
		_, _ = io.WriteString(os.Stderr, err.Error()+"\n")
	}
}
