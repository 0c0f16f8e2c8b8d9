package mylog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"meetassist/app/config"
	"os"
	"path/filepath"

	"github.com/phsym/console-slog"
	slogmulti "github.com/samber/slog-multi"
	slogtelegram "github.com/samber/slog-telegram/v2"
)

func Preinit() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
	})))
}

// Init routes logs to stderr in headless mode and to the log file otherwise,
// since the console view owns the terminal. The returned closer flushes the file.
func Init(cfg *config.Config) (io.Closer, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = io.NopCloser(nil)
	)

	if !cfg.UI.Headless {
		if err := os.MkdirAll(filepath.Dir(cfg.Log.File), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir: %w", err)
		}

		file, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		out = file
		closer = file
	}

	router := slogmulti.Router()

	router = router.Add(console.NewHandler(out, &console.HandlerOptions{
		AddSource: true,
		Level:     slog.LevelDebug,
		NoColor:   !cfg.UI.Headless,
	}))

	if cfg.Log.Telegram.Token != "" {
		router = router.Add(
			slogtelegram.Option{
				Level:     slog.LevelDebug,
				Token:     cfg.Log.Telegram.Token,
				Username:  cfg.Log.Telegram.ChatID,
				AddSource: true,
			}.NewTelegramHandler(),

			func(_ context.Context, r slog.Record) bool {
				hasTelegram := false

				r.Attrs(func(attr slog.Attr) bool {
					if attr.Key == "telegram" {
						hasTelegram = true
						return false
					}

					return true
				})

				return r.Level == slog.LevelError || hasTelegram
			},
		)
	}

	slog.SetDefault(slog.New(router.Handler()))

	return closer, nil
}
