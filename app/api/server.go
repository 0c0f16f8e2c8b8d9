// Package api is the local control surface: a small JSON API for scripts and an MCP
// endpoint other agents can query during a meeting.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"meetassist/app/config"
	"meetassist/app/service/analysis"
	"meetassist/app/service/conversation"
	"meetassist/app/service/export"
	"meetassist/app/service/session"
	"meetassist/app/service/tools"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
	"github.com/samber/oops"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

type Server struct {
	ctx             context.Context
	addr            string
	app             *fiber.App
	mcp             *server.MCPServer
	sessionSvc      *session.Service
	analysisSvc     *analysis.Service
	conversationSvc *conversation.Service
	toolsSvc        *tools.Service
	exportSvc       *export.Service
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	s := &Server{
		ctx:             do.MustInvoke[context.Context](di),
		addr:            cfg.HTTP.Addr,
		sessionSvc:      do.MustInvoke[*session.Service](di),
		analysisSvc:     do.MustInvoke[*analysis.Service](di),
		conversationSvc: do.MustInvoke[*conversation.Service](di),
		toolsSvc:        do.MustInvoke[*tools.Service](di),
		exportSvc:       do.MustInvoke[*export.Service](di),
	}

	s.mcp = s.newMCPServer()

	s.app = fiber.New(fiber.Config{
		AppName:               "meetassist",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	s.app.Use(recover.New())
	s.routes()

	return s, nil
}

func (s *Server) routes() {
	api := s.app.Group("/api")

	api.Get("/status", s.handleStatus)

	api.Post("/session/connect", s.handleConnect)
	api.Post("/session/disconnect", s.handleDisconnect)
	api.Post("/session/pause", s.handlePause)
	api.Post("/session/resume", s.handleResume)
	api.Post("/session/mute", s.handleMute)

	api.Post("/system-audio/start", s.handleSystemAudioStart)
	api.Post("/system-audio/stop", s.handleSystemAudioStop)

	api.Get("/transcript", s.handleTranscript)
	api.Delete("/transcript", s.handleClearTranscript)
	api.Get("/analysis", s.handleAnalysis)
	api.Get("/sessions/last", s.handleLastSession)

	api.Get("/tools", s.handleListTools)
	api.Post("/tools", s.handleCreateTool)
	api.Put("/tools/:name", s.handleUpdateTool)
	api.Delete("/tools/:name", s.handleDeleteTool)

	api.Get("/logs", s.handleLogs)

	s.app.All("/mcp", adaptor.HTTPHandler(server.NewStreamableHTTPServer(s.mcp)))
}

// Run serves until ctx is done. It does nothing when no address is configured.
func (s *Server) Run(ctx context.Context) error {
	if s.addr == "" {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Local API listening", "addr", s.addr)

		if err := s.app.Listen(s.addr); err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	})

	return g.Wait()
}

func errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := err.Error()

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		status = fiberErr.Code
		message = fiberErr.Message
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		switch oopsErr.Code() {
		case "precondition":
			status = fiber.StatusPreconditionFailed
		case "system_audio":
			status = fiber.StatusServiceUnavailable
		case "tool_exists", "cancelled":
			status = fiber.StatusConflict
		case "invalid_tool":
			status = fiber.StatusBadRequest
		}

		if public := oopsErr.Public(); public != "" {
			message = public
		}
	}

	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed", "path", c.Path(), "error", err)
	}

	return c.Status(status).JSON(fiber.Map{
		"error": message,
	})
}
