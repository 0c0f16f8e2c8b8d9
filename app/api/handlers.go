package api

import (
	"errors"
	"meetassist/app/service/tools"
	"strings"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handleConnect(c *fiber.Ctx) error {
	if err := s.sessionSvc.Connect(s.ctx); err != nil {
		return err
	}

	return c.Status(fiber.StatusAccepted).JSON(s.sessionSvc.Status())
}

func (s *Server) handleDisconnect(c *fiber.Ctx) error {
	s.sessionSvc.Disconnect()

	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handlePause(c *fiber.Ctx) error {
	s.sessionSvc.Pause()

	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handleResume(c *fiber.Ctx) error {
	s.sessionSvc.Resume()

	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handleMute(c *fiber.Ctx) error {
	s.sessionSvc.ToggleMute()

	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handleSystemAudioStart(c *fiber.Ctx) error {
	if err := s.sessionSvc.StartSystemAudio(c.UserContext()); err != nil {
		return err
	}

	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handleSystemAudioStop(c *fiber.Ctx) error {
	s.sessionSvc.StopSystemAudio()

	return c.JSON(s.sessionSvc.Status())
}

func (s *Server) handleTranscript(c *fiber.Ctx) error {
	return c.JSON(s.conversationSvc.Turns())
}

func (s *Server) handleClearTranscript(c *fiber.Ctx) error {
	s.conversationSvc.Clear()

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleAnalysis(c *fiber.Ctx) error {
	return c.JSON(s.analysisSvc.View())
}

func (s *Server) handleLastSession(c *fiber.Ctx) error {
	last, err := s.analysisSvc.LastSession()
	if err != nil {
		return err
	}
	if last == nil {
		return fiber.NewError(fiber.StatusNotFound, "no finished session yet")
	}

	return c.JSON(last)
}

func (s *Server) handleListTools(c *fiber.Ctx) error {
	return c.JSON(s.toolsSvc.List())
}

func (s *Server) handleCreateTool(c *fiber.Ctx) error {
	var def tools.Definition
	if err := c.BodyParser(&def); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid tool definition")
	}

	if err := s.toolsSvc.Add(def); err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (s *Server) handleUpdateTool(c *fiber.Ctx) error {
	name := c.Params("name")

	var def tools.Definition
	if err := c.BodyParser(&def); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid tool definition")
	}

	updated, err := s.toolsSvc.Update(name, def)
	if errors.Is(err, tools.ErrNotFound) {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err != nil {
		return err
	}
	if !updated {
		return fiber.NewError(fiber.StatusConflict, "a tool with that name already exists")
	}

	target := strings.TrimSpace(def.Name)
	if target == "" {
		target = name
	}

	result, _ := s.toolsSvc.Get(target)

	return c.JSON(result)
}

func (s *Server) handleDeleteTool(c *fiber.Ctx) error {
	if !s.toolsSvc.Remove(c.Params("name")) {
		return fiber.NewError(fiber.StatusNotFound, tools.ErrNotFound.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleLogs(c *fiber.Ctx) error {
	name, data, err := s.exportSvc.Render()
	if err != nil {
		return err
	}

	c.Attachment(name)

	return c.Send(data)
}
