package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/models"
	"github.com/yurie-chat/yurie/pkg/prefs"
)

// ModelsResponse is the body of the model catalog routes.
type ModelsResponse struct {
	Models []models.Model `json:"models"`
}

// RefreshResponse is the body of a catalog refresh.
type RefreshResponse struct {
	Message   string         `json:"message"`
	Models    []models.Model `json:"models"`
	Count     int            `json:"count"`
	Timestamp string         `json:"timestamp"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListModels returns the catalog with access flags, or the models of
// one provider when ?provider is set.
func (s *Server) handleListModels(c *fiber.Ctx) error {
	var (
		list []models.Model
		err  error
	)
	if provider := strings.TrimSpace(c.Query("provider")); provider != "" {
		list, err = s.catalog.ForProvider(c.Context(), provider)
	} else {
		list, err = s.catalog.WithAccessFlags(c.Context())
	}
	if err != nil {
		s.logger.Error("failed to load models", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Failed to fetch models"})
	}

	return c.JSON(ModelsResponse{Models: list})
}

// handleRefreshModels drops the cached catalog and reloads it.
func (s *Server) handleRefreshModels(c *fiber.Ctx) error {
	s.catalog.Invalidate()

	list, err := s.catalog.WithAccessFlags(c.Context())
	if err != nil {
		s.logger.Error("failed to refresh models", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Failed to refresh models"})
	}

	return c.JSON(RefreshResponse{
		Message:   "Models cache refreshed",
		Models:    list,
		Count:     len(list),
		Timestamp: s.now().UTC().Format(timeLayout),
	})
}

// handleGetPreferences returns the defaults. Clients own their preferences.
func (s *Server) handleGetPreferences(c *fiber.Ctx) error {
	return c.JSON(prefs.Defaults())
}

// handlePutPreferences validates an update and echoes it back.
func (s *Server) handlePutPreferences(c *fiber.Ctx) error {
	update, err := prefs.ParseUpdate(c.Body())
	switch {
	case errors.Is(err, prefs.ErrLayoutType), errors.Is(err, prefs.ErrHiddenModelsType):
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	case err != nil:
		s.logger.Debug("invalid preferences body", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "Internal server error"})
	}

	return c.JSON(update)
}
