package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/yurie-chat/yurie/pkg/logger"
	"github.com/yurie-chat/yurie/pkg/models"
)

// Server holds the handlers of the auxiliary API. It owns no fiber app; the
// routes are registered on the relay's router so both share one listener.
type Server struct {
	config  Config
	catalog *models.Cache
	logger  *slog.Logger
	now     func() time.Time
}

// NewServer creates an API server. The catalog is shared with the relay,
// which reads it to decide reasoning effort.
func NewServer(config Config, catalog *models.Cache, log *slog.Logger) *Server {
	if config.DefaultModel == "" {
		config.DefaultModel = models.DefaultModel
	}
	if catalog == nil {
		catalog = models.NewCache(models.StaticLoader, models.DefaultTTL)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Server{
		config:  config,
		catalog: catalog,
		logger:  log,
		now:     time.Now,
	}
}

// Register adds every API route to router.
func (s *Server) Register(router fiber.Router) {
	router.Get("/ping", s.handlePing)

	router.Get("/api/models", s.handleListModels)
	router.Post("/api/models/refresh", s.handleRefreshModels)

	router.Get("/api/user-preferences", s.handleGetPreferences)
	router.Put("/api/user-preferences", s.handlePutPreferences)

	router.Post("/api/create-chat", s.handleCreateChat)
	router.Post("/api/update-chat-model", s.handleUpdateChatModel)

	router.Get("/api/projects", s.handleListProjects)
	router.Post("/api/projects", s.handleCreateProject)
}
