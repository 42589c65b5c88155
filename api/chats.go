package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/yurie-chat/yurie/pkg/history"
	"github.com/yurie-chat/yurie/pkg/llm"
)

// timeLayout matches JavaScript's Date.prototype.toISOString.
const timeLayout = "2006-01-02T15:04:05.000Z"

// CreateChatRequest is the body of POST /api/create-chat.
type CreateChatRequest struct {
	UserID    string `json:"userId"`
	Title     string `json:"title"`
	Model     string `json:"model"`
	ProjectID string `json:"projectId"`
}

// ChatRecord is a chat as clients store it. The server never persists it.
type ChatRecord struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Title     string  `json:"title"`
	Model     string  `json:"model"`
	ProjectID *string `json:"project_id"`
	Public    bool    `json:"public"`
	CreatedAt string  `json:"created_at"`
	UpdatedAt string  `json:"updated_at"`
}

// CreateChatResponse wraps the created chat.
type CreateChatResponse struct {
	Chat ChatRecord `json:"chat"`
}

// UpdateChatModelRequest is the body of POST /api/update-chat-model.
type UpdateChatModelRequest struct {
	ChatID string `json:"chatId"`
	Model  string `json:"model"`
}

// SuccessResponse acknowledges a request that changes nothing server side.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// Project is the single local project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// handleCreateChat returns a client-only chat record.
func (s *Server) handleCreateChat(c *fiber.Ctx) error {
	var req CreateChatRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	if req.UserID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Missing userId"})
	}

	title := req.Title
	if title == "" {
		title = history.DefaultTitle
	}
	model := req.Model
	if model == "" {
		model = s.config.DefaultModel
	}

	var projectID *string
	if req.ProjectID != "" {
		projectID = &req.ProjectID
	}

	now := s.now().UTC().Format(timeLayout)
	return c.JSON(CreateChatResponse{Chat: ChatRecord{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		Title:     title,
		Model:     model,
		ProjectID: projectID,
		Public:    false,
		CreatedAt: now,
		UpdatedAt: now,
	}})
}

// handleUpdateChatModel validates the request. Chats live on the client.
func (s *Server) handleUpdateChatModel(c *fiber.Ctx) error {
	var req UpdateChatModelRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	if req.ChatID == "" || req.Model == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "Missing chatId or model"})
	}

	s.logger.Debug("chat model changed", "chat_id", req.ChatID, "model", req.Model)
	return c.JSON(SuccessResponse{Success: true})
}

func (s *Server) handleListProjects(c *fiber.Ctx) error {
	return c.JSON([]Project{})
}

func (s *Server) handleCreateProject(c *fiber.Ctx) error {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(Project{ID: "local", Name: req.Name})
}
