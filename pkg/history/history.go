// Package history keeps chats and their messages on the client, over any
// storage.Driver.
package history

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yurie-chat/yurie/pkg/llm"
	"github.com/yurie-chat/yurie/pkg/models"
	"github.com/yurie-chat/yurie/pkg/storage"
)

// Storage collections.
const (
	ChatsCollection    = "chats"
	MessagesCollection = "messages"
)

// DefaultTitle names chats created without a title.
const DefaultTitle = "New Chat"

// Chat is one conversation's metadata.
type Chat struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Model        string    `json:"model"`
	ProjectID    string    `json:"project_id,omitempty"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Store reads and writes chats and messages.
type Store struct {
	driver storage.Driver
	now    func() time.Time
}

// NewStore returns a Store over driver. The caller owns the driver.
func NewStore(driver storage.Driver) *Store {
	return &Store{driver: driver, now: time.Now}
}

// Messages returns the messages of chatID ordered by creation time.
// A chat with no stored messages yields an empty slice.
func (s *Store) Messages(ctx context.Context, chatID string) ([]llm.ChatMessage, error) {
	data, err := s.driver.Get(ctx, MessagesCollection, chatID)
	if storage.IsNotFound(err) {
		return []llm.ChatMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	var msgs []llm.ChatMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("decoding messages of %s: %w", chatID, err)
	}
	slices.SortStableFunc(msgs, func(a, b llm.ChatMessage) int { return cmp.Compare(a.CreatedAt, b.CreatedAt) })
	return msgs, nil
}

// SetMessages replaces the messages of chatID.
func (s *Store) SetMessages(ctx context.Context, chatID string, msgs []llm.ChatMessage) error {
	if msgs == nil {
		msgs = []llm.ChatMessage{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("encoding messages of %s: %w", chatID, err)
	}
	return s.driver.Put(ctx, MessagesCollection, chatID, data)
}

// AddMessage appends msg to chatID and bumps the chat's UpdatedAt when the
// chat exists.
func (s *Store) AddMessage(ctx context.Context, chatID string, msg llm.ChatMessage) error {
	msgs, err := s.Messages(ctx, chatID)
	if err != nil {
		return err
	}
	if err := s.SetMessages(ctx, chatID, append(msgs, msg)); err != nil {
		return err
	}

	_, err = s.modify(ctx, chatID, func(*Chat) {})
	if storage.IsNotFound(err) {
		return nil
	}
	return err
}

// ClearMessages empties chatID's messages and keeps the chat.
func (s *Store) ClearMessages(ctx context.Context, chatID string) error {
	return s.SetMessages(ctx, chatID, nil)
}

// Chats returns every chat, newest first.
func (s *Store) Chats(ctx context.Context) ([]Chat, error) {
	recs, err := s.driver.List(ctx, ChatsCollection)
	if err != nil {
		return nil, err
	}

	chats := make([]Chat, 0, len(recs))
	for _, rec := range recs {
		var c Chat
		if err := json.Unmarshal(rec.Value, &c); err != nil {
			return nil, fmt.Errorf("decoding chat %s: %w", rec.Key, err)
		}
		chats = append(chats, c)
	}
	slices.SortStableFunc(chats, func(a, b Chat) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return chats, nil
}

// Chat returns one chat, or a storage.NotFoundError.
func (s *Store) Chat(ctx context.Context, id string) (*Chat, error) {
	data, err := s.driver.Get(ctx, ChatsCollection, id)
	if err != nil {
		return nil, err
	}

	c := &Chat{}
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("decoding chat %s: %w", id, err)
	}
	return c, nil
}

// CreateChat stores a new chat. A blank title becomes DefaultTitle and a
// blank model becomes models.DefaultModel.
func (s *Store) CreateChat(ctx context.Context, title, model string) (*Chat, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}
	if model == "" {
		model = models.DefaultModel
	}

	now := s.now()
	c := &Chat{ID: uuid.NewString(), Title: title, Model: model, CreatedAt: now, UpdatedAt: now}
	if err := s.SaveChat(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveChat inserts or replaces c.
func (s *Store) SaveChat(ctx context.Context, c *Chat) error {
	if c == nil || c.ID == "" {
		return errors.New("chat id is required")
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding chat %s: %w", c.ID, err)
	}
	return s.driver.Put(ctx, ChatsCollection, c.ID, data)
}

// UpdateTitle renames a chat.
func (s *Store) UpdateTitle(ctx context.Context, id, title string) (*Chat, error) {
	return s.modify(ctx, id, func(c *Chat) { c.Title = title })
}

// UpdateModel changes the model a chat uses.
func (s *Store) UpdateModel(ctx context.Context, id, model string) (*Chat, error) {
	return s.modify(ctx, id, func(c *Chat) { c.Model = model })
}

// DeleteChat removes a chat and its messages.
func (s *Store) DeleteChat(ctx context.Context, id string) error {
	if err := s.driver.Delete(ctx, MessagesCollection, id); err != nil {
		return err
	}
	return s.driver.Delete(ctx, ChatsCollection, id)
}

func (s *Store) modify(ctx context.Context, id string, fn func(*Chat)) (*Chat, error) {
	c, err := s.Chat(ctx, id)
	if err != nil {
		return nil, err
	}

	fn(c)
	c.UpdatedAt = s.now()
	if err := s.SaveChat(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
