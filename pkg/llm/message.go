package llm

import "github.com/google/uuid"

// Message roles understood by the Responses API.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleDeveloper = "developer"
	RoleSystem    = "system"
)

// ChatMessage is one entry of a conversation transcript.
// Assistant messages are created empty when a turn is submitted and grow as
// deltas arrive.
type ChatMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`

	// ImageBase64 holds the latest (partial or final) generated image for
	// messages produced by the image endpoint.
	ImageBase64 string `json:"imageBase64,omitempty"`

	Attachments []Attachment `json:"attachments,omitempty"`

	// CreatedAt is a unix millisecond timestamp, used to order history.
	CreatedAt int64 `json:"createdAt,omitempty"`
}

// Attachment describes a user-selected file. Only images carry a data URL.
type Attachment struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// IsImage reports whether the attachment is an image with inline data.
func (a Attachment) IsImage() bool {
	return a.URL != "" && len(a.Type) > 6 && a.Type[:6] == "image/"
}

// NewMessage returns a message with a fresh id.
func NewMessage(role, content string) ChatMessage {
	return ChatMessage{ID: uuid.NewString(), Role: role, Content: content}
}
