// Package prefs validates user preference payloads. The server keeps no
// preference state; clients own it.
package prefs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Layouts understood by clients.
const (
	LayoutFullscreen = "fullscreen"
	LayoutSidebar    = "sidebar"
)

var (
	// ErrLayoutType is returned when layout is not a string.
	ErrLayoutType = errors.New("layout must be a string")

	// ErrHiddenModelsType is returned when hidden_models is not an array.
	ErrHiddenModelsType = errors.New("hidden_models must be an array")
)

// Preferences is the API (snake_case) form of a user's preferences.
type Preferences struct {
	Layout                   string   `json:"layout"`
	PromptSuggestions        bool     `json:"prompt_suggestions"`
	ShowToolInvocations      bool     `json:"show_tool_invocations"`
	ShowConversationPreviews bool     `json:"show_conversation_previews"`
	MultiModelEnabled        bool     `json:"multi_model_enabled"`
	HiddenModels             []string `json:"hidden_models"`
}

// Defaults returns the preferences of a new user.
func Defaults() Preferences {
	return Preferences{
		Layout:                   LayoutFullscreen,
		PromptSuggestions:        true,
		ShowToolInvocations:      true,
		ShowConversationPreviews: true,
		MultiModelEnabled:        false,
		HiddenModels:             []string{},
	}
}

// Update is a partial preferences payload. Absent fields stay nil.
type Update struct {
	Success                  bool     `json:"success"`
	Layout                   *string  `json:"layout,omitempty"`
	PromptSuggestions        *bool    `json:"prompt_suggestions,omitempty"`
	ShowToolInvocations      *bool    `json:"show_tool_invocations,omitempty"`
	ShowConversationPreviews *bool    `json:"show_conversation_previews,omitempty"`
	MultiModelEnabled        *bool    `json:"multi_model_enabled,omitempty"`
	HiddenModels             []string `json:"hidden_models"`
}

// ParseUpdate validates a PUT body and returns the echo sent back to the
// client. hidden_models defaults to an empty list.
func ParseUpdate(body []byte) (*Update, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("invalid preferences body: %w", err)
	}

	if raw, ok := present(fields, "layout"); ok && raw[0] != '"' {
		return nil, ErrLayoutType
	}
	if raw, ok := present(fields, "hidden_models"); ok && raw[0] != '[' {
		return nil, ErrHiddenModelsType
	}

	var u Update
	if err := json.Unmarshal(body, &u); err != nil {
		return nil, fmt.Errorf("invalid preferences body: %w", err)
	}
	if u.HiddenModels == nil {
		u.HiddenModels = []string{}
	}
	u.Success = true
	return &u, nil
}

// Apply merges u into p.
func (p Preferences) Apply(u *Update) Preferences {
	if u.Layout != nil {
		p.Layout = *u.Layout
	}
	if u.PromptSuggestions != nil {
		p.PromptSuggestions = *u.PromptSuggestions
	}
	if u.ShowToolInvocations != nil {
		p.ShowToolInvocations = *u.ShowToolInvocations
	}
	if u.ShowConversationPreviews != nil {
		p.ShowConversationPreviews = *u.ShowConversationPreviews
	}
	if u.MultiModelEnabled != nil {
		p.MultiModelEnabled = *u.MultiModelEnabled
	}
	if u.HiddenModels != nil {
		p.HiddenModels = u.HiddenModels
	}
	return p
}

// IsHidden reports whether a model is hidden from the picker.
func (p Preferences) IsHidden(modelID string) bool {
	for _, id := range p.HiddenModels {
		if id == modelID {
			return true
		}
	}
	return false
}

// present returns a field's raw value unless it is missing or falsy.
func present(fields map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	raw, ok := fields[key]
	if !ok {
		return nil, false
	}
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", "0", `""`:
		return nil, false
	}
	return raw, true
}
