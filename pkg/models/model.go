// Package models holds the chat model catalog served to clients.
package models

// DefaultModel is selected when a client has no preference.
const DefaultModel = "gpt-5-nano"

// FreeModelIDs are accessible without a paid plan.
var FreeModelIDs = []string{"gpt-5-nano"}

// Model describes one selectable chat model.
type Model struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Provider       string   `json:"provider"`
	ProviderID     string   `json:"providerId"`
	BaseProviderID string   `json:"baseProviderId"`
	Family         string   `json:"modelFamily,omitempty"`
	Description    string   `json:"description,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	ContextWindow int     `json:"contextWindow,omitempty"`
	InputCost     float64 `json:"inputCost,omitempty"`
	OutputCost    float64 `json:"outputCost,omitempty"`
	PriceUnit     string  `json:"priceUnit,omitempty"`

	Vision    bool `json:"vision,omitempty"`
	Tools     bool `json:"tools,omitempty"`
	Audio     bool `json:"audio,omitempty"`
	Reasoning bool `json:"reasoning,omitempty"`
	WebSearch bool `json:"webSearch,omitempty"`

	Speed        string `json:"speed,omitempty"`
	Intelligence string `json:"intelligence,omitempty"`

	Website string `json:"website,omitempty"`
	APIDocs string `json:"apiDocs,omitempty"`
	Icon    string `json:"icon,omitempty"`

	Accessible bool `json:"accessible"`
}

// IsFree reports whether id is in FreeModelIDs.
func IsFree(id string) bool {
	for _, free := range FreeModelIDs {
		if free == id {
			return true
		}
	}
	return false
}

func openAI(id, name, family, desc string, ctxWindow int, in, out float64, speed, intel string, reasoning bool, tags ...string) Model {
	return Model{
		ID:             id,
		Name:           name,
		Provider:       "OpenAI",
		ProviderID:     "openai",
		BaseProviderID: "openai",
		Family:         family,
		Description:    desc,
		Tags:           tags,
		ContextWindow:  ctxWindow,
		InputCost:      in,
		OutputCost:     out,
		PriceUnit:      "per 1M tokens",
		Vision:         true,
		Tools:          true,
		Reasoning:      reasoning,
		WebSearch:      true,
		Speed:          speed,
		Intelligence:   intel,
		Website:        "https://openai.com",
		APIDocs:        "https://platform.openai.com/docs/api-reference/responses",
		Icon:           "openai",
	}
}

// Static returns the built-in OpenAI catalog.
func Static() []Model {
	return []Model{
		openAI("gpt-5-nano", "GPT-5 Nano", "GPT-5", "Fastest, cheapest GPT-5 for summarisation and classification.",
			400000, 0.05, 0.40, "Fast", "Medium", true, "fast", "cheap", "vision"),
		openAI("gpt-5-mini", "GPT-5 Mini", "GPT-5", "Smaller GPT-5 for well-defined tasks.",
			400000, 0.25, 2.00, "Fast", "High", true, "fast", "vision"),
		openAI("gpt-5", "GPT-5", "GPT-5", "Flagship model for coding, reasoning and agentic tasks.",
			400000, 1.25, 10.00, "Medium", "High", true, "flagship", "vision", "reasoning"),
		openAI("gpt-4.1", "GPT-4.1", "GPT-4.1", "Long-context model with strong instruction following.",
			1047576, 2.00, 8.00, "Medium", "High", false, "vision", "long-context"),
		openAI("gpt-4o", "GPT-4o", "GPT-4o", "Versatile multimodal model.",
			128000, 2.50, 10.00, "Medium", "High", false, "vision"),
		openAI("gpt-4o-mini", "GPT-4o Mini", "GPT-4o", "Affordable small model for focused tasks.",
			128000, 0.15, 0.60, "Fast", "Medium", false, "fast", "cheap", "vision"),
	}
}
