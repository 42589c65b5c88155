package llm

import (
	"regexp"
	"strings"
)

const (
	sentinelPrefix = "<image:"
	pngDataPrefix  = "data:image/png;base64,"

	// ImageOmitted replaces inline image data in prompts sent upstream.
	ImageOmitted = "[image omitted]"
)

var (
	angleTag       = regexp.MustCompile(`(?i)<image:[^>]+>`)
	bracketDataURL = regexp.MustCompile(`(?i)\[data:image/[a-zA-Z0-9+.-]+;base64,[^\]]+\]`)
	bareDataURL    = regexp.MustCompile(`(?i)data:image/[a-zA-Z0-9+.-]+;base64,[A-Za-z0-9+/=]+`)

	// inlineImage matches both the sentinel and the legacy bracket token.
	inlineImage = regexp.MustCompile(`<image:([^>]+)>|\[(data:image/[a-zA-Z]+;base64,[^\]]+)\]`)
)

// ImageSentinel embeds a base64 PNG in a text stream.
func ImageSentinel(b64 string) string {
	return sentinelPrefix + pngDataPrefix + b64 + ">"
}

// ContentPart is a run of text or one inline image within message content.
type ContentPart struct {
	Text string
	// ImageURL is a data URL when the part is an image.
	ImageURL string
}

// IsImage reports whether p is an image part.
func (p ContentPart) IsImage() bool { return p.ImageURL != "" }

// ParseContent splits message content into text and inline image parts,
// preserving order.
func ParseContent(content string) []ContentPart {
	var parts []ContentPart
	last := 0
	for _, loc := range inlineImage.FindAllStringSubmatchIndex(content, -1) {
		if loc[0] > last {
			parts = append(parts, ContentPart{Text: content[last:loc[0]]})
		}

		var src string
		switch {
		case loc[2] >= 0:
			src = content[loc[2]:loc[3]]
		case loc[4] >= 0:
			src = content[loc[4]:loc[5]]
		}
		if src != "" {
			parts = append(parts, ContentPart{ImageURL: src})
		}
		last = loc[1]
	}

	if last < len(content) {
		parts = append(parts, ContentPart{Text: content[last:]})
	}
	return parts
}

// StripImageData replaces every embedded image payload with a short marker
// so history stays small when it is replayed upstream.
func StripImageData(text string) string {
	if text == "" {
		return text
	}
	text = angleTag.ReplaceAllString(text, ImageOmitted)
	text = bracketDataURL.ReplaceAllString(text, ImageOmitted)
	return bareDataURL.ReplaceAllString(text, ImageOmitted)
}

// CountImages returns the number of inline images in content.
func CountImages(content string) int {
	return strings.Count(content, sentinelPrefix) + len(bracketDataURL.FindAllStringIndex(content, -1))
}
