package llm

import (
	"regexp"
	"strings"
)

var (
	slashImage = regexp.MustCompile(`(?i)^\s*/(img|image)\b`)

	explicitImageVerb = regexp.MustCompile(`(?i)\b(generate|create|make|draw|paint|illustrate|render|design|produce|show)\b[^\n]*\b(image|picture|photo|photograph|illustration|art|logo|icon|wallpaper|sprite|graphic)\b`)

	imageDescriptorTerms = regexp.MustCompile(`(?i)\b(watercolor|illustration|pastel|photorealistic|cinematic|bokeh|portrait|vector|logo|icon|wallpaper|sticker|pixel art|line art|sketch|ink|charcoal|oil|acrylic|concept art|digital painting|3d|isometric|octane|unreal|anime|pixar|8k|hdr)\b`)

	analysisIntent = regexp.MustCompile(`(?i)\b(describe|explain|analy[sz]e|caption|tell me about)\b[^\n]*\b(image|picture|photo|it|this)\b`)
)

// WantsImage reports whether a user message asks for a generated image
// rather than text. Requests to analyse an existing image never match.
func WantsImage(text string) bool {
	if slashImage.MatchString(text) {
		return true
	}
	if analysisIntent.MatchString(text) {
		return false
	}
	return explicitImageVerb.MatchString(text) || imageDescriptorTerms.MatchString(text)
}

// ImagePrompt removes a leading /img or /image command from text.
func ImagePrompt(text string) string {
	if loc := slashImage.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:])
	}
	return strings.TrimSpace(text)
}
