// Package attachments validates local files for a chat turn and builds the
// multimodal Responses API input that carries them.
package attachments

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/yurie-chat/yurie/pkg/llm"
)

// MaxFileSize is the largest accepted attachment.
const MaxFileSize = 10 * 1024 * 1024

// sniffLen is how much of a file content sniffing looks at.
const sniffLen = 512

// DetailAuto lets the model pick the image resolution.
const DetailAuto = "auto"

// AllowedTypes are the MIME types accepted as attachments.
var AllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"application/pdf",
	"text/plain",
	"text/markdown",
	"application/json",
	"text/csv",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

var (
	// ErrTooLarge is returned for files over MaxFileSize.
	ErrTooLarge = fmt.Errorf("File size exceeds %dMB limit", MaxFileSize/(1024*1024))

	// ErrUnsupportedType is returned when the content type is not allowed
	// or contradicts the file extension.
	ErrUnsupportedType = errors.New("File type not supported or doesn't match its extension")
)

// extensionTypes covers the allowed types that content sniffing reports
// only generically (text, zip containers).
var extensionTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".pdf":  "application/pdf",
	".txt":  "text/plain",
	".md":   "text/markdown",
	".json": "application/json",
	".csv":  "text/csv",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// genericTypes are sniffed types that say nothing about the real format.
var genericTypes = map[string]bool{
	"text/plain":               true,
	"application/octet-stream": true,
	"application/zip":          true,
}

// Validate checks the size and type of a file and returns its MIME type.
// The type is sniffed from the content; generic results defer to the
// extension, and specific results must agree with it.
func Validate(name string, data []byte) (string, error) {
	if len(data) > MaxFileSize {
		return "", ErrTooLarge
	}

	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	sniffed := baseType(http.DetectContentType(head))
	byExt := extensionTypes[strings.ToLower(filepath.Ext(name))]

	mimeType := sniffed
	switch {
	case genericTypes[sniffed]:
		if byExt != "" {
			mimeType = byExt
		}
	case byExt != "" && byExt != sniffed:
		return "", ErrUnsupportedType
	}

	if !allowed(mimeType) {
		return "", ErrUnsupportedType
	}
	return mimeType, nil
}

// Load reads and validates a file. Images carry a base64 data URL; other
// types are described by name, size and type only.
func Load(path string) (llm.Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return llm.Attachment{}, fmt.Errorf("reading attachment: %w", err)
	}
	if info.IsDir() {
		return llm.Attachment{}, fmt.Errorf("reading attachment: %s is a directory", path)
	}
	if info.Size() > MaxFileSize {
		return llm.Attachment{}, fmt.Errorf("%s: %w", filepath.Base(path), ErrTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return llm.Attachment{}, fmt.Errorf("reading attachment: %w", err)
	}

	name := filepath.Base(path)
	mimeType, err := Validate(name, data)
	if err != nil {
		return llm.Attachment{}, fmt.Errorf("%s: %w", name, err)
	}

	att := llm.Attachment{Name: name, Size: int64(len(data)), Type: mimeType}
	if strings.HasPrefix(mimeType, "image/") {
		att.URL = DataURL(mimeType, data)
	}
	return att, nil
}

// DataURL encodes data as a base64 data URL.
func DataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// BuildInput returns the Responses API input for a new user turn. Prior
// messages are replayed as {role, content} with image data stripped. A turn
// with image attachments carries input_text and input_image parts; a
// text-only turn carries plain string content.
func BuildInput(prior []llm.ChatMessage, text string, atts []llm.Attachment) (json.RawMessage, error) {
	items := make([]llm.InputMessage, 0, len(prior)+1)
	for _, m := range prior {
		items = append(items, llm.InputMessage{Role: m.Role, Content: llm.StripImageData(m.Content)})
	}

	var parts []llm.InputPart
	for _, a := range atts {
		if a.IsImage() {
			parts = append(parts, llm.InputPart{Type: llm.PartInputImage, ImageURL: a.URL, Detail: DetailAuto})
		}
	}

	if len(parts) == 0 {
		items = append(items, llm.InputMessage{Role: llm.RoleUser, Content: text})
	} else {
		if trimmed := strings.TrimSpace(text); trimmed != "" {
			parts = append([]llm.InputPart{{Type: llm.PartInputText, Text: trimmed}}, parts...)
		}
		items = append(items, llm.InputMessage{Role: llm.RoleUser, Content: parts})
	}

	return json.Marshal(items)
}

func baseType(contentType string) string {
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.TrimSpace(contentType)
}

func allowed(mimeType string) bool {
	for _, t := range AllowedTypes {
		if t == mimeType {
			return true
		}
	}
	return false
}
