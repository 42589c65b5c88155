// Package cliui provides reusable terminal UI helpers (spinners, step
// indicators, markdown rendering) for yurie CLI commands.
package cliui

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/yurie-chat/yurie/pkg/llm"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	ErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Render("yurie> ")

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

// Step prints an animated spinner while fn runs, then replaces it with
// a ✓ or ✗ checkmark and elapsed time.
func Step(w io.Writer, msg string, fn func() error) error {
	done := make(chan struct{})
	var mu sync.Mutex

	go func() {
		frame := 0
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for {
			mu.Lock()
			fmt.Fprintf(w, "\r  %s %s",
				spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]),
				msg,
			)
			mu.Unlock()

			select {
			case <-done:
				return
			case <-ticker.C:
				frame++
			}
		}
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(done)

	mu.Lock()
	fmt.Fprintf(w, "\r  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)
	mu.Unlock()

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}

// ImagePlaceholder describes an inline image by its decoded size.
func ImagePlaceholder(dataURL string) string {
	b64 := dataURL
	if i := strings.Index(b64, ";base64,"); i >= 0 {
		b64 = b64[i+len(";base64,"):]
	}
	return fmt.Sprintf("[image: %d bytes]", base64.StdEncoding.DecodedLen(len(b64))-padding(b64))
}

// ReplaceImages swaps every inline image in content for its placeholder so
// terminals never print base64.
func ReplaceImages(content string) string {
	parts := llm.ParseContent(content)
	if len(parts) == 0 {
		return content
	}

	var b strings.Builder
	for _, p := range parts {
		if p.IsImage() {
			b.WriteString(DimStyle.Render(ImagePlaceholder(p.ImageURL)))
			continue
		}
		b.WriteString(p.Text)
	}
	return b.String()
}

func padding(b64 string) int {
	return len(b64) - len(strings.TrimRight(b64, "="))
}
