// Package sqlitepath finds the chat history database when no path is
// configured.
package sqlitepath

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/yurie-chat/yurie/pkg/dotdir"
)

// FileName is the history database name inside a .yurie/ directory.
const FileName = "history.db"

// ErrNotFound is returned when no candidate database exists.
var ErrNotFound = errors.New("could not find yurie history database; pass --sqlite")

// ResolveSQLitePath returns override when set, otherwise the first existing
// history database among the well known locations.
func ResolveSQLitePath(override string) (string, error) {
	if override = strings.TrimSpace(override); override != "" {
		return override, nil
	}

	for _, candidate := range sqliteCandidates() {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}

	return "", ErrNotFound
}

// sqliteCandidates lists locations in priority order: the project
// directory, then XDG data, then the home directory.
func sqliteCandidates() []string {
	candidates := []string{
		filepath.Join(dotdir.DirName, FileName),
	}

	if xdgHome := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdgHome != "" {
		candidates = append(candidates, filepath.Join(xdgHome, "yurie", FileName))
	}

	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, dotdir.DirName, FileName))
	}

	return candidates
}
