// Package dotdir resolves the .yurie/ directory holding config.toml, the
// local chat history database and the last-session pointer.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the yurie directory.
const DirName = ".yurie"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the absolute path of the .yurie/ directory to use:
//  1. the override, created if missing
//  2. ./.yurie/ when it exists
//  3. ~/.yurie/ when it exists
//
// It returns "" when none applies; callers fall back to defaults.
func (m *Manager) Target(overrideDir string) (string, error) {
	if overrideDir != "" {
		if err := os.MkdirAll(overrideDir, 0o755); err != nil {
			return "", fmt.Errorf("creating yurie directory %s: %w", overrideDir, err)
		}
		return filepath.Abs(overrideDir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	if local := filepath.Join(cwd, DirName); isDir(local) {
		return local, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	if global := filepath.Join(home, DirName); isDir(global) {
		return global, nil
	}

	return "", nil
}

// Ensure is Target, but creates ~/.yurie/ when nothing exists yet.
func (m *Manager) Ensure(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir != "" {
		return dir, err
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	dir = filepath.Join(home, DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating yurie directory %s: %w", dir, err)
	}
	return dir, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
