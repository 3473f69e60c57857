// Package workdir locates the terminal client's working files.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root returns the base directory for all FollowUp working files.
// The path is expanded at runtime to resolve to:
//
//	$HOME/Documents/Alkime/FollowUp
func Root() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, "Documents", "Alkime", "FollowUp"), nil
}

// Path returns the full path of name under the root.
func Path(elem ...string) (string, error) {
	root, err := Root()
	if err != nil {
		return "", err
	}

	return filepath.Join(append([]string{root}, elem...)...), nil
}

// PreviewDir returns the directory playable recording previews are written to.
func PreviewDir() (string, error) {
	return Path("previews")
}

// LogPath returns the default client log file.
func LogPath() (string, error) {
	return Path("logs", "followup.log")
}

// Prep ensures the directory exists and returns it.
func Prep(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory %s: %w", dir, err)
	}

	return dir, nil
}
