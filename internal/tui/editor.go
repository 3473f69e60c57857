package tui

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// EditorLauncher edits the draft outside the terminal UI. The returned
// command must eventually produce an editorDoneMsg.
type EditorLauncher interface {
	Launch(text string) tea.Cmd
}

type editorDoneMsg struct {
	text string
	err  error
}

// ExternalEditor round-trips the draft through a temporary markdown file
// opened in the user's editor.
type ExternalEditor struct {
	// EditorCmd overrides $VISUAL and $EDITOR.
	EditorCmd string
	// Dir holds the temporary file; empty means the OS temp dir.
	Dir string
}

// Command resolves the editor to run.
func (e *ExternalEditor) Command() string {
	for _, candidate := range []string{e.EditorCmd, os.Getenv("VISUAL"), os.Getenv("EDITOR")} {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}

	return "vi"
}

// Launch suspends the UI, runs the editor and reads the result back.
//
//nolint:gosec // subprocess launching
func (e *ExternalEditor) Launch(text string) tea.Cmd {
	f, err := os.CreateTemp(e.Dir, "followup-draft-*.md")
	if err != nil {
		return editorFailed(fmt.Errorf("failed to create draft file: %w", err))
	}

	path := f.Name()
	_, err = f.WriteString(text)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		_ = os.Remove(path)
		return editorFailed(fmt.Errorf("failed to write draft file: %w", err))
	}

	// editor commands may carry flags, e.g. "code --wait"
	fields := strings.Fields(e.Command())
	c := exec.CommandContext(context.Background(), fields[0], append(fields[1:], path)...)

	return tea.ExecProcess(c, func(err error) tea.Msg {
		defer os.Remove(path)

		if err != nil {
			return editorDoneMsg{err: fmt.Errorf("editor exited with error: %w", err)}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return editorDoneMsg{err: fmt.Errorf("failed to read edited draft: %w", err)}
		}

		return editorDoneMsg{text: string(data)}
	})
}

func editorFailed(err error) tea.Cmd {
	return func() tea.Msg {
		return editorDoneMsg{err: err}
	}
}
