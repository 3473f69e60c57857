// Package meter shows an active recording: elapsed time and captured bytes
// against the configured cap.
package meter

import (
	"fmt"
	"strings"
	"time"

	"github.com/alkime/followup/internal/tui/style"
	"github.com/alkime/followup/pkg/uictl"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/stopwatch"
	tea "github.com/charmbracelet/bubbletea"
)

// RefreshInterval is how often the byte counter is re-read.
const RefreshInterval = 250 * time.Millisecond

// RefreshMsg asks the owner to re-check the dial.
type RefreshMsg struct{}

// Model renders a recording in progress.
type Model struct {
	size      uictl.CappedDial[int64]
	spinner   spinner.Model
	stopwatch stopwatch.Model
	progress  progress.Model
	running   bool
}

// New creates a meter reading size.
func New(size uictl.CappedDial[int64]) Model {
	s := spinner.New()
	s.Spinner = spinner.Points

	return Model{
		size:      size,
		spinner:   s,
		stopwatch: stopwatch.NewWithInterval(time.Second),
		progress: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(40),
			progress.WithoutPercentage(),
		),
	}
}

// Start resets the elapsed time and begins refreshing.
func (m Model) Start() (Model, tea.Cmd) {
	m.running = true

	return m, tea.Batch(m.stopwatch.Reset(), m.stopwatch.Start(), m.spinner.Tick, Refresh())
}

// Stop halts the stopwatch.
func (m Model) Stop() (Model, tea.Cmd) {
	m.running = false

	return m, m.stopwatch.Stop()
}

// Running reports whether the meter was started and not stopped.
func (m Model) Running() bool {
	return m.running
}

// Full reports whether the recording reached its cap. Always false without
// a cap.
func (m Model) Full() bool {
	current, maxBytes := m.size.Cap()

	return maxBytes > 0 && current >= maxBytes
}

// Refresh schedules the next RefreshMsg.
func Refresh() tea.Cmd {
	return tea.Tick(RefreshInterval, func(time.Time) tea.Msg {
		return RefreshMsg{}
	})
}

// Update animates the meter.
func (m Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := teaMsg.(type) {
	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}

		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model) //nolint:forcetypeassert // bubbles library contract
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.stopwatch, cmd = m.stopwatch.Update(teaMsg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the meter.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.spinner.View())
	sb.WriteString(" ")
	sb.WriteString(style.Warning.Render("Recording"))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render(m.stopwatch.View()))
	sb.WriteString("\n")

	current, maxBytes := m.size.Cap()
	if maxBytes > 0 {
		sb.WriteString(m.progress.ViewAs(min(float64(current)/float64(maxBytes), 1)))
		sb.WriteString("\n")
	}

	sb.WriteString(style.Subtitle.Render(FormatBytes(current, maxBytes)))

	return sb.String()
}

// FormatBytes formats bytes as a human-readable string.
func FormatBytes(current, maxBytes int64) string {
	currentMB := float64(current) / (1024 * 1024)

	if maxBytes == 0 {
		return fmt.Sprintf("%.1f MB / unlimited", currentMB)
	}

	maxMB := float64(maxBytes) / (1024 * 1024)
	percent := int(float64(current) / float64(maxBytes) * 100)

	return fmt.Sprintf("%.1f MB / %.1f MB (%d%%)", currentMB, maxMB, percent)
}
