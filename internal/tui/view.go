package tui

import (
	"strings"

	"github.com/alkime/followup/internal/tui/style"
	"github.com/alkime/followup/internal/workflow"
)

// View renders the session.
func (m Model) View() string {
	view := m.machine.View()

	var sb strings.Builder

	sb.WriteString(style.Title.Render("FollowUp"))
	sb.WriteString(" ")
	sb.WriteString(style.Subtitle.Render("meeting notes → action plan"))
	sb.WriteString("\n\n")

	if view.ShowInput {
		sb.WriteString(m.inputView(view))
	}

	if view.ShowReview {
		sb.WriteString(m.reviewView(view))
	}

	if view.Busy {
		sb.WriteString("\n")
		sb.WriteString(m.spinner.View())
		sb.WriteString("\n")
	}

	if view.Alert != "" {
		sb.WriteString("\n")
		sb.WriteString(style.Error.Render("! " + view.Alert))
		sb.WriteString(" ")
		sb.WriteString(renderKeyHelp(m.keys.Dismiss))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.helpView(view))

	return sb.String()
}

func (m Model) inputView(view workflow.View) string {
	var sb strings.Builder

	sb.WriteString(style.Label.Render("Email"))
	sb.WriteString("\n")
	sb.WriteString(m.email.View())
	sb.WriteString("\n\n")

	sb.WriteString(style.Label.Render("Notes"))
	if m.file != nil {
		sb.WriteString(" ")
		sb.WriteString(style.Muted.Render("(using file " + m.fileLabel + ")"))
	}
	sb.WriteString("\n")
	sb.WriteString(m.notes.View())
	sb.WriteString("\n\n")

	switch {
	case m.machine.Recording():
		sb.WriteString(m.meter.View())
		sb.WriteString("\n")
	case m.starting:
		sb.WriteString(style.Warning.Render("Opening microphone…"))
		sb.WriteString("\n")
	case view.ShowPlayback:
		sb.WriteString(style.Success.Render("Recording attached"))
		sb.WriteString(" ")
		sb.WriteString(style.Muted.Render(view.PlaybackRef))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m Model) reviewView(view workflow.View) string {
	var sb strings.Builder

	if view.ShowFinal {
		sb.WriteString(style.Success.Render("Final action plan"))
		sb.WriteString("\n")
		sb.WriteString(style.Pane.Render(m.final.View()))
		sb.WriteString("\n")

		return sb.String()
	}

	sb.WriteString(style.Label.Render("Email"))
	sb.WriteString("\n")
	sb.WriteString(m.email.View())
	sb.WriteString("\n\n")

	sb.WriteString(style.Label.Render("Draft action plan"))
	sb.WriteString(" ")
	sb.WriteString(style.Muted.Render("review and edit before sending"))
	sb.WriteString("\n")
	sb.WriteString(style.Pane.Render(m.draft.View()))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) helpView(view workflow.View) string {
	keys := m.keys

	keys.Record.SetEnabled(view.CanRecord && !m.starting)
	keys.Record.SetHelp("ctrl+t", strings.ToLower(view.RecordLabel))

	keys.Discard.SetEnabled(view.ShowPlayback && view.Phase == workflow.PhaseIdle && !m.machine.Recording())
	keys.Detach.SetEnabled(m.file != nil && view.Phase == workflow.PhaseIdle)
	keys.Generate.SetEnabled(view.CanGenerate)
	keys.Edit.SetEnabled(view.CanEdit && m.opts.Editor != nil)
	keys.Finalize.SetEnabled(view.CanFinalize)
	keys.NextField.SetEnabled(view.Phase == workflow.PhaseIdle || view.Phase == workflow.PhaseReviewing)

	return renderHelpLine(
		keys.NextField,
		keys.Record,
		keys.Discard,
		keys.Detach,
		keys.Generate,
		keys.Edit,
		keys.Finalize,
	) + "\n" + renderHelpLine(keys.Reset, keys.Quit)
}
