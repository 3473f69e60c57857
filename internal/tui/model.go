// Package tui is the terminal front end of a FollowUp session: notes and
// recording input, draft review and the finalized plan.
package tui

import (
	"context"
	"errors"
	"log/slog"

	"github.com/alkime/followup/internal/input"
	"github.com/alkime/followup/internal/tui/components/labeledspinner"
	"github.com/alkime/followup/internal/tui/components/meter"
	"github.com/alkime/followup/internal/workflow"
	"github.com/alkime/followup/pkg/uictl"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
)

// Options configures the terminal client.
type Options struct {
	// File replaces typed notes when set.
	File input.File
	// FileLabel is shown next to the notes field when File is set.
	FileLabel string
	// DraftOnStop requests a draft as soon as a recording stops.
	DraftOnStop bool
	// Email pre-fills the contact address.
	Email string
	// Editor edits the draft externally; nil disables the binding.
	Editor EditorLauncher
	Logger *slog.Logger
}

type field int

const (
	fieldNotes field = iota
	fieldEmail
	fieldDraft
)

// Model is the Bubble Tea model for one session.
type Model struct {
	ctx     context.Context
	machine *workflow.Machine
	drafter workflow.Drafter
	opts    Options
	logger  *slog.Logger

	keys     keyMap
	email    textinput.Model
	notes    textarea.Model
	draft    textarea.Model
	final    viewport.Model
	spinner  labeledspinner.Model
	meter    meter.Model
	focus    field
	starting bool
	width    int

	// file replaces typed notes until detached or reset.
	file      input.File
	fileLabel string
}

type (
	recordingStartedMsg struct{ err error }
	draftDoneMsg        struct {
		ticket workflow.Ticket
		text   string
		err    error
	}
	finalizeDoneMsg struct {
		ticket workflow.Ticket
		text   string
		err    error
	}
)

// New creates the model. size is polled for the recording meter.
func New(
	ctx context.Context,
	machine *workflow.Machine,
	drafter workflow.Drafter,
	size uictl.CappedDial[int64],
	opts Options,
) Model {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	email := textinput.New()
	email.Placeholder = "you@example.com (optional)"
	email.CharLimit = 254
	email.SetValue(opts.Email)

	notes := textarea.New()
	notes.Placeholder = "Paste meeting notes, or record with ctrl+t"
	notes.ShowLineNumbers = false
	notes.CharLimit = 0
	notes.SetHeight(8)

	draft := textarea.New()
	draft.ShowLineNumbers = false
	draft.CharLimit = 0
	draft.MaxHeight = 0
	draft.SetHeight(14)

	m := Model{
		ctx:     ctx,
		machine: machine,
		drafter: drafter,
		opts:    opts,
		logger:  opts.Logger,
		keys:    defaultKeyMap(),
		email:   email,
		notes:   notes,
		draft:   draft,
		final:   viewport.New(80, 14),
		spinner: labeledspinner.New(spinner.Dot, "", "", ""),
		meter:   meter.New(size),

		file:      opts.File,
		fileLabel: opts.FileLabel,
	}

	if opts.Email != "" {
		_ = machine.SetContactAddress(opts.Email)
	}

	m.keys.Edit.SetEnabled(opts.Editor != nil)
	m.focusField(fieldNotes)

	return m
}

// Init starts the cursor blinking.
func (m Model) Init() tea.Cmd {
	return textarea.Blink
}

// Update handles messages.
func (m Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case recordingStartedMsg:
		m.starting = false
		if msg.err != nil {
			return m, nil
		}

		var cmd tea.Cmd
		m.meter, cmd = m.meter.Start()

		return m, cmd

	case meter.RefreshMsg:
		if !m.machine.Recording() {
			return m, nil
		}

		if m.meter.Full() {
			m.logger.Info("recording reached size cap, stopping")
			return m.stopRecording()
		}

		return m, meter.Refresh()

	case draftDoneMsg:
		switch err := m.machine.FinishDraft(msg.ticket, msg.text, msg.err); {
		case err == nil:
			m.draft.SetValue(m.machine.Snapshot().DraftText)
			m.draft.CursorStart()
			m.focusField(fieldDraft)
		case msg.err != nil && errors.Is(err, msg.err):
			m.focusField(fieldNotes)
		}

		return m, nil

	case finalizeDoneMsg:
		switch err := m.machine.FinishFinalize(msg.ticket, msg.text, msg.err); {
		case err == nil:
			m.final.SetContent(m.machine.Snapshot().FinalText)
			m.final.GotoTop()
			m.blurAll()
		case msg.err != nil && errors.Is(err, msg.err):
			m.focusField(fieldDraft)
		}

		return m, nil

	case editorDoneMsg:
		if msg.err != nil {
			m.logger.Error("editor closed with error", "error", msg.err)
			return m, nil
		}

		if err := m.machine.EditDraft(msg.text); err == nil {
			m.draft.SetValue(msg.text)
		}

		return m, nil

	case spinner.TickMsg:
		var cmds []tea.Cmd

		var cmd tea.Cmd
		if m.machine.View().Busy {
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.meter, cmd = m.meter.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	var cmds []tea.Cmd

	var cmd tea.Cmd
	m.meter, cmd = m.meter.Update(teaMsg)
	cmds = append(cmds, cmd)

	cmd = m.updateFocused(teaMsg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view := m.machine.View()

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.machine.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Reset):
		return m.reset()

	case key.Matches(msg, m.keys.Dismiss):
		m.machine.DismissAlert()
		return m, nil

	case key.Matches(msg, m.keys.Record):
		if !view.CanRecord || m.starting {
			return m, nil
		}

		if m.machine.Recording() {
			return m.stopRecording()
		}

		return m.startRecording()

	case key.Matches(msg, m.keys.Detach):
		if m.file != nil && view.Phase == workflow.PhaseIdle {
			m.detachFile()
			m.machine.DismissAlert()
		}

		return m, nil

	case key.Matches(msg, m.keys.Discard):
		if view.ShowPlayback && view.Phase == workflow.PhaseIdle {
			_ = m.machine.DiscardRecording()
		}

		return m, nil

	case key.Matches(msg, m.keys.Generate):
		if !view.CanGenerate || m.starting {
			return m, nil
		}

		return m.beginDraft()

	case key.Matches(msg, m.keys.Finalize):
		if !view.CanFinalize {
			return m, nil
		}

		return m.beginFinalize()

	case key.Matches(msg, m.keys.Edit):
		if !view.CanEdit || m.opts.Editor == nil {
			return m, nil
		}

		return m, m.opts.Editor.Launch(m.machine.Snapshot().DraftText)

	case key.Matches(msg, m.keys.NextField):
		m.nextField(view.Phase)
		return m, nil
	}

	if view.Busy {
		return m, nil
	}

	if view.ShowFinal {
		var cmd tea.Cmd
		m.final, cmd = m.final.Update(msg)

		return m, cmd
	}

	return m, m.updateFocused(msg)
}

func (m Model) startRecording() (tea.Model, tea.Cmd) {
	m.starting = true
	machine := m.machine
	ctx := m.ctx

	return m, func() tea.Msg {
		return recordingStartedMsg{err: machine.StartRecording(ctx)}
	}
}

func (m Model) stopRecording() (tea.Model, tea.Cmd) {
	m.machine.StopRecording()

	var cmd tea.Cmd
	m.meter, cmd = m.meter.Stop()

	if m.opts.DraftOnStop {
		next, draftCmd := m.beginDraft()
		return next, tea.Batch(cmd, draftCmd)
	}

	return m, cmd
}

func (m Model) beginDraft() (tea.Model, tea.Cmd) {
	req, err := m.machine.BeginDraft(m.ctx, m.file)
	if err != nil {
		return m, nil
	}

	m.blurAll()
	m.spinner = m.spinner.WithLabels(workflow.StatusDrafting, "")
	drafter := m.drafter
	ctx := m.ctx

	return m, tea.Batch(m.spinner.Init(), func() tea.Msg {
		text, err := drafter.Draft(ctx, req.Payload)
		return draftDoneMsg{ticket: req.Ticket, text: text, err: err}
	})
}

func (m Model) beginFinalize() (tea.Model, tea.Cmd) {
	req, err := m.machine.BeginFinalize()
	if err != nil {
		return m, nil
	}

	m.blurAll()
	m.spinner = m.spinner.WithLabels(workflow.StatusFinalizing, "")
	drafter := m.drafter
	ctx := m.ctx

	return m, tea.Batch(m.spinner.Init(), func() tea.Msg {
		text, err := drafter.Finalize(ctx, req.Email, req.Text)
		return finalizeDoneMsg{ticket: req.Ticket, text: text, err: err}
	})
}

// reset keeps starting set: a microphone still opening reports back with
// recordingStartedMsg and the machine discards it.
func (m Model) reset() (tea.Model, tea.Cmd) {
	m.machine.Reset()
	m.detachFile()

	var cmd tea.Cmd
	m.meter, cmd = m.meter.Stop()

	m.email.SetValue("")
	m.notes.Reset()
	m.draft.Reset()
	m.final.SetContent("")
	m.focusField(fieldNotes)

	return m, cmd
}

func (m *Model) detachFile() {
	m.file = nil
	m.fileLabel = ""
}

// updateFocused forwards msg to the focused field and mirrors its value
// into the session.
func (m *Model) updateFocused(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd

	switch m.focus {
	case fieldEmail:
		if !m.email.Focused() {
			return nil
		}

		m.email, cmd = m.email.Update(msg)
		_ = m.machine.SetContactAddress(m.email.Value())

	case fieldNotes:
		if !m.notes.Focused() {
			return nil
		}

		m.notes, cmd = m.notes.Update(msg)
		_ = m.machine.SetNotes(m.notes.Value())

	case fieldDraft:
		if !m.draft.Focused() {
			return nil
		}

		m.draft, cmd = m.draft.Update(msg)
		_ = m.machine.EditDraft(m.draft.Value())
	}

	return cmd
}

func (m *Model) nextField(phase workflow.Phase) {
	switch phase {
	case workflow.PhaseIdle:
		if m.focus == fieldNotes {
			m.focusField(fieldEmail)
		} else {
			m.focusField(fieldNotes)
		}
	case workflow.PhaseReviewing:
		if m.focus == fieldDraft {
			m.focusField(fieldEmail)
		} else {
			m.focusField(fieldDraft)
		}
	}
}

func (m *Model) focusField(f field) {
	m.blurAll()
	m.focus = f

	switch f {
	case fieldEmail:
		m.email.Focus()
	case fieldNotes:
		m.notes.Focus()
	case fieldDraft:
		m.draft.Focus()
	}
}

func (m *Model) blurAll() {
	m.email.Blur()
	m.notes.Blur()
	m.draft.Blur()
}

func (m *Model) resize(width, height int) {
	m.width = width

	inner := max(width-4, 20)
	m.email.Width = inner
	m.notes.SetWidth(inner)
	m.draft.SetWidth(inner)
	m.final.Width = inner
	m.final.Height = max(height-14, 5)
}
