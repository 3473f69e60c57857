package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/alkime/followup/internal/capture"
	"github.com/alkime/followup/internal/input"
	"github.com/alkime/followup/internal/remote"
	"github.com/google/uuid"
)

var (
	// ErrEmptyDraft refuses finalizing a blank draft.
	ErrEmptyDraft = errors.New("draft is empty")
	// ErrBusy is returned while a draft or finalize request is in flight.
	ErrBusy = errors.New("a request is already in flight")
	// ErrInvalidPhase is returned for actions the current phase does not allow.
	ErrInvalidPhase = errors.New("action not allowed in the current phase")
	// ErrRecordingPending refuses a second recording until the first is
	// submitted or discarded.
	ErrRecordingPending = errors.New("a recording is waiting to be submitted or discarded")
	// ErrRecordingActive refuses drafting while the microphone is open.
	ErrRecordingActive = errors.New("recording in progress")
	// ErrStaleResponse reports a result discarded because the session was
	// reset after the request was issued.
	ErrStaleResponse = errors.New("response discarded: session was reset")
)

// Drafter performs the two remote operations.
type Drafter interface {
	Draft(ctx context.Context, p input.Payload) (string, error)
	Finalize(ctx context.Context, email, finalText string) (string, error)
}

// Recorder is the capture lifecycle the machine drives.
type Recorder interface {
	Start(ctx context.Context) error
	Stop() capture.Artifact
	Release(a capture.Artifact)
	Close()
	Recording() bool
}

// DraftRequest is an issued draft request waiting for its response.
type DraftRequest struct {
	Ticket  Ticket
	Payload input.Payload
}

// FinalizeRequest is an issued finalize request waiting for its response.
type FinalizeRequest struct {
	Ticket Ticket
	Email  string
	Text   string
}

// Machine owns one Session and enforces its transitions.
//
// Requests are split into Begin and Finish halves so an event loop can run
// the network call elsewhere; RequestDraft and RequestFinalize do all three
// steps for blocking callers.
type Machine struct {
	recorder Recorder
	client   Drafter
	logger   *slog.Logger

	mu         sync.Mutex
	session    Session
	alert      string
	generation uint64
	submitted  string
	sessionID  string
}

// NewMachine creates a machine with an initial, empty session.
func NewMachine(recorder Recorder, client Drafter, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}

	return &Machine{
		recorder:  recorder,
		client:    client,
		logger:    logger,
		session:   Session{Phase: PhaseIdle},
		sessionID: uuid.NewString(),
	}
}

// Snapshot returns a copy of the session.
func (m *Machine) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.session
}

// Alert returns the pending user notification, if any.
func (m *Machine) Alert() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.alert
}

// DismissAlert clears the pending notification.
func (m *Machine) DismissAlert() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.alert = ""
}

// SessionID identifies the current session generation in logs.
func (m *Machine) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.sessionID
}

// Recording reports whether the microphone is open.
func (m *Machine) Recording() bool {
	return m.recorder.Recording()
}

// View renders the current state.
func (m *Machine) View() View {
	recording := m.recorder.Recording()

	m.mu.Lock()
	defer m.mu.Unlock()

	return Render(m.session, recording, m.alert)
}

// SetContactAddress sets the delivery address used by draft and finalize.
func (m *Machine) SetContactAddress(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkPhase(PhaseIdle, PhaseReviewing); err != nil {
		return err
	}

	m.session.ContactAddress = addr

	return nil
}

// SetNotes sets the free-text notes.
func (m *Machine) SetNotes(notes string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkPhase(PhaseIdle); err != nil {
		return err
	}

	m.session.Notes = notes

	return nil
}

// EditDraft replaces the draft under review.
func (m *Machine) EditDraft(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkPhase(PhaseReviewing); err != nil {
		return err
	}

	m.session.DraftText = text

	return nil
}

// StartRecording opens the microphone. It may block while access is granted.
func (m *Machine) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkPhase(PhaseIdle); err != nil {
		m.mu.Unlock()
		return err
	}

	if m.session.Audio != nil {
		m.alert = AlertText(ErrRecordingPending)
		m.mu.Unlock()

		return ErrRecordingPending
	}

	generation := m.generation
	m.mu.Unlock()

	if err := m.recorder.Start(ctx); err != nil {
		m.mu.Lock()
		m.alert = AlertText(err)
		m.mu.Unlock()

		m.logger.Error("failed to start recording", "session", m.SessionID(), "error", err)

		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		m.recorder.Close()
		return ErrStaleResponse
	}

	m.alert = ""
	m.logger.Info("recording", "session", m.sessionID)

	return nil
}

// StopRecording closes the microphone and attaches the recording to the
// session. It panics when no recording is active.
func (m *Machine) StopRecording() capture.Artifact {
	artifact := m.recorder.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.session.Audio = &artifact

	return artifact
}

// DiscardRecording drops an unsubmitted recording and revokes its preview.
func (m *Machine) DiscardRecording() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkPhase(PhaseIdle); err != nil {
		return err
	}

	if m.session.Audio != nil {
		m.recorder.Release(*m.session.Audio)
		m.session.Audio = nil
	}

	return nil
}

// BeginDraft assembles the payload and enters drafting. Input errors are
// surfaced as alerts and leave the session untouched.
func (m *Machine) BeginDraft(ctx context.Context, file input.File) (DraftRequest, error) {
	m.mu.Lock()
	if err := m.checkPhase(PhaseIdle); err != nil {
		m.mu.Unlock()
		return DraftRequest{}, err
	}

	if m.recorder.Recording() {
		m.mu.Unlock()
		return DraftRequest{}, ErrRecordingActive
	}

	in := input.Inputs{
		ContactAddress: m.session.ContactAddress,
		Notes:          m.session.Notes,
		Audio:          m.session.Audio,
	}
	generation := m.generation
	m.mu.Unlock()

	payload, err := input.Assemble(ctx, in, file)

	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		return DraftRequest{}, ErrStaleResponse
	}

	if m.session.Phase != PhaseIdle {
		return DraftRequest{}, ErrBusy
	}

	if err != nil {
		m.alert = AlertText(err)
		m.logger.Warn("draft input rejected", "session", m.sessionID, "error", err)

		return DraftRequest{}, err
	}

	m.session.Phase = PhaseDrafting
	m.alert = ""
	m.logger.Info("drafting",
		"session", m.sessionID,
		"notes_bytes", len(payload.Notes),
		"audio", payload.Audio != nil,
	)

	return DraftRequest{
		Ticket:  Ticket{generation: m.generation, phase: PhaseDrafting},
		Payload: payload,
	}, nil
}

// FinishDraft applies a draft response. Responses for a reset session are
// discarded with ErrStaleResponse; a failed request returns to idle.
func (m *Machine) FinishDraft(t Ticket, draft string, reqErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(t, PhaseDrafting) {
		m.logger.Info("discarding stale draft response", "session", m.sessionID)
		return ErrStaleResponse
	}

	if reqErr != nil {
		m.session.Phase = PhaseIdle
		m.alert = AlertText(reqErr)

		return reqErr
	}

	m.session.Phase = PhaseReviewing
	m.session.DraftText = draft
	m.logger.Info("reviewing", "session", m.sessionID, "draft_bytes", len(draft))

	return nil
}

// BeginFinalize validates the draft and enters finalizing.
func (m *Machine) BeginFinalize() (FinalizeRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkPhase(PhaseReviewing); err != nil {
		return FinalizeRequest{}, err
	}

	text := strings.TrimSpace(m.session.DraftText)
	if text == "" {
		m.alert = AlertText(ErrEmptyDraft)
		return FinalizeRequest{}, ErrEmptyDraft
	}

	m.session.Phase = PhaseFinalizing
	m.submitted = text
	m.alert = ""
	m.logger.Info("finalizing", "session", m.sessionID)

	return FinalizeRequest{
		Ticket: Ticket{generation: m.generation, phase: PhaseFinalizing},
		Email:  strings.TrimSpace(m.session.ContactAddress),
		Text:   text,
	}, nil
}

// FinishFinalize applies a finalize response. When the service omitted the
// polished text, the submitted draft becomes the final text.
func (m *Machine) FinishFinalize(t Ticket, polished string, reqErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.current(t, PhaseFinalizing) {
		m.logger.Info("discarding stale finalize response", "session", m.sessionID)
		return ErrStaleResponse
	}

	if reqErr != nil {
		m.session.Phase = PhaseReviewing
		m.alert = AlertText(reqErr)

		return reqErr
	}

	if polished == "" {
		polished = m.submitted
	}

	m.session.Phase = PhaseFinalized
	m.session.FinalText = polished
	m.logger.Info("finalized", "session", m.sessionID, "final_bytes", len(polished))

	return nil
}

// RequestDraft runs a whole draft round trip.
func (m *Machine) RequestDraft(ctx context.Context, file input.File) error {
	req, err := m.BeginDraft(ctx, file)
	if err != nil {
		return err
	}

	draft, err := m.client.Draft(ctx, req.Payload)

	return m.FinishDraft(req.Ticket, draft, err)
}

// RequestFinalize runs a whole finalize round trip.
func (m *Machine) RequestFinalize(ctx context.Context) error {
	req, err := m.BeginFinalize()
	if err != nil {
		return err
	}

	polished, err := m.client.Finalize(ctx, req.Email, req.Text)

	return m.FinishFinalize(req.Ticket, polished, err)
}

// Reset returns to an empty idle session from any phase. In-flight responses
// are discarded when they arrive, an open microphone is released and the
// recording preview is revoked.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.release()
	m.session = Session{Phase: PhaseIdle}
	m.alert = ""
	m.submitted = ""
	m.sessionID = uuid.NewString()

	m.logger.Info("session reset", "session", m.sessionID)
}

// Close releases the microphone and any preview on teardown.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.release()
}

func (m *Machine) release() {
	m.recorder.Close()

	if m.session.Audio != nil {
		m.recorder.Release(*m.session.Audio)
		m.session.Audio = nil
	}

	m.generation++
}

func (m *Machine) current(t Ticket, phase Phase) bool {
	return t.generation == m.generation && t.phase == phase && m.session.Phase == phase
}

func (m *Machine) checkPhase(allowed ...Phase) error {
	for _, p := range allowed {
		if m.session.Phase == p {
			return nil
		}
	}

	if m.session.Phase.Busy() {
		return ErrBusy
	}

	return ErrInvalidPhase
}

// AlertText maps an error to the notification shown to the user.
func AlertText(err error) string {
	var remoteErr *remote.Error

	switch {
	case err == nil:
		return ""
	case errors.As(err, &remoteErr):
		return remoteErr.Message
	case errors.Is(err, input.ErrUnsupportedFileType):
		return "Prototype tip: for PDFs/DOCX, paste the text into the box for now."
	case errors.Is(err, input.ErrNoInputProvided):
		return "Paste notes or upload a text file."
	case errors.Is(err, ErrEmptyDraft):
		return "Draft is empty."
	case errors.Is(err, capture.ErrPermissionDenied):
		return "Microphone permission failed or not available."
	case errors.Is(err, capture.ErrAlreadyRecording):
		return "The microphone is still starting; try again in a moment."
	case errors.Is(err, ErrRecordingPending):
		return "Discard the current recording before starting a new one."
	default:
		return err.Error()
	}
}
