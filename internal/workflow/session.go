// Package workflow is the session state machine behind the client: it
// coordinates recording, draft generation, review and finalization, and
// guards against responses that arrive after a reset.
package workflow

import "github.com/alkime/followup/internal/capture"

// Phase is where a session is in the draft/finalize workflow.
type Phase int

const (
	// PhaseIdle accepts input and recordings.
	PhaseIdle Phase = iota
	// PhaseDrafting has a draft request in flight.
	PhaseDrafting
	// PhaseReviewing holds an editable draft.
	PhaseReviewing
	// PhaseFinalizing has a finalize request in flight.
	PhaseFinalizing
	// PhaseFinalized displays the polished result.
	PhaseFinalized
)

// String returns the human-readable name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseDrafting:
		return "Drafting"
	case PhaseReviewing:
		return "Reviewing"
	case PhaseFinalizing:
		return "Finalizing"
	case PhaseFinalized:
		return "Finalized"
	default:
		return "Unknown"
	}
}

// Busy reports whether a request is in flight.
func (p Phase) Busy() bool {
	return p == PhaseDrafting || p == PhaseFinalizing
}

// Session is the mutable context of one visit.
type Session struct {
	Phase          Phase
	ContactAddress string
	Notes          string
	Audio          *capture.Artifact
	DraftText      string
	FinalText      string
}

// Ticket identifies the session generation a request was issued in.
type Ticket struct {
	generation uint64
	phase      Phase
}
