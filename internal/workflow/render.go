package workflow

// Status lines shown while a request is in flight.
const (
	StatusDrafting   = "Creating your action plan draft…"
	StatusFinalizing = "Finalizing & sending…"
)

// Record button labels.
const (
	RecordLabelStart = "Start Recording"
	RecordLabelStop  = "Stop Recording"
)

// View is what the UI should show for a session. It carries no behavior;
// the UI only reads it.
type View struct {
	Phase Phase

	// Busy shows the status line and blocks further requests.
	Busy   bool
	Status string

	RecordLabel  string
	ShowPlayback bool
	PlaybackRef  string

	ShowInput  bool
	ShowReview bool
	ShowFinal  bool

	DraftText string
	FinalText string

	Alert string

	CanRecord   bool
	CanGenerate bool
	CanEdit     bool
	CanFinalize bool
}

// Render derives the UI directives for a session.
func Render(s Session, recording bool, alert string) View {
	v := View{
		Phase:       s.Phase,
		Busy:        s.Phase.Busy(),
		RecordLabel: RecordLabelStart,
		Alert:       alert,
	}

	switch s.Phase {
	case PhaseDrafting:
		v.Status = StatusDrafting
	case PhaseFinalizing:
		v.Status = StatusFinalizing
	}

	if recording {
		v.RecordLabel = RecordLabelStop
	}

	if s.Audio != nil && s.Audio.Preview != "" {
		v.ShowPlayback = true
		v.PlaybackRef = s.Audio.Preview
	}

	v.ShowInput = s.Phase == PhaseIdle || s.Phase == PhaseDrafting
	v.ShowReview = s.Phase == PhaseReviewing || s.Phase == PhaseFinalizing || s.Phase == PhaseFinalized
	v.ShowFinal = s.Phase == PhaseFinalized

	if v.ShowReview {
		v.DraftText = s.DraftText
	}

	if v.ShowFinal {
		v.FinalText = s.FinalText
	}

	idle := s.Phase == PhaseIdle
	v.CanRecord = idle && (recording || s.Audio == nil)
	v.CanGenerate = idle && !recording
	v.CanEdit = s.Phase == PhaseReviewing
	v.CanFinalize = s.Phase == PhaseReviewing

	return v
}
