package interview

// Phase is the interview state machine position.
type Phase string

const (
	Collecting Phase = "COLLECTING"
	Ready      Phase = "READY"
)

// State is the interview progress kept per session. Once ReadyToPlan is set
// it stays set until the session is reset.
type State struct {
	SufficiencyScore int    `json:"sufficiency_score"`
	ReadyToPlan      bool   `json:"ready_to_plan"`
	CurrentQuestion  string `json:"current_question,omitempty"`
	Turns            int    `json:"turns"`
}

// Apply folds a turn into the state.
func (s *State) Apply(t Turn) {
	s.SufficiencyScore = Clamp(t.SufficiencyScore)
	s.ReadyToPlan = s.ReadyToPlan || t.ReadyToPlan
	s.CurrentQuestion = t.Question
	s.Turns++
}

// Phase reports COLLECTING or READY.
func (s State) Phase() Phase {
	if s.ReadyToPlan {
		return Ready
	}
	return Collecting
}
