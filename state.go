package dataops

import "fmt"

// Phase is a step of the three-stage pipeline. Phases advance strictly in
// declaration order; there is no way back to an earlier phase.
type Phase int

const (
	PhaseGenerating Phase = iota
	PhaseExplaining
	PhaseAwaitingConsent
	PhaseExecuting
	PhaseDone
)

var phaseNames = [...]string{
	PhaseGenerating:      "generating",
	PhaseExplaining:      "explaining",
	PhaseAwaitingConsent: "awaiting_consent",
	PhaseExecuting:       "executing",
	PhaseDone:            "done",
}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

// Next returns the phase that follows p. PhaseDone is terminal.
func (p Phase) Next() Phase {
	if p >= PhaseDone {
		return PhaseDone
	}
	return p + 1
}

// Decision is the user's answer to a consent request.
type Decision int

const (
	DecisionPending Decision = iota
	DecisionApproved
	DecisionDeclined
)

func (d Decision) String() string {
	switch d {
	case DecisionApproved:
		return "approved"
	case DecisionDeclined:
		return "declined"
	default:
		return "pending"
	}
}

// Outcome summarizes how an invocation ended.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeNoSQL    Outcome = "no_sql"   // stage 1 produced no query
	OutcomeInvalid  Outcome = "invalid"  // dry run rejected the query
	OutcomeDeclined Outcome = "declined" // user did not consent
	OutcomeExecuted Outcome = "executed" // stage 3 ran the query
)

// State is the shared state of one pipeline invocation. It is created per
// invocation and never shared between invocations. SQLText and CostReport
// are separate fields; later stages never re-parse narrated text.
type State struct {
	InvocationID string
	SessionID    string
	Question     string

	SQLText    string
	CostReport *CostReport
	Decision   Decision
	Result     *QueryResult
	Outcome    Outcome

	phase Phase
}

// NewState returns a State in PhaseGenerating.
func NewState(invocationID, sessionID, question string) *State {
	return &State{
		InvocationID: invocationID,
		SessionID:    sessionID,
		Question:     question,
		phase:        PhaseGenerating,
	}
}

// Phase returns the current phase.
func (s *State) Phase() Phase { return s.phase }

// Advance moves to the given phase. Only the next phase or an early finish
// (PhaseDone) are allowed.
func (s *State) Advance(to Phase) error {
	if s.phase == PhaseDone {
		return fmt.Errorf("%s -> %s: %w", s.phase, to, ErrInvalidTransition)
	}
	if to != s.phase.Next() && to != PhaseDone {
		return fmt.Errorf("%s -> %s: %w", s.phase, to, ErrInvalidTransition)
	}
	if to == PhaseExplaining && s.SQLText == "" {
		return fmt.Errorf("%s -> %s: empty sql: %w", s.phase, to, ErrInvalidTransition)
	}
	if to == PhaseExecuting && s.Decision != DecisionApproved {
		return fmt.Errorf("%s -> %s: decision %s: %w", s.phase, to, s.Decision, ErrInvalidTransition)
	}
	s.phase = to
	return nil
}

// Finish moves the state to PhaseDone with the given outcome.
func (s *State) Finish(outcome Outcome) {
	s.Outcome = outcome
	s.phase = PhaseDone
}
