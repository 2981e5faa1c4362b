package release

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Stage is a step of the packaging workflow.
type Stage int

// Stages in the order the workflow visits them. Failed is reachable from any
// non-terminal stage and is absorbing.
const (
	StageStart Stage = iota
	StageInstalling
	StageCleaned
	StageBuilding
	StageVerified
	StageStaging
	StageImageCreated
	StageCleanedStaging
	StageDone
	StageFailed
)

// ErrInvalidTransition is returned when a transition breaks the linear order.
var ErrInvalidTransition = errors.New("invalid stage transition")

// String returns the stage name used in logs.
func (s Stage) String() string {
	switch s {
	case StageStart:
		return "start"
	case StageInstalling:
		return "installing"
	case StageCleaned:
		return "cleaned"
	case StageBuilding:
		return "building"
	case StageVerified:
		return "verified"
	case StageStaging:
		return "staging"
	case StageImageCreated:
		return "image-created"
	case StageCleanedStaging:
		return "cleaned-staging"
	case StageDone:
		return "done"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// IsTerminal reports whether no transition leaves the stage.
func IsTerminal(s Stage) bool {
	return s == StageDone || s == StageFailed
}

// Transition records a single stage change.
type Transition struct {
	// From is the stage left.
	From Stage
	// To is the stage entered.
	To Stage
	// At is when the change happened.
	At time.Time
	// Err is the failure cause for transitions into StageFailed.
	Err error
}

// Machine tracks the current stage of one workflow run.
// It is not safe for concurrent use; a run is strictly sequential.
type Machine struct {
	current Stage
	history []Transition
	now     func() time.Time
}

// NewMachine returns a machine positioned at StageStart.
func NewMachine() *Machine {
	return &Machine{
		current: StageStart,
		now:     time.Now,
	}
}

// Current returns the stage the run is in.
func (m *Machine) Current() Stage {
	return m.current
}

// History returns a copy of the recorded transitions.
func (m *Machine) History() []Transition {
	return slices.Clone(m.history)
}

// Advance moves to the next stage. Only the immediate successor is accepted.
func (m *Machine) Advance(to Stage) error {
	if IsTerminal(m.current) || to == StageFailed || to != m.current+1 {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}

	m.record(to, nil)

	return nil
}

// Fail moves the run into StageFailed, keeping cause in the history.
func (m *Machine) Fail(cause error) error {
	if IsTerminal(m.current) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, StageFailed)
	}

	m.record(StageFailed, cause)

	return nil
}

// FailedFrom returns the stage that was active when the run failed.
func (m *Machine) FailedFrom() (Stage, bool) {
	if m.current != StageFailed || len(m.history) == 0 {
		return StageStart, false
	}

	return m.history[len(m.history)-1].From, true
}

func (m *Machine) record(to Stage, cause error) {
	m.history = append(m.history, Transition{
		From: m.current,
		To:   to,
		At:   m.now(),
		Err:  cause,
	})
	m.current = to
}
