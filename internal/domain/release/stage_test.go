package release

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTestStep = errors.New("step failed")

// happyPath lists the stages after StageStart in workflow order.
var happyPath = []Stage{
	StageInstalling,
	StageCleaned,
	StageBuilding,
	StageVerified,
	StageStaging,
	StageImageCreated,
	StageCleanedStaging,
	StageDone,
}

// TestMachine_HappyPath walks the whole linear sequence.
func TestMachine_HappyPath(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	require.Equal(t, StageStart, m.Current())

	for _, s := range happyPath {
		require.NoError(t, m.Advance(s))
	}

	require.Equal(t, StageDone, m.Current())
	require.Len(t, m.History(), len(happyPath))
	require.ErrorIs(t, m.Advance(StageDone+1), ErrInvalidTransition)
	require.ErrorIs(t, m.Fail(errTestStep), ErrInvalidTransition)
}

// TestMachine_RejectsSkips ensures stages cannot be skipped or revisited.
func TestMachine_RejectsSkips(t *testing.T) {
	t.Parallel()

	m := NewMachine()
	require.ErrorIs(t, m.Advance(StageBuilding), ErrInvalidTransition)
	require.ErrorIs(t, m.Advance(StageFailed), ErrInvalidTransition)
	require.NoError(t, m.Advance(StageInstalling))
	require.ErrorIs(t, m.Advance(StageInstalling), ErrInvalidTransition)
	require.ErrorIs(t, m.Advance(StageStart), ErrInvalidTransition)
}

// TestMachine_FailIsAbsorbing checks that Failed is reachable from every stage and never left.
func TestMachine_FailIsAbsorbing(t *testing.T) {
	t.Parallel()

	for i := range happyPath {
		m := NewMachine()
		for _, s := range happyPath[:i] {
			require.NoError(t, m.Advance(s))
		}

		before := m.Current()
		require.NoError(t, m.Fail(errTestStep))
		require.Equal(t, StageFailed, m.Current())

		from, ok := m.FailedFrom()
		require.True(t, ok)
		require.Equal(t, before, from)

		history := m.History()
		require.ErrorIs(t, history[len(history)-1].Err, errTestStep)

		for _, s := range happyPath {
			require.ErrorIs(t, m.Advance(s), ErrInvalidTransition)
		}
	}
}

// TestStageString covers names used in log lines.
func TestStageString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "image-created", StageImageCreated.String())
	require.Equal(t, "failed", StageFailed.String())
	require.Equal(t, "stage(42)", Stage(42).String())
	require.True(t, IsTerminal(StageDone))
	require.False(t, IsTerminal(StageStaging))
}

// TestActorClone verifies that Clone returns a deep copy and handles nil safely.
func TestActorClone(t *testing.T) {
	t.Parallel()
	require.Nil(t, (*Actor)(nil).Clone())

	a := &Actor{Hostname: "build-mac", Username: "release"}
	b := a.Clone()

	require.Equal(t, a, b)
	require.NotSame(t, a, b)
}
