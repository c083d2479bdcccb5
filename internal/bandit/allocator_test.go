package bandit

import (
	"math/rand"
	"testing"

	"github.com/ManiFed/curvelab/internal/config"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAllocator(seed int64) *Allocator {
	return NewAllocator(config.DefaultEngineParameters, rand.New(rand.NewSource(seed)))
}

func TestSelectRegimeReturnsKnownRegime(t *testing.T) {
	a := newTestAllocator(1)
	regimes := types.KnownRegimeIDs()

	picked := a.SelectRegime(regimes)

	assert.Contains(t, regimes, picked)
	assert.Equal(t, types.RegimeID(""), a.SelectRegime(nil))
}

func TestSelectRegimeVisitsEveryArmDuringWarmup(t *testing.T) {
	a := newTestAllocator(2)
	regimes := types.KnownRegimeIDs()

	seen := map[types.RegimeID]bool{}
	for i := 0; i < 200; i++ {
		r := a.SelectRegime(regimes)
		seen[r] = true
		// A bad round keeps the unexplored bonus pulling other arms forward.
		a.RecordResult(r, 1.0, 1.0, 1)
	}

	for _, r := range regimes {
		assert.Truef(t, seen[r], "regime %s never selected in warm-up", r)
	}
}

func TestRecordResultImprovementResetsStreak(t *testing.T) {
	a := newTestAllocator(3)

	a.RecordResult(types.RegimeLowVol, 2.0, 2.0, 10)
	a.RecordResult(types.RegimeLowVol, 2.0, 2.0, 10) // no improvement
	st := a.arm(types.RegimeLowVol)
	require.Equal(t, 1, st.FailureStreak)
	penaltyBefore := st.StagnationPenalty

	a.RecordResult(types.RegimeLowVol, 1.9, 1.5, 10) // strict improvement

	assert.Equal(t, 0, st.FailureStreak)
	assert.LessOrEqual(t, st.StagnationPenalty, penaltyBefore)
	assert.Equal(t, 1.5, st.BestScore)
}

func TestRecordResultFailureIncrementsStreak(t *testing.T) {
	a := newTestAllocator(4)

	a.RecordResult(types.RegimeHighVol, 1.0, 1.0, 5)
	st := a.arm(types.RegimeHighVol)

	for i := 1; i <= 4; i++ {
		a.RecordResult(types.RegimeHighVol, 1.0, 1.5, 5)
		assert.Equal(t, i, st.FailureStreak)
	}
	assert.LessOrEqual(t, st.StagnationPenalty, 1.0)
}

func TestRecordResultIntensityBounds(t *testing.T) {
	p := config.DefaultEngineParameters
	a := NewAllocator(p, rand.New(rand.NewSource(5)))
	st := a.arm(types.RegimeJump)

	a.RecordResult(types.RegimeJump, 1.0, 1.0, 5)
	for i := 0; i < 50; i++ {
		a.RecordResult(types.RegimeJump, 1.0, 2.0, 5) // persistent failure
	}
	assert.InDelta(t, p.MaxMutationIntensity, st.MutationIntensity, 1e-9)

	for i := 0; i < 200; i++ {
		a.RecordResult(types.RegimeJump, 1.0, 1.0/float64(i+2), 5) // steady improvement
	}
	assert.GreaterOrEqual(t, st.MutationIntensity, p.BaseMutationIntensity*0.25)
	assert.Less(t, st.MutationIntensity, p.MaxMutationIntensity)
}

func TestPhaseTransitions(t *testing.T) {
	p := config.DefaultEngineParameters
	p.BanditWarmupTrials = 10
	p.BanditMaxFailureStreak = 2
	a := NewAllocator(p, rand.New(rand.NewSource(6)))
	st := a.arm(types.RegimeShift)

	// Below warm-up trials the arm stays exploring.
	a.RecordResult(types.RegimeShift, 5.0, 5.0, 5)
	assert.Equal(t, types.PhaseExplore, st.Phase)

	// Past warm-up with an improving window and a zero streak: intensify.
	scores := []float64{5.0, 4.5, 4.0, 3.5, 3.0, 2.5}
	for _, s := range scores {
		a.RecordResult(types.RegimeShift, s, s, 5)
	}
	assert.Equal(t, types.PhaseIntensify, st.Phase)

	// A long failure streak sends the arm back to explore.
	for i := 0; i < 4; i++ {
		a.RecordResult(types.RegimeShift, 2.5, 9.9, 5)
	}
	assert.Equal(t, types.PhaseExplore, st.Phase)
}

func TestTrendOf(t *testing.T) {
	assert.Equal(t, types.TrendPlateau, trendOf(nil))
	assert.Equal(t, types.TrendPlateau, trendOf([]float64{1, 1, 1}))
	assert.Equal(t, types.TrendImproving, trendOf([]float64{4, 4, 2, 2}))
	assert.Equal(t, types.TrendDegrading, trendOf([]float64{2, 2, 4, 4}))
	assert.Equal(t, types.TrendPlateau, trendOf([]float64{3, 3, 3, 3}))
}

func TestHistoryWindowBounded(t *testing.T) {
	p := config.DefaultEngineParameters
	a := NewAllocator(p, rand.New(rand.NewSource(7)))
	st := a.arm(types.RegimeLowVol)

	for i := 0; i < p.BanditHistoryWindow*3; i++ {
		a.RecordResult(types.RegimeLowVol, float64(i), float64(i), 1)
	}

	assert.Len(t, st.History, p.BanditHistoryWindow)
}

func TestExportImportRoundTrip(t *testing.T) {
	a := newTestAllocator(8)
	a.RecordResult(types.RegimeLowVol, 2.0, 1.5, 10)
	a.RecordResult(types.RegimeHighVol, 3.0, 2.5, 10)

	exported := a.Export()

	b := newTestAllocator(9)
	require.NoError(t, b.Import(exported))

	assert.Equal(t, exported, b.Export())
}

func TestExportDoesNotAliasHistory(t *testing.T) {
	a := newTestAllocator(10)
	a.RecordResult(types.RegimeLowVol, 2.0, 1.5, 10)

	exported := a.Export()
	st := exported[types.RegimeLowVol]
	require.NotEmpty(t, st.History)
	st.History[0] = -999

	assert.NotEqual(t, -999.0, a.arm(types.RegimeLowVol).History[0])
}

func TestImportRejectsMalformedStateWholesale(t *testing.T) {
	a := newTestAllocator(11)
	a.RecordResult(types.RegimeLowVol, 2.0, 1.5, 10)
	before := a.Export()

	bad := map[types.RegimeID]types.BranchState{
		types.RegimeHighVol: {Regime: types.RegimeHighVol, Phase: types.BanditPhase("chaotic")},
	}
	assert.Error(t, a.Import(bad))

	mismatched := map[types.RegimeID]types.BranchState{
		types.RegimeHighVol: {Regime: types.RegimeLowVol, Phase: types.PhaseExplore},
	}
	assert.Error(t, a.Import(mismatched))

	assert.Equal(t, before, a.Export())
}
