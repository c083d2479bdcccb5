package evaluator

import (
	"math/rand"
	"testing"

	"github.com/ManiFed/curvelab/internal/config"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateProducesValidCandidate(t *testing.T) {
	p := config.DefaultEngineParameters
	e := New(p, rand.New(rand.NewSource(1)))

	cand, err := e.Evaluate(flatBins(), types.RegimeLowVol, 3)
	require.NoError(t, err)

	assert.NoError(t, cand.Validate())
	assert.NotEmpty(t, cand.ID)
	assert.Equal(t, types.RegimeLowVol, cand.Regime)
	assert.Equal(t, 3, cand.Generation)
	assert.Len(t, cand.Bins, types.NumBins)
	assert.GreaterOrEqual(t, cand.Stability, 0.0)
	assert.False(t, cand.CreatedAt.IsZero())
}

func TestEvaluateCopiesBins(t *testing.T) {
	p := config.DefaultEngineParameters
	e := New(p, rand.New(rand.NewSource(2)))

	bins := flatBins()
	cand, err := e.Evaluate(bins, types.RegimeHighVol, 0)
	require.NoError(t, err)

	bins[0] = 0
	assert.NotEqual(t, 0.0, cand.Bins[0])
}

func TestEvaluateUnknownRegime(t *testing.T) {
	p := config.DefaultEngineParameters
	e := New(p, rand.New(rand.NewSource(3)))

	_, err := e.Evaluate(flatBins(), types.RegimeID("sideways"), 0)
	assert.Error(t, err)
}

func TestQuickScoreUnknownRegime(t *testing.T) {
	p := config.DefaultEngineParameters
	e := New(p, rand.New(rand.NewSource(4)))

	_, err := e.QuickScore(flatBins(), types.RegimeID("sideways"))
	assert.Error(t, err)
}

func TestShouldRejectPositiveChampion(t *testing.T) {
	p := config.DefaultEngineParameters
	e := New(p, rand.New(rand.NewSource(5)))

	assert.False(t, e.ShouldReject(2.0, 1.0))
	assert.True(t, e.ShouldReject(2.6, 1.0))
}

func TestShouldRejectNegativeChampion(t *testing.T) {
	p := config.DefaultEngineParameters
	e := New(p, rand.New(rand.NewSource(6)))

	// Champion at -1.0: the widened threshold is -0.4, not -2.5.
	assert.False(t, e.ShouldReject(-0.5, -1.0))
	assert.True(t, e.ShouldReject(-0.3, -1.0))
}

func TestScoreDirections(t *testing.T) {
	p := config.DefaultEngineParameters
	base := types.MetricVector{LPvsHodl: 1.0, Utilization: 0.5}
	baseScore := Score(base, 0, p)

	moreFees := base
	moreFees.TotalFees = 10_000
	assert.Less(t, Score(moreFees, 0, p), baseScore)

	moreSlip := base
	moreSlip.AvgSlippage = 50
	assert.Greater(t, Score(moreSlip, 0, p), baseScore)

	moreDD := base
	moreDD.MaxDrawdown = 0.3
	assert.Greater(t, Score(moreDD, 0, p), baseScore)

	assert.Greater(t, Score(base, 0.2, p), baseScore)
}

func TestAverageMetrics(t *testing.T) {
	avg := averageMetrics([]types.MetricVector{
		{TotalFees: 2, AvgSlippage: 4, Utilization: 0.2, LPvsHodl: 1.0},
		{TotalFees: 4, AvgSlippage: 8, Utilization: 0.6, LPvsHodl: 1.2},
	})

	assert.InDelta(t, 3.0, avg.TotalFees, 1e-9)
	assert.InDelta(t, 6.0, avg.AvgSlippage, 1e-9)
	assert.InDelta(t, 0.4, avg.Utilization, 1e-9)
	assert.InDelta(t, 1.1, avg.LPvsHodl, 1e-9)

	assert.Equal(t, types.MetricVector{}, averageMetrics(nil))
}
