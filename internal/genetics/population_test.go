package genetics

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/ManiFed/curvelab/internal/config"
	"github.com/ManiFed/curvelab/internal/evaluator"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEvaluator scores a distribution by its entropy deficit: flatter curves
// score lower (better). Deterministic, no simulation.
type fakeEvaluator struct {
	evaluated int
	rejectAll bool
}

func (f *fakeEvaluator) Evaluate(bins []float64, regime types.RegimeID, generation int) (types.Candidate, error) {
	f.evaluated++
	features := evaluator.ExtractFeatures(bins)
	return types.Candidate{
		ID:         fmt.Sprintf("fake-%d", f.evaluated),
		Regime:     regime,
		Generation: generation,
		Bins:       append([]float64(nil), bins...),
		Metrics:    types.MetricVector{LPvsHodl: features.Entropy},
		Features:   features,
		Score:      1.0 - features.Entropy,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (f *fakeEvaluator) QuickScore(bins []float64, regime types.RegimeID) (float64, error) {
	return 1.0 - evaluator.ExtractFeatures(bins).Entropy, nil
}

func (f *fakeEvaluator) ShouldReject(quickScore, championScore float64) bool {
	return f.rejectAll
}

func testParams() types.EngineParameters {
	p := config.DefaultEngineParameters
	p.PopulationSize = 12
	return p
}

func TestAdvanceGenerationSeedsFromNil(t *testing.T) {
	p := testParams()
	fake := &fakeEvaluator{}
	m := NewManager(p, fake, rand.New(rand.NewSource(1)))

	res, err := m.AdvanceGeneration(nil, types.RegimeLowVol, p.BaseMutationIntensity)
	require.NoError(t, err)

	pop := res.Population
	assert.Equal(t, types.RegimeLowVol, pop.Regime)
	assert.Equal(t, 0, pop.Generation)
	assert.Len(t, pop.Candidates, p.PopulationSize)
	assert.Equal(t, p.PopulationSize, pop.Evaluated)
	assert.Len(t, res.NewCandidates, p.PopulationSize)
	require.NotNil(t, pop.Champion)
	assert.Equal(t, pop.Candidates[0].ID, pop.Champion.ID)
}

func TestAdvanceGenerationKeepsPopulationSortedAndCapped(t *testing.T) {
	p := testParams()
	fake := &fakeEvaluator{}
	m := NewManager(p, fake, rand.New(rand.NewSource(2)))

	res, err := m.AdvanceGeneration(nil, types.RegimeHighVol, p.BaseMutationIntensity)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		res, err = m.AdvanceGeneration(&res.Population, types.RegimeHighVol, p.BaseMutationIntensity)
		require.NoError(t, err)

		pop := res.Population
		assert.LessOrEqual(t, len(pop.Candidates), p.PopulationSize)
		assert.True(t, sort.SliceIsSorted(pop.Candidates, func(a, b int) bool {
			return pop.Candidates[a].Score < pop.Candidates[b].Score
		}))
		assert.Equal(t, i+1, pop.Generation)
	}
}

func TestAdvanceGenerationParentsNotCarriedOver(t *testing.T) {
	p := testParams()
	fake := &fakeEvaluator{}
	m := NewManager(p, fake, rand.New(rand.NewSource(3)))

	seed, err := m.AdvanceGeneration(nil, types.RegimeJump, p.BaseMutationIntensity)
	require.NoError(t, err)

	next, err := m.AdvanceGeneration(&seed.Population, types.RegimeJump, p.BaseMutationIntensity)
	require.NoError(t, err)

	seedIDs := map[string]bool{}
	for _, c := range seed.Population.Candidates {
		seedIDs[c.ID] = true
	}
	for _, c := range next.Population.Candidates {
		assert.False(t, seedIDs[c.ID], "parent %s survived into the next generation", c.ID)
		assert.Equal(t, 1, c.Generation)
	}
}

func TestAdvanceGenerationAccumulatesEvaluatedCounter(t *testing.T) {
	p := testParams()
	fake := &fakeEvaluator{}
	m := NewManager(p, fake, rand.New(rand.NewSource(4)))

	seed, err := m.AdvanceGeneration(nil, types.RegimeShift, p.BaseMutationIntensity)
	require.NoError(t, err)

	next, err := m.AdvanceGeneration(&seed.Population, types.RegimeShift, p.BaseMutationIntensity)
	require.NoError(t, err)

	assert.Equal(t, seed.Population.Evaluated+len(next.NewCandidates), next.Population.Evaluated)
	assert.Equal(t, fake.evaluated, next.Population.Evaluated)
}

func TestAdvanceGenerationQuickScreenDropsChildren(t *testing.T) {
	p := testParams()
	p.QuickScreen = true
	fake := &fakeEvaluator{rejectAll: true}
	m := NewManager(p, fake, rand.New(rand.NewSource(5)))

	seed, err := m.AdvanceGeneration(nil, types.RegimeLowVol, p.BaseMutationIntensity)
	require.NoError(t, err)

	next, err := m.AdvanceGeneration(&seed.Population, types.RegimeLowVol, p.BaseMutationIntensity)
	require.NoError(t, err)

	// Every child is screened away; only the explorers survive to evaluation.
	assert.Equal(t, p.ChildCount(), next.Screened)
	assert.Len(t, next.NewCandidates, p.ExplorerCount())
}

func TestMetricChampionsCoverEveryKey(t *testing.T) {
	p := testParams()
	fake := &fakeEvaluator{}
	m := NewManager(p, fake, rand.New(rand.NewSource(6)))

	res, err := m.AdvanceGeneration(nil, types.RegimeLowVol, p.BaseMutationIntensity)
	require.NoError(t, err)

	keys := []string{
		types.ChampionTotalFees,
		types.ChampionAvgSlippage,
		types.ChampionArbLeakage,
		types.ChampionUtilization,
		types.ChampionLPvsHodl,
		types.ChampionMaxDrawdown,
		types.ChampionReturnVolatility,
		types.ChampionStability,
	}
	for _, k := range keys {
		assert.Contains(t, res.Population.MetricChampions, k)
	}
}
