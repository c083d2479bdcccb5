package genetics

import (
	"math/rand"
	"testing"

	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertLiquidityInvariant(t *testing.T, bins []float64) {
	t.Helper()
	require.Len(t, bins, types.NumBins)
	var sum float64
	for _, b := range bins {
		require.GreaterOrEqual(t, b, 0.0)
		sum += b
	}
	assert.InDelta(t, types.TotalLiquidity, sum, 1e-6)
}

func TestNormalizeRescales(t *testing.T) {
	bins := make([]float64, types.NumBins)
	for i := range bins {
		bins[i] = float64(i)
	}
	Normalize(bins)
	assertLiquidityInvariant(t, bins)
}

func TestNormalizeFloorsNegatives(t *testing.T) {
	bins := make([]float64, types.NumBins)
	bins[0] = -50
	bins[1] = 100
	Normalize(bins)

	assert.Equal(t, 0.0, bins[0])
	assertLiquidityInvariant(t, bins)
}

func TestNormalizeDegenerateBecomesUniform(t *testing.T) {
	bins := make([]float64, types.NumBins)
	Normalize(bins)

	assertLiquidityInvariant(t, bins)
	for _, b := range bins {
		assert.InDelta(t, types.TotalLiquidity/float64(types.NumBins), b, 1e-9)
	}
}

func TestRandomBinsInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		assertLiquidityInvariant(t, RandomBins(rng))
	}
}

func TestOperatorsPreserveInvariantAndParent(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	parent := RandomBins(rng)
	other := RandomBins(rng)
	before := append([]float64(nil), parent...)

	for i := 0; i < 50; i++ {
		assertLiquidityInvariant(t, PointPerturb(rng, parent, 0.3))
		assertLiquidityInvariant(t, Smooth(rng, parent))
		assertLiquidityInvariant(t, MassTransfer(rng, parent, 0.3))
		assertLiquidityInvariant(t, Crossover(rng, parent, other))
		assertLiquidityInvariant(t, Mutate(rng, parent, other, 0.3))
	}

	assert.Equal(t, before, parent, "operators must never mutate the parent")
}

func TestSmoothReducesRoughness(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	spiky := make([]float64, types.NumBins)
	for i := range spiky {
		if i%2 == 0 {
			spiky[i] = 1
		}
	}
	Normalize(spiky)

	roughness := func(bins []float64) float64 {
		var r float64
		for i := 1; i < len(bins); i++ {
			d := bins[i] - bins[i-1]
			r += d * d
		}
		return r
	}

	// Smoothing with a random blend cannot make an alternating comb rougher.
	smoothed := Smooth(rng, spiky)
	assert.LessOrEqual(t, roughness(smoothed), roughness(spiky))
}

func TestCrossoverTakesBinsFromBothParents(t *testing.T) {
	rng := rand.New(rand.NewSource(4))

	// Two-level parents with mirrored shapes, so they stay distinct at every
	// bin after normalization: a is heavy on the left, b on the right.
	a := make([]float64, types.NumBins)
	b := make([]float64, types.NumBins)
	for i := range a {
		if i < types.NumBins/2 {
			a[i] = 3
			b[i] = 1
		} else {
			a[i] = 1
			b[i] = 3
		}
	}
	Normalize(a)
	Normalize(b)
	require.NotEqual(t, a, b)

	child := Crossover(rng, a, b)
	assertLiquidityInvariant(t, child)

	// Every bin comes from one of the two parent levels; renormalization
	// rescales both levels by the same factor, so a child that mixed bins
	// from both parents keeps exactly two distinct levels.
	levels := map[float64]bool{}
	for _, v := range child {
		levels[v] = true
	}
	assert.Len(t, levels, 2)
}
