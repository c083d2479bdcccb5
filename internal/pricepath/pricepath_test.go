package pricepath

import (
	"math"
	"math/rand"
	"testing"

	"github.com/ManiFed/curvelab/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePathLengthAndOrigin(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	regime, ok := types.RegimeByID(types.RegimeLowVol)
	require.True(t, ok)

	path := GeneratePath(rng, regime, 168, 1.0/8760.0)

	assert.Len(t, path, 169)
	assert.Equal(t, 0.0, path[0])
	for i, p := range path {
		assert.Falsef(t, math.IsNaN(p) || math.IsInf(p, 0), "step %d not finite", i)
	}
}

func TestGeneratePathDeterministicGivenSeed(t *testing.T) {
	regime, ok := types.RegimeByID(types.RegimeJump)
	require.True(t, ok)

	a := GeneratePath(rand.New(rand.NewSource(42)), regime, 128, 1.0/8760.0)
	b := GeneratePath(rand.New(rand.NewSource(42)), regime, 128, 1.0/8760.0)

	assert.Equal(t, a, b)
}

func TestGeneratePathSeedsDiverge(t *testing.T) {
	regime, ok := types.RegimeByID(types.RegimeHighVol)
	require.True(t, ok)

	a := GeneratePath(rand.New(rand.NewSource(1)), regime, 128, 1.0/8760.0)
	b := GeneratePath(rand.New(rand.NewSource(2)), regime, 128, 1.0/8760.0)

	assert.NotEqual(t, a, b)
}

func TestRegimeShiftRaisesLateVariance(t *testing.T) {
	regime, ok := types.RegimeByID(types.RegimeShift)
	require.True(t, ok)
	require.NotNil(t, regime.Shift)

	// The shift multiplies volatility roughly 3x, so across many paths the
	// post-changepoint increments must show clearly larger variance than the
	// first 30% of the path, which is always pre-shift.
	rng := rand.New(rand.NewSource(7))
	steps := 200
	dt := 1.0 / 8760.0

	var earlyVar, lateVar float64
	var earlyN, lateN int
	for p := 0; p < 50; p++ {
		path := GeneratePath(rng, regime, steps, dt)
		for t := 1; t <= steps; t++ {
			d := path[t] - path[t-1]
			switch {
			case t < int(0.30*float64(steps)):
				earlyVar += d * d
				earlyN++
			case t >= int(0.70*float64(steps)):
				lateVar += d * d
				lateN++
			}
		}
	}
	earlyVar /= float64(earlyN)
	lateVar /= float64(lateN)

	assert.Greater(t, lateVar, earlyVar*2)
}

func TestBoxMullerMoments(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 200000

	var sum, sumSq float64
	for i := 0; i < n; i++ {
		z := BoxMuller(rng)
		sum += z
		sumSq += z * z
	}
	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean

	assert.InDelta(t, 0.0, mean, 0.02)
	assert.InDelta(t, 1.0, variance, 0.03)
}
