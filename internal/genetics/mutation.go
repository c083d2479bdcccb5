/*

This file contains the mutation operators. Every operator returns a fresh
distribution renormalized to the liquidity invariant; parents are never
modified in place.

*/

package genetics

import (
	"math/rand"

	"github.com/ManiFed/curvelab/internal/pricepath"
	"github.com/ManiFed/curvelab/internal/types"
)

const (
	maxPerturbedBins   = 8
	maxSmoothingRadius = 3
	maxSegmentLength   = 8
)

// Normalize rescales the vector in place so it sums to the liquidity
// constant, flooring negatives at zero first. An all-zero vector becomes
// uniform rather than staying degenerate.
func Normalize(bins []float64) {
	total := 0.0
	for i, b := range bins {
		if b < 0 {
			bins[i] = 0
			continue
		}
		total += b
	}
	if total <= 0 {
		uniform := types.TotalLiquidity / float64(len(bins))
		for i := range bins {
			bins[i] = uniform
		}
		return
	}
	scale := types.TotalLiquidity / total
	for i := range bins {
		bins[i] *= scale
	}
}

// RandomBins draws a fresh exploration distribution: each bin the product of
// two uniform draws, which skews mass toward a few lucky bins without the
// hard spikes a single power draw would give.
func RandomBins(rng *rand.Rand) []float64 {
	bins := make([]float64, types.NumBins)
	for i := range bins {
		bins[i] = rng.Float64() * rng.Float64()
	}
	Normalize(bins)
	return bins
}

// PointPerturb nudges a small random subset of bins with Gaussian noise
// scaled by the mutation intensity.
func PointPerturb(rng *rand.Rand, parent []float64, intensity float64) []float64 {
	child := append([]float64(nil), parent...)
	count := 1 + rng.Intn(maxPerturbedBins)
	avg := types.TotalLiquidity / float64(len(child))

	for i := 0; i < count; i++ {
		idx := rng.Intn(len(child))
		child[idx] += intensity * avg * pricepath.BoxMuller(rng)
		if child[idx] < 0 {
			child[idx] = 0
		}
	}
	Normalize(child)
	return child
}

// Smooth blends each interior bin toward a moving average of random radius at
// a random fraction, softening sharp liquidity cliffs.
func Smooth(rng *rand.Rand, parent []float64) []float64 {
	child := append([]float64(nil), parent...)
	radius := 1 + rng.Intn(maxSmoothingRadius)
	blend := rng.Float64()

	for i := radius; i < len(parent)-radius; i++ {
		var window float64
		for j := i - radius; j <= i+radius; j++ {
			window += parent[j]
		}
		window /= float64(2*radius + 1)
		child[i] = (1-blend)*parent[i] + blend*window
	}
	Normalize(child)
	return child
}

// MassTransfer moves a fraction of the mass of one random contiguous segment
// onto another, capped to what the source actually holds.
func MassTransfer(rng *rand.Rand, parent []float64, intensity float64) []float64 {
	child := append([]float64(nil), parent...)

	srcLen := 1 + rng.Intn(maxSegmentLength)
	dstLen := 1 + rng.Intn(maxSegmentLength)
	srcStart := rng.Intn(len(child) - srcLen + 1)
	dstStart := rng.Intn(len(child) - dstLen + 1)

	var srcMass float64
	for i := srcStart; i < srcStart+srcLen; i++ {
		srcMass += child[i]
	}

	moved := intensity * rng.Float64() * types.TotalLiquidity
	if moved > srcMass {
		moved = srcMass
	}
	if srcMass > 0 && moved > 0 {
		drain := moved / srcMass
		for i := srcStart; i < srcStart+srcLen; i++ {
			child[i] *= 1 - drain
		}
		perBin := moved / float64(dstLen)
		for i := dstStart; i < dstStart+dstLen; i++ {
			child[i] += perBin
		}
	}
	Normalize(child)
	return child
}

// Crossover combines two parents with a uniform per-bin coin flip.
func Crossover(rng *rand.Rand, a, b []float64) []float64 {
	child := make([]float64, len(a))
	for i := range child {
		if rng.Float64() < 0.5 {
			child[i] = a[i]
		} else {
			child[i] = b[i]
		}
	}
	Normalize(child)
	return child
}

// Mutate derives one child from a parent (and a second parent for crossover)
// by a uniformly chosen operator at the given intensity.
func Mutate(rng *rand.Rand, parent, other []float64, intensity float64) []float64 {
	// Each child gets its own jittered intensity around the regime's setting.
	jittered := intensity * (0.5 + rng.Float64())

	switch rng.Intn(4) {
	case 0:
		return PointPerturb(rng, parent, jittered)
	case 1:
		return Smooth(rng, parent)
	case 2:
		return MassTransfer(rng, parent, jittered)
	default:
		return Crossover(rng, parent, other)
	}
}
