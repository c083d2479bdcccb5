/*

This file contains the shape-feature extractor. Features describe the
geometry of a liquidity distribution independent of any simulation, and feed
both the diversity archive's family keys and the embedding endpoint.

*/

package evaluator

import (
	"math"

	"github.com/ManiFed/curvelab/internal/types"
)

// ExtractFeatures computes the shape descriptor of a distribution from its
// normalized weights. The input is not modified.
func ExtractFeatures(bins []float64) types.FeatureDescriptor {
	weights := normalize(bins)

	return types.FeatureDescriptor{
		Curvature:         curvature(weights),
		Entropy:           entropy(weights),
		Symmetry:          symmetry(weights),
		TailRatio:         tailRatio(weights),
		PeakConcentration: peakConcentration(weights),
	}
}

func normalize(bins []float64) []float64 {
	total := 0.0
	for _, b := range bins {
		if b > 0 {
			total += b
		}
	}
	weights := make([]float64, len(bins))
	if total <= 0 {
		return weights
	}
	for i, b := range bins {
		if b > 0 {
			weights[i] = b / total
		}
	}
	return weights
}

// curvature is the summed absolute second difference of the weights. Uniform
// curves score 0, a single spike scores near 4.
func curvature(w []float64) float64 {
	var sum float64
	for i := 1; i < len(w)-1; i++ {
		sum += math.Abs(w[i+1] - 2*w[i] + w[i-1])
	}
	return sum
}

// entropy is Shannon entropy normalized by log(N) so a uniform distribution
// scores 1 and a single spike scores 0.
func entropy(w []float64) float64 {
	if len(w) < 2 {
		return 0
	}
	var h float64
	for _, x := range w {
		if x > 0 {
			h -= x * math.Log(x)
		}
	}
	return h / math.Log(float64(len(w)))
}

// symmetry is the Pearson correlation between the left half and the mirrored
// right half. Flat halves have no variance to correlate; they count as
// perfectly symmetric.
func symmetry(w []float64) float64 {
	n := len(w) / 2
	if n == 0 {
		return 1
	}
	left := w[:n]
	right := make([]float64, n)
	for i := 0; i < n; i++ {
		right[i] = w[len(w)-1-i]
	}

	meanL, meanR := mean(left), mean(right)
	var cov, varL, varR float64
	for i := 0; i < n; i++ {
		dl := left[i] - meanL
		dr := right[i] - meanR
		cov += dl * dr
		varL += dl * dl
		varR += dr * dr
	}
	if varL <= 0 || varR <= 0 {
		return 1
	}
	return cov / math.Sqrt(varL*varR)
}

// Distributions with an empty center would send the tail ratio to infinity;
// the cap keeps them comparable on the family grid.
const maxTailRatio = 100.0

// tailRatio is the mass in the outer quartiles of the domain relative to the
// mass in the inner half. Uniform curves score 1, center-heavy curves score
// below 1, tail-heavy curves above.
func tailRatio(w []float64) float64 {
	q := len(w) / 4
	var tails, center float64
	for i, x := range w {
		if i < q || i >= len(w)-q {
			tails += x
		} else {
			center += x
		}
	}
	if center <= 0 {
		if tails <= 0 {
			return 0
		}
		return maxTailRatio
	}
	r := tails / center
	if r > maxTailRatio {
		r = maxTailRatio
	}
	return r
}

// peakConcentration is the largest weight relative to a uniform distribution:
// 1 for uniform, N for a single spike.
func peakConcentration(w []float64) float64 {
	var peak float64
	for _, x := range w {
		if x > peak {
			peak = x
		}
	}
	return peak * float64(len(w))
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
