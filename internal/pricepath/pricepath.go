/*

This file contains the synthetic price-path generator. Each path is a
discrete-time jump-diffusion over log price; the regime-shift variant switches
volatility and jump parameters at a single random changepoint in the middle of
the path and stays switched, modelling a structural break.

*/

package pricepath

import (
	"math"
	"math/rand"

	"github.com/ManiFed/curvelab/internal/types"
)

// Changepoint window for the regime-shift variant, as fractions of the path.
const (
	shiftWindowLow  = 0.30
	shiftWindowHigh = 0.70
)

// GeneratePath produces exactly steps+1 log-price values starting at 0 for the
// given regime. The generator is stateless: all randomness comes from the
// caller's rng, so a fixed seed reproduces the path exactly.
func GeneratePath(rng *rand.Rand, regime types.RegimeConfig, steps int, dt float64) []float64 {
	path := make([]float64, steps+1)

	vol := regime.Volatility
	jumpIntensity := regime.JumpIntensity
	jumpMean := regime.JumpMean
	jumpStd := regime.JumpStd

	// The structural break lands uniformly inside the middle 40% of the path.
	shiftStep := -1
	if regime.Shift != nil {
		low := int(shiftWindowLow * float64(steps))
		high := int(shiftWindowHigh * float64(steps))
		if high <= low {
			high = low + 1
		}
		shiftStep = low + rng.Intn(high-low)
	}

	for t := 1; t <= steps; t++ {
		if shiftStep >= 0 && t >= shiftStep {
			vol = regime.Shift.Volatility
			jumpIntensity = regime.Shift.JumpIntensity
			jumpMean = regime.Shift.JumpMean
			jumpStd = regime.Shift.JumpStd
		}

		increment := (regime.Drift-0.5*vol*vol)*dt + vol*math.Sqrt(dt)*BoxMuller(rng)

		if jumpIntensity > 0 && rng.Float64() < jumpIntensity*dt {
			increment += jumpMean + jumpStd*BoxMuller(rng)
		}

		path[t] = path[t-1] + increment
	}

	return path
}

// BoxMuller produces one standard normal variate from two uniform draws.
func BoxMuller(rng *rand.Rand) float64 {
	u1 := rng.Float64()
	u2 := rng.Float64()
	// Guard the log against a zero draw.
	for u1 <= 0 {
		u1 = rng.Float64()
	}
	return math.Sqrt(-2.0*math.Log(u1)) * math.Cos(2.0*math.Pi*u2)
}
