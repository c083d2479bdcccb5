/*

This file contains the core data model of the discovery engine: the liquidity
distribution (the genome), the simulation metric vector, the shape feature
descriptor, and the scored Candidate that ties them together.

*/

package types

import (
	"fmt"
	"math"
	"time"
)

const (
	// NumBins is the fixed length of every liquidity distribution.
	NumBins = 64

	// LogPriceMin and LogPriceMax bound the log-price domain the bins cover.
	LogPriceMin = -2.0
	LogPriceMax = 2.0

	// TotalLiquidity is the invariant sum of every distribution. Every
	// mutation operator must renormalize back to this value.
	TotalLiquidity = 1_000_000.0

	// LiquiditySumTolerance is the acceptable floating-point drift of a
	// distribution's sum away from TotalLiquidity.
	LiquiditySumTolerance = 1e-6
)

// BinWidth is the log-price width of a single bucket.
func BinWidth() float64 {
	return (LogPriceMax - LogPriceMin) / float64(NumBins)
}

// BinCenter returns the log-price at the center of bin i.
func BinCenter(i int) float64 {
	return LogPriceMin + (float64(i)+0.5)*BinWidth()
}

// MetricVector holds the per-candidate simulation outcomes. All fields are
// averages over the evaluation paths of one evaluation run.
type MetricVector struct {
	TotalFees        float64 `json:"total_fees"`        // fees collected by the pool
	AvgSlippage      float64 `json:"avg_slippage"`      // mean per-trade slippage, percent [0,100]
	ArbLeakage       float64 `json:"arb_leakage"`       // value ceded to external arbitrageurs
	Utilization      float64 `json:"utilization"`       // fraction of liquidity near the realized price range
	LPvsHodl         float64 `json:"lp_vs_hodl"`        // ending LP value relative to buy-and-hold
	MaxDrawdown      float64 `json:"max_drawdown"`      // peak-to-trough LP value drawdown, fraction
	ReturnVolatility float64 `json:"return_volatility"` // stddev of the per-step LP return series
}

// FeatureDescriptor holds shape statistics of a normalized distribution. These
// are simulation-independent and drive the archive's diversity bookkeeping.
type FeatureDescriptor struct {
	Curvature         float64 `json:"curvature"`          // mean absolute second difference
	Entropy           float64 `json:"entropy"`            // Shannon entropy, normalized to [0,1]
	Symmetry          float64 `json:"symmetry"`           // left/right correlation, [-1,1]
	TailRatio         float64 `json:"tail_ratio"`         // outer-quartile over inner-half mass ratio
	PeakConcentration float64 `json:"peak_concentration"` // max bin relative to uniform
}

// Candidate is one scored liquidity distribution. Candidates are immutable
// once scored; children always copy their parent's bins rather than mutating
// them in place. Bins serialize as a plain ordered list of numbers so
// snapshots survive any storage medium.
type Candidate struct {
	ID         string            `json:"id"`
	Regime     RegimeID          `json:"regime"`
	Generation int               `json:"generation"`
	Bins       []float64         `json:"bins"`
	Metrics    MetricVector      `json:"metrics"`
	Features   FeatureDescriptor `json:"features"`
	Stability  float64           `json:"stability"` // stddev of LP-vs-HODL across all paths
	Score      float64           `json:"score"`     // lower is better
	CreatedAt  time.Time         `json:"created_at"`
}

// CloneBins returns an owning copy of the candidate's distribution.
func (c *Candidate) CloneBins() []float64 {
	out := make([]float64, len(c.Bins))
	copy(out, c.Bins)
	return out
}

// Validate checks the structural invariants a candidate must satisfy before it
// can be adopted from a snapshot or persisted state. Anything malformed is
// rejected wholesale.
func (c *Candidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("candidate has empty id")
	}
	if len(c.Bins) != NumBins {
		return fmt.Errorf("candidate %s has %d bins, want %d", c.ID, len(c.Bins), NumBins)
	}
	var sum float64
	for i, b := range c.Bins {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("candidate %s bin %d is not finite", c.ID, i)
		}
		if b < 0 {
			return fmt.Errorf("candidate %s bin %d is negative: %g", c.ID, i, b)
		}
		sum += b
	}
	if math.Abs(sum-TotalLiquidity) > 1e-3 {
		return fmt.Errorf("candidate %s liquidity sum %.6f deviates from %.0f", c.ID, sum, TotalLiquidity)
	}
	if math.IsNaN(c.Score) || math.IsInf(c.Score, 0) {
		return fmt.Errorf("candidate %s has non-finite score", c.ID)
	}
	return nil
}
