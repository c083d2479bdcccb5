/*

This file contains the candidate evaluator. It scores a liquidity distribution
for one regime by replaying the market simulator over several independent
price paths: training paths feed only the stability measure, held-out
evaluation paths produce the reported metrics, and the scalar fitness score is
a fixed linear combination of both.

*/

package evaluator

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/ManiFed/curvelab/internal/marketsim"
	"github.com/ManiFed/curvelab/internal/pricepath"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/google/uuid"
)

// Evaluator runs full candidate evaluations for one parameter set. It is not
// safe for concurrent use; the engine owns one per run loop.
type Evaluator struct {
	params types.EngineParameters
	rng    *rand.Rand
}

// New creates an evaluator drawing all randomness from the given source.
func New(params types.EngineParameters, rng *rand.Rand) *Evaluator {
	return &Evaluator{params: params, rng: rng}
}

// Evaluate simulates the distribution over training plus evaluation paths and
// returns a fully scored, immutable candidate. The reported metrics average
// the evaluation paths only; stability is the standard deviation of the
// LP-vs-HODL ratio across every path, training included.
func (e *Evaluator) Evaluate(bins []float64, regimeID types.RegimeID, generation int) (types.Candidate, error) {
	regime, ok := types.RegimeByID(regimeID)
	if !ok {
		return types.Candidate{}, fmt.Errorf("unknown regime %q", regimeID)
	}

	totalPaths := e.params.TrainingPaths + e.params.EvalPaths
	ratios := make([]float64, 0, totalPaths)
	evalMetrics := make([]types.MetricVector, 0, e.params.EvalPaths)

	for i := 0; i < totalPaths; i++ {
		path := pricepath.GeneratePath(e.rng, regime, e.params.PathSteps, e.params.Dt)
		res := marketsim.Simulate(e.rng, bins, path, e.params)
		ratios = append(ratios, res.LPvsHodl)
		if i >= e.params.TrainingPaths {
			evalMetrics = append(evalMetrics, res.Metrics)
		}
	}

	metrics := averageMetrics(evalMetrics)
	stability := stddev(ratios)

	cand := types.Candidate{
		ID:         uuid.NewString(),
		Regime:     regimeID,
		Generation: generation,
		Bins:       append([]float64(nil), bins...),
		Metrics:    metrics,
		Features:   ExtractFeatures(bins),
		Stability:  stability,
		Score:      Score(metrics, stability, e.params),
		CreatedAt:  time.Now().UTC(),
	}

	if err := cand.Validate(); err != nil {
		return types.Candidate{}, fmt.Errorf("evaluated candidate invalid: %w", err)
	}
	return cand, nil
}

// QuickScore runs the abbreviated screen: one short path, scored without a
// stability term. It exists purely as a cost-control filter ahead of a full
// evaluation.
func (e *Evaluator) QuickScore(bins []float64, regimeID types.RegimeID) (float64, error) {
	regime, ok := types.RegimeByID(regimeID)
	if !ok {
		return 0, fmt.Errorf("unknown regime %q", regimeID)
	}

	path := pricepath.GeneratePath(e.rng, regime, e.params.QuickScreenSteps, e.params.Dt)
	res := marketsim.Simulate(e.rng, bins, path, e.params)
	return Score(res.Metrics, 0, e.params), nil
}

// ShouldReject reports whether a quick-screened candidate is hopeless against
// the current champion. Scores can be negative, so the factor widens the
// threshold away from zero in either case.
func (e *Evaluator) ShouldReject(quickScore, championScore float64) bool {
	threshold := championScore * e.params.QuickScreenFactor
	if championScore < 0 {
		threshold = championScore / e.params.QuickScreenFactor
	}
	return quickScore > threshold
}

// Score folds a metric vector and stability into the scalar fitness. Lower is
// better: fees, utilization and LP-vs-HODL reduce the score, everything else
// raises it. Fees and arb leakage are normalized by total liquidity and
// slippage by its percentage scale so the weights act on comparable ranges.
func Score(m types.MetricVector, stability float64, p types.EngineParameters) float64 {
	feeYield := m.TotalFees / types.TotalLiquidity
	slippage := m.AvgSlippage / 100.0
	arbLeak := m.ArbLeakage / types.TotalLiquidity

	return -p.FeeYieldWeight*feeYield -
		p.UtilizationWeight*m.Utilization -
		p.LPvsHodlWeight*m.LPvsHodl +
		p.SlippageWeight*slippage +
		p.ArbLeakageWeight*arbLeak +
		p.DrawdownWeight*m.MaxDrawdown +
		p.ReturnVolWeight*m.ReturnVolatility +
		p.StabilityWeight*stability
}

func averageMetrics(ms []types.MetricVector) types.MetricVector {
	if len(ms) == 0 {
		return types.MetricVector{}
	}
	var avg types.MetricVector
	for _, m := range ms {
		avg.TotalFees += m.TotalFees
		avg.AvgSlippage += m.AvgSlippage
		avg.ArbLeakage += m.ArbLeakage
		avg.Utilization += m.Utilization
		avg.LPvsHodl += m.LPvsHodl
		avg.MaxDrawdown += m.MaxDrawdown
		avg.ReturnVolatility += m.ReturnVolatility
	}
	n := float64(len(ms))
	avg.TotalFees /= n
	avg.AvgSlippage /= n
	avg.ArbLeakage /= n
	avg.Utilization /= n
	avg.LPvsHodl /= n
	avg.MaxDrawdown /= n
	avg.ReturnVolatility /= n
	return avg
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	m := sum / float64(len(xs))

	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
