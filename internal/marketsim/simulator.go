/*

This file contains the market simulator. It replays random synthetic trade flow
plus arbitrage correction against one candidate's liquidity distribution along
one external price path, and reports the metric vector the evaluator averages.

The simulator works on value units: each bin holds an amount of liquidity value
at its log-price bucket. Trades consume value from bins in the direction of the
trade, arbitrageurs snap the pool price back to the external path when the
deviation grows past a threshold, and LP value is the interpolated reserve
split around the external price plus accumulated fees.

*/

package marketsim

import (
	"math"
	"math/rand"

	"github.com/ManiFed/curvelab/internal/pricepath"
	"github.com/ManiFed/curvelab/internal/types"
)

const (
	// Trade size model: multiplier of total liquidity with a log-normal shape.
	tradeSizeBase  = 0.0005
	tradeSizeSigma = 0.9

	// Fraction of pool value an arbitrageur moves per unit of log-price deviation.
	arbSizeFactor = 0.25

	// Liquidity within this many bin widths of the realized price range counts
	// as active for the utilization metric.
	utilizationMarginBins = 2.0
)

// Result is the outcome of one simulated path.
type Result struct {
	Metrics  types.MetricVector
	LPvsHodl float64 // final LP value over buy-and-hold, the stability input
}

// poolState is the mutable mid-simulation state. It never escapes Simulate;
// the candidate's own distribution is copied on entry and untouched.
type poolState struct {
	bins     []float64
	logPrice float64
	fees     float64
	arbLeak  float64
}

// Simulate replays one price path against a copy of the given distribution and
// returns the resulting metric vector. bins must sum to types.TotalLiquidity;
// the slice is not modified.
func Simulate(rng *rand.Rand, bins []float64, path []float64, p types.EngineParameters) Result {
	st := &poolState{
		bins:     append([]float64(nil), bins...),
		logPrice: path[0],
	}

	// Buy-and-hold baseline: the initial reserve split held untouched and
	// marked to the external price each step.
	base0, quote0 := reserveSplit(bins, path[0], p.ReserveEpsilon)

	lpValue := lpValueAt(st, path[0], p.ReserveEpsilon)
	peak := lpValue
	maxDrawdown := 0.0

	var slippageSum float64
	var tradeCount int
	returns := make([]float64, 0, len(path)-1)

	minLog, maxLog := path[0], path[0]

	for t := 1; t < len(path); t++ {
		external := path[t]
		if external < minLog {
			minLog = external
		}
		if external > maxLog {
			maxLog = external
		}

		// (a) 1-3 random synthetic trades.
		numTrades := 1 + rng.Intn(3)
		for i := 0; i < numTrades; i++ {
			size := types.TotalLiquidity * tradeSizeBase * math.Exp(tradeSizeSigma*pricepath.BoxMuller(rng))
			buy := rng.Float64() < 0.5
			slippageSum += executeTrade(st, size, buy, p)
			tradeCount++
		}

		// (b) Arbitrage correction once the pool price drifts too far.
		applyArbitrage(st, external, p)

		// (c) Mark the pool to the external price.
		prevValue := lpValue
		lpValue = lpValueAt(st, external, p.ReserveEpsilon)

		// (d) Drawdown and per-step return bookkeeping.
		if lpValue > peak {
			peak = lpValue
		}
		if peak > 0 {
			dd := (peak - lpValue) / peak
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
		if prevValue > p.ReserveEpsilon {
			returns = append(returns, lpValue/prevValue-1.0)
		}
	}

	finalExternal := path[len(path)-1]
	finalHodl := quote0 + base0*math.Exp(finalExternal)
	ratio := 1.0
	if finalHodl > p.ReserveEpsilon {
		ratio = lpValue / finalHodl
	}

	avgSlippage := 0.0
	if tradeCount > 0 {
		avgSlippage = slippageSum / float64(tradeCount)
	}

	return Result{
		Metrics: types.MetricVector{
			TotalFees:        st.fees,
			AvgSlippage:      avgSlippage,
			ArbLeakage:       st.arbLeak,
			Utilization:      utilization(bins, minLog, maxLog),
			LPvsHodl:         ratio,
			MaxDrawdown:      maxDrawdown,
			ReturnVolatility: stddev(returns),
		},
		LPvsHodl: ratio,
	}
}

// executeTrade walks the bins in the trade's direction, consuming liquidity
// and moving the pool price, and returns the trade's slippage percentage in
// [0,100]. Trades that would produce non-positive output are rejected with
// 100% nominal slippage and no state change.
func executeTrade(st *poolState, size float64, buy bool, p types.EngineParameters) float64 {
	if size <= 0 {
		return 100.0
	}

	entryPrice := math.Exp(st.logPrice)
	width := types.BinWidth()
	idx := binIndex(st.logPrice)
	step := 1
	if !buy {
		step = -1
	}

	// First pass: compute per-bin consumption without touching state, so a
	// rejected trade leaves the pool exactly as it was.
	remaining := size
	outValue := 0.0
	type takeRecord struct {
		idx  int
		take float64
	}
	takes := make([]takeRecord, 0, 8)
	lastIdx := idx
	lastFrac := 0.0

	for i := idx; i >= 0 && i < types.NumBins && remaining > p.ReserveEpsilon; i += step {
		capacity := st.bins[i]
		if capacity <= p.ReserveEpsilon {
			continue
		}
		take := remaining
		if take > capacity {
			take = capacity
		}

		price := math.Exp(types.BinCenter(i))
		// Output credited at the entry price; walking away from it always
		// yields a factor below 1, which is exactly the slippage.
		var factor float64
		if buy {
			factor = entryPrice / price
		} else {
			factor = price / entryPrice
		}
		if factor > 1 {
			factor = 1
		}

		outValue += take * factor
		remaining -= take
		takes = append(takes, takeRecord{idx: i, take: take})
		lastIdx = i
		lastFrac = take / capacity
	}

	if outValue <= p.ReserveEpsilon {
		return 100.0
	}

	// Commit: consume walked liquidity, redeposit the input (net of fee) at
	// the far end of the walk, and move the pool price into the last bin.
	fee := size * p.TradeFeeRate
	for _, tr := range takes {
		st.bins[tr.idx] -= tr.take
		if st.bins[tr.idx] < 0 {
			st.bins[tr.idx] = 0
		}
	}
	st.bins[lastIdx] += size - fee
	st.fees += fee

	binLow := types.LogPriceMin + float64(lastIdx)*width
	if buy {
		st.logPrice = binLow + lastFrac*width
	} else {
		st.logPrice = binLow + (1.0-lastFrac)*width
	}

	slippage := (1.0 - outValue/size) * 100.0
	if slippage < 0 {
		slippage = 0
	}
	if slippage > 100 {
		slippage = 100
	}
	return slippage
}

// applyArbitrage snaps the pool price to the external price when the deviation
// exceeds the threshold. The arbitrageur pays a fee on the correcting trade;
// the captured deviation value is lost to external actors, not to the LPs.
func applyArbitrage(st *poolState, external float64, p types.EngineParameters) {
	deviation := external - st.logPrice
	if math.Abs(deviation) <= p.ArbThreshold {
		return
	}

	poolValue := 0.0
	for _, b := range st.bins {
		poolValue += b
	}

	tradeSize := math.Abs(deviation) * poolValue * arbSizeFactor
	st.fees += tradeSize * p.ArbFeeRate
	// Average mispricing over the move is half the deviation.
	st.arbLeak += tradeSize * math.Abs(deviation) * 0.5
	st.logPrice = external
}

// lpValueAt values the pool at the external log price: the interpolated
// reserve split marked to that price, plus accumulated fees.
func lpValueAt(st *poolState, external float64, epsilon float64) float64 {
	base, quote := reserveSplit(st.bins, external, epsilon)
	v := quote + base*math.Exp(external) + st.fees
	if v < 0 {
		v = 0
	}
	return v
}

// reserveSplit splits bin liquidity into base-token quantity (above the
// reference price) and quote value (below it), interpolating the straddling
// bin. Reserves are floored to epsilon to stay safely positive.
func reserveSplit(bins []float64, refLogPrice float64, epsilon float64) (base, quote float64) {
	width := types.BinWidth()
	for i, liq := range bins {
		if liq <= 0 {
			continue
		}
		center := types.BinCenter(i)
		low := types.LogPriceMin + float64(i)*width
		high := low + width

		switch {
		case high <= refLogPrice:
			quote += liq
		case low >= refLogPrice:
			base += liq / math.Exp(center)
		default:
			fracBelow := (refLogPrice - low) / width
			quote += liq * fracBelow
			base += liq * (1.0 - fracBelow) / math.Exp(center)
		}
	}
	if base < epsilon {
		base = epsilon
	}
	if quote < epsilon {
		quote = epsilon
	}
	return base, quote
}

// utilization reports the fraction of the candidate's original liquidity that
// sat within the realized price range, padded by a small margin.
func utilization(bins []float64, minLog, maxLog float64) float64 {
	margin := utilizationMarginBins * types.BinWidth()
	low := minLog - margin
	high := maxLog + margin

	var active, total float64
	for i, liq := range bins {
		total += liq
		c := types.BinCenter(i)
		if c >= low && c <= high {
			active += liq
		}
	}
	if total <= 0 {
		return 0
	}
	return active / total
}

// binIndex maps a log price onto its bucket, clamped to the domain.
func binIndex(logPrice float64) int {
	idx := int((logPrice - types.LogPriceMin) / types.BinWidth())
	if idx < 0 {
		return 0
	}
	if idx >= types.NumBins {
		return types.NumBins - 1
	}
	return idx
}

// stddev is the population standard deviation.
func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sumSq float64
	for _, x := range xs {
		d := x - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)))
}
