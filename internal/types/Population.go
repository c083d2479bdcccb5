package types

import "fmt"

// Metric champion keys used in PopulationState.MetricChampions. Each names the
// MetricVector field (or stability) whose best holder is tracked alongside the
// overall champion.
const (
	ChampionTotalFees        = "total_fees"
	ChampionAvgSlippage      = "avg_slippage"
	ChampionArbLeakage       = "arb_leakage"
	ChampionUtilization      = "utilization"
	ChampionLPvsHodl         = "lp_vs_hodl"
	ChampionMaxDrawdown      = "max_drawdown"
	ChampionReturnVolatility = "return_volatility"
	ChampionStability        = "stability"
)

// PopulationState is the per-regime surviving candidate set plus its
// bookkeeping counters. Candidates are kept sorted ascending by score, so the
// champion is always Candidates[0].
type PopulationState struct {
	Regime          RegimeID             `json:"regime"`
	Candidates      []Candidate          `json:"candidates"`
	Champion        *Candidate           `json:"champion,omitempty"`
	MetricChampions map[string]Candidate `json:"metric_champions,omitempty"`
	Generation      int                  `json:"generation"`
	Evaluated       int                  `json:"evaluated"` // cumulative candidates evaluated
}

// Validate rejects structurally broken population state (wrong-shaped
// candidates, champion not present, negative counters). Used when adopting
// persisted or remote state.
func (p *PopulationState) Validate() error {
	if p.Regime == "" {
		return fmt.Errorf("population has empty regime id")
	}
	if p.Generation < 0 || p.Evaluated < 0 {
		return fmt.Errorf("population %s has negative counters", p.Regime)
	}
	for i := range p.Candidates {
		if err := p.Candidates[i].Validate(); err != nil {
			return fmt.Errorf("population %s: %w", p.Regime, err)
		}
	}
	if p.Champion != nil {
		if err := p.Champion.Validate(); err != nil {
			return fmt.Errorf("population %s champion: %w", p.Regime, err)
		}
	}
	return nil
}

// BestScore returns the champion's score, or +Inf semantics via ok=false when
// the population is empty.
func (p *PopulationState) BestScore() (float64, bool) {
	if p.Champion == nil {
		return 0, false
	}
	return p.Champion.Score, true
}
