package types

import "fmt"

// BanditPhase governs how aggressively a regime's sampling noise and mutation
// intensity are set.
type BanditPhase string

const (
	PhaseExplore   BanditPhase = "explore"
	PhaseExploit   BanditPhase = "exploit"
	PhaseIntensify BanditPhase = "intensify"
)

// Trend classifies the recent score trajectory of one regime.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendPlateau   Trend = "plateau"
	TrendDegrading Trend = "degrading"
)

// BranchState is the bandit allocator's persistent per-regime state. It is
// opaque to everything outside the allocator and persists across engine
// restarts as a structural blob under its own storage key.
type BranchState struct {
	Regime            RegimeID    `json:"regime"`
	PosteriorMean     float64     `json:"posterior_mean"`
	PosteriorVariance float64     `json:"posterior_variance"`
	Trials            int         `json:"trials"`     // candidates tested through this arm
	BestScore         float64     `json:"best_score"` // best (lowest) score ever seen
	HasBest           bool        `json:"has_best"`
	FailureStreak     int         `json:"failure_streak"`
	StagnationPenalty float64     `json:"stagnation_penalty"` // [0,1]
	MutationIntensity float64     `json:"mutation_intensity"`
	Velocity          float64     `json:"velocity"` // EMA of per-round improvement
	History           []float64   `json:"history"`  // recent per-generation average scores, bounded
	Phase             BanditPhase `json:"phase"`
}

// Validate rejects malformed persisted bandit state.
func (b *BranchState) Validate() error {
	if b.Regime == "" {
		return fmt.Errorf("branch state has empty regime id")
	}
	if b.Trials < 0 || b.FailureStreak < 0 {
		return fmt.Errorf("branch state %s has negative counters", b.Regime)
	}
	if b.StagnationPenalty < 0 || b.StagnationPenalty > 1 {
		return fmt.Errorf("branch state %s stagnation penalty %.4f out of [0,1]", b.Regime, b.StagnationPenalty)
	}
	if b.MutationIntensity < 0 {
		return fmt.Errorf("branch state %s has negative mutation intensity", b.Regime)
	}
	switch b.Phase {
	case PhaseExplore, PhaseExploit, PhaseIntensify:
	default:
		return fmt.Errorf("branch state %s has unknown phase %q", b.Regime, b.Phase)
	}
	return nil
}
