/*

This file contains the tunable parameters of the discovery engine: genetic
search knobs, simulator constants, the fixed score weights, archive policy, and
bandit behavior. Different versions of these parameters can be stored and
activated like any other configuration record.

*/

package types

import "fmt"

// EngineParameters holds every tunable weight, coefficient, and threshold used
// by the discovery engine. The score weights are a fixed linear combination;
// they are versioned in the parameters store and preserved exactly, not tuned
// at runtime.
type EngineParameters struct {
	// --- Genetic search ---
	PopulationSize  int     `json:"population_size" yaml:"population_size"`   // surviving candidates per regime
	EliteFraction   float64 `json:"elite_fraction" yaml:"elite_fraction"`     // top fraction used as parents
	ExplorationRate float64 `json:"exploration_rate" yaml:"exploration_rate"` // fraction of each generation that is fresh random

	// --- Evaluation ---
	TrainingPaths int     `json:"training_paths" yaml:"training_paths"` // paths used for stability only
	EvalPaths     int     `json:"eval_paths" yaml:"eval_paths"`         // held-out paths metrics are averaged over
	PathSteps     int     `json:"path_steps" yaml:"path_steps"`
	Dt            float64 `json:"dt" yaml:"dt"` // per-step time increment, years

	// --- Simulator ---
	TradeFeeRate   float64 `json:"trade_fee_rate" yaml:"trade_fee_rate"`
	ArbThreshold   float64 `json:"arb_threshold" yaml:"arb_threshold"` // log-price deviation that triggers correction
	ArbFeeRate     float64 `json:"arb_fee_rate" yaml:"arb_fee_rate"`
	ReserveEpsilon float64 `json:"reserve_epsilon" yaml:"reserve_epsilon"` // floor that keeps reserves positive

	// --- Score weights (lower score is better; preserved exactly) ---
	FeeYieldWeight    float64 `json:"fee_yield_weight" yaml:"fee_yield_weight"`       // reduces score
	UtilizationWeight float64 `json:"utilization_weight" yaml:"utilization_weight"`   // reduces score
	LPvsHodlWeight    float64 `json:"lp_vs_hodl_weight" yaml:"lp_vs_hodl_weight"`     // reduces score
	SlippageWeight    float64 `json:"slippage_weight" yaml:"slippage_weight"`         // increases score
	ArbLeakageWeight  float64 `json:"arb_leakage_weight" yaml:"arb_leakage_weight"`   // increases score
	DrawdownWeight    float64 `json:"drawdown_weight" yaml:"drawdown_weight"`         // increases score
	ReturnVolWeight   float64 `json:"return_vol_weight" yaml:"return_vol_weight"`     // increases score
	StabilityWeight   float64 `json:"stability_weight" yaml:"stability_weight"`       // increases score

	// --- Archive ---
	ArchiveRoundInterval int     `json:"archive_round_interval" yaml:"archive_round_interval"` // generations per buffered review
	ArchiveCapacity      int     `json:"archive_capacity" yaml:"archive_capacity"`             // FIFO-trimmed hard cap
	ArchiveScoreCeiling  float64 `json:"archive_score_ceiling" yaml:"archive_score_ceiling"`   // coarse quality gate for buffering
	ArchiveBatchTarget   int     `json:"archive_batch_target" yaml:"archive_batch_target"`     // slots per batch/diverse selection
	ArchiveMinAdmission  int     `json:"archive_min_admission" yaml:"archive_min_admission"`   // minimum picks even with duplicate families

	// --- Quick screen (opt-in cost control) ---
	QuickScreen       bool    `json:"quick_screen" yaml:"quick_screen"`
	QuickScreenSteps  int     `json:"quick_screen_steps" yaml:"quick_screen_steps"`
	QuickScreenFactor float64 `json:"quick_screen_factor" yaml:"quick_screen_factor"` // reject above factor × champion score

	// --- Bandit allocator ---
	BaseMutationIntensity  float64 `json:"base_mutation_intensity" yaml:"base_mutation_intensity"`
	MaxMutationIntensity   float64 `json:"max_mutation_intensity" yaml:"max_mutation_intensity"`
	BanditWarmupTrials     int     `json:"bandit_warmup_trials" yaml:"bandit_warmup_trials"`
	BanditMaxFailureStreak int     `json:"bandit_max_failure_streak" yaml:"bandit_max_failure_streak"`
	BanditHistoryWindow    int     `json:"bandit_history_window" yaml:"bandit_history_window"`

	// --- Activity log ---
	ActivityLogCapacity int `json:"activity_log_capacity" yaml:"activity_log_capacity"`
}

// Validate checks ranges before a parameter set is activated. A bad set is
// rejected as a whole; the engine keeps running on whatever it had.
func (p *EngineParameters) Validate() error {
	if p.PopulationSize <= 0 {
		return fmt.Errorf("population_size must be positive, got %d", p.PopulationSize)
	}
	if p.EliteFraction <= 0 || p.EliteFraction > 1 {
		return fmt.Errorf("elite_fraction %.4f out of (0,1]", p.EliteFraction)
	}
	if p.ExplorationRate < 0 || p.ExplorationRate >= 1 {
		return fmt.Errorf("exploration_rate %.4f out of [0,1)", p.ExplorationRate)
	}
	if p.TrainingPaths < 0 || p.EvalPaths <= 0 {
		return fmt.Errorf("need at least one evaluation path (training=%d eval=%d)", p.TrainingPaths, p.EvalPaths)
	}
	if p.PathSteps < 2 {
		return fmt.Errorf("path_steps must be at least 2, got %d", p.PathSteps)
	}
	if p.Dt <= 0 {
		return fmt.Errorf("dt must be positive, got %g", p.Dt)
	}
	if p.TradeFeeRate < 0 || p.TradeFeeRate >= 1 {
		return fmt.Errorf("trade_fee_rate %.4f out of [0,1)", p.TradeFeeRate)
	}
	if p.ArbThreshold <= 0 {
		return fmt.Errorf("arb_threshold must be positive, got %g", p.ArbThreshold)
	}
	if p.ReserveEpsilon <= 0 {
		return fmt.Errorf("reserve_epsilon must be positive, got %g", p.ReserveEpsilon)
	}
	if p.ArchiveRoundInterval <= 0 {
		return fmt.Errorf("archive_round_interval must be positive, got %d", p.ArchiveRoundInterval)
	}
	if p.ArchiveCapacity <= 0 {
		return fmt.Errorf("archive_capacity must be positive, got %d", p.ArchiveCapacity)
	}
	if p.QuickScreen && p.QuickScreenFactor <= 1 {
		return fmt.Errorf("quick_screen_factor must exceed 1, got %g", p.QuickScreenFactor)
	}
	if p.MaxMutationIntensity <= 0 || p.BaseMutationIntensity <= 0 {
		return fmt.Errorf("mutation intensities must be positive")
	}
	if p.BaseMutationIntensity > p.MaxMutationIntensity {
		return fmt.Errorf("base_mutation_intensity %.4f exceeds max %.4f", p.BaseMutationIntensity, p.MaxMutationIntensity)
	}
	if p.BanditHistoryWindow < 2 {
		return fmt.Errorf("bandit_history_window must be at least 2, got %d", p.BanditHistoryWindow)
	}
	if p.ActivityLogCapacity <= 0 {
		return fmt.Errorf("activity_log_capacity must be positive, got %d", p.ActivityLogCapacity)
	}
	return nil
}

// EliteCount returns the number of parents kept per generation, never below 1.
func (p *EngineParameters) EliteCount() int {
	n := int(float64(p.PopulationSize) * p.EliteFraction)
	if n < 1 {
		n = 1
	}
	return n
}

// ExplorerCount returns how many fresh random candidates each generation
// injects; ChildCount is the remainder bred from elites.
func (p *EngineParameters) ExplorerCount() int {
	return int(float64(p.PopulationSize) * p.ExplorationRate)
}

// ChildCount returns the number of mutated offspring per generation.
func (p *EngineParameters) ChildCount() int {
	return p.PopulationSize - p.ExplorerCount()
}
