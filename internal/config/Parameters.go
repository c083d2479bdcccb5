/*

This file contains the default parameters for the discovery engine.

The score weights are the fixed linear combination the whole search optimizes.
They are loaded from the parameters store when one is configured, so a stored
set always wins over these defaults; the defaults are saved on first run.

*/

package config

import (
	"github.com/ManiFed/curvelab/internal/types"
)

// DefaultEngineParameters provides the baseline parameter set used when no
// active parameters are found in the store during initialization.
var DefaultEngineParameters = types.EngineParameters{
	// --- Genetic search ---
	PopulationSize: 24, // Per-regime survivors; keeps a full four-regime tick under interactive latency.

	EliteFraction: 0.25, // Top quarter breeds. Smaller pools collapsed diversity within ~30 generations.

	ExplorationRate: 0.15, // Fresh randoms injected every generation, bypassing elites entirely.

	// --- Evaluation ---
	TrainingPaths: 6, // Contribute to the stability figure only.
	EvalPaths:     3, // Held out; metric averages come from these alone.

	PathSteps: 168,                  // One week of hourly steps.
	Dt:        1.0 / (365.0 * 24.0), // Hourly increment in years, matching the annualized regime params.

	// --- Simulator ---
	TradeFeeRate: 0.003, // 30bps per synthetic trade.

	ArbThreshold: 0.02, // Log-price deviation beyond which an arbitrageur snaps the pool to the external price.

	ArbFeeRate: 0.001, // Fee the arbitrageur still pays on the correcting trade.

	ReserveEpsilon: 1e-9, // Floor that keeps reserve math away from division by zero.

	// --- Score weights (lower score is better; preserved exactly) ---
	FeeYieldWeight:    0.35,
	UtilizationWeight: 0.25,
	LPvsHodlWeight:    1.50,
	SlippageWeight:    0.15,
	ArbLeakageWeight:  0.40,
	DrawdownWeight:    0.80,
	ReturnVolWeight:   0.60,
	StabilityWeight:   1.00,

	// --- Archive ---
	ArchiveRoundInterval: 5,    // Buffered candidates are reviewed once every 5 generations.
	ArchiveCapacity:      5000, // Server-side cap; FIFO-trimmed oldest-first.
	ArchiveScoreCeiling:  10.0, // Coarse gate; anything above this never enters the pending buffer.
	ArchiveBatchTarget:   8,    // Slots per batch/diverse selection pass.
	ArchiveMinAdmission:  3,    // Filled from best scores even when distinct families run out.

	// --- Quick screen ---
	QuickScreen:       false, // Opt-in; screens elite-bred children only, explorers always evaluate fully.
	QuickScreenSteps:  32,
	QuickScreenFactor: 2.5,

	// --- Bandit allocator ---
	BaseMutationIntensity:  0.15,
	MaxMutationIntensity:   0.5,
	BanditWarmupTrials:     200, // Arms stay in the explore phase until this many candidates were tried.
	BanditMaxFailureStreak: 5,   // Streak beyond which an arm is demoted back to explore.
	BanditHistoryWindow:    10,  // Trailing per-generation averages used for trend classification.

	// --- Activity log ---
	ActivityLogCapacity: 200,
}
