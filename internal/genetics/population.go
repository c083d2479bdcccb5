/*

This file contains the genetic population manager. Each invocation advances
one regime's population by exactly one generation: elites breed mutated
children, a slice of fresh random candidates keeps exploration alive, and only
the newly generated candidates compete for the next population.

*/

package genetics

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/rs/zerolog"
)

// CandidateEvaluator scores distributions. Satisfied by evaluator.Evaluator;
// tests substitute cheap fakes.
type CandidateEvaluator interface {
	Evaluate(bins []float64, regime types.RegimeID, generation int) (types.Candidate, error)
	QuickScore(bins []float64, regime types.RegimeID) (float64, error)
	ShouldReject(quickScore, championScore float64) bool
}

// GenerationResult is the outcome of one advancement: the surviving
// population plus every candidate evaluated along the way, which the archive
// curator consumes before the losers are discarded.
type GenerationResult struct {
	Population    types.PopulationState
	NewCandidates []types.Candidate
	Screened      int // children discarded by the quick screen
}

// Manager breeds populations. One instance serves all regimes; the per-regime
// state lives entirely in the PopulationState it is handed.
type Manager struct {
	params types.EngineParameters
	eval   CandidateEvaluator
	rng    *rand.Rand
	log    zerolog.Logger
}

func NewManager(params types.EngineParameters, eval CandidateEvaluator, rng *rand.Rand) *Manager {
	return &Manager{
		params: params,
		eval:   eval,
		rng:    rng,
		log:    logger.GetForComponent("genetics"),
	}
}

// AdvanceGeneration produces the next population for a regime. A nil or empty
// previous state seeds a fresh random population; otherwise elites from the
// previous generation breed children, explorers are injected, and the best
// newcomers survive. Parents never carry over directly.
func (m *Manager) AdvanceGeneration(prev *types.PopulationState, regime types.RegimeID, intensity float64) (GenerationResult, error) {
	if prev == nil || len(prev.Candidates) == 0 {
		return m.seedPopulation(prev, regime)
	}

	generation := prev.Generation + 1
	elites := m.selectElites(prev.Candidates)

	championScore, hasChampion := prev.BestScore()

	newcomers := make([]types.Candidate, 0, m.params.PopulationSize)
	screened := 0

	// Mutated offspring, parents assigned round-robin across the elites.
	for i := 0; i < m.params.ChildCount(); i++ {
		parent := elites[i%len(elites)]
		other := elites[(i+1)%len(elites)]
		bins := Mutate(m.rng, parent.Bins, other.Bins, intensity)

		if m.params.QuickScreen && hasChampion {
			quick, err := m.eval.QuickScore(bins, regime)
			if err != nil {
				return GenerationResult{}, fmt.Errorf("quick screen failed for regime %s: %w", regime, err)
			}
			if m.eval.ShouldReject(quick, championScore) {
				screened++
				continue
			}
		}

		cand, err := m.eval.Evaluate(bins, regime, generation)
		if err != nil {
			return GenerationResult{}, fmt.Errorf("child evaluation failed for regime %s: %w", regime, err)
		}
		newcomers = append(newcomers, cand)
	}

	// Pure exploration, bypassing the elites and the screen entirely.
	for i := 0; i < m.params.ExplorerCount(); i++ {
		cand, err := m.eval.Evaluate(RandomBins(m.rng), regime, generation)
		if err != nil {
			return GenerationResult{}, fmt.Errorf("explorer evaluation failed for regime %s: %w", regime, err)
		}
		newcomers = append(newcomers, cand)
	}

	if len(newcomers) == 0 {
		return GenerationResult{}, fmt.Errorf("regime %s generation %d produced no candidates", regime, generation)
	}

	pop := m.buildPopulation(regime, generation, prev.Evaluated+len(newcomers), newcomers)

	m.log.Debug().
		Str("regime", string(regime)).
		Int("generation", generation).
		Int("evaluated", len(newcomers)).
		Int("screened", screened).
		Float64("best_score", pop.Champion.Score).
		Msg("Generation advanced")

	return GenerationResult{Population: pop, NewCandidates: newcomers, Screened: screened}, nil
}

func (m *Manager) seedPopulation(prev *types.PopulationState, regime types.RegimeID) (GenerationResult, error) {
	generation := 0
	evaluated := 0
	if prev != nil {
		generation = prev.Generation
		evaluated = prev.Evaluated
	}

	newcomers := make([]types.Candidate, 0, m.params.PopulationSize)
	for i := 0; i < m.params.PopulationSize; i++ {
		cand, err := m.eval.Evaluate(RandomBins(m.rng), regime, generation)
		if err != nil {
			return GenerationResult{}, fmt.Errorf("seed evaluation failed for regime %s: %w", regime, err)
		}
		newcomers = append(newcomers, cand)
	}

	pop := m.buildPopulation(regime, generation, evaluated+len(newcomers), newcomers)

	m.log.Info().
		Str("regime", string(regime)).
		Int("size", len(pop.Candidates)).
		Msg("Seeded fresh population")

	return GenerationResult{Population: pop, NewCandidates: newcomers}, nil
}

func (m *Manager) selectElites(candidates []types.Candidate) []types.Candidate {
	sorted := append([]types.Candidate(nil), candidates...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	n := m.params.EliteCount()
	if n > len(sorted) {
		n = len(sorted)
	}
	return sorted[:n]
}

// buildPopulation keeps the best newcomers, sorted ascending by score, and
// recomputes the champion and per-metric champions.
func (m *Manager) buildPopulation(regime types.RegimeID, generation, evaluated int, newcomers []types.Candidate) types.PopulationState {
	sorted := append([]types.Candidate(nil), newcomers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })
	if len(sorted) > m.params.PopulationSize {
		sorted = sorted[:m.params.PopulationSize]
	}

	champion := sorted[0]

	return types.PopulationState{
		Regime:          regime,
		Candidates:      sorted,
		Champion:        &champion,
		MetricChampions: metricChampions(sorted),
		Generation:      generation,
		Evaluated:       evaluated,
	}
}

// metricChampions picks the best holder of each individual metric, maximizing
// the reward-like fields and minimizing the cost-like ones.
func metricChampions(candidates []types.Candidate) map[string]types.Candidate {
	if len(candidates) == 0 {
		return nil
	}

	best := func(better func(a, b types.Candidate) bool) types.Candidate {
		winner := candidates[0]
		for _, c := range candidates[1:] {
			if better(c, winner) {
				winner = c
			}
		}
		return winner
	}

	return map[string]types.Candidate{
		types.ChampionTotalFees: best(func(a, b types.Candidate) bool {
			return a.Metrics.TotalFees > b.Metrics.TotalFees
		}),
		types.ChampionAvgSlippage: best(func(a, b types.Candidate) bool {
			return a.Metrics.AvgSlippage < b.Metrics.AvgSlippage
		}),
		types.ChampionArbLeakage: best(func(a, b types.Candidate) bool {
			return a.Metrics.ArbLeakage < b.Metrics.ArbLeakage
		}),
		types.ChampionUtilization: best(func(a, b types.Candidate) bool {
			return a.Metrics.Utilization > b.Metrics.Utilization
		}),
		types.ChampionLPvsHodl: best(func(a, b types.Candidate) bool {
			return a.Metrics.LPvsHodl > b.Metrics.LPvsHodl
		}),
		types.ChampionMaxDrawdown: best(func(a, b types.Candidate) bool {
			return a.Metrics.MaxDrawdown < b.Metrics.MaxDrawdown
		}),
		types.ChampionReturnVolatility: best(func(a, b types.Candidate) bool {
			return a.Metrics.ReturnVolatility < b.Metrics.ReturnVolatility
		}),
		types.ChampionStability: best(func(a, b types.Candidate) bool {
			return a.Stability < b.Stability
		}),
	}
}
