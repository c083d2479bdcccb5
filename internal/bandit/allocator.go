/*

This file contains the bandit regime allocator: a Thompson-sampling style
multi-armed bandit that decides which regime's population advances next and
self-tunes each regime's mutation intensity from the observed score trend.
Its per-regime BranchState is opaque to the rest of the engine and persists
as a structural blob under its own storage key.

*/

package bandit

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/pricepath"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/rs/zerolog"
)

const (
	// Thompson noise scale per phase.
	exploreNoise   = 1.0
	intensifyNoise = 0.5
	exploitNoise   = 0.25

	ucbCoefficient    = 0.5
	velocityBonusGain = 2.0
	unexploredBonus   = 1.0
	stagnationDamping = 0.4

	posteriorAlpha = 0.2 // EMA rate for the posterior moments
	velocityAlpha  = 0.3 // EMA rate for improvement velocity

	stagnationStep = 0.1
	trendTolerance = 1e-6

	plateauGrowth   = 1.1
	degradingGrowth = 1.25
	improveShrink   = 0.9
)

// Allocator owns one BranchState per regime and draws all sampling noise from
// the engine's RNG. Not safe for concurrent use.
type Allocator struct {
	params types.EngineParameters
	rng    *rand.Rand
	arms   map[types.RegimeID]*types.BranchState
	log    zerolog.Logger
}

func NewAllocator(params types.EngineParameters, rng *rand.Rand) *Allocator {
	return &Allocator{
		params: params,
		rng:    rng,
		arms:   make(map[types.RegimeID]*types.BranchState),
		log:    logger.GetForComponent("bandit"),
	}
}

// arm returns the branch state for a regime, creating a fresh explore-phase
// arm on first touch.
func (a *Allocator) arm(regime types.RegimeID) *types.BranchState {
	if st, ok := a.arms[regime]; ok {
		return st
	}
	st := &types.BranchState{
		Regime:            regime,
		PosteriorVariance: 1.0,
		MutationIntensity: a.params.BaseMutationIntensity,
		Phase:             types.PhaseExplore,
	}
	a.arms[regime] = st
	return st
}

// SelectRegime samples an arm value for every regime and returns the largest.
// Arm values mix the posterior mean of regime quality with phase-scaled
// Thompson noise, a UCB exploration bonus, an improvement-velocity bonus, and
// a warm-up bonus for barely-tried arms, all damped by stagnation.
func (a *Allocator) SelectRegime(regimes []types.RegimeID) types.RegimeID {
	if len(regimes) == 0 {
		return ""
	}

	totalTrials := 0
	for _, r := range regimes {
		totalTrials += a.arm(r).Trials
	}

	best := regimes[0]
	bestValue := math.Inf(-1)
	for _, r := range regimes {
		v := a.sampleArmValue(a.arm(r), totalTrials)
		if v > bestValue {
			bestValue = v
			best = r
		}
	}
	return best
}

func (a *Allocator) sampleArmValue(st *types.BranchState, totalTrials int) float64 {
	noiseScale := exploreNoise
	switch st.Phase {
	case types.PhaseIntensify:
		noiseScale = intensifyNoise
	case types.PhaseExploit:
		noiseScale = exploitNoise
	}

	value := st.PosteriorMean
	value += noiseScale * math.Sqrt(math.Max(st.PosteriorVariance, 0)) * pricepath.BoxMuller(a.rng)
	value += ucbCoefficient * math.Sqrt(math.Log(float64(totalTrials)+1)/(float64(st.Trials)+1))
	value += velocityBonusGain * math.Max(0, st.Velocity)
	if st.Trials < a.params.BanditWarmupTrials {
		value += unexploredBonus * (1 - float64(st.Trials)/float64(a.params.BanditWarmupTrials))
	}

	return value * (1 - stagnationDamping*st.StagnationPenalty)
}

// Intensity returns the mutation intensity the regime's next generation
// should run with.
func (a *Allocator) Intensity(regime types.RegimeID) float64 {
	return a.arm(regime).MutationIntensity
}

// RecordResult feeds one finished generation back into the arm: the
// population's average score, its best score, and how many candidates were
// evaluated. Quality is tracked as negated score so larger posterior means
// are better arms.
func (a *Allocator) RecordResult(regime types.RegimeID, avgScore, bestScore float64, evaluated int) {
	st := a.arm(regime)

	reward := -avgScore
	delta := reward - st.PosteriorMean
	st.PosteriorMean += posteriorAlpha * delta
	st.PosteriorVariance = (1-posteriorAlpha)*st.PosteriorVariance + posteriorAlpha*delta*delta
	st.Trials += evaluated

	st.History = append(st.History, avgScore)
	if len(st.History) > a.params.BanditHistoryWindow {
		st.History = st.History[len(st.History)-a.params.BanditHistoryWindow:]
	}
	trend := trendOf(st.History)

	improved := !st.HasBest || bestScore < st.BestScore
	if improved {
		improvement := 0.0
		if st.HasBest {
			improvement = st.BestScore - bestScore
		}
		st.BestScore = bestScore
		st.HasBest = true
		st.FailureStreak = 0
		st.StagnationPenalty /= 2
		st.MutationIntensity = math.Max(st.MutationIntensity*improveShrink, a.params.BaseMutationIntensity*0.25)
		st.Velocity = (1-velocityAlpha)*st.Velocity + velocityAlpha*improvement
	} else {
		st.FailureStreak++
		st.StagnationPenalty = math.Min(1, st.StagnationPenalty+stagnationStep)
		growth := plateauGrowth
		if trend == types.TrendDegrading {
			growth = degradingGrowth
		}
		st.MutationIntensity = math.Min(st.MutationIntensity*growth, a.params.MaxMutationIntensity)
		st.Velocity = (1 - velocityAlpha) * st.Velocity
	}

	st.Phase = a.nextPhase(st, trend)

	a.log.Debug().
		Str("regime", string(regime)).
		Float64("avg_score", avgScore).
		Float64("best_score", bestScore).
		Str("trend", string(trend)).
		Str("phase", string(st.Phase)).
		Float64("intensity", st.MutationIntensity).
		Msg("Bandit arm updated")
}

func (a *Allocator) nextPhase(st *types.BranchState, trend types.Trend) types.BanditPhase {
	switch {
	case st.Trials < a.params.BanditWarmupTrials:
		return types.PhaseExplore
	case st.FailureStreak > a.params.BanditMaxFailureStreak || trend == types.TrendDegrading:
		return types.PhaseExplore
	case trend == types.TrendImproving && st.FailureStreak == 0:
		return types.PhaseIntensify
	default:
		return types.PhaseExploit
	}
}

// trendOf compares the two halves of the trailing score window. Scores are
// minimized, so a falling second half means improvement.
func trendOf(history []float64) types.Trend {
	if len(history) < 4 {
		return types.TrendPlateau
	}
	half := len(history) / 2
	first := mean(history[:half])
	second := mean(history[half:])

	switch {
	case second < first-trendTolerance:
		return types.TrendImproving
	case second > first+trendTolerance:
		return types.TrendDegrading
	default:
		return types.TrendPlateau
	}
}

// Export copies every arm for persistence. History slices are cloned so the
// caller cannot alias live state.
func (a *Allocator) Export() map[types.RegimeID]types.BranchState {
	out := make(map[types.RegimeID]types.BranchState, len(a.arms))
	for id, st := range a.arms {
		copied := *st
		copied.History = append([]float64(nil), st.History...)
		out[id] = copied
	}
	return out
}

// Import adopts persisted arm state wholesale. Any malformed branch rejects
// the entire import and leaves the allocator untouched.
func (a *Allocator) Import(states map[types.RegimeID]types.BranchState) error {
	for id, st := range states {
		if id != st.Regime {
			return fmt.Errorf("branch keyed %s carries regime %s", id, st.Regime)
		}
		s := st
		if err := s.Validate(); err != nil {
			return fmt.Errorf("bandit import rejected: %w", err)
		}
	}

	arms := make(map[types.RegimeID]*types.BranchState, len(states))
	for id, st := range states {
		copied := st
		copied.History = append([]float64(nil), st.History...)
		arms[id] = &copied
	}
	a.arms = arms
	return nil
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
