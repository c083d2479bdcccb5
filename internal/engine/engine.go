/*

This file contains the discovery engine: the stateful host that wires the
bandit allocator, genetic population manager, evaluator, and archive curator
into a ticking loop. Each tick advances exactly one regime by one generation
and commits the result atomically; persistence is best-effort and never
aborts a tick.

*/

package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/ManiFed/curvelab/internal/archive"
	"github.com/ManiFed/curvelab/internal/bandit"
	"github.com/ManiFed/curvelab/internal/evaluator"
	"github.com/ManiFed/curvelab/internal/genetics"
	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/state"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Config carries everything the engine needs to run.
type Config struct {
	Params   types.EngineParameters
	Store    state.Store
	Interval time.Duration // tick cadence of the autonomous loop
	Seed     int64         // 0 seeds from the clock
}

func (c *Config) validate() error {
	if err := c.Params.Validate(); err != nil {
		return fmt.Errorf("engine parameters invalid: %w", err)
	}
	if c.Store == nil {
		return fmt.Errorf("engine requires a state store")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %s", c.Interval)
	}
	return nil
}

// Engine owns the full optimizer state. All public methods are safe for
// concurrent use; the tick loop and the web server share one instance.
type Engine struct {
	mu sync.Mutex

	params    types.EngineParameters
	store     state.Store
	interval  time.Duration
	rng       *rand.Rand
	manager   *genetics.Manager
	curator   *archive.Curator
	allocator *bandit.Allocator

	populations map[types.RegimeID]types.PopulationState
	archive     []types.Candidate
	buffer      []types.Candidate
	generation  int // global tick counter
	activity    []types.ActivityEvent

	running bool
	stop    chan struct{}
	done    chan struct{}

	log zerolog.Logger
}

// New builds an engine and restores whatever persisted state the store holds.
// A store that cannot be read is logged and ignored; the engine starts empty
// and keeps running on memory alone.
func New(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	e := &Engine{
		params:      cfg.Params,
		store:       cfg.Store,
		interval:    cfg.Interval,
		rng:         rng,
		curator:     archive.NewCurator(cfg.Params),
		allocator:   bandit.NewAllocator(cfg.Params, rng),
		populations: make(map[types.RegimeID]types.PopulationState),
		log:         logger.GetForComponent("engine"),
	}
	e.manager = genetics.NewManager(cfg.Params, evaluator.New(cfg.Params, rng), rng)

	e.restore()

	e.log.Info().
		Int64("seed", seed).
		Dur("interval", cfg.Interval).
		Int("generation", e.generation).
		Msg("Engine initialized")
	return e, nil
}

// restore pulls persisted state from the store, best-effort per concern.
func (e *Engine) restore() {
	if pops, err := e.store.LoadPopulations(); err != nil {
		e.log.Warn().Err(err).Msg("Could not restore populations, starting empty")
	} else {
		e.populations = pops
	}

	if arch, err := e.store.LoadArchive(); err != nil {
		e.log.Warn().Err(err).Msg("Could not restore archive, starting empty")
	} else {
		e.archive = arch
	}

	if gen, err := e.store.LoadGeneration(); err != nil {
		e.log.Warn().Err(err).Msg("Could not restore generation counter")
	} else {
		e.generation = gen
	}

	if states, err := e.store.LoadBanditState(); err != nil {
		e.log.Warn().Err(err).Msg("Could not restore bandit state")
	} else if len(states) > 0 {
		if err := e.allocator.Import(states); err != nil {
			e.log.Warn().Err(err).Msg("Persisted bandit state rejected, starting fresh")
		}
	}

	if events, err := e.store.RecentActivity(e.params.ActivityLogCapacity); err != nil {
		e.log.Warn().Err(err).Msg("Could not restore activity log")
	} else {
		// RecentActivity returns newest first; the in-memory log is oldest first.
		for i := len(events) - 1; i >= 0; i-- {
			e.activity = append(e.activity, events[i])
		}
	}
}

// Tick advances one regime by one generation. The bandit picks the regime,
// the genetic manager breeds and evaluates, the bandit learns from the
// outcome, and the archive reviews its buffer on the round cadence. On error
// nothing is committed and the previous state stands.
func (e *Engine) Tick() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tickLocked()
}

func (e *Engine) tickLocked() error {
	traceID := uuid.NewString()
	started := time.Now()

	regime := e.allocator.SelectRegime(types.KnownRegimeIDs())
	intensity := e.allocator.Intensity(regime)

	var prev *types.PopulationState
	if pop, ok := e.populations[regime]; ok {
		prev = &pop
	}

	res, err := e.manager.AdvanceGeneration(prev, regime, intensity)
	if err != nil {
		e.log.Error().Err(err).Str("trace_id", traceID).Str("regime", string(regime)).Msg("Generation failed, keeping previous population")
		return fmt.Errorf("tick %s: %w", traceID, err)
	}

	// Commit point: everything below mutates engine state.
	e.populations[regime] = res.Population
	e.generation++

	avg := averageScore(res.Population.Candidates)
	champScore, _ := res.Population.BestScore()
	e.allocator.RecordResult(regime, avg, champScore, len(res.NewCandidates))

	sel := e.curator.SelectArchiveCandidates(e.buffer, res.NewCandidates, e.generation, e.incumbentThreshold())
	e.buffer = sel.NextBuffer
	if len(sel.Archived) > 0 {
		e.archive = e.curator.TrimFIFO(append(e.archive, sel.Archived...))
	}

	elapsed := time.Since(started)
	e.pushActivity(types.ActivityEvent{
		ID:            traceID,
		Timestamp:     started.UTC(),
		Regime:        regime,
		Generation:    res.Population.Generation,
		Kind:          "generation",
		Message:       fmt.Sprintf("advanced %s to generation %d", regime, res.Population.Generation),
		ChampionScore: champScore,
		Evaluated:     len(res.NewCandidates),
		DurationMs:    float64(elapsed.Microseconds()) / 1000.0,
	})
	if len(sel.Archived) > 0 {
		e.pushActivity(types.ActivityEvent{
			ID:         uuid.NewString(),
			Timestamp:  time.Now().UTC(),
			Regime:     regime,
			Generation: res.Population.Generation,
			Kind:       "archive_review",
			Message:    fmt.Sprintf("archived %d candidates in round review", len(sel.Archived)),
		})
	}

	e.persist(regime, sel.Archived)

	e.log.Info().
		Str("trace_id", traceID).
		Str("regime", string(regime)).
		Int("generation", res.Population.Generation).
		Int("global_generation", e.generation).
		Float64("champion_score", champScore).
		Int("evaluated", len(res.NewCandidates)).
		Int("screened", res.Screened).
		Dur("took", elapsed).
		Msg("Tick complete")
	return nil
}

// incumbentThreshold is the bar a buffered candidate must beat on review: the
// median archived score once the archive has content, the coarse ceiling
// before that.
func (e *Engine) incumbentThreshold() float64 {
	if len(e.archive) == 0 {
		return e.params.ArchiveScoreCeiling
	}
	scores := make([]float64, len(e.archive))
	for i, c := range e.archive {
		scores[i] = c.Score
	}
	sort.Float64s(scores)
	return scores[len(scores)/2]
}

// persist writes the tick's outcome to the store. Failures are logged and
// swallowed; the engine runs on regardless.
func (e *Engine) persist(regime types.RegimeID, archived []types.Candidate) {
	if err := e.store.SavePopulation(e.populations[regime]); err != nil {
		e.log.Warn().Err(err).Str("regime", string(regime)).Msg("Failed to persist population")
	}
	if err := e.store.SaveGeneration(e.generation); err != nil {
		e.log.Warn().Err(err).Msg("Failed to persist generation counter")
	}
	if len(archived) > 0 {
		if err := e.store.AppendArchive(archived); err != nil {
			e.log.Warn().Err(err).Msg("Failed to persist archived candidates")
		}
		if err := e.store.TrimArchive(e.params.ArchiveCapacity); err != nil {
			e.log.Warn().Err(err).Msg("Failed to trim persisted archive")
		}
	}
	if err := e.store.SaveBanditState(e.allocator.Export()); err != nil {
		e.log.Warn().Err(err).Msg("Failed to persist bandit state")
	}
	if len(e.activity) > 0 {
		if err := e.store.RecordActivity(e.activity[len(e.activity)-1]); err != nil {
			e.log.Warn().Err(err).Msg("Failed to persist activity event")
		}
	}
}

func (e *Engine) pushActivity(ev types.ActivityEvent) {
	e.activity = append(e.activity, ev)
	if len(e.activity) > e.params.ActivityLogCapacity {
		e.activity = e.activity[len(e.activity)-e.params.ActivityLogCapacity:]
	}
}

// RunBatch advances the engine a fixed number of ticks synchronously. Used by
// the one-shot command path; a failed tick aborts the batch.
func (e *Engine) RunBatch(ticks int) error {
	for i := 0; i < ticks; i++ {
		if err := e.Tick(); err != nil {
			return fmt.Errorf("batch aborted at tick %d of %d: %w", i+1, ticks, err)
		}
	}
	return nil
}

// Start launches the autonomous tick loop. Calling Start on a running engine
// is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return
	}
	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	stop, done := e.stop, e.done
	e.mu.Unlock()

	e.log.Info().Msg("Engine loop starting")
	go func() {
		defer close(done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				e.log.Info().Msg("Engine loop stopped by context")
				e.markStopped()
				return
			case <-stop:
				e.log.Info().Msg("Engine loop stopped")
				return
			case <-ticker.C:
				if err := e.Tick(); err != nil {
					e.log.Error().Err(err).Msg("Tick failed")
				}
			}
		}
	}()
}

// Stop halts future ticks without waiting on an in-flight one. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stop)
	e.mu.Unlock()
}

func (e *Engine) markStopped() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Running reports whether the autonomous loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Generation returns the global tick counter.
func (e *Engine) Generation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generation
}

// Status summarizes every known regime, including ones with no population yet.
func (e *Engine) Status() []types.RegimeSummary {
	e.mu.Lock()
	defer e.mu.Unlock()

	archiveCounts := make(map[types.RegimeID]int)
	for _, c := range e.archive {
		archiveCounts[c.Regime]++
	}

	out := make([]types.RegimeSummary, 0, len(types.KnownRegimeIDs()))
	for _, id := range types.KnownRegimeIDs() {
		summary := types.RegimeSummary{Regime: id, ArchiveCount: archiveCounts[id]}
		if pop, ok := e.populations[id]; ok {
			summary.Generation = pop.Generation
			summary.Evaluated = pop.Evaluated
			summary.PopulationLen = len(pop.Candidates)
			if pop.Champion != nil {
				score := pop.Champion.Score
				summary.ChampionScore = &score
			}
		}
		out = append(out, summary)
	}
	return out
}

// Champions returns each regime's current champion, keyed by regime. Regimes
// without a population are absent.
func (e *Engine) Champions() map[types.RegimeID]types.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[types.RegimeID]types.Candidate)
	for id, pop := range e.populations {
		if pop.Champion != nil {
			out[id] = *pop.Champion
		}
	}
	return out
}

// Archive returns a copy of the current archive in admission order.
func (e *Engine) Archive() []types.Candidate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]types.Candidate(nil), e.archive...)
}

// FamilySummaries and Embedding are read-only analytics over the archive.
func (e *Engine) FamilySummaries() []types.FamilySummary {
	return archive.FamilySummaries(e.Archive())
}

func (e *Engine) Embedding() []types.EmbeddedPoint {
	return archive.EmbedCandidates(e.Archive())
}

// ArchiveByRegime groups the archive with an entry for every known regime.
func (e *Engine) ArchiveByRegime() map[types.RegimeID]types.PopulationState {
	return archive.BuildRegimeMap(e.Archive())
}

// Activity returns the most recent activity events, newest first.
func (e *Engine) Activity(limit int) []types.ActivityEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	if limit <= 0 || limit > len(e.activity) {
		limit = len(e.activity)
	}
	out := make([]types.ActivityEvent, 0, limit)
	for i := len(e.activity) - 1; i >= len(e.activity)-limit; i-- {
		out = append(out, e.activity[i])
	}
	return out
}

func averageScore(candidates []types.Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Score
	}
	return sum / float64(len(candidates))
}
