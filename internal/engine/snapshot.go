/*

This file contains the engine's replication boundary: publishing a
bounded-size snapshot of the full state, and adopting a more advanced remote
snapshot wholesale. Leader election itself lives outside the engine; this is
only the narrow adopt/publish interface it needs.

*/

package engine

import (
	"fmt"
	"time"

	"github.com/ManiFed/curvelab/internal/types"
	"github.com/google/uuid"
)

const (
	// Caps applied when publishing, keeping broadcast snapshots bounded.
	snapshotArchiveCap  = 500
	snapshotActivityCap = 50
)

// Snapshot publishes the engine's state in plain structural form, capped to a
// broadcastable size: the most recently archived candidates and the most
// recent activity only. Populations travel whole.
func (e *Engine) Snapshot() types.EngineSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	populations := make(map[types.RegimeID]types.PopulationState, len(e.populations))
	for id, pop := range e.populations {
		populations[id] = pop
	}

	arch := e.archive
	if len(arch) > snapshotArchiveCap {
		arch = arch[len(arch)-snapshotArchiveCap:]
	}

	activity := e.activity
	if len(activity) > snapshotActivityCap {
		activity = activity[len(activity)-snapshotActivityCap:]
	}

	return types.EngineSnapshot{
		Generation:  e.generation,
		Populations: populations,
		Archive:     append([]types.Candidate(nil), arch...),
		Activity:    append([]types.ActivityEvent(nil), activity...),
		CapturedAt:  time.Now().UTC(),
	}
}

// AdoptSnapshot replaces the engine's state with a remote snapshot. The
// snapshot must validate wholesale and must be at least as advanced as the
// local state; otherwise nothing changes and the error says why.
func (e *Engine) AdoptSnapshot(snap types.EngineSnapshot) error {
	if err := snap.Validate(); err != nil {
		return fmt.Errorf("snapshot rejected: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if snap.Generation < e.generation {
		return fmt.Errorf("snapshot at generation %d is behind local generation %d", snap.Generation, e.generation)
	}

	e.generation = snap.Generation
	e.populations = make(map[types.RegimeID]types.PopulationState, len(snap.Populations))
	for id, pop := range snap.Populations {
		e.populations[id] = pop
	}
	e.archive = e.curator.TrimFIFO(append([]types.Candidate(nil), snap.Archive...))
	e.buffer = nil
	e.activity = append([]types.ActivityEvent(nil), snap.Activity...)

	e.pushActivity(types.ActivityEvent{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		Generation: snap.Generation,
		Kind:       "snapshot_adopted",
		Message:    fmt.Sprintf("adopted remote snapshot at generation %d", snap.Generation),
	})

	e.log.Info().
		Int("generation", snap.Generation).
		Int("populations", len(snap.Populations)).
		Int("archive", len(snap.Archive)).
		Msg("Remote snapshot adopted")

	// Persist the adopted state best-effort so a restart resumes from it.
	for _, pop := range e.populations {
		if err := e.store.SavePopulation(pop); err != nil {
			e.log.Warn().Err(err).Str("regime", string(pop.Regime)).Msg("Failed to persist adopted population")
		}
	}
	if err := e.store.SaveGeneration(e.generation); err != nil {
		e.log.Warn().Err(err).Msg("Failed to persist adopted generation counter")
	}
	if err := e.store.AppendArchive(e.archive); err != nil {
		e.log.Warn().Err(err).Msg("Failed to persist adopted archive")
	}

	return nil
}
