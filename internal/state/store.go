/*

This file defines the persistence boundary of the discovery engine. Every
implementation stores the engine's state in plain structural form (liquidity
distributions travel as ordered JSON number lists) so state survives any
durable medium and can be exchanged between cooperating processes.

The engine treats every Store call as best-effort: a persistence failure is
logged and reported, never allowed to abort an in-progress generation.

*/

package state

import (
	"github.com/ManiFed/curvelab/internal/types"
)

// Store is the durable backend behind the engine. Implementations exist for
// PostgreSQL, SQLite, and pure in-memory operation; the engine can run
// indefinitely on the in-memory one.
type Store interface {
	// Populations, one row per regime, last writer wins.
	SavePopulation(pop types.PopulationState) error
	LoadPopulations() (map[types.RegimeID]types.PopulationState, error)

	// Archive rows in admission order; trimming removes oldest-first.
	AppendArchive(candidates []types.Candidate) error
	LoadArchive() ([]types.Candidate, error)
	TrimArchive(capacity int) error

	// Bandit state, opaque per-regime blobs under their own key space.
	SaveBanditState(states map[types.RegimeID]types.BranchState) error
	LoadBanditState() (map[types.RegimeID]types.BranchState, error)

	// Global generation counter, a single row.
	SaveGeneration(generation int) error
	LoadGeneration() (int, error)

	// Versioned engine parameters; at most one active set per config name.
	SaveParameters(configName string, params types.EngineParameters, activate bool) (int, error)
	LoadActiveParameters(configName string) (types.EngineParameters, bool, error)

	// Bounded activity log.
	RecordActivity(event types.ActivityEvent) error
	RecentActivity(limit int) ([]types.ActivityEvent, error)

	Ping() error
	Close() error
}
