/*

This file contains the in-memory Store used when no durable backend is
configured, and by tests. The engine can run indefinitely on it; state simply
does not survive a restart.

*/

package state

import (
	"sync"

	"github.com/ManiFed/curvelab/internal/types"
)

// MemoryStore keeps everything in process memory behind one mutex. It mirrors
// the durable stores' semantics, including archive FIFO order and parameter
// versioning, so tests exercise the same behavior the SQL stores implement.
type MemoryStore struct {
	mu sync.Mutex

	populations map[types.RegimeID]types.PopulationState
	archive     []types.Candidate
	bandit      map[types.RegimeID]types.BranchState
	generation  int
	params      map[string][]paramVersion
	activity    []types.ActivityEvent
}

type paramVersion struct {
	version int
	active  bool
	params  types.EngineParameters
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		populations: make(map[types.RegimeID]types.PopulationState),
		bandit:      make(map[types.RegimeID]types.BranchState),
		params:      make(map[string][]paramVersion),
	}
}

func (s *MemoryStore) SavePopulation(pop types.PopulationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.populations[pop.Regime] = pop
	return nil
}

func (s *MemoryStore) LoadPopulations() (map[types.RegimeID]types.PopulationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.RegimeID]types.PopulationState, len(s.populations))
	for id, pop := range s.populations {
		out[id] = pop
	}
	return out, nil
}

func (s *MemoryStore) AppendArchive(candidates []types.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool, len(s.archive))
	for _, c := range s.archive {
		seen[c.ID] = true
	}
	for _, c := range candidates {
		if !seen[c.ID] {
			s.archive = append(s.archive, c)
			seen[c.ID] = true
		}
	}
	return nil
}

func (s *MemoryStore) LoadArchive() ([]types.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.Candidate(nil), s.archive...), nil
}

func (s *MemoryStore) TrimArchive(capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.archive) > capacity {
		s.archive = append([]types.Candidate(nil), s.archive[len(s.archive)-capacity:]...)
	}
	return nil
}

func (s *MemoryStore) SaveBanditState(states map[types.RegimeID]types.BranchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range states {
		s.bandit[id] = st
	}
	return nil
}

func (s *MemoryStore) LoadBanditState() (map[types.RegimeID]types.BranchState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[types.RegimeID]types.BranchState, len(s.bandit))
	for id, st := range s.bandit {
		out[id] = st
	}
	return out, nil
}

func (s *MemoryStore) SaveGeneration(generation int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation = generation
	return nil
}

func (s *MemoryStore) LoadGeneration() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation, nil
}

func (s *MemoryStore) SaveParameters(configName string, params types.EngineParameters, activate bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.params[configName]
	next := len(versions) + 1
	if activate {
		for i := range versions {
			versions[i].active = false
		}
	}
	s.params[configName] = append(versions, paramVersion{version: next, active: activate, params: params})
	return next, nil
}

func (s *MemoryStore) LoadActiveParameters(configName string) (types.EngineParameters, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.params[configName]
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].active {
			return versions[i].params, true, nil
		}
	}
	return types.EngineParameters{}, false, nil
}

func (s *MemoryStore) RecordActivity(event types.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activity = append(s.activity, event)
	return nil
}

func (s *MemoryStore) RecentActivity(limit int) ([]types.ActivityEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.activity)
	if limit > n {
		limit = n
	}
	out := make([]types.ActivityEvent, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.activity[i])
	}
	return out, nil
}

func (s *MemoryStore) Ping() error { return nil }

func (s *MemoryStore) Close() error { return nil }
