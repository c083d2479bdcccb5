package types

import (
	"fmt"
	"time"
)

// ActivityEvent is one entry of the engine's bounded activity log, emitted per
// generation and per archive review.
type ActivityEvent struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Regime        RegimeID  `json:"regime"`
	Generation    int       `json:"generation"`
	Kind          string    `json:"kind"` // "generation", "archive_review", "snapshot_adopted"
	Message       string    `json:"message"`
	ChampionScore float64   `json:"champion_score,omitempty"`
	Evaluated     int       `json:"evaluated,omitempty"`
	DurationMs    float64   `json:"duration_ms,omitempty"`
}

// EngineSnapshot is the engine's full state in plain structural form: the
// per-regime populations, the archive, the global generation counter, and the
// recent activity log. It is the unit of persistence and of leader/follower
// snapshot exchange. Bandit state travels separately under its own key.
type EngineSnapshot struct {
	Generation  int                          `json:"generation"` // global tick counter
	Populations map[RegimeID]PopulationState `json:"populations"`
	Archive     []Candidate                  `json:"archive"`
	Activity    []ActivityEvent              `json:"activity"`
	CapturedAt  time.Time                    `json:"captured_at"`
}

// Validate rejects a snapshot wholesale when any part of it is malformed. A
// caller that receives an error here must keep its current state rather than
// partially adopting the snapshot.
func (s *EngineSnapshot) Validate() error {
	if s.Generation < 0 {
		return fmt.Errorf("snapshot has negative generation counter")
	}
	if s.Populations == nil {
		return fmt.Errorf("snapshot has no populations map")
	}
	for id, pop := range s.Populations {
		if id != pop.Regime {
			return fmt.Errorf("snapshot population keyed %s but carries regime %s", id, pop.Regime)
		}
		p := pop
		if err := p.Validate(); err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
	}
	for i := range s.Archive {
		if err := s.Archive[i].Validate(); err != nil {
			return fmt.Errorf("snapshot archive: %w", err)
		}
	}
	return nil
}

// RegimeSummary is an aggregate view of one regime for status reporting.
type RegimeSummary struct {
	Regime        RegimeID `json:"regime"`
	Generation    int      `json:"generation"`
	Evaluated     int      `json:"evaluated"`
	PopulationLen int      `json:"population_len"`
	ChampionScore *float64 `json:"champion_score,omitempty"`
	ArchiveCount  int      `json:"archive_count"`
}

// FamilySummary aggregates the archived candidates sharing one coarse feature
// family key.
type FamilySummary struct {
	FamilyKey  string   `json:"family_key"`
	Count      int      `json:"count"`
	BestScore  float64  `json:"best_score"`
	MeanScore  float64  `json:"mean_score"`
	Regimes    []string `json:"regimes"`
	BestID     string   `json:"best_id"`
	BestRegime RegimeID `json:"best_regime"`
}

// EmbeddedPoint is one archive candidate projected to two dimensions for
// visualization. Not authoritative state.
type EmbeddedPoint struct {
	ID     string   `json:"id"`
	Regime RegimeID `json:"regime"`
	Score  float64  `json:"score"`
	X      float64  `json:"x"`
	Y      float64  `json:"y"`
}
