/*

This file contains the PostgreSQL implementation of the Store interface. All
structured state travels as JSONB; the column copies of generation, score and
regime exist only for indexing and ad-hoc inspection.

*/

package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/rs/zerolog"
)

// PostgresStore persists engine state through the global DB pool. Construct
// it after InitDB and EnsureSchema have succeeded.
type PostgresStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewPostgresStore() (*PostgresStore, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized, call InitDB first")
	}
	return &PostgresStore{db: DB, log: logger.GetForComponent("state")}, nil
}

func (s *PostgresStore) SavePopulation(pop types.PopulationState) error {
	payload, err := json.Marshal(pop)
	if err != nil {
		return fmt.Errorf("failed to marshal population %s: %w", pop.Regime, err)
	}

	_, err = s.db.Exec(`
		INSERT INTO populations (regime, generation, evaluated, state, updated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)
		ON CONFLICT (regime) DO UPDATE SET
			generation = EXCLUDED.generation,
			evaluated = EXCLUDED.evaluated,
			state = EXCLUDED.state,
			updated_at = CURRENT_TIMESTAMP`,
		string(pop.Regime), pop.Generation, pop.Evaluated, payload)
	if err != nil {
		return fmt.Errorf("failed to save population %s: %w", pop.Regime, err)
	}
	return nil
}

func (s *PostgresStore) LoadPopulations() (map[types.RegimeID]types.PopulationState, error) {
	rows, err := s.db.Query(`SELECT state FROM populations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query populations: %w", err)
	}
	defer rows.Close()

	out := make(map[types.RegimeID]types.PopulationState)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan population row: %w", err)
		}
		var pop types.PopulationState
		if err := json.Unmarshal(payload, &pop); err != nil {
			return nil, fmt.Errorf("failed to unmarshal population: %w", err)
		}
		if err := pop.Validate(); err != nil {
			return nil, fmt.Errorf("persisted population rejected: %w", err)
		}
		out[pop.Regime] = pop
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendArchive(candidates []types.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO archive_candidates (candidate_id, regime, score, candidate)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (candidate_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("failed to prepare archive insert: %w", err)
	}
	defer stmt.Close()

	for _, cand := range candidates {
		payload, err := json.Marshal(cand)
		if err != nil {
			return fmt.Errorf("failed to marshal candidate %s: %w", cand.ID, err)
		}
		if _, err := stmt.Exec(cand.ID, string(cand.Regime), cand.Score, payload); err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", cand.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive insert: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadArchive() ([]types.Candidate, error) {
	rows, err := s.db.Query(`SELECT candidate FROM archive_candidates ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		var cand types.Candidate
		if err := json.Unmarshal(payload, &cand); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived candidate: %w", err)
		}
		if err := cand.Validate(); err != nil {
			return nil, fmt.Errorf("persisted candidate rejected: %w", err)
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

func (s *PostgresStore) TrimArchive(capacity int) error {
	res, err := s.db.Exec(`
		DELETE FROM archive_candidates
		WHERE seq NOT IN (
			SELECT seq FROM archive_candidates ORDER BY seq DESC LIMIT $1
		)`, capacity)
	if err != nil {
		return fmt.Errorf("failed to trim archive: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Info().Int64("trimmed", n).Msg("Archive trimmed to capacity")
	}
	return nil
}

func (s *PostgresStore) SaveBanditState(states map[types.RegimeID]types.BranchState) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin bandit transaction: %w", err)
	}
	defer tx.Rollback()

	for regime, st := range states {
		payload, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal bandit state %s: %w", regime, err)
		}
		_, err = tx.Exec(`
			INSERT INTO bandit_state (regime, state, updated_at)
			VALUES ($1, $2, CURRENT_TIMESTAMP)
			ON CONFLICT (regime) DO UPDATE SET state = EXCLUDED.state, updated_at = CURRENT_TIMESTAMP`,
			string(regime), payload)
		if err != nil {
			return fmt.Errorf("failed to save bandit state %s: %w", regime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bandit state: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadBanditState() (map[types.RegimeID]types.BranchState, error) {
	rows, err := s.db.Query(`SELECT state FROM bandit_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bandit state: %w", err)
	}
	defer rows.Close()

	out := make(map[types.RegimeID]types.BranchState)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan bandit row: %w", err)
		}
		var st types.BranchState
		if err := json.Unmarshal(payload, &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bandit state: %w", err)
		}
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("persisted bandit state rejected: %w", err)
		}
		out[st.Regime] = st
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveGeneration(generation int) error {
	_, err := s.db.Exec(`
		UPDATE generation_counter
		SET current_generation = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`, generation)
	if err != nil {
		return fmt.Errorf("failed to save generation counter: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadGeneration() (int, error) {
	var generation int
	err := s.db.QueryRow(`SELECT current_generation FROM generation_counter WHERE id = 1`).Scan(&generation)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load generation counter: %w", err)
	}
	return generation, nil
}

// SaveParameters stores a new version of a named parameter set, optionally
// activating it. Activation deactivates every other version of the same name
// in the same transaction.
func (s *PostgresStore) SaveParameters(configName string, params types.EngineParameters, activate bool) (int, error) {
	payload, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal parameters: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin parameters transaction: %w", err)
	}
	defer tx.Rollback()

	var version int
	err = tx.QueryRow(`
		SELECT COALESCE(MAX(version), 0) + 1 FROM engine_parameters WHERE config_name = $1`,
		configName).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to determine next parameters version: %w", err)
	}

	if activate {
		if _, err := tx.Exec(`UPDATE engine_parameters SET is_active = FALSE WHERE config_name = $1`, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate old parameters: %w", err)
		}
	}

	_, err = tx.Exec(`
		INSERT INTO engine_parameters (config_name, version, is_active, params, activated_at)
		VALUES ($1, $2, $3, $4, CURRENT_TIMESTAMP)`,
		configName, version, activate, payload)
	if err != nil {
		return 0, fmt.Errorf("failed to insert parameters version %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit parameters: %w", err)
	}

	s.log.Info().Str("config", configName).Int("version", version).Bool("active", activate).Msg("Parameters saved")
	return version, nil
}

func (s *PostgresStore) LoadActiveParameters(configName string) (types.EngineParameters, bool, error) {
	var payload []byte
	err := s.db.QueryRow(`
		SELECT params FROM engine_parameters
		WHERE config_name = $1 AND is_active = TRUE
		ORDER BY activated_at DESC LIMIT 1`, configName).Scan(&payload)
	if err == sql.ErrNoRows {
		return types.EngineParameters{}, false, nil
	}
	if err != nil {
		return types.EngineParameters{}, false, fmt.Errorf("failed to load active parameters: %w", err)
	}

	var params types.EngineParameters
	if err := json.Unmarshal(payload, &params); err != nil {
		return types.EngineParameters{}, false, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return types.EngineParameters{}, false, fmt.Errorf("persisted parameters rejected: %w", err)
	}
	return params, true, nil
}

func (s *PostgresStore) RecordActivity(event types.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO activity_log (event_timestamp, regime, kind, event)
		VALUES ($1, $2, $3, $4)`,
		event.Timestamp, string(event.Regime), event.Kind, payload)
	if err != nil {
		return fmt.Errorf("failed to record activity event: %w", err)
	}
	return nil
}

func (s *PostgresStore) RecentActivity(limit int) ([]types.ActivityEvent, error) {
	rows, err := s.db.Query(`
		SELECT event FROM activity_log ORDER BY event_id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	var out []types.ActivityEvent
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		var ev types.ActivityEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping() error {
	return TestDBConnection()
}

func (s *PostgresStore) Close() error {
	CloseDB()
	return nil
}
