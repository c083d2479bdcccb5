/*

This file contains the SQLite implementation of the Store interface, used for
single-machine runs without a PostgreSQL server. Same structural layout as
the Postgres schema, with JSON held in TEXT columns.

*/

package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/ManiFed/curvelab/internal/logger"
	"github.com/ManiFed/curvelab/internal/types"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore persists engine state in a single local database file.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database %s: %w", path, err)
	}
	// SQLite handles one writer at a time; a second connection only invites
	// SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, log: logger.GetForComponent("state")}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}

	s.log.Info().Str("path", path).Msg("SQLite store ready")
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	schemaSQL := `
		CREATE TABLE IF NOT EXISTS engine_parameters (
			params_id INTEGER PRIMARY KEY AUTOINCREMENT,
			config_name TEXT NOT NULL DEFAULT 'default',
			version INTEGER NOT NULL DEFAULT 1,
			is_active INTEGER NOT NULL DEFAULT 0,
			activated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			params TEXT NOT NULL,
			UNIQUE (config_name, version)
		);

		CREATE TABLE IF NOT EXISTS populations (
			regime TEXT PRIMARY KEY,
			generation INTEGER NOT NULL DEFAULT 0,
			evaluated INTEGER NOT NULL DEFAULT 0,
			state TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS archive_candidates (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			candidate_id TEXT NOT NULL UNIQUE,
			regime TEXT NOT NULL,
			score REAL NOT NULL,
			candidate TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_archive_candidates_regime ON archive_candidates(regime);

		CREATE TABLE IF NOT EXISTS bandit_state (
			regime TEXT PRIMARY KEY,
			state TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS generation_counter (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			current_generation INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		INSERT OR IGNORE INTO generation_counter (id, current_generation) VALUES (1, 0);

		CREATE TABLE IF NOT EXISTS activity_log (
			event_id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			regime TEXT,
			kind TEXT NOT NULL,
			event TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_activity_log_kind ON activity_log(kind);
	`
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) SavePopulation(pop types.PopulationState) error {
	payload, err := json.Marshal(pop)
	if err != nil {
		return fmt.Errorf("failed to marshal population %s: %w", pop.Regime, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO populations (regime, generation, evaluated, state, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT (regime) DO UPDATE SET
			generation = excluded.generation,
			evaluated = excluded.evaluated,
			state = excluded.state,
			updated_at = CURRENT_TIMESTAMP`,
		string(pop.Regime), pop.Generation, pop.Evaluated, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save population %s: %w", pop.Regime, err)
	}
	return nil
}

func (s *SQLiteStore) LoadPopulations() (map[types.RegimeID]types.PopulationState, error) {
	rows, err := s.db.Query(`SELECT state FROM populations`)
	if err != nil {
		return nil, fmt.Errorf("failed to query populations: %w", err)
	}
	defer rows.Close()

	out := make(map[types.RegimeID]types.PopulationState)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan population row: %w", err)
		}
		var pop types.PopulationState
		if err := json.Unmarshal([]byte(payload), &pop); err != nil {
			return nil, fmt.Errorf("failed to unmarshal population: %w", err)
		}
		if err := pop.Validate(); err != nil {
			return nil, fmt.Errorf("persisted population rejected: %w", err)
		}
		out[pop.Regime] = pop
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendArchive(candidates []types.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin archive transaction: %w", err)
	}
	defer tx.Rollback()

	for _, cand := range candidates {
		payload, err := json.Marshal(cand)
		if err != nil {
			return fmt.Errorf("failed to marshal candidate %s: %w", cand.ID, err)
		}
		_, err = tx.Exec(`
			INSERT OR IGNORE INTO archive_candidates (candidate_id, regime, score, candidate)
			VALUES (?, ?, ?, ?)`,
			cand.ID, string(cand.Regime), cand.Score, string(payload))
		if err != nil {
			return fmt.Errorf("failed to insert candidate %s: %w", cand.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit archive insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadArchive() ([]types.Candidate, error) {
	rows, err := s.db.Query(`SELECT candidate FROM archive_candidates ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive: %w", err)
	}
	defer rows.Close()

	var out []types.Candidate
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		var cand types.Candidate
		if err := json.Unmarshal([]byte(payload), &cand); err != nil {
			return nil, fmt.Errorf("failed to unmarshal archived candidate: %w", err)
		}
		if err := cand.Validate(); err != nil {
			return nil, fmt.Errorf("persisted candidate rejected: %w", err)
		}
		out = append(out, cand)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) TrimArchive(capacity int) error {
	res, err := s.db.Exec(`
		DELETE FROM archive_candidates
		WHERE seq NOT IN (
			SELECT seq FROM archive_candidates ORDER BY seq DESC LIMIT ?
		)`, capacity)
	if err != nil {
		return fmt.Errorf("failed to trim archive: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.Info().Int64("trimmed", n).Msg("Archive trimmed to capacity")
	}
	return nil
}

func (s *SQLiteStore) SaveBanditState(states map[types.RegimeID]types.BranchState) error {
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
			VALUES (?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT (regime) DO UPDATE SET state = excluded.state, updated_at = CURRENT_TIMESTAMP`,
			string(regime), string(payload))
		if err != nil {
			return fmt.Errorf("failed to save bandit state %s: %w", regime, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bandit state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadBanditState() (map[types.RegimeID]types.BranchState, error) {
	rows, err := s.db.Query(`SELECT state FROM bandit_state`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bandit state: %w", err)
	}
	defer rows.Close()

	out := make(map[types.RegimeID]types.BranchState)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan bandit row: %w", err)
		}
		var st types.BranchState
		if err := json.Unmarshal([]byte(payload), &st); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bandit state: %w", err)
		}
		if err := st.Validate(); err != nil {
			return nil, fmt.Errorf("persisted bandit state rejected: %w", err)
		}
		out[st.Regime] = st
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveGeneration(generation int) error {
	_, err := s.db.Exec(`
		UPDATE generation_counter
		SET current_generation = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = 1`, generation)
	if err != nil {
		return fmt.Errorf("failed to save generation counter: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadGeneration() (int, error) {
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

func (s *SQLiteStore) SaveParameters(configName string, params types.EngineParameters, activate bool) (int, error) {
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
		SELECT COALESCE(MAX(version), 0) + 1 FROM engine_parameters WHERE config_name = ?`,
		configName).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to determine next parameters version: %w", err)
	}

	if activate {
		if _, err := tx.Exec(`UPDATE engine_parameters SET is_active = 0 WHERE config_name = ?`, configName); err != nil {
			return 0, fmt.Errorf("failed to deactivate old parameters: %w", err)
		}
	}

	active := 0
	if activate {
		active = 1
	}
	_, err = tx.Exec(`
		INSERT INTO engine_parameters (config_name, version, is_active, params, activated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		configName, version, active, string(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to insert parameters version %d: %w", version, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit parameters: %w", err)
	}
	return version, nil
}

func (s *SQLiteStore) LoadActiveParameters(configName string) (types.EngineParameters, bool, error) {
	var payload string
	err := s.db.QueryRow(`
		SELECT params FROM engine_parameters
		WHERE config_name = ? AND is_active = 1
		ORDER BY activated_at DESC LIMIT 1`, configName).Scan(&payload)
	if err == sql.ErrNoRows {
		return types.EngineParameters{}, false, nil
	}
	if err != nil {
		return types.EngineParameters{}, false, fmt.Errorf("failed to load active parameters: %w", err)
	}

	var params types.EngineParameters
	if err := json.Unmarshal([]byte(payload), &params); err != nil {
		return types.EngineParameters{}, false, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if err := params.Validate(); err != nil {
		return types.EngineParameters{}, false, fmt.Errorf("persisted parameters rejected: %w", err)
	}
	return params, true, nil
}

func (s *SQLiteStore) RecordActivity(event types.ActivityEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal activity event: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT INTO activity_log (event_timestamp, regime, kind, event)
		VALUES (?, ?, ?, ?)`,
		event.Timestamp, string(event.Regime), event.Kind, string(payload))
	if err != nil {
		return fmt.Errorf("failed to record activity event: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecentActivity(limit int) ([]types.ActivityEvent, error) {
	rows, err := s.db.Query(`
		SELECT event FROM activity_log ORDER BY event_id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity log: %w", err)
	}
	defer rows.Close()

	var out []types.ActivityEvent
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan activity row: %w", err)
		}
		var ev types.ActivityEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity event: %w", err)
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Ping() error {
	return s.db.Ping()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
