package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"opiniongraph/internal/config"
)

// Store manages checkpoint persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the checkpoint database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.CheckpointPath())
}

// OpenPath opens the checkpoint database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create checkpoint directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// MarkStageComplete records that a stage finished for a scope. Completion is
// monotonic: re-marking a completed stage is a no-op. When all pipeline
// stages are complete the scope is promoted to the processed set.
func (s *Store) MarkStageComplete(ctx context.Context, scopeID string, stage Stage) error {
	if scopeID == "" {
		return errors.New("checkpoint: scope id required")
	}
	if stage.Ordinal() < 0 {
		return fmt.Errorf("checkpoint: unknown stage %q", stage)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin stage tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO scope_stages (scope_id, stage, completed_at) VALUES (?, ?, ?)`,
		scopeID, string(stage), now,
	); err != nil {
		return fmt.Errorf("record stage: %w", err)
	}

	var done int
	row := tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM scope_stages WHERE scope_id = ?`, scopeID)
	if err := row.Scan(&done); err != nil {
		return fmt.Errorf("count stages: %w", err)
	}

	current := stage.Next()
	processed := 0
	if done >= len(Stages) {
		current = StageComplete
		processed = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scope_progress (scope_id, current_stage, processed, updated_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(scope_id) DO UPDATE SET
             current_stage = excluded.current_stage,
             processed = MAX(processed, excluded.processed),
             updated_at = excluded.updated_at`,
		scopeID, string(current), processed, now,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit stage: %w", err)
	}
	return nil
}

// Stage returns the current stage for a scope. Scopes with no recorded
// progress start at the first pipeline stage.
func (s *Store) Stage(ctx context.Context, scopeID string) (Stage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT current_stage FROM scope_progress WHERE scope_id = ?`, scopeID)
	var value string
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Stages[0], nil
		}
		return "", fmt.Errorf("query stage: %w", err)
	}
	stage, ok := ParseStage(value)
	if !ok {
		return "", fmt.Errorf("checkpoint: corrupt stage %q for scope %q", value, scopeID)
	}
	return stage, nil
}

// IsStageComplete reports whether a specific stage finished for a scope.
func (s *Store) IsStageComplete(ctx context.Context, scopeID string, stage Stage) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM scope_stages WHERE scope_id = ? AND stage = ?`,
		scopeID, string(stage))
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("query stage completion: %w", err)
	}
	return count > 0, nil
}

// IsProcessed reports whether a scope finished every pipeline stage.
func (s *Store) IsProcessed(ctx context.Context, scopeID string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT processed FROM scope_progress WHERE scope_id = ?`, scopeID)
	var processed int
	if err := row.Scan(&processed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query processed: %w", err)
	}
	return processed != 0, nil
}

// ProcessedScopes returns the ids of all fully processed scopes.
func (s *Store) ProcessedScopes(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT scope_id FROM scope_progress WHERE processed = 1 ORDER BY scope_id`)
	if err != nil {
		return nil, fmt.Errorf("query processed scopes: %w", err)
	}
	defer rows.Close()

	var scopes []string
	for rows.Next() {
		var scope string
		if err := rows.Scan(&scope); err != nil {
			return nil, err
		}
		scopes = append(scopes, scope)
	}
	return scopes, rows.Err()
}

// Reset clears all checkpoint state for a scope. With an empty scope id it
// clears everything, LLM response cache included.
func (s *Store) Reset(ctx context.Context, scopeID string) error {
	if scopeID == "" {
		for _, stmt := range []string{
			`DELETE FROM scope_stages`,
			`DELETE FROM scope_progress`,
			`DELETE FROM llm_responses`,
			`DELETE FROM extraction_stats`,
		} {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset checkpoint: %w", err)
			}
		}
		return nil
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM scope_stages WHERE scope_id = ?`, scopeID); err != nil {
		return fmt.Errorf("reset scope stages: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM scope_progress WHERE scope_id = ?`, scopeID); err != nil {
		return fmt.Errorf("reset scope progress: %w", err)
	}
	return nil
}

// SaveLLMResponse caches an LLM payload keyed by stage and query id.
// Existing entries are overwritten.
func (s *Store) SaveLLMResponse(ctx context.Context, stage Stage, queryID, payload string) error {
	if queryID == "" {
		return errors.New("checkpoint: query id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO llm_responses (stage, query_id, payload, created_at)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(stage, query_id) DO UPDATE SET
             payload = excluded.payload,
             created_at = excluded.created_at`,
		string(stage), queryID, payload, now)
	if err != nil {
		return fmt.Errorf("save llm response: %w", err)
	}
	return nil
}

// GetLLMResponse returns a cached payload, or ("", false) when absent.
func (s *Store) GetLLMResponse(ctx context.Context, stage Stage, queryID string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM llm_responses WHERE stage = ? AND query_id = ?`,
		string(stage), queryID)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get llm response: %w", err)
	}
	return payload, true, nil
}

// HasLLMResponse reports whether a cached payload exists.
func (s *Store) HasLLMResponse(ctx context.Context, stage Stage, queryID string) (bool, error) {
	_, ok, err := s.GetLLMResponse(ctx, stage, queryID)
	return ok, err
}

// AddStat increments an aggregate extraction counter.
func (s *Store) AddStat(ctx context.Context, key string, delta int64) error {
	if key == "" {
		return errors.New("checkpoint: stat key required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extraction_stats (key, value) VALUES (?, ?)
         ON CONFLICT(key) DO UPDATE SET value = value + excluded.value`,
		key, delta)
	if err != nil {
		return fmt.Errorf("add stat: %w", err)
	}
	return nil
}

// Stats returns the aggregate extraction counters.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM extraction_stats`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var key string
		var value int64
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		stats[key] = value
	}
	return stats, rows.Err()
}

// ScopeProgress summarizes one scope for status output.
type ScopeProgress struct {
	ScopeID      string
	CurrentStage Stage
	Processed    bool
	StagesDone   int
	UpdatedAt    time.Time
}

// Progress returns a per-scope summary ordered by scope id.
func (s *Store) Progress(ctx context.Context) ([]ScopeProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT p.scope_id, p.current_stage, p.processed, p.updated_at,
                (SELECT COUNT(1) FROM scope_stages st WHERE st.scope_id = p.scope_id)
         FROM scope_progress p ORDER BY p.scope_id`)
	if err != nil {
		return nil, fmt.Errorf("query progress: %w", err)
	}
	defer rows.Close()

	var summaries []ScopeProgress
	for rows.Next() {
		var (
			summary   ScopeProgress
			stageStr  string
			processed int
			updatedAt string
		)
		if err := rows.Scan(&summary.ScopeID, &stageStr, &processed, &updatedAt, &summary.StagesDone); err != nil {
			return nil, err
		}
		summary.CurrentStage = Stage(stageStr)
		summary.Processed = processed != 0
		if parsed, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
			summary.UpdatedAt = parsed
		}
		summaries = append(summaries, summary)
	}
	return summaries, rows.Err()
}
