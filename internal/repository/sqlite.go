package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/AraMammo/full-stack-vibe-coder-sub000/internal/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Ensure SQLiteStore implements Store interface.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// For in-memory SQLite, multiple connections create separate databases.
	// Keep a single connection to avoid schema/data disappearing across goroutines.
	if dsn == ":memory:" || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// migrate runs database migrations.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			tier TEXT NOT NULL,
			subject TEXT NOT NULL,
			status TEXT NOT NULL,
			completed_count INTEGER NOT NULL DEFAULT 0,
			total_count INTEGER NOT NULL DEFAULT 0,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			warnings TEXT,
			deploy_chat_id TEXT,
			deploy_preview_url TEXT,
			deploy_live_url TEXT,
			started_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			ended_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_owner ON runs(owner_id, started_at)`,
		`CREATE TABLE IF NOT EXISTS item_executions (
			run_id TEXT NOT NULL,
			item_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			section TEXT NOT NULL,
			resolved_input TEXT NOT NULL,
			output TEXT NOT NULL,
			status TEXT NOT NULL,
			tokens_used INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			executed_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (run_id, item_id),
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS artifacts (
			artifact_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			item_id TEXT,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS progress_events (
			event_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			ts INTEGER NOT NULL,
			item_id TEXT NOT NULL,
			item_name TEXT NOT NULL,
			section TEXT NOT NULL,
			status TEXT NOT NULL,
			percentage INTEGER NOT NULL,
			completed_count INTEGER NOT NULL,
			total_count INTEGER NOT NULL,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_run ON progress_events(run_id, ts)`,
		`CREATE TABLE IF NOT EXISTS delivery_packages (
			package_id TEXT PRIMARY KEY,
			run_id TEXT NOT NULL,
			format TEXT NOT NULL,
			storage_path TEXT NOT NULL,
			signed_url TEXT NOT NULL,
			size_bytes INTEGER NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_packages_run ON delivery_packages(run_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun inserts a new run.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *domain.Run) error {
	warnings, _ := json.Marshal(run.Warnings)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, owner_id, tier, subject, status, completed_count, total_count,
			tokens_used, duration_ms, warnings, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.OwnerID, string(run.Tier), run.Subject, string(run.Status),
		run.CompletedCount, run.TotalCount, run.TokensUsed, run.DurationMs,
		string(warnings), run.StartedAt)
	return err
}

// GetRun retrieves a run by ID. Returns (nil, nil) when not found.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*domain.Run, error) {
	var run domain.Run
	var tier, status string
	var warnings, chatID, previewURL, liveURL sql.NullString
	var endedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, owner_id, tier, subject, status, completed_count, total_count,
			tokens_used, duration_ms, warnings, deploy_chat_id, deploy_preview_url,
			deploy_live_url, started_at, ended_at
		 FROM runs WHERE run_id = ?`, runID).Scan(
		&run.RunID, &run.OwnerID, &tier, &run.Subject, &status,
		&run.CompletedCount, &run.TotalCount, &run.TokensUsed, &run.DurationMs,
		&warnings, &chatID, &previewURL, &liveURL, &run.StartedAt, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Tier = domain.Tier(tier)
	run.Status = domain.RunStatus(status)
	if warnings.Valid && warnings.String != "" && warnings.String != "null" {
		if err := json.Unmarshal([]byte(warnings.String), &run.Warnings); err != nil {
			return nil, fmt.Errorf("failed to parse run warnings: %w", err)
		}
	}
	run.Deployment = domain.Deployment{
		ChatID:     chatID.String,
		PreviewURL: previewURL.String,
		LiveURL:    liveURL.String,
	}
	if endedAt.Valid {
		run.EndedAt = &endedAt.Time
	}
	return &run, nil
}

// UpdateRunStatus updates only the status of a run.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status domain.RunStatus) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ? WHERE run_id = ?`, string(status), runID)
	return err
}

// FinalizeRun writes the terminal state, counters and warnings of a run.
func (s *SQLiteStore) FinalizeRun(ctx context.Context, run *domain.Run) error {
	warnings, _ := json.Marshal(run.Warnings)
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_count = ?, total_count = ?, tokens_used = ?,
			duration_ms = ?, warnings = ?, ended_at = ?
		 WHERE run_id = ?`,
		string(run.Status), run.CompletedCount, run.TotalCount, run.TokensUsed,
		run.DurationMs, string(warnings), now, run.RunID)
	return err
}

// UpdateRunDeployment stores run-level deployment metadata.
func (s *SQLiteStore) UpdateRunDeployment(ctx context.Context, runID string, dep domain.Deployment) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET deploy_chat_id = ?, deploy_preview_url = ?, deploy_live_url = ? WHERE run_id = ?`,
		dep.ChatID, dep.PreviewURL, dep.LiveURL, runID)
	return err
}

// CreateItemExecution inserts the single execution row for (run, item).
func (s *SQLiteStore) CreateItemExecution(ctx context.Context, exec *domain.ItemExecution) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO item_executions (run_id, item_id, display_name, section, resolved_input,
			output, status, tokens_used, duration_ms, executed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.RunID, exec.ItemID, exec.DisplayName, exec.Section, exec.ResolvedInput,
		exec.Output, string(exec.Status), exec.TokensUsed, exec.DurationMs, exec.ExecutedAt)
	return err
}

// UpdateItemOutput replaces the recorded output of one item execution.
// Side-effect handlers use this to append their annotations.
func (s *SQLiteStore) UpdateItemOutput(ctx context.Context, runID, itemID, output string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE item_executions SET output = ? WHERE run_id = ? AND item_id = ?`,
		output, runID, itemID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item execution %s/%s not found", runID, itemID)
	}
	return nil
}

// GetItemExecution retrieves one execution row. Returns (nil, nil) when not found.
func (s *SQLiteStore) GetItemExecution(ctx context.Context, runID, itemID string) (*domain.ItemExecution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, item_id, display_name, section, resolved_input, output, status,
			tokens_used, duration_ms, executed_at
		 FROM item_executions WHERE run_id = ? AND item_id = ?`, runID, itemID)
	exec, err := scanItemExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return exec, nil
}

// ListItemExecutions returns a run's executions in execution order.
func (s *SQLiteStore) ListItemExecutions(ctx context.Context, runID string) ([]domain.ItemExecution, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, item_id, display_name, section, resolved_input, output, status,
			tokens_used, duration_ms, executed_at
		 FROM item_executions WHERE run_id = ? ORDER BY executed_at, item_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ItemExecution
	for rows.Next() {
		exec, err := scanItemExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *exec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemExecution(row rowScanner) (*domain.ItemExecution, error) {
	var exec domain.ItemExecution
	var status string
	if err := row.Scan(&exec.RunID, &exec.ItemID, &exec.DisplayName, &exec.Section,
		&exec.ResolvedInput, &exec.Output, &status, &exec.TokensUsed,
		&exec.DurationMs, &exec.ExecutedAt); err != nil {
		return nil, err
	}
	exec.Status = domain.ItemStatus(status)
	return &exec, nil
}

// CreateArtifact inserts an artifact row.
func (s *SQLiteStore) CreateArtifact(ctx context.Context, artifact *domain.Artifact) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (artifact_id, run_id, item_id, name, kind, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		artifact.ArtifactID, artifact.RunID, nullable(artifact.ItemID), artifact.Name,
		string(artifact.Kind), artifact.Payload, artifact.CreatedAt)
	return err
}

// ListArtifacts returns all artifacts of a run in creation order.
func (s *SQLiteStore) ListArtifacts(ctx context.Context, runID string) ([]domain.Artifact, error) {
	return s.listArtifacts(ctx,
		`SELECT artifact_id, run_id, item_id, name, kind, payload, created_at
		 FROM artifacts WHERE run_id = ? ORDER BY created_at, artifact_id`, runID)
}

// ListArtifactsByKind returns a run's artifacts of one kind in creation order.
func (s *SQLiteStore) ListArtifactsByKind(ctx context.Context, runID string, kind domain.ArtifactKind) ([]domain.Artifact, error) {
	return s.listArtifacts(ctx,
		`SELECT artifact_id, run_id, item_id, name, kind, payload, created_at
		 FROM artifacts WHERE run_id = ? AND kind = ? ORDER BY created_at, artifact_id`,
		runID, string(kind))
}

func (s *SQLiteStore) listArtifacts(ctx context.Context, query string, args ...any) ([]domain.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		var itemID sql.NullString
		var kind string
		if err := rows.Scan(&a.ArtifactID, &a.RunID, &itemID, &a.Name, &kind, &a.Payload, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.ItemID = itemID.String
		a.Kind = domain.ArtifactKind(kind)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateProgressEvent inserts a progress event.
func (s *SQLiteStore) CreateProgressEvent(ctx context.Context, event *domain.ProgressEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO progress_events (event_id, run_id, ts, item_id, item_name, section,
			status, percentage, completed_count, total_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.EventID, event.RunID, event.Ts, event.ItemID, event.ItemName, event.Section,
		string(event.Status), event.Percentage, event.CompletedCount, event.TotalCount)
	return err
}

// ListProgressEvents returns events strictly after afterTs, oldest first.
func (s *SQLiteStore) ListProgressEvents(ctx context.Context, runID string, afterTs int64, limit int) ([]domain.ProgressEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT event_id, run_id, ts, item_id, item_name, section, status, percentage,
			completed_count, total_count
		 FROM progress_events WHERE run_id = ? AND ts > ?
		 ORDER BY ts, event_id LIMIT ?`, runID, afterTs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProgressEvent
	for rows.Next() {
		var e domain.ProgressEvent
		var status string
		if err := rows.Scan(&e.EventID, &e.RunID, &e.Ts, &e.ItemID, &e.ItemName, &e.Section,
			&status, &e.Percentage, &e.CompletedCount, &e.TotalCount); err != nil {
			return nil, err
		}
		e.Status = domain.ProgressStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// CreatePackage inserts a delivery package record.
func (s *SQLiteStore) CreatePackage(ctx context.Context, pkg *domain.DeliveryPackage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO delivery_packages (package_id, run_id, format, storage_path, signed_url,
			size_bytes, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		pkg.PackageID, pkg.RunID, string(pkg.Format), pkg.StoragePath, pkg.SignedURL,
		pkg.SizeBytes, pkg.ExpiresAt, pkg.CreatedAt)
	return err
}

// GetPackage retrieves a package. Returns (nil, nil) when not found.
func (s *SQLiteStore) GetPackage(ctx context.Context, packageID string) (*domain.DeliveryPackage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT package_id, run_id, format, storage_path, signed_url, size_bytes, expires_at, created_at
		 FROM delivery_packages WHERE package_id = ?`, packageID)
	return scanPackage(row)
}

// LatestPackageForRun returns the most recent package of a run, or (nil, nil).
func (s *SQLiteStore) LatestPackageForRun(ctx context.Context, runID string) (*domain.DeliveryPackage, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT package_id, run_id, format, storage_path, signed_url, size_bytes, expires_at, created_at
		 FROM delivery_packages WHERE run_id = ? ORDER BY created_at DESC, package_id DESC LIMIT 1`, runID)
	return scanPackage(row)
}

func scanPackage(row rowScanner) (*domain.DeliveryPackage, error) {
	var pkg domain.DeliveryPackage
	var format string
	err := row.Scan(&pkg.PackageID, &pkg.RunID, &format, &pkg.StoragePath, &pkg.SignedURL,
		&pkg.SizeBytes, &pkg.ExpiresAt, &pkg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pkg.Format = domain.PackageFormat(format)
	return &pkg, nil
}

// UpdatePackageLink replaces the signed URL and expiry of a package.
func (s *SQLiteStore) UpdatePackageLink(ctx context.Context, packageID, signedURL string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE delivery_packages SET signed_url = ?, expires_at = ? WHERE package_id = ?`,
		signedURL, expiresAt, packageID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("package %s not found", packageID)
	}
	return nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
