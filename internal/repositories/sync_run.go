package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
)

const syncRunColumns = `id, sequence, status, sources, playlists, created_count, updated_count, skipped_count,
	failed_count, matched_tracks, unresolved_tracks, error, created_at, updated_at, finished_at, deleted_at`

// SyncRunRepository implements models.Repository[*models.SyncRun] for sync history.
type SyncRunRepository struct {
	db *sql.DB
}

var _ models.Repository[*models.SyncRun] = (*SyncRunRepository)(nil)

// NewSyncRunRepository creates a new SyncRunRepository with the given database connection
func NewSyncRunRepository(db *sql.DB) *SyncRunRepository {
	return &SyncRunRepository{db: db}
}

// Create inserts a new [models.SyncRun] with generated ID and sequence
func (r *SyncRunRepository) Create(run *models.SyncRun) error {
	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	c := run.Counts()
	query := `
		INSERT INTO sync_runs (` + syncRunColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`

	_, err = r.db.Exec(query,
		run.ID(),
		run.Sequence(),
		string(run.Status()),
		run.SourcesString(),
		c.Playlists,
		c.Created,
		c.Updated,
		c.Skipped,
		c.Failed,
		c.Matched,
		c.Unresolved,
		run.Error(),
		run.CreatedAt(),
		run.UpdatedAt(),
		run.FinishedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	return nil
}

// Get retrieves a run by ID, excluding soft-deleted runs
func (r *SyncRunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run by its sequence number
func (r *SyncRunRepository) GetBySequence(sequence int) (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE sequence = ? AND deleted_at IS NULL`
	return r.scanOne(r.db.QueryRow(query, sequence))
}

// Latest retrieves the most recent run
func (r *SyncRunRepository) Latest() (*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.scanOne(r.db.QueryRow(query))
}

// Update stores the status, counts and finish time of run
func (r *SyncRunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now().UTC()
	run.SetUpdatedAt(now)
	c := run.Counts()

	query := `
		UPDATE sync_runs
		SET status = ?, playlists = ?, created_count = ?, updated_count = ?, skipped_count = ?, failed_count = ?,
			matched_tracks = ?, unresolved_tracks = ?, error = ?, updated_at = ?, finished_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(run.Status()),
		c.Playlists,
		c.Created,
		c.Updated,
		c.Skipped,
		c.Failed,
		c.Matched,
		c.Unresolved,
		run.Error(),
		now,
		run.FinishedAt(),
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	return expectAffected(result, run.ID())
}

// Delete soft-deletes a run by ID
func (r *SyncRunRepository) Delete(id string) error {
	query := `UPDATE sync_runs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	return expectAffected(result, id)
}

// List retrieves runs newest first.
//
// Supported criteria: "status" (string), "limit" (int).
func (r *SyncRunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + syncRunColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return runs, nil
}

func (r *SyncRunRepository) scanOne(row *sql.Row) (*models.SyncRun, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a row from [sql.Row] or [sql.Rows] into a [models.SyncRun]
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		id         string
		sequence   int
		status     string
		sources    string
		counts     models.RunCounts
		errMsg     string
		createdAt  time.Time
		updatedAt  time.Time
		finishedAt sql.NullTime
		deletedAt  sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &status, &sources,
		&counts.Playlists, &counts.Created, &counts.Updated, &counts.Skipped, &counts.Failed,
		&counts.Matched, &counts.Unresolved,
		&errMsg, &createdAt, &updatedAt, &finishedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run := models.NewSyncRun(sequence, nil)
	run.SetID(id)
	run.SetStatus(models.RunStatus(status))
	run.SetSourcesString(sources)
	run.SetCounts(counts)
	run.SetError(errMsg)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}

	return run, nil
}

func expectAffected(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}
