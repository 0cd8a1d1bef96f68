package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
)

// UnresolvedRepository stores unresolved tracks against the run that produced them.
type UnresolvedRepository struct {
	db *sql.DB
}

// NewUnresolvedRepository creates a new UnresolvedRepository with the given database connection
func NewUnresolvedRepository(db *sql.DB) *UnresolvedRepository {
	return &UnresolvedRepository{db: db}
}

// Create inserts track with a generated ID
func (r *UnresolvedRepository) Create(ctx context.Context, track *models.UnresolvedTrack) error {
	track.SetID(shared.GenerateID())
	if err := track.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	rec := track.Record()
	query := `
		INSERT INTO unresolved_tracks (id, run_id, playlist, track_name, artist_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, track.ID(), track.RunID(), rec.Playlist, rec.TrackName, rec.ArtistName, track.CreatedAt())
	if err != nil {
		return fmt.Errorf("failed to insert unresolved track: %w", err)
	}
	return nil
}

// ListByRun retrieves the unresolved tracks of a run in the order they were recorded
func (r *UnresolvedRepository) ListByRun(ctx context.Context, runID string) ([]*models.UnresolvedTrack, error) {
	query := `
		SELECT id, run_id, playlist, track_name, artist_name, created_at
		FROM unresolved_tracks
		WHERE run_id = ?
		ORDER BY created_at ASC, rowid ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved tracks: %w", err)
	}
	defer rows.Close()

	var tracks []*models.UnresolvedTrack
	for rows.Next() {
		var (
			id, run   string
			rec       models.UnresolvedRecord
			createdAt time.Time
		)
		if err := rows.Scan(&id, &run, &rec.Playlist, &rec.TrackName, &rec.ArtistName, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved track: %w", err)
		}

		track := models.NewUnresolvedTrack(run, rec)
		track.SetID(id)
		track.SetCreatedAt(createdAt)
		tracks = append(tracks, track)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return tracks, nil
}

// SinkForRun returns a sink that records every appended record under runID.
func (r *UnresolvedRepository) SinkForRun(runID string) *RunSink {
	return &RunSink{repo: r, runID: runID}
}

// RunSink appends unresolved records to the history database.
type RunSink struct {
	repo  *UnresolvedRepository
	runID string
}

func (s *RunSink) Append(ctx context.Context, rec models.UnresolvedRecord) error {
	return s.repo.Create(ctx, models.NewUnresolvedTrack(s.runID, rec))
}
