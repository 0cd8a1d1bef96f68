package repositories

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/shared"
	tu "github.com/desertthunder/plexsync/internal/testing"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.OpenHistory(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "sync_runs")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("NextSequence() = %d, want %d", got, want)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for unknown sequence table")
	}
}

func TestSyncRunRepository(t *testing.T) {
	t.Run("Create And Get", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, []string{"spotify:user:alice", "spotify:user:bob"})

		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" || run.Sequence() != 1 {
			t.Errorf("expected ID and sequence to be assigned, got %q #%d", run.ID(), run.Sequence())
		}

		got, err := repo.Get(run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunRunning || len(got.Sources()) != 2 || got.FinishedAt() != nil {
			t.Errorf("unexpected run %+v", got)
		}
	})

	t.Run("Get Missing", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		if _, err := repo.Get("nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
		if _, err := repo.Latest(); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound for empty history, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, nil)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.Finish(models.RunCounts{Playlists: 3, Created: 1, Updated: 1, Failed: 1, Matched: 9, Unresolved: 2}, errors.New("one failed"))
		if err := repo.Update(run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.GetBySequence(run.Sequence())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunFailed || got.Error() != "one failed" {
			t.Errorf("unexpected status %s %q", got.Status(), got.Error())
		}
		if got.Counts() != run.Counts() {
			t.Errorf("counts = %+v, want %+v", got.Counts(), run.Counts())
		}
		if got.FinishedAt() == nil {
			t.Error("expected finish time to be stored")
		}
	})

	t.Run("List And Latest", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		for range 3 {
			if err := repo.Create(models.NewSyncRun(0, nil)); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
		}

		runs, err := repo.List(map[string]any{"limit": 2})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(runs) != 2 || runs[0].Sequence() != 3 {
			t.Errorf("expected newest two runs, got %d", len(runs))
		}

		latest, err := repo.Latest()
		if err != nil || latest.Sequence() != 3 {
			t.Errorf("expected latest run #3, got %v %v", latest, err)
		}

		runs, err = repo.List(map[string]any{"status": string(models.RunCompleted)})
		if err != nil || len(runs) != 0 {
			t.Errorf("expected no completed runs, got %d %v", len(runs), err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewSyncRunRepository(setupTestDB(t))
		run := models.NewSyncRun(0, nil)
		if err := repo.Create(run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.Delete(run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}
		if _, err := repo.Get(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected deleted run to be hidden, got %v", err)
		}
		if err := repo.Delete(run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected second delete to fail, got %v", err)
		}
	})
}

func TestUnresolvedRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	runs := NewSyncRunRepository(db)
	run := models.NewSyncRun(0, nil)
	if err := runs.Create(run); err != nil {
		t.Fatalf("failed to create run: %v", err)
	}

	repo := NewUnresolvedRepository(db)
	sink := repo.SinkForRun(run.ID())

	records := []models.UnresolvedRecord{
		{TrackName: "Sunset", ArtistName: "Amy", Playlist: "alice - Chill"},
		{TrackName: "Dawn", ArtistName: "Bob", Playlist: "alice - Chill"},
	}
	for _, rec := range records {
		if err := sink.Append(ctx, rec); err != nil {
			t.Fatalf("failed to append: %v", err)
		}
	}

	got, err := repo.ListByRun(ctx, run.ID())
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	for i, rec := range records {
		if got[i].Record() != rec {
			t.Errorf("record %d = %+v, want %+v", i, got[i].Record(), rec)
		}
	}

	other, err := repo.ListByRun(ctx, "other")
	if err != nil || len(other) != 0 {
		t.Errorf("expected no records for another run, got %d %v", len(other), err)
	}

	if err := repo.SinkForRun("").Append(ctx, records[0]); err == nil {
		t.Error("expected validation error without run id")
	}
}

func TestUnresolvedFileSink(t *testing.T) {
	ctx := context.Background()

	t.Run("Appends Lines", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "reports", "missing_tracks.csv")
		sink := NewUnresolvedFileSink(path)

		_ = sink.Append(ctx, models.UnresolvedRecord{TrackName: "Sunset", ArtistName: "Amy"})
		_ = sink.Append(ctx, models.UnresolvedRecord{TrackName: "Dawn", ArtistName: "Bob"})

		tu.AssertFileExists(t, path)
		if got := tu.MustReadFile(t, path); got != "Sunset, Amy\nDawn, Bob\n" {
			t.Errorf("unexpected file contents %q", got)
		}
	})

	t.Run("Keeps Existing Content", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.csv")
		first := NewUnresolvedFileSink(path)
		_ = first.Append(ctx, models.UnresolvedRecord{TrackName: "A", ArtistName: "x"})

		second := NewUnresolvedFileSink(path)
		_ = second.Append(ctx, models.UnresolvedRecord{TrackName: "B", ArtistName: "y"})

		if lines := strings.Count(tu.MustReadFile(t, path), "\n"); lines != 2 {
			t.Errorf("expected 2 lines, got %d", lines)
		}
	})

	t.Run("Unwritable Path", func(t *testing.T) {
		dir := t.TempDir()
		sink := NewUnresolvedFileSink(dir)
		if err := sink.Append(ctx, models.UnresolvedRecord{TrackName: "A"}); err == nil {
			t.Error("expected error when the path is a directory")
		}
	})
}
