package repositories

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/desertthunder/plexsync/internal/models"
)

// UnresolvedFileSink appends "{track}, {artist}" lines to a text file.
//
// The file is opened and closed for every record so a crash never loses earlier rows.
type UnresolvedFileSink struct {
	path string
	mu   sync.Mutex
}

// NewUnresolvedFileSink creates a sink writing to path; parent directories are created on first write.
func NewUnresolvedFileSink(path string) *UnresolvedFileSink {
	return &UnresolvedFileSink{path: path}
}

// Append writes one "{track}, {artist}" line.
func (s *UnresolvedFileSink) Append(_ context.Context, rec models.UnresolvedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", s.path, err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}

	if _, err := fmt.Fprintf(f, "%s, %s\n", rec.TrackName, rec.ArtistName); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", s.path, err)
	}
	return f.Close()
}
