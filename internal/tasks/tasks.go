package tasks

import (
	"context"
	"errors"

	"github.com/desertthunder/plexsync/internal/models"
)

// UnresolvedSink receives tracks that had no acceptable library match.
type UnresolvedSink interface {
	Append(ctx context.Context, rec models.UnresolvedRecord) error
}

// MultiSink fans a record out to every sink, attempting all of them.
type MultiSink []UnresolvedSink

func (m MultiSink) Append(ctx context.Context, rec models.UnresolvedRecord) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SinkFunc adapts a function to [UnresolvedSink].
type SinkFunc func(ctx context.Context, rec models.UnresolvedRecord) error

func (f SinkFunc) Append(ctx context.Context, rec models.UnresolvedRecord) error {
	return f(ctx, rec)
}
