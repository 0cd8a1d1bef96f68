package tasks

import (
	"cmp"
	"context"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plexsync/internal/models"
	"github.com/desertthunder/plexsync/internal/services"
	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/samber/lo"
)

// DefaultSuffixMarkers are the title suffixes stripped when an exact search finds nothing.
var DefaultSuffixMarkers = []string{" - Remastered", " - Original Mix", " - Extended Mix"}

// DefaultSubstitutions are the glyph replacements applied to artist names in unresolved reports.
var DefaultSubstitutions = map[string]string{
	"α":   "alpha",
	"✝✝✝": "crosses",
}

// Status is the outcome of resolving one source track.
type Status int

const (
	StatusMatched Status = iota
	StatusUnresolved
	StatusSearchFailed
)

func (s Status) String() string {
	switch s {
	case StatusMatched:
		return "matched"
	case StatusUnresolved:
		return "unresolved"
	case StatusSearchFailed:
		return "search_failed"
	default:
		return ""
	}
}

// Resolution describes how a source track was resolved.
//
// Track is the working copy; its Name is the cleaned title when Cleaned is set.
type Resolution struct {
	Track   models.SourceTrack
	Match   *models.LocalMediaItem
	Status  Status
	Cleaned bool
	Err     error
}

type searchOutcome int

const (
	searchFound searchOutcome = iota
	searchEmpty
	searchFailed
)

func (o searchOutcome) String() string {
	switch o {
	case searchFound:
		return "found"
	case searchEmpty:
		return "empty"
	default:
		return "failed"
	}
}

// searchResult is the explicit result of one library search.
type searchResult struct {
	items   []models.LocalMediaItem
	outcome searchOutcome
	err     error
}

// ResolverOpts configures a [TrackResolver].
type ResolverOpts struct {
	Library       services.Library
	Sink          UnresolvedSink
	Logger        *log.Logger
	Metrics       *Metrics
	SuffixMarkers []string          // defaults to [DefaultSuffixMarkers] when nil
	Substitutions map[string]string // defaults to [DefaultSubstitutions] when nil
}

// TrackResolver finds the library item that corresponds to a source track.
type TrackResolver struct {
	library  services.Library
	sink     UnresolvedSink
	logger   *log.Logger
	metrics  *Metrics
	markers  []string
	translit *Transliterator
	playlist string
}

// NewTrackResolver creates a resolver.
func NewTrackResolver(opts ResolverOpts) *TrackResolver {
	markers := opts.SuffixMarkers
	if markers == nil {
		markers = DefaultSuffixMarkers
	}
	subs := opts.Substitutions
	if subs == nil {
		subs = DefaultSubstitutions
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &TrackResolver{
		library:  opts.Library,
		sink:     opts.Sink,
		logger:   logger,
		metrics:  opts.Metrics,
		markers:  markers,
		translit: NewTransliterator(subs),
	}
}

// ForPlaylist returns a resolver that tags unresolved records with the playlist name.
func (r *TrackResolver) ForPlaylist(name string) *TrackResolver {
	scoped := *r
	scoped.playlist = name
	scoped.logger = shared.WithLogger(r.logger, "playlist", name)
	return &scoped
}

// Resolve searches the library for track and returns the first acceptable candidate.
//
// An exact title search runs first. When it returns nothing and the title carries a known suffix, the cleaned
// title is searched with one retry. Candidates must be tracks whose title matches the working title and whose
// artist identity is one of the source artists. Tracks without a match are appended to the sink; tracks whose
// search failed are not.
func (r *TrackResolver) Resolve(ctx context.Context, track models.SourceTrack) Resolution {
	res := Resolution{Track: track}
	logger := shared.WithLogger(r.logger, "track", track.Name, "artist", track.FirstArtist())

	logger.Debug("searching library")
	found := r.search(ctx, "exact", track.Name)
	if found.outcome == searchFailed {
		logger.Error("library search failed, skipping track", "err", found.err)
		return r.finish(res, StatusSearchFailed, found.err)
	}

	if found.outcome == searchEmpty {
		if cleaned, ok := CleanTitle(track.Name, r.markers); ok {
			logger.Info("no results, retrying with cleaned title", "cleaned", cleaned)

			found = r.searchWithRetry(ctx, logger, cleaned)
			if found.outcome == searchFailed {
				logger.Error("cleaned search failed, skipping track", "cleaned", cleaned, "err", found.err)
				return r.finish(res, StatusSearchFailed, found.err)
			}
			res.Track.Name = cleaned
			res.Cleaned = true
		}
	}

	matches := lo.Filter(found.items, acceptable(res.Track))
	if len(matches) > 0 {
		match := matches[0]
		res.Match = &match
		logger.Info("matched", "key", match.Key, "candidates", len(found.items))
		return r.finish(res, StatusMatched, nil)
	}

	rec := models.UnresolvedRecord{
		TrackName:  res.Track.Name,
		ArtistName: r.translit.Apply(res.Track.FirstArtist()),
		Playlist:   r.playlist,
	}
	logger.Warn("no acceptable match", "title", rec.TrackName, "candidates", len(found.items))
	if r.sink != nil {
		if err := r.sink.Append(ctx, rec); err != nil {
			logger.Error("failed to record unresolved track", "err", err)
		}
	}
	return r.finish(res, StatusUnresolved, nil)
}

func (r *TrackResolver) finish(res Resolution, status Status, err error) Resolution {
	res.Status = status
	res.Err = err
	r.metrics.observeTrack(status)
	return res
}

func (r *TrackResolver) search(ctx context.Context, stage, title string) searchResult {
	items, err := r.library.SearchTracks(ctx, title)
	items = lo.Filter(items, func(item models.LocalMediaItem, _ int) bool { return isTrack(item) })

	var result searchResult
	switch {
	case err != nil:
		result = searchResult{outcome: searchFailed, err: err}
	case len(items) == 0:
		result = searchResult{outcome: searchEmpty}
	default:
		result = searchResult{outcome: searchFound, items: items}
	}

	r.metrics.observeSearch(stage, result.outcome)
	return result
}

// searchWithRetry allows one extra attempt after a failed search.
func (r *TrackResolver) searchWithRetry(ctx context.Context, logger *log.Logger, title string) searchResult {
	result := r.search(ctx, "cleaned", title)
	if result.outcome != searchFailed || ctx.Err() != nil {
		return result
	}
	logger.Warn("cleaned search failed, retrying once", "err", result.err)
	return r.search(ctx, "cleaned_retry", title)
}

// acceptable composes the candidate predicates for track.
func acceptable(track models.SourceTrack) func(models.LocalMediaItem, int) bool {
	preds := []func(models.LocalMediaItem) bool{
		isTrack,
		titleEquals(track.Name),
		artistIn(track.ArtistNames()),
	}
	return func(item models.LocalMediaItem, _ int) bool {
		return lo.EveryBy(preds, func(p func(models.LocalMediaItem) bool) bool { return p(item) })
	}
}

func isTrack(item models.LocalMediaItem) bool {
	return item.Kind == models.KindTrack
}

func titleEquals(title string) func(models.LocalMediaItem) bool {
	return func(item models.LocalMediaItem) bool {
		return strings.EqualFold(item.Title, title)
	}
}

// artistIn prefers the compilation artist over the album artist so "Various Artists" albums still match.
func artistIn(names []string) func(models.LocalMediaItem) bool {
	return func(item models.LocalMediaItem) bool {
		identity := item.ArtistIdentity()
		return lo.ContainsBy(names, func(n string) bool { return strings.EqualFold(n, identity) })
	}
}

// CleanTitle strips a known suffix marker from title.
//
// Every marker is checked against the raw title and each hit overwrites the result, so with several
// markers present the last one in markers decides where the title is cut. A cut that leaves nothing
// counts as no match.
func CleanTitle(title string, markers []string) (string, bool) {
	cleaned, matched := title, false
	for _, m := range markers {
		if m == "" {
			continue
		}
		if i := strings.Index(title, m); i >= 0 {
			cleaned, matched = title[:i], true
		}
	}
	if cleaned == "" {
		return title, false
	}
	return cleaned, matched
}

// Transliterator replaces glyphs that downstream report tools cannot handle.
type Transliterator struct {
	replacer *strings.Replacer
}

// NewTransliterator builds a replacer from subs; longer keys win over their prefixes.
func NewTransliterator(subs map[string]string) *Transliterator {
	if len(subs) == 0 {
		return &Transliterator{}
	}

	keys := make([]string, 0, len(subs))
	for k := range subs {
		if k != "" {
			keys = append(keys, k)
		}
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	pairs := make([]string, 0, 2*len(keys))
	for _, k := range keys {
		pairs = append(pairs, k, subs[k])
	}
	return &Transliterator{replacer: strings.NewReplacer(pairs...)}
}

// Apply returns s with every substitution applied.
func (t *Transliterator) Apply(s string) string {
	if t == nil || t.replacer == nil {
		return s
	}
	return t.replacer.Replace(s)
}
