// package formatter exports sync history (runs and unresolved tracks) to CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/desertthunder/plexsync/internal/models"
)

// Format selects the output encoding of an export.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat accepts the file-extension style names along with "markdown" and "text".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want csv, md or txt)", s)
	}
}

// UnresolvedExport is a run together with the tracks it could not resolve.
type UnresolvedExport struct {
	Run    *models.SyncRun
	Tracks []*models.UnresolvedTrack
}

// Playlists returns the playlist names of the export in order of first appearance.
func (e *UnresolvedExport) Playlists() []string {
	return lo.Uniq(lo.Map(e.Tracks, func(t *models.UnresolvedTrack, _ int) string {
		return t.Record().Playlist
	}))
}

// Export encodes export in the given format
func Export(export *UnresolvedExport, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// ExportToCSV converts an UnresolvedExport to CSV format with columns: Playlist, Track, Artist
func ExportToCSV(export *UnresolvedExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Playlist", "Track", "Artist"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range export.Tracks {
		rec := track.Record()
		if err := writer.Write([]string{rec.Playlist, rec.TrackName, rec.ArtistName}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts an UnresolvedExport to Markdown with one section per playlist
func ExportToMarkdown(export *UnresolvedExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", runTitle(export.Run)))

	if run := export.Run; run != nil {
		c := run.Counts()
		buf.WriteString(fmt.Sprintf("**Status**: %s\n", run.Status()))
		buf.WriteString(fmt.Sprintf("**Started**: %s\n", run.CreatedAt().Format(time.RFC3339)))
		if d := run.Duration(); d > 0 {
			buf.WriteString(fmt.Sprintf("**Duration**: %s\n", d.Round(time.Second)))
		}
		buf.WriteString(fmt.Sprintf("**Playlists**: %d (%d created, %d updated, %d skipped, %d failed)\n",
			c.Playlists, c.Created, c.Updated, c.Skipped, c.Failed))
		buf.WriteString(fmt.Sprintf("**Tracks**: %d matched, %d unresolved\n", c.Matched, c.Unresolved))
		if run.Error() != "" {
			buf.WriteString(fmt.Sprintf("**Error**: %s\n", run.Error()))
		}
		buf.WriteString("\n")
	}

	if len(export.Tracks) == 0 {
		buf.WriteString("All tracks resolved.\n")
		return buf.Bytes(), nil
	}

	for _, name := range export.Playlists() {
		title := name
		if title == "" {
			title = "(no playlist)"
		}
		buf.WriteString(fmt.Sprintf("## %s\n\n", title))

		tracks := lo.Filter(export.Tracks, func(t *models.UnresolvedTrack, _ int) bool {
			return t.Record().Playlist == name
		})
		for i, track := range tracks {
			rec := track.Record()
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, rec.ArtistName, rec.TrackName))
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts an UnresolvedExport to plain text format
func ExportToText(export *UnresolvedExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("%s\n", runTitle(export.Run)))
	buf.WriteString(fmt.Sprintf("Unresolved: %d\n\n", len(export.Tracks)))

	for i, track := range export.Tracks {
		rec := track.Record()
		line := fmt.Sprintf("%d. %s - %s", i+1, rec.ArtistName, rec.TrackName)
		if rec.Playlist != "" {
			line += fmt.Sprintf(" [%s]", rec.Playlist)
		}
		buf.WriteString(line + "\n")
	}

	return buf.Bytes(), nil
}

// ExportRunsToCSV converts run history to CSV format, one row per run
func ExportRunsToCSV(runs []*models.SyncRun) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{
		"Sequence", "ID", "Status", "Started", "Duration", "Playlists", "Created",
		"Updated", "Skipped", "Failed", "Matched", "Unresolved", "Error",
	}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, run := range runs {
		c := run.Counts()
		record := []string{
			strconv.Itoa(run.Sequence()),
			run.ID(),
			string(run.Status()),
			run.CreatedAt().Format(time.RFC3339),
			run.Duration().Round(time.Millisecond).String(),
			strconv.Itoa(c.Playlists),
			strconv.Itoa(c.Created),
			strconv.Itoa(c.Updated),
			strconv.Itoa(c.Skipped),
			strconv.Itoa(c.Failed),
			strconv.Itoa(c.Matched),
			strconv.Itoa(c.Unresolved),
			run.Error(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// DefaultFilename is run-{sequence}_unresolved.{format}
func DefaultFilename(run *models.SyncRun, format Format) string {
	seq := 0
	if run != nil {
		seq = run.Sequence()
	}
	return fmt.Sprintf("run-%d_unresolved.%s", seq, format)
}

// WriteExport encodes export and writes it to path.
//
// Defaults to [DefaultFilename] in the working directory; parent directories are created.
func WriteExport(export *UnresolvedExport, format Format, path string) (string, error) {
	if path == "" {
		path = DefaultFilename(export.Run, format)
	}

	data, err := Export(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

func runTitle(run *models.SyncRun) string {
	if run == nil {
		return "Unresolved tracks"
	}
	return fmt.Sprintf("Unresolved tracks: run #%d", run.Sequence())
}
