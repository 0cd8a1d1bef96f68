package models

import (
	"fmt"
	"strings"
	"time"
)

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunCounts summarises the outcome of a sync run.
type RunCounts struct {
	Playlists  int `json:"playlists"`
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Failed     int `json:"failed"`
	Matched    int `json:"matched"`
	Unresolved int `json:"unresolved"`
}

// SyncRun records one execution of the sync orchestrator.
type SyncRun struct {
	id         string
	sequence   int
	status     RunStatus
	sources    []string
	counts     RunCounts
	errMsg     string
	createdAt  time.Time
	updatedAt  time.Time
	finishedAt *time.Time
	deletedAt  *time.Time
}

var _ Model = (*SyncRun)(nil)

// NewSyncRun creates a running [SyncRun] for the given source URIs.
func NewSyncRun(sequence int, sources []string) *SyncRun {
	now := time.Now().UTC()
	return &SyncRun{
		sequence:  sequence,
		status:    RunRunning,
		sources:   sources,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *SyncRun) ID() string             { return r.id }
func (r *SyncRun) Sequence() int          { return r.sequence }
func (r *SyncRun) Status() RunStatus      { return r.status }
func (r *SyncRun) Sources() []string      { return r.sources }
func (r *SyncRun) Counts() RunCounts      { return r.counts }
func (r *SyncRun) Error() string          { return r.errMsg }
func (r *SyncRun) CreatedAt() time.Time   { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time   { return r.updatedAt }
func (r *SyncRun) FinishedAt() *time.Time { return r.finishedAt }
func (r *SyncRun) DeletedAt() *time.Time  { return r.deletedAt }

// SourcesString joins the sources the way they are stored.
func (r *SyncRun) SourcesString() string { return strings.Join(r.sources, ",") }

func (r *SyncRun) SetID(id string)             { r.id = id }
func (r *SyncRun) SetSequence(seq int)         { r.sequence = seq }
func (r *SyncRun) SetCreatedAt(t time.Time)    { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time)    { r.updatedAt = t }
func (r *SyncRun) SetFinishedAt(t *time.Time)  { r.finishedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time)   { r.deletedAt = t }
func (r *SyncRun) SetStatus(s RunStatus)       { r.status = s }
func (r *SyncRun) SetCounts(c RunCounts)       { r.counts = c }
func (r *SyncRun) SetError(msg string)         { r.errMsg = msg }
func (r *SyncRun) SetSourcesString(raw string) { r.sources = splitSources(raw) }

// Finish marks the run as done with the final counts.
func (r *SyncRun) Finish(counts RunCounts, err error) {
	now := time.Now().UTC()
	r.counts = counts
	r.finishedAt = &now
	r.updatedAt = now
	r.status = RunCompleted
	if err != nil {
		r.status = RunFailed
		r.errMsg = err.Error()
	}
}

// Duration is the wall time of a finished run, zero while running.
func (r *SyncRun) Duration() time.Duration {
	if r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(r.createdAt)
}

func (r *SyncRun) Validate() error {
	switch r.status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid run status %q", r.status)
	}
	if r.sequence < 0 {
		return fmt.Errorf("sequence must not be negative")
	}
	return nil
}

func splitSources(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// UnresolvedTrack is an [UnresolvedRecord] stored against the run that produced it.
type UnresolvedTrack struct {
	id        string
	runID     string
	record    UnresolvedRecord
	createdAt time.Time
}

var _ Model = (*UnresolvedTrack)(nil)

// NewUnresolvedTrack wraps rec for persistence under runID.
func NewUnresolvedTrack(runID string, rec UnresolvedRecord) *UnresolvedTrack {
	return &UnresolvedTrack{runID: runID, record: rec, createdAt: time.Now().UTC()}
}

func (u *UnresolvedTrack) ID() string               { return u.id }
func (u *UnresolvedTrack) RunID() string            { return u.runID }
func (u *UnresolvedTrack) Record() UnresolvedRecord { return u.record }
func (u *UnresolvedTrack) CreatedAt() time.Time     { return u.createdAt }
func (u *UnresolvedTrack) UpdatedAt() time.Time     { return u.createdAt }

func (u *UnresolvedTrack) SetID(id string)          { u.id = id }
func (u *UnresolvedTrack) SetCreatedAt(t time.Time) { u.createdAt = t }

func (u *UnresolvedTrack) Validate() error {
	if u.runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(u.record.TrackName) == "" {
		return fmt.Errorf("track name is required")
	}
	return nil
}
