package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/desertthunder/plexsync/internal/shared"
	"github.com/desertthunder/plexsync/internal/tasks"
)

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Filtering", func(t *testing.T) {
		r := NewBasicRouter()
		r.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusNoContent {
			t.Errorf("GET status = %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("POST status = %d, want 405", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		r := NewBasicRouter()
		r.Use(mw("first"), mw("second"))
		r.Handle(http.MethodGet, "/", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			order = append(order, "handler")
		}))
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Recoverer", func(t *testing.T) {
		r := NewBasicRouter()
		r.Use(Recoverer(testLogger()))
		r.Handle(http.MethodGet, "/boom", http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", rec.Code)
		}
	})
}

func TestScheduler(t *testing.T) {
	t.Run("RunNow Records Result", func(t *testing.T) {
		s := NewScheduler(func(context.Context) (*tasks.SyncResult, error) {
			return &tasks.SyncResult{}, nil
		}, testLogger())

		if _, err := s.RunNow(context.Background()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		st := s.Status()
		if st.Running || st.Runs != 1 || st.LastResult == nil || st.LastRunAt.IsZero() {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("Rejects Concurrent Runs", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		s := NewScheduler(func(context.Context) (*tasks.SyncResult, error) {
			close(started)
			<-release
			return &tasks.SyncResult{}, nil
		}, testLogger())

		if err := s.Trigger(context.Background()); err != nil {
			t.Fatalf("first trigger failed: %v", err)
		}
		<-started

		if err := s.Trigger(context.Background()); !errors.Is(err, shared.ErrSyncInProgress) {
			t.Errorf("expected ErrSyncInProgress, got %v", err)
		}
		if _, err := s.RunNow(context.Background()); !errors.Is(err, shared.ErrSyncInProgress) {
			t.Errorf("expected ErrSyncInProgress, got %v", err)
		}

		close(release)
		s.Wait()

		if st := s.Status(); st.Running || st.Runs != 1 {
			t.Errorf("unexpected status after run %+v", st)
		}
	})

	t.Run("Keeps Run Error", func(t *testing.T) {
		s := NewScheduler(func(context.Context) (*tasks.SyncResult, error) {
			return nil, shared.ErrMissingCredentials
		}, testLogger())

		if _, err := s.RunNow(context.Background()); !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected run error, got %v", err)
		}
		if st := s.Status(); !errors.Is(st.LastErr, shared.ErrMissingCredentials) {
			t.Errorf("expected LastErr to be kept, got %v", st.LastErr)
		}
	})

	t.Run("Start Runs On Interval", func(t *testing.T) {
		var runs atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := NewScheduler(func(context.Context) (*tasks.SyncResult, error) {
			if runs.Add(1) == 3 {
				cancel()
			}
			return &tasks.SyncResult{}, nil
		}, testLogger())

		done := make(chan struct{})
		go func() {
			s.Start(ctx, time.Millisecond)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
		if runs.Load() < 3 {
			t.Errorf("expected at least 3 runs, got %d", runs.Load())
		}
	})

	t.Run("Start Without Interval Runs Once", func(t *testing.T) {
		var runs atomic.Int32
		ctx, cancel := context.WithCancel(context.Background())

		s := NewScheduler(func(context.Context) (*tasks.SyncResult, error) {
			runs.Add(1)
			cancel()
			return &tasks.SyncResult{}, nil
		}, testLogger())

		s.Start(ctx, 0)
		if runs.Load() != 1 {
			t.Errorf("expected a single run, got %d", runs.Load())
		}
	})
}

func TestServeRouter(t *testing.T) {
	release := make(chan struct{})
	scheduler := NewScheduler(func(context.Context) (*tasks.SyncResult, error) {
		<-release
		return &tasks.SyncResult{
			Playlists: []tasks.PlaylistResult{{Name: "alice - Chill", Action: tasks.ActionCreated, Matched: 1, Unresolved: 1}},
		}, nil
	}, testLogger())

	reg := prometheus.NewRegistry()
	tasks.NewMetrics(reg)

	srv := httptest.NewServer(NewServeRouter(context.Background(), RouterOpts{
		Scheduler: scheduler,
		Registry:  reg,
		Logger:    testLogger(),
	}))
	defer srv.Close()

	t.Run("Healthz", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/healthz")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK || string(body) != "ok\n" {
			t.Errorf("unexpected response %d %q", resp.StatusCode, body)
		}
	})

	t.Run("Metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(resp.Body)
		if !strings.Contains(string(body), "plexsync_run_duration_seconds") {
			t.Errorf("expected sync metrics, got:\n%s", body)
		}
	})

	t.Run("Trigger And Conflict", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/sync", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("first trigger status = %d, want 202", resp.StatusCode)
		}

		resp, err = http.Post(srv.URL+"/sync", "application/json", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		var msg messageResponse
		_ = json.NewDecoder(resp.Body).Decode(&msg)
		resp.Body.Close()
		if resp.StatusCode != http.StatusConflict || msg.Status != "busy" {
			t.Errorf("second trigger = %d %+v, want 409 busy", resp.StatusCode, msg)
		}

		close(release)
		scheduler.Wait()
	})

	t.Run("Status", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/sync")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		var st syncStatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}
		if st.Running || st.Runs != 1 || !strings.HasPrefix(st.Summary, "1 playlists: 1 created") {
			t.Errorf("unexpected status %+v", st)
		}
	})

	t.Run("Unsupported Method", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/sync", nil)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", resp.StatusCode)
		}
	})
}

func TestAddr(t *testing.T) {
	if got := Addr("", 8080); got != ":8080" {
		t.Errorf("Addr() = %q", got)
	}
	if got := Addr("127.0.0.1", 9000); got != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q", got)
	}
}
