package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cimon/app/internal/database"
)

func feedServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// --------------- Fetch ---------------

func TestFetch_ParsesFeed(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `[
		{"ci": "ci-1", "name": "Service One", "organization": "Org A",
		 "product": "P", "bu": "BU", "availability": 1,
		 "time": "2026-03-01T12:00:00.000Z"},
		{"ci": "ci-2", "name": "Service Two", "organization": "Org B",
		 "availability": 0, "time": "2026-03-01T12:00:00.000Z"}
	]`)

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	samples, meta, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	if len(samples) != 2 || len(meta) != 2 {
		t.Fatalf("got %d samples, %d metadata rows", len(samples), len(meta))
	}
	if samples[0].Entity != "ci-1" || samples[0].Status != 1 {
		t.Errorf("sample 0 = %+v", samples[0])
	}
	if samples[1].Status != 0 {
		t.Errorf("sample 1 status = %d, want 0", samples[1].Status)
	}
	want := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if !samples[0].At.Equal(want) {
		t.Errorf("sample time = %v, want %v", samples[0].At, want)
	}
	if meta[1].Name != "Service Two" || meta[1].Organization != "Org B" {
		t.Errorf("metadata 1 = %+v", meta[1])
	}
}

func TestFetch_NonBinaryAvailabilityIsUp(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `[
		{"ci": "ci-1", "availability": 7, "time": "2026-03-01T12:00:00.000Z"}
	]`)

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	samples, _, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if samples[0].Status != 1 {
		t.Errorf("status = %d, want 1 for non-zero availability", samples[0].Status)
	}
}

func TestFetch_DropsMalformedItems(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `[
		{"ci": "", "availability": 1, "time": "2026-03-01T12:00:00.000Z"},
		{"ci": "ci-bad-time", "availability": 1, "time": "yesterday"},
		{"ci": "ci-ok", "availability": 1, "time": "2026-03-01T12:00:00.000Z"}
	]`)

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	samples, meta, err := f.Fetch(context.Background())
	if err != nil {
		t.Fatalf("malformed items must not fail the batch: %v", err)
	}
	if len(samples) != 1 || samples[0].Entity != "ci-ok" {
		t.Errorf("samples = %+v, want only ci-ok", samples)
	}
	if len(meta) != 1 {
		t.Errorf("metadata rows = %d, want 1", len(meta))
	}
}

func TestFetch_UpstreamErrorStatus(t *testing.T) {
	srv := feedServer(t, http.StatusBadGateway, "upstream broken")

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	if _, _, err := f.Fetch(context.Background()); err == nil {
		t.Error("expected an error for a non-200 response")
	}
}

func TestFetch_BadJSON(t *testing.T) {
	srv := feedServer(t, http.StatusOK, "{not json")

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	if _, _, err := f.Fetch(context.Background()); err == nil {
		t.Error("expected a decode error")
	}
}

// --------------- Run ---------------

func TestRun_WritesSamplesAndMetadata(t *testing.T) {
	srv := feedServer(t, http.StatusOK, `[
		{"ci": "ci-1", "name": "Service One", "availability": 1,
		 "time": "2026-03-01T12:00:00.000Z"}
	]`)

	store, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	if err := f.Run(context.Background(), store); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	timelines, err := store.EntityTimelines()
	if err != nil {
		t.Fatal(err)
	}
	if len(timelines) != 1 || timelines[0].Entity != "ci-1" {
		t.Fatalf("timelines = %+v", timelines)
	}
	if timelines[0].Name != "Service One" {
		t.Errorf("metadata name = %q", timelines[0].Name)
	}
}

func TestRun_FetchFailureLeavesStoreUntouched(t *testing.T) {
	srv := feedServer(t, http.StatusInternalServerError, "")

	store, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	f := NewFetcher(srv.URL, 5*time.Second, zerolog.Nop())
	if err := f.Run(context.Background(), store); err == nil {
		t.Fatal("expected an error")
	}

	stats, err := store.RecordingStats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Count != 0 {
		t.Errorf("store has %d samples after a failed fetch", stats.Count)
	}
}
