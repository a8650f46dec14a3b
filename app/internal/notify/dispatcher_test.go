package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"cimon/app/internal/database"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// webhookRecorder captures every payload posted to it.
type webhookRecorder struct {
	mu       sync.Mutex
	payloads []map[string]any
	status   int
}

func newWebhook(t *testing.T) (*webhookRecorder, *httptest.Server) {
	t.Helper()
	rec := &webhookRecorder{status: http.StatusOK}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("webhook received bad JSON: %v", err)
		}
		rec.mu.Lock()
		rec.payloads = append(rec.payloads, p)
		status := rec.status
		rec.mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return rec, srv
}

func (r *webhookRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func openTestStore(t *testing.T) *database.Store {
	t.Helper()
	s, err := database.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedTransition writes two samples so the entity's latest pair is a
// status change.
func seedTransition(t *testing.T, s *database.Store, entity string, from, to int) {
	t.Helper()
	_, err := s.InsertSamples([]database.SampleWrite{
		{Entity: entity, At: t0, Status: from},
		{Entity: entity, At: t0.Add(5 * time.Minute), Status: to},
	})
	if err != nil {
		t.Fatal(err)
	}
}

// --------------- Dispatch ---------------

func TestDispatch_NoProfiles(t *testing.T) {
	store := openTestStore(t)
	seedTransition(t, store, "ci-1", 1, 0)

	n, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background())
	if err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}
	if n != 0 {
		t.Errorf("processed = %d, want 0 without profiles", n)
	}
}

func TestDispatch_NoChangesCountsProfiles(t *testing.T) {
	store := openTestStore(t)
	if err := store.SaveProfile(&database.Profile{Name: "ops", WebhookURL: "http://example.invalid", Enabled: true}); err != nil {
		t.Fatal(err)
	}

	n, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
}

func TestDispatch_DeliversChangePayload(t *testing.T) {
	store := openTestStore(t)
	seedTransition(t, store, "ci-1", 1, 0)
	if err := store.UpsertMetadata([]database.Metadata{{Entity: "ci-1", Name: "Service One"}}); err != nil {
		t.Fatal(err)
	}

	rec, srv := newWebhook(t)
	if err := store.SaveProfile(&database.Profile{Name: "ops", WebhookURL: srv.URL, Enabled: true}); err != nil {
		t.Fatal(err)
	}

	n, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1", n)
	}
	if rec.count() != 1 {
		t.Fatalf("webhook calls = %d, want 1", rec.count())
	}

	p := rec.payloads[0]
	if p["event"] != "availability_change" {
		t.Errorf("event = %v", p["event"])
	}
	if p["change_count"].(float64) != 1 {
		t.Errorf("change_count = %v, want 1", p["change_count"])
	}
	changes := p["changes"].([]any)
	c := changes[0].(map[string]any)
	if c["ci"] != "ci-1" || c["direction"] != "down" {
		t.Errorf("change = %v", c)
	}
	if c["name"] != "Service One" {
		t.Errorf("change name = %v", c["name"])
	}
}

func TestDispatch_OutagesBeforeRecoveries(t *testing.T) {
	store := openTestStore(t)
	seedTransition(t, store, "recovered", 0, 1)
	seedTransition(t, store, "failed", 1, 0)

	rec, srv := newWebhook(t)
	if err := store.SaveProfile(&database.Profile{Name: "ops", WebhookURL: srv.URL, Enabled: true}); err != nil {
		t.Fatal(err)
	}

	if _, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background()); err != nil {
		t.Fatal(err)
	}

	changes := rec.payloads[0]["changes"].([]any)
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	first := changes[0].(map[string]any)
	second := changes[1].(map[string]any)
	if first["direction"] != "down" || second["direction"] != "up" {
		t.Errorf("order = %v, %v; want down before up", first["direction"], second["direction"])
	}
}

func TestDispatch_WhitelistFiltering(t *testing.T) {
	store := openTestStore(t)
	seedTransition(t, store, "wanted", 1, 0)
	seedTransition(t, store, "ignored", 1, 0)

	rec, srv := newWebhook(t)
	err := store.SaveProfile(&database.Profile{
		Name:       "narrow",
		FilterType: database.FilterWhitelist,
		Entities:   []string{"wanted"},
		WebhookURL: srv.URL,
		Enabled:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background()); err != nil {
		t.Fatal(err)
	}

	changes := rec.payloads[0]["changes"].([]any)
	if len(changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(changes))
	}
	if changes[0].(map[string]any)["ci"] != "wanted" {
		t.Errorf("delivered change = %v", changes[0])
	}
}

func TestDispatch_BlacklistSuppressesDelivery(t *testing.T) {
	store := openTestStore(t)
	seedTransition(t, store, "muted", 1, 0)

	rec, srv := newWebhook(t)
	err := store.SaveProfile(&database.Profile{
		Name:       "quiet",
		FilterType: database.FilterBlacklist,
		Entities:   []string{"muted"},
		WebhookURL: srv.URL,
		Enabled:    true,
	})
	if err != nil {
		t.Fatal(err)
	}

	n, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("processed = %d, want 1 even without deliveries", n)
	}
	if rec.count() != 0 {
		t.Errorf("webhook calls = %d, want 0", rec.count())
	}
}

func TestDispatch_DeliveryFailureDoesNotStopOthers(t *testing.T) {
	store := openTestStore(t)
	seedTransition(t, store, "ci-1", 1, 0)

	failing, failSrv := newWebhook(t)
	failing.status = http.StatusInternalServerError
	healthy, okSrv := newWebhook(t)

	if err := store.SaveProfile(&database.Profile{Name: "a-broken", WebhookURL: failSrv.URL, Enabled: true}); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveProfile(&database.Profile{Name: "b-ok", WebhookURL: okSrv.URL, Enabled: true}); err != nil {
		t.Fatal(err)
	}

	n, err := NewDispatcher(store, zerolog.Nop()).Dispatch(context.Background())
	if err != nil {
		t.Fatalf("a failing profile must not fail the pass: %v", err)
	}
	if n != 2 {
		t.Errorf("processed = %d, want 2", n)
	}
	if healthy.count() != 1 {
		t.Errorf("healthy webhook calls = %d, want 1", healthy.count())
	}
}
