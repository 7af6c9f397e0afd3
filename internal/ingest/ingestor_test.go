package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/polytrack/polytrack/internal/gamma"
	"github.com/polytrack/polytrack/internal/model"
	"github.com/polytrack/polytrack/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, eventBody, tradesBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/events/"):
			io.WriteString(w, eventBody)
		case r.URL.Path == "/trades":
			io.WriteString(w, tradesBody)
		default:
			http.NotFound(w, r)
		}
	}))
}

func TestIngest_PersistsSnapshots(t *testing.T) {
	srv := newTestServer(t, `{
		"id": "evt-1",
		"slug": "will-it-rain",
		"markets": [{
			"id": "m1",
			"volume": 5000,
			"liquidity": 1200,
			"outcomes": [
				{"id": "tok-yes", "title": "Yes", "price": "0.40"},
				{"id": "tok-no", "title": "No", "price": "0.60"}
			]
		}]
	}`, `{"data": [
		{"asset_id": "tok-yes", "price": "0.41", "size": "25", "side": "BUY", "match_time": 1700000000}
	]}`)
	defer srv.Close()

	mem := store.NewMemory()
	market := mem.AddTrackedMarket(model.TrackedMarket{Slug: "will-it-rain"})

	client := gamma.NewClient(srv.URL, srv.URL)
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	in := NewIngestor(client, mem, testLogger(), WithClock(func() time.Time { return ts }))

	res, err := in.Ingest(context.Background(), market)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(res.Snapshots) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(res.Snapshots))
	}
	for _, s := range res.Snapshots {
		if s.ID == 0 {
			t.Error("snapshot not assigned an ID")
		}
		if !s.TS.Equal(ts) {
			t.Errorf("snapshot TS = %v, want %v", s.TS, ts)
		}
		if s.Volume != 5000 {
			t.Errorf("snapshot volume = %v, want 5000", s.Volume)
		}
	}
	if res.Snapshots[0].Prob != 0.40 || res.Snapshots[1].Prob != 0.60 {
		t.Errorf("probs = %v, %v, want 0.40, 0.60", res.Snapshots[0].Prob, res.Snapshots[1].Prob)
	}

	if len(res.Trades) != 1 || res.Trades[0].TokenID != "tok-yes" {
		t.Errorf("trades = %v, want one tok-yes fill", res.Trades)
	}

	latest, err := mem.LatestSnapshots(context.Background(), market.ID)
	if err != nil {
		t.Fatalf("LatestSnapshots() error = %v", err)
	}
	if len(latest) != 2 {
		t.Errorf("persisted snapshots = %d, want 2", len(latest))
	}
}

func TestIngest_SkipsInvalidOutcomes(t *testing.T) {
	// Second market carries a negative volume, so its outcome fails
	// validation. The first market must still be ingested.
	srv := newTestServer(t, `{
		"id": "evt-1",
		"slug": "mixed",
		"markets": [
			{
				"id": "m1",
				"volume": 100,
				"outcomes": [{"id": "tok-a", "title": "A", "price": "0.5"}]
			},
			{
				"id": "m2",
				"volume": -5,
				"outcomes": [{"id": "tok-b", "title": "B", "price": "0.5"}]
			}
		]
	}`, `[]`)
	defer srv.Close()

	mem := store.NewMemory()
	market := mem.AddTrackedMarket(model.TrackedMarket{Slug: "mixed"})

	client := gamma.NewClient(srv.URL, srv.URL)
	in := NewIngestor(client, mem, testLogger())

	res, err := in.Ingest(context.Background(), market)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", res.Skipped)
	}
	if len(res.Snapshots) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(res.Snapshots))
	}
	if res.Snapshots[0].Prob != 0.5 {
		t.Errorf("prob = %v, want 0.5", res.Snapshots[0].Prob)
	}
}

func TestIngest_AllInvalidFailsMarket(t *testing.T) {
	srv := newTestServer(t, `{
		"id": "evt-1",
		"slug": "bad",
		"markets": [{
			"id": "m1",
			"volume": -1,
			"outcomes": [{"id": "tok-a", "title": "A", "price": "1"}]
		}]
	}`, `[]`)
	defer srv.Close()

	mem := store.NewMemory()
	market := mem.AddTrackedMarket(model.TrackedMarket{Slug: "bad"})

	in := NewIngestor(gamma.NewClient(srv.URL, srv.URL), mem, testLogger())
	if _, err := in.Ingest(context.Background(), market); err == nil {
		t.Error("Ingest() should fail when every reading is invalid")
	}
}

func TestIngest_FetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	market := mem.AddTrackedMarket(model.TrackedMarket{Slug: "missing"})

	in := NewIngestor(gamma.NewClient(srv.URL, srv.URL), mem, testLogger())
	if _, err := in.Ingest(context.Background(), market); err == nil {
		t.Error("Ingest() should surface fetch errors")
	}
}

func TestIngest_TradeFailureIsNonFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/events/") {
			io.WriteString(w, `{
				"id": "evt-1",
				"slug": "ok",
				"markets": [{
					"id": "m1",
					"volume": 10,
					"outcomes": [{"id": "tok-a", "title": "A", "price": "1"}]
				}]
			}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	mem := store.NewMemory()
	market := mem.AddTrackedMarket(model.TrackedMarket{Slug: "ok"})

	in := NewIngestor(gamma.NewClient(srv.URL, srv.URL), mem, testLogger())
	res, err := in.Ingest(context.Background(), market)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(res.Trades) != 0 {
		t.Errorf("trades = %v, want empty on fetch failure", res.Trades)
	}
	if len(res.Snapshots) != 1 {
		t.Errorf("snapshots = %d, want 1", len(res.Snapshots))
	}
}
