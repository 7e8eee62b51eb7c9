package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tendant/simple-brief/internal/briefapi"
	"github.com/tendant/simple-brief/internal/process"
	"github.com/tendant/simple-brief/pkg/schema"
)

// fakeBriefService answers "sugar" immediately, finishes "salt" on the second
// poll, fails "msg" and never finishes anything else.
func fakeBriefService(t *testing.T) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	polls := map[string]int{}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /ingredient-brief", func(w http.ResponseWriter, r *http.Request) {
		var req schema.InitiateBriefRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := schema.InitiateBriefResponse{InProgress: true, Entity: req.Entity}
		if req.Entity == "sugar" {
			resp = schema.InitiateBriefResponse{Entity: req.Entity, Summary: "Sugar is a carbohydrate."}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("GET /ingredient-brief/status/{entity}", func(w http.ResponseWriter, r *http.Request) {
		entity := r.PathValue("entity")
		mu.Lock()
		polls[entity]++
		n := polls[entity]
		mu.Unlock()

		resp := schema.BriefStatusResponse{Status: "pending", Message: "Collecting studies"}
		switch {
		case entity == "salt" && n >= 2:
			resp = schema.BriefStatusResponse{Status: schema.BackendStatusCompleted, Summary: "Salt is sodium chloride."}
		case entity == "msg":
			resp = schema.BriefStatusResponse{Status: schema.BackendStatusFailed, Message: "No studies found"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	return httptest.NewServer(mux)
}

func newTrackingDispatcher(t *testing.T, apiURL string, maxAttempts int) (*process.Dispatcher, chan terminal) {
	t.Helper()
	results := make(chan terminal, 8)
	client := briefapi.NewClient(apiURL, nil)
	d := process.NewDispatcher(process.NewRegistry(), client, client,
		process.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		process.WithSink(collector(results)),
		process.WithOptions(process.Options{Interval: time.Millisecond, MaxAttempts: maxAttempts}),
	)
	t.Cleanup(func() { _ = d.Close(time.Second) })
	return d, results
}

func TestTrackBriefs(t *testing.T) {
	srv := fakeBriefService(t)
	defer srv.Close()

	d, results := newTrackingDispatcher(t, srv.URL, 5)
	var out bytes.Buffer

	failed := trackBriefs(context.Background(), d, results, []string{"sugar", "salt", "msg", "aspartame"}, 0, &out)
	if failed != 2 {
		t.Fatalf("failed = %d, want 2; output:\n%s", failed, out.String())
	}

	got := out.String()
	for _, want := range []string{
		"== sugar ==\nSugar is a carbohydrate.",
		"salt: generating brief...",
		"== salt ==\nSalt is sodium chloride.",
		"msg: failed: No studies found",
		"aspartame: timed out waiting for brief",
	} {
		if !strings.Contains(got, want) {
			t.Fatalf("output missing %q:\n%s", want, got)
		}
	}
}

func TestTrackBriefsGivesUpAfterWait(t *testing.T) {
	srv := fakeBriefService(t)
	defer srv.Close()

	d, results := newTrackingDispatcher(t, srv.URL, 1_000_000)
	var out bytes.Buffer

	failed := trackBriefs(context.Background(), d, results, []string{"aspartame"}, 30*time.Millisecond, &out)
	if failed != 1 {
		t.Fatalf("failed = %d, want 1", failed)
	}
	if !strings.Contains(out.String(), "aspartame: gave up waiting") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if _, ok := d.Job("aspartame"); ok {
		t.Fatal("abandoned job is still tracked")
	}
}

func TestTrackBriefsRequestFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	d, results := newTrackingDispatcher(t, srv.URL, 5)
	var out bytes.Buffer

	if failed := trackBriefs(context.Background(), d, results, []string{"salt", "  "}, 0, &out); failed != 2 {
		t.Fatalf("failed = %d, want 2", failed)
	}
	if !strings.Contains(out.String(), "salt: request failed") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestFormatEvent(t *testing.T) {
	data, _ := json.Marshal(schema.BriefLifecycleEvent{
		JobID:       "0b7c",
		Entity:      "msg",
		Status:      "failed",
		Attempts:    3,
		Error:       "No studies found",
		FailureType: schema.FailureTypeBackend,
	})

	line, err := formatEvent(data)
	if err != nil {
		t.Fatalf("formatEvent: %v", err)
	}
	want := `msg failed job=0b7c attempts=3 error="No studies found" failure_type=backend`
	if line != want {
		t.Fatalf("formatEvent = %q, want %q", line, want)
	}

	if _, err := formatEvent([]byte("{")); err == nil {
		t.Fatal("expected error for malformed event")
	}
}
