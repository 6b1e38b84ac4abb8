package report

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/visreg/internal/store"
)

func sampleSummary() *Summary {
	return &Summary{
		RunID:       "run-1",
		GeneratedAt: time.Unix(1700000000, 0).UTC(),
		NewImages: []store.Outcome{
			{Description: "a", Viewport: "desktop", Status: store.StatusNew, Height: 10},
		},
		DiffImages: []store.Outcome{
			{Description: "b", Viewport: "desktop", Status: store.StatusDiff, Height: 20},
		},
	}
}

func TestWriteReadSummary(t *testing.T) {
	dir := t.TempDir()
	want := sampleSummary()

	if err := WriteSummary(dir, want); err != nil {
		t.Fatalf("WriteSummary: %v", err)
	}
	got, err := ReadSummary(dir)
	if err != nil {
		t.Fatalf("ReadSummary: %v", err)
	}
	if got.RunID != want.RunID || !got.GeneratedAt.Equal(want.GeneratedAt) {
		t.Errorf("summary header: got %+v", got)
	}
	if len(got.NewImages) != 1 || got.NewImages[0].Description != "a" {
		t.Errorf("NewImages: got %+v", got.NewImages)
	}

	// Overwritten, not appended.
	second := sampleSummary()
	second.RunID = "run-2"
	second.NewImages = nil
	if err := WriteSummary(dir, second); err != nil {
		t.Fatalf("WriteSummary second: %v", err)
	}
	got, err = ReadSummary(dir)
	if err != nil {
		t.Fatalf("ReadSummary second: %v", err)
	}
	if got.RunID != "run-2" || len(got.NewImages) != 0 {
		t.Errorf("overwrite: got %+v", got)
	}

	// The rename is the only publication step: no temp files survive.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "summary.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("artifact dir: got %v, want [summary.json]", names)
	}
}

func TestSummary_Clean(t *testing.T) {
	if !(&Summary{}).Clean() {
		t.Error("empty summary not clean")
	}
	if sampleSummary().Clean() {
		t.Error("summary with outcomes reported clean")
	}
}

func TestStdoutSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewStdout(&buf)
	if err := s.SendSummary(context.Background(), *sampleSummary()); err != nil {
		t.Fatalf("SendSummary: %v", err)
	}

	var env struct {
		Type string  `json:"type"`
		Data Summary `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if env.Type != "summary" || env.Data.RunID != "run-1" {
		t.Errorf("envelope: got %+v", env)
	}
}

func TestWebhookSink_RetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Millisecond))
	if err := wh.SendSummary(context.Background(), *sampleSummary()); err != nil {
		t.Fatalf("SendSummary: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("calls: got %d, want 3", calls.Load())
	}
}

func TestWebhookSink_ContextCancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// First attempt fails, then the context expires inside the one-minute
	// backoff window before a retry can fire.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	wh := NewWebhook(srv.URL, WithWebhookBackoff(time.Minute))
	err := wh.SendSummary(ctx, *sampleSummary())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error: got %v, want context.DeadlineExceeded", err)
	}
	if calls.Load() != 1 {
		t.Errorf("calls: got %d, want 1 (no retry after cancellation)", calls.Load())
	}
}

func TestWebhookSink_Exhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	wh := NewWebhook(srv.URL, WithWebhookRetries(1), WithWebhookBackoff(time.Millisecond))
	if err := wh.SendSummary(context.Background(), *sampleSummary()); err == nil {
		t.Fatal("SendSummary: expected error after retries exhausted")
	}
}

type failingSink struct{ err error }

func (f *failingSink) SendSummary(context.Context, Summary) error { return f.err }
func (f *failingSink) Close() error                               { return nil }

func TestRouter_FanOutContinuesPastFailure(t *testing.T) {
	var buf bytes.Buffer
	boom := errors.New("boom")
	r := NewRouter(nil, &failingSink{err: boom}, NewStdout(&buf))

	err := r.SendSummary(context.Background(), *sampleSummary())
	if !errors.Is(err, boom) {
		t.Errorf("error: got %v, want boom", err)
	}
	if buf.Len() == 0 {
		t.Error("second sink not delivered after first failed")
	}
}
