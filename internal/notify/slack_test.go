package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
)

func newTestSlack(url string, retries uint64) *Slack {
	s := NewSlack(SlackOptions{WebhookURL: url, MaxRetries: retries}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func TestSlack_SendSuccess(t *testing.T) {
	t.Parallel()

	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if !newTestSlack(srv.URL, 0).Send(context.Background(), "hello") {
		t.Fatal("expected delivery to succeed")
	}
	if got["text"] != "hello" {
		t.Fatalf("expected text payload, got %v", got)
	}
}

func TestSlack_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	if !newTestSlack(srv.URL, 2).Send(context.Background(), "retry me") {
		t.Fatal("expected delivery after retries")
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestSlack_ClientErrorIsPermanent(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer srv.Close()

	err := newTestSlack(srv.URL, 3).Post(context.Background(), "x")
	if !errors.Is(err, ErrDeliveryFailed) {
		t.Fatalf("expected ErrDeliveryFailed, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt for 4xx, got %d", calls)
	}
}

func TestSlack_GivesUpAfterMaxRetries(t *testing.T) {
	t.Parallel()

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if newTestSlack(srv.URL, 1).Send(context.Background(), "x") {
		t.Fatal("expected delivery to fail")
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
}

func TestSlack_DisabledWithoutURL(t *testing.T) {
	t.Parallel()

	s := newTestSlack("", 0)
	if s.Enabled() {
		t.Fatal("expected notifier to be disabled")
	}
	if s.Send(context.Background(), "x") {
		t.Fatal("expected send to report failure when disabled")
	}
}
