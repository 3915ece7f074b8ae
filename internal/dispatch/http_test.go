package dispatch_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"flag-events/internal/dispatch"
	"flag-events/internal/event"
)

func TestDispatchPostsBatch(t *testing.T) {
	var gotBody []byte
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := dispatch.NewHTTPDispatcher(time.Second)
	le := event.LogEvent{
		URL:     srv.URL,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    []byte(`{"visitors":[]}`),
		Count:   0,
	}

	if err := d.Dispatch(context.Background(), le); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(gotBody) != `{"visitors":[]}` {
		t.Errorf("unexpected body: %s", gotBody)
	}
	if gotType != "application/json" {
		t.Errorf("unexpected content type: %s", gotType)
	}
}

func TestDispatchReportsCollectorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := dispatch.NewHTTPDispatcher(time.Second)
	le := event.LogEvent{URL: srv.URL, Method: http.MethodPost, Body: []byte(`{}`)}

	if err := d.Dispatch(context.Background(), le); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestDispatchReportsNetworkError(t *testing.T) {
	d := dispatch.NewHTTPDispatcher(200 * time.Millisecond)
	le := event.LogEvent{
		URL:    "http://127.0.0.1:1/v1/events", // nothing listens here
		Method: http.MethodPost,
		Body:   []byte(`{}`),
	}

	if err := d.Dispatch(context.Background(), le); err == nil {
		t.Error("expected network error")
	}
}
