package event_test

import (
	"testing"
	"time"

	"flag-events/internal/event"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

func testContext() event.Context {
	return event.Context{
		AccountID:     "acc-1",
		ProjectID:     "proj-1",
		Revision:      "42",
		AnonymizeIP:   true,
		ClientName:    "flag-events",
		ClientVersion: "0.1.0",
	}
}

func TestNewConversionAssignsIdentity(t *testing.T) {
	before := time.Now().UTC()
	ev := event.NewConversion(testContext(), "purchase", "user-9", nil, nil, false)
	after := time.Now().UTC()

	if _, err := uuid.Parse(ev.EventID()); err != nil {
		t.Errorf("expected a uuid event id, got %q", ev.EventID())
	}
	if ev.CreatedAt().Before(before) || ev.CreatedAt().After(after) {
		t.Errorf("timestamp %v outside [%v, %v]", ev.CreatedAt(), before, after)
	}
	if ev.EventContext().ProjectID != "proj-1" {
		t.Errorf("expected project proj-1, got %s", ev.EventContext().ProjectID)
	}
}

func TestNewImpressionAssignsDistinctIDs(t *testing.T) {
	a := event.NewImpression(testContext(), "exp-1", "var-1", "user-1", nil, false)
	b := event.NewImpression(testContext(), "exp-1", "var-1", "user-1", nil, false)
	if a.EventID() == b.EventID() {
		t.Error("expected distinct event ids")
	}
}

// envelope mirrors the wire shape for decoding in assertions.
type envelope struct {
	AccountID   string `json:"account_id"`
	ProjectID   string `json:"project_id"`
	Revision    string `json:"revision"`
	AnonymizeIP bool   `json:"anonymize_ip"`
	Visitors    []struct {
		VisitorID string `json:"visitor_id"`
		Events    []struct {
			UUID         string `json:"uuid"`
			Key          string `json:"key"`
			ExperimentID string `json:"experiment_id"`
			VariationID  string `json:"variation_id"`
			Timestamp    int64  `json:"timestamp"`
		} `json:"events"`
	} `json:"visitors"`
}

func TestFactoryBuildsEnvelopeInOrder(t *testing.T) {
	f := event.NewFactory("https://collector.test/v1/events")

	c := event.NewConversion(testContext(), "purchase", "user-1",
		map[string]interface{}{"plan": "pro"},
		map[string]interface{}{"revenue": 100}, false)
	i := event.NewImpression(testContext(), "exp-7", "var-3", "user-2", nil, false)

	le, err := f.Build([]event.UserEvent{c, i})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if le.URL != "https://collector.test/v1/events" {
		t.Errorf("unexpected url %s", le.URL)
	}
	if le.Method != "POST" {
		t.Errorf("expected POST, got %s", le.Method)
	}
	if le.Headers["Content-Type"] != "application/json" {
		t.Errorf("unexpected content type %q", le.Headers["Content-Type"])
	}
	if le.Count != 2 {
		t.Errorf("expected count 2, got %d", le.Count)
	}

	var env envelope
	if err := json.Unmarshal(le.Body, &env); err != nil {
		t.Fatalf("body does not decode: %v", err)
	}
	if env.ProjectID != "proj-1" || env.Revision != "42" || env.AccountID != "acc-1" {
		t.Errorf("envelope context wrong: %+v", env)
	}
	if !env.AnonymizeIP {
		t.Error("expected anonymize_ip true")
	}
	if len(env.Visitors) != 2 {
		t.Fatalf("expected 2 visitors, got %d", len(env.Visitors))
	}
	if env.Visitors[0].VisitorID != "user-1" || env.Visitors[1].VisitorID != "user-2" {
		t.Errorf("visitor order wrong: %+v", env.Visitors)
	}
	if env.Visitors[0].Events[0].Key != "purchase" {
		t.Errorf("expected conversion key, got %+v", env.Visitors[0].Events[0])
	}
	if env.Visitors[1].Events[0].ExperimentID != "exp-7" || env.Visitors[1].Events[0].VariationID != "var-3" {
		t.Errorf("expected impression ids, got %+v", env.Visitors[1].Events[0])
	}
	if env.Visitors[0].Events[0].UUID != c.EventID() {
		t.Errorf("expected uuid %s, got %s", c.EventID(), env.Visitors[0].Events[0].UUID)
	}
	if env.Visitors[0].Events[0].Timestamp != c.CreatedAt().UnixMilli() {
		t.Errorf("timestamp mismatch: %d vs %d",
			env.Visitors[0].Events[0].Timestamp, c.CreatedAt().UnixMilli())
	}
}

func TestFactoryRejectsEmptyBatch(t *testing.T) {
	f := event.NewFactory("")
	if _, err := f.Build(nil); err == nil {
		t.Error("expected error for empty batch")
	}
}

func TestFactoryDefaultsEndpoint(t *testing.T) {
	f := event.NewFactory("")
	le, err := f.Build([]event.UserEvent{
		event.NewConversion(testContext(), "k", "u", nil, nil, false),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if le.URL != event.DefaultEndpoint {
		t.Errorf("expected default endpoint, got %s", le.URL)
	}
}
