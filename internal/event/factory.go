package event

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// DefaultEndpoint is where batches are delivered unless configured otherwise.
const DefaultEndpoint = "https://logx.example.com/v1/events"

// LogEvent is a dispatch-ready snapshot of one batch: the full wire payload
// plus enough metadata to deliver it. Built once at flush time and never
// mutated afterward.
type LogEvent struct {
	URL     string
	Method  string
	Headers map[string]string
	Body    []byte
	Count   int
}

type batchEnvelope struct {
	AccountID     string    `json:"account_id"`
	ProjectID     string    `json:"project_id"`
	Revision      string    `json:"revision"`
	AnonymizeIP   bool      `json:"anonymize_ip"`
	ClientName    string    `json:"client_name"`
	ClientVersion string    `json:"client_version"`
	Visitors      []visitor `json:"visitors"`
}

type visitor struct {
	VisitorID    string                 `json:"visitor_id"`
	Attributes   map[string]interface{} `json:"attributes,omitempty"`
	BotFiltering bool                   `json:"bot_filtering,omitempty"`
	Events       []wireEvent            `json:"events"`
}

type wireEvent struct {
	UUID         string                 `json:"uuid"`
	Timestamp    int64                  `json:"timestamp"`
	Key          string                 `json:"key,omitempty"`
	ExperimentID string                 `json:"experiment_id,omitempty"`
	VariationID  string                 `json:"variation_id,omitempty"`
	Tags         map[string]interface{} `json:"tags,omitempty"`
}

// Factory builds the wire payload for a finalized batch. The processor
// treats the result as opaque.
type Factory struct {
	endpoint string
}

func NewFactory(endpoint string) *Factory {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Factory{endpoint: endpoint}
}

// Build turns an ordered batch into a LogEvent. Every event in the batch
// shares one project id and revision, so the first event's context tags the
// envelope. Visitor order follows event arrival order.
func (f *Factory) Build(events []UserEvent) (LogEvent, error) {
	if len(events) == 0 {
		return LogEvent{}, fmt.Errorf("empty batch")
	}

	ctx := events[0].EventContext()
	envelope := batchEnvelope{
		AccountID:     ctx.AccountID,
		ProjectID:     ctx.ProjectID,
		Revision:      ctx.Revision,
		AnonymizeIP:   ctx.AnonymizeIP,
		ClientName:    ctx.ClientName,
		ClientVersion: ctx.ClientVersion,
		Visitors:      make([]visitor, 0, len(events)),
	}

	for _, ev := range events {
		switch e := ev.(type) {
		case Conversion:
			envelope.Visitors = append(envelope.Visitors, visitor{
				VisitorID:    e.UserID,
				Attributes:   e.Attributes,
				BotFiltering: e.BotFiltering,
				Events: []wireEvent{{
					UUID:      e.EventID(),
					Timestamp: e.CreatedAt().UnixMilli(),
					Key:       e.Key,
					Tags:      e.Tags,
				}},
			})
		case Impression:
			envelope.Visitors = append(envelope.Visitors, visitor{
				VisitorID:    e.UserID,
				Attributes:   e.Attributes,
				BotFiltering: e.BotFiltering,
				Events: []wireEvent{{
					UUID:         e.EventID(),
					Timestamp:    e.CreatedAt().UnixMilli(),
					ExperimentID: e.ExperimentID,
					VariationID:  e.VariationID,
				}},
			})
		default:
			return LogEvent{}, fmt.Errorf("unknown event variant %T", ev)
		}
	}

	body, err := json.Marshal(envelope)
	if err != nil {
		return LogEvent{}, fmt.Errorf("encode batch: %w", err)
	}

	return LogEvent{
		URL:     f.endpoint,
		Method:  http.MethodPost,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
		Count:   len(events),
	}, nil
}
