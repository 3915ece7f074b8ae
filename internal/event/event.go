package event

import (
	"time"

	"github.com/google/uuid"
)

// Context identifies the configuration snapshot an event was produced under.
// ProjectID and Revision are the batch boundary key: a finalized batch never
// mixes two values of either. The remaining fields are process-wide constants
// carried along for the wire envelope.
type Context struct {
	AccountID     string
	ProjectID     string
	Revision      string
	AnonymizeIP   bool
	ClientName    string
	ClientVersion string
}

// UserEvent is a record produced by the evaluation engine and destined for
// the analytics collector. There are two concrete variants, Conversion and
// Impression. Values are immutable once constructed: the id and timestamp
// are assigned by the constructor and never change.
type UserEvent interface {
	EventID() string
	CreatedAt() time.Time
	EventContext() Context
}

type base struct {
	id        string
	timestamp time.Time
	context   Context
}

func newBase(ctx Context) base {
	return base{
		id:        uuid.New().String(),
		timestamp: time.Now().UTC(),
		context:   ctx,
	}
}

func (b base) EventID() string       { return b.id }
func (b base) CreatedAt() time.Time  { return b.timestamp }
func (b base) EventContext() Context { return b.context }

// Conversion records that a user triggered a named metric event.
type Conversion struct {
	base
	Key          string
	UserID       string
	Attributes   map[string]interface{}
	Tags         map[string]interface{}
	BotFiltering bool
}

func NewConversion(ctx Context, key, userID string, attributes, tags map[string]interface{}, botFiltering bool) Conversion {
	return Conversion{
		base:         newBase(ctx),
		Key:          key,
		UserID:       userID,
		Attributes:   attributes,
		Tags:         tags,
		BotFiltering: botFiltering,
	}
}

// Impression records which experiment variation a user was bucketed into.
type Impression struct {
	base
	ExperimentID string
	VariationID  string
	UserID       string
	Attributes   map[string]interface{}
	BotFiltering bool
}

func NewImpression(ctx Context, experimentID, variationID, userID string, attributes map[string]interface{}, botFiltering bool) Impression {
	return Impression{
		base:         newBase(ctx),
		ExperimentID: experimentID,
		VariationID:  variationID,
		UserID:       userID,
		Attributes:   attributes,
		BotFiltering: botFiltering,
	}
}
