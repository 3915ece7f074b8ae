package validator

import (
	"errors"

	"flag-events/internal/event"
	"github.com/google/uuid"
)

// ContextValidator rejects events whose context cannot participate in batch
// boundary decisions. The relay applies it at the API edge so a malformed
// event never reaches the accumulator.
type ContextValidator struct{}

func (v *ContextValidator) Validate(ev event.UserEvent) error {
	ctx := ev.EventContext()
	if ctx.ProjectID == "" {
		return errors.New("missing project id")
	}
	if ctx.Revision == "" {
		return errors.New("missing revision")
	}

	// Constructors assign the id; anything else is suspect.
	if _, err := uuid.Parse(ev.EventID()); err != nil {
		return errors.New("invalid event id")
	}

	return nil
}
