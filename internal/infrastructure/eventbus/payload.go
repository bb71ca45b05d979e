package eventbus

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aranya-one/toastd/internal/domain/event"
)

// ErrPermanent marks handler errors that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// Permanent wraps err so the bus does not retry it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// PayloadEvent is implemented by events received from Redis, which only carry raw JSON.
type PayloadEvent interface {
	event.DomainEvent
	Payload() json.RawMessage
}

// DecodePayload fills v from the event payload. Events published in-process are
// round-tripped through JSON so handlers see the same shape on both buses.
func DecodePayload(evt event.DomainEvent, v any) error {
	var data []byte
	if pe, ok := evt.(PayloadEvent); ok {
		data = pe.Payload()
	} else {
		var err error
		if data, err = json.Marshal(evt); err != nil {
			return fmt.Errorf("failed to marshal event: %w", err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", evt.EventType(), err)
	}
	return nil
}
