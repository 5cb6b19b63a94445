// Package emitter assigns event identifiers, deduplicates per window and
// fans completed events out to the configured sinks.
package emitter

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/projectsentinel/sentinel-go/internal/detector"
)

// Event is the output envelope written one-per-line to every sink.
type Event struct {
	Timestamp time.Time
	ID        string
	Payload   detector.Payload
}

// timed is implemented by payloads that pin the event timestamp to a
// triggering record instead of the window close.
type timed interface {
	EventTime() time.Time
}

// MarshalJSON renders the envelope with event_name leading the payload
// fields inside event_data.
func (e *Event) MarshalJSON() ([]byte, error) {
	data, err := marshalEventData(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Timestamp string          `json:"timestamp"`
		EventID   string          `json:"event_id"`
		EventData json.RawMessage `json:"event_data"`
	}{
		Timestamp: e.Timestamp.Format(time.RFC3339),
		EventID:   e.ID,
		EventData: data,
	})
}

// marshalEventData splices the event name ahead of the payload's own
// fields so the closed payload variants need no name field of their own.
func marshalEventData(p detector.Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 || raw[0] != '{' {
		return nil, fmt.Errorf("payload %s did not marshal to an object", p.EventName())
	}
	name, err := json.Marshal(p.EventName())
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(raw)+len(name)+16)
	out = append(out, '{')
	out = append(out, `"event_name":`...)
	out = append(out, name...)
	if len(raw) > 2 {
		out = append(out, ',')
		out = append(out, raw[1:]...)
	} else {
		out = append(out, '}')
	}
	return out, nil
}
