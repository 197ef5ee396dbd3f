package webhook

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bizhealth/bizhealth/pkg/facts"
)

// Event types carried in the X-Bizhealth-Event header.
const (
	EventPing     = "ping"
	EventSnapshot = "snapshot"
)

// PingEvent is sent when a sender is first configured.
type PingEvent struct {
	Source string `json:"source"`
}

// SnapshotEvent delivers one facts snapshot to score.
type SnapshotEvent struct {
	Source   string          `json:"source,omitempty"`
	Snapshot *facts.Snapshot `json:"snapshot"`
}

// ErrUnsupportedEvent is returned by ParseEvent for unknown event types.
var ErrUnsupportedEvent = errors.New("unsupported event type")

// ParseEvent parses a webhook payload based on the event type.
func ParseEvent(eventType string, payload []byte) (any, error) {
	switch eventType {
	case EventPing:
		var e PingEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse ping event: %w", err)
		}
		return &e, nil
	case EventSnapshot:
		var e SnapshotEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("parse snapshot event: %w", err)
		}
		if e.Snapshot == nil {
			return nil, errors.New("parse snapshot event: missing snapshot")
		}
		return &e, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedEvent, eventType)
	}
}
