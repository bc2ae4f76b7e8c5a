package workbench

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Envelope is the wire framing for an event crossing a process boundary:
// kind plus payload, with an ID and timestamp for diagnostics. There is no
// schema versioning; each kind has one fixed payload shape.
type Envelope struct {
	ID      string          `json:"id"`
	Kind    Kind            `json:"kind"`
	Time    time.Time       `json:"time"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// payloadFactories maps each kind to a constructor for its payload type.
// Dialog and tip requests are included so they can be journaled and streamed,
// even though their callbacks do not survive the trip.
var payloadFactories = map[Kind]func() Event{
	KindLoading:                func() Event { return new(Loading) },
	KindDialog:                 func() Event { return new(DialogRequest) },
	KindTip:                    func() Event { return new(TipRequest) },
	KindCloseTab:               func() Event { return new(CloseTab) },
	KindNewConnection:          func() Event { return new(NewConnection) },
	KindSettingUpdate:          func() Event { return new(SettingUpdate) },
	KindConnectionImported:     func() Event { return new(ConnectionImported) },
	KindSnapshotState:          func() Event { return new(SnapshotState) },
	KindSnapshotCreate:         func() Event { return new(SnapshotCreate) },
	KindConfirmExit:            func() Event { return new(ConfirmExit) },
	KindEditKeyMonitor:         func() Event { return new(EditKeyMonitor) },
	KindKeyMonitorConfigChange: func() Event { return new(KeyMonitorConfigChange) },
	KindKeyMonitorEvent:        func() Event { return new(KeyMonitorEvent) },
	KindSetSettingAnchor:       func() Event { return new(SetSettingAnchor) },
}

// Wrap packages an event into an Envelope with a fresh ID and the current
// time.
func Wrap(e Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", e.EventKind(), err)
	}
	return Envelope{
		ID:      uuid.New().String(),
		Kind:    e.EventKind(),
		Time:    time.Now(),
		Payload: payload,
	}, nil
}

// Encode serializes an event as a JSON envelope.
func Encode(e Event) ([]byte, error) {
	env, err := Wrap(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Unwrap reconstructs the typed payload carried by an envelope.
func Unwrap(env Envelope) (Event, error) {
	factory, ok := payloadFactories[env.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", env.Kind)
	}
	e := factory()
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, e); err != nil {
			return nil, fmt.Errorf("unmarshal %s payload: %w", env.Kind, err)
		}
	}
	return e, nil
}

// Decode parses a JSON envelope and reconstructs its typed payload.
func Decode(data []byte) (Event, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}
	return Unwrap(env)
}
