// Package workbench defines the typed event contract shared by the desktop
// client's UI surfaces and background workflows. Every notification flowing
// through the dispatch layer is a value of a concrete event type; the kind of
// an event determines its payload shape statically, so subscribers never have
// to know the right shape by convention.
package workbench

import "time"

// Kind identifies the category of an event flowing through the dispatch layer.
type Kind string

const (
	// KindLoading toggles a global loading indicator.
	KindLoading Kind = "loading"

	// KindDialog presents a modal confirmation or informational dialog.
	KindDialog Kind = "dialog"

	// KindTip shows a transient, auto-dismissing notification.
	KindTip Kind = "tip"

	// KindCloseTab asks the shell to close a connection tab.
	KindCloseTab Kind = "close_tab"

	// KindNewConnection asks the shell to open a tab for a connection.
	KindNewConnection Kind = "new_connection"

	// KindSettingUpdate signals that persisted settings changed and
	// subscribers should re-read them.
	KindSettingUpdate Kind = "setting_update"

	// KindConnectionImported signals that connection profiles were imported.
	KindConnectionImported Kind = "connection_imported"

	// KindSnapshotState reports progress of a running snapshot task.
	KindSnapshotState Kind = "snapshot_state"

	// KindSnapshotCreate asks the shell to start a new snapshot task.
	KindSnapshotCreate Kind = "snapshot_create"

	// KindConfirmExit asks the main window to run its exit confirmation.
	KindConfirmExit Kind = "confirm_exit"

	// KindEditKeyMonitor opens the monitor editor for a key.
	KindEditKeyMonitor Kind = "edit_key_monitor"

	// KindKeyMonitorConfigChange signals that a key monitor was added,
	// changed, or removed.
	KindKeyMonitorConfigChange Kind = "key_monitor_config_change"

	// KindKeyMonitorEvent carries an observed key change from the monitor
	// subsystem. The payload is transported unchanged; this core does not
	// interpret it.
	KindKeyMonitorEvent Kind = "key_monitor_event"

	// KindSetSettingAnchor scrolls the settings view to a named section.
	KindSetSettingAnchor Kind = "set_setting_anchor"
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	return string(k)
}

// Event is the interface satisfied by every payload type in the contract.
// Events are published by reference: all handlers of one publish observe the
// same value, and mutations made by one handler are visible to the next.
type Event interface {
	// EventKind returns the kind this payload belongs to.
	EventKind() Kind
}

// Loading toggles the shell's global loading indicator. At most one indicator
// is logically active at a time; a publisher that sets Active must publish a
// matching Active=false before its flow terminates.
type Loading struct {
	Active bool   `json:"active"`
	Text   string `json:"text,omitempty"`
}

// EventKind implements Event.
func (*Loading) EventKind() Kind { return KindLoading }

// CloseTab asks the shell to close the connection tab with the given name.
type CloseTab struct {
	Name string `json:"name"`
}

// EventKind implements Event.
func (*CloseTab) EventKind() Kind { return KindCloseTab }

// NewConnection asks the shell to open a tab for the named connection.
type NewConnection struct {
	Name string `json:"name"`
}

// EventKind implements Event.
func (*NewConnection) EventKind() Kind { return KindNewConnection }

// SettingUpdate signals that persisted settings changed.
type SettingUpdate struct{}

// EventKind implements Event.
func (*SettingUpdate) EventKind() Kind { return KindSettingUpdate }

// ConnectionImported signals that connection profiles were imported.
type ConnectionImported struct {
	Count int `json:"count"`
}

// EventKind implements Event.
func (*ConnectionImported) EventKind() Kind { return KindConnectionImported }

// SnapshotState reports the state of a snapshot task.
type SnapshotState struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// EventKind implements Event.
func (*SnapshotState) EventKind() Kind { return KindSnapshotState }

// SnapshotCreate asks the shell to start a snapshot task.
type SnapshotCreate struct {
	Name string `json:"name"`
}

// EventKind implements Event.
func (*SnapshotCreate) EventKind() Kind { return KindSnapshotCreate }

// ConfirmExit asks the main window to run its exit confirmation flow.
type ConfirmExit struct{}

// EventKind implements Event.
func (*ConfirmExit) EventKind() Kind { return KindConfirmExit }

// EditKeyMonitor opens the monitor editor for the given key.
type EditKeyMonitor struct {
	Session string `json:"session"`
	Key     string `json:"key"`
}

// EventKind implements Event.
func (*EditKeyMonitor) EventKind() Kind { return KindEditKeyMonitor }

// KeyMonitorConfigChange signals that the monitor configuration for a key
// was added, changed, or removed.
type KeyMonitorConfigChange struct {
	Session string `json:"session"`
	Key     string `json:"key"`
	Removed bool   `json:"removed,omitempty"`
}

// EventKind implements Event.
func (*KeyMonitorConfigChange) EventKind() Kind { return KindKeyMonitorConfigChange }

// SetSettingAnchor scrolls the settings view to the named section.
type SetSettingAnchor struct {
	Anchor string `json:"anchor"`
}

// EventKind implements Event.
func (*SetSettingAnchor) EventKind() Kind { return KindSetSettingAnchor }

// KeyEventType classifies an observed key change.
type KeyEventType string

const (
	KeyEventRemove      KeyEventType = "Remove"
	KeyEventCreate      KeyEventType = "Create"
	KeyEventLeaseChange KeyEventType = "LeaseChange"
	KeyEventValueChange KeyEventType = "ValueChange"
)

// KeyMonitorEvent is an observed key change produced by the monitor
// subsystem. The dispatch layer transports it unchanged.
type KeyMonitorEvent struct {
	ID            int64        `json:"id,omitempty"`
	Session       string       `json:"session"`
	Key           string       `json:"key"`
	EventType     KeyEventType `json:"eventType"`
	EventTime     time.Time    `json:"eventTime"`
	PrevValue     string       `json:"prevValue,omitempty"`
	CurValue      string       `json:"curValue,omitempty"`
	PrevFormatted string       `json:"prevFormatted,omitempty"`
	CurFormatted  string       `json:"curFormatted,omitempty"`
	Read          bool         `json:"read,omitempty"`
}

// EventKind implements Event.
func (*KeyMonitorEvent) EventKind() Kind { return KindKeyMonitorEvent }
