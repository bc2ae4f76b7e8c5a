package workbench

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TipTimeout is how long a transient notification stays visible before the
// presenter auto-dismisses it. Identical across severities.
const TipTimeout = 4000 * time.Millisecond

// DialogAction is one button on a dialog. Invoking it is expected to set the
// request's Visible field to false as part of resolving the flow; this is a
// cooperative contract between builder and presenter, not enforced here.
type DialogAction struct {
	Label  string `json:"label"`
	Style  string `json:"style,omitempty"`
	Invoke func() `json:"-"`
}

// DialogRequest asks a presenter to show a modal dialog. The request is owned
// by its creator until published; afterwards the presenter owns the display
// lifecycle. Action callbacks and OnDismiss never cross a process boundary,
// so a DialogRequest is only meaningful on the local dispatcher.
type DialogRequest struct {
	ID          string         `json:"id"`
	Visible     bool           `json:"visible"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	Icon        string         `json:"icon,omitempty"`
	IconColor   string         `json:"iconColor,omitempty"`
	MaxWidth    int            `json:"maxWidth,omitempty"`
	CloseButton bool           `json:"closeButton,omitempty"`
	Actions     []DialogAction `json:"actions,omitempty"`

	// OnDismiss runs when the dialog is closed without an explicit action.
	OnDismiss func() `json:"-"`

	dismissOnce sync.Once
}

// NewDialogRequest creates a visible dialog request with a fresh ID.
func NewDialogRequest(title, content string) *DialogRequest {
	return &DialogRequest{
		ID:      uuid.New().String(),
		Visible: true,
		Title:   title,
		Content: content,
	}
}

// EventKind implements Event.
func (*DialogRequest) EventKind() Kind { return KindDialog }

// Dismiss hides the dialog and runs OnDismiss. Presenters call it when the
// user closes the dialog without choosing an action. Safe to call more than
// once; only the first call has an effect.
func (r *DialogRequest) Dismiss() {
	r.dismissOnce.Do(func() {
		r.Visible = false
		if r.OnDismiss != nil {
			r.OnDismiss()
		}
	})
}

// Severity classifies a transient notification.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarn    Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityInfo    Severity = "info"
)

// tipStyles is the fixed icon and style class per severity.
var tipStyles = map[Severity]struct {
	icon  string
	class string
}{
	SeverityError:   {icon: "CircleCloseFilled", class: "tip-error"},
	SeverityWarn:    {icon: "WarningFilled", class: "tip-warn"},
	SeveritySuccess: {icon: "SuccessFilled", class: "tip-success"},
	SeverityInfo:    {icon: "InfoFilled", class: "tip-info"},
}

// TipRequest asks a presenter to show a transient notification. Dismissal
// after Timeout is the presenter's responsibility.
type TipRequest struct {
	ID       string        `json:"id"`
	Visible  bool          `json:"visible"`
	Content  string        `json:"content"`
	Timeout  time.Duration `json:"-"`
	Icon     string        `json:"icon"`
	Class    string        `json:"class"`
	Severity Severity      `json:"severity"`
}

// tipRequestJSON is the wire shape of a TipRequest; the timeout travels as
// milliseconds.
type tipRequestJSON struct {
	ID        string   `json:"id"`
	Visible   bool     `json:"visible"`
	Content   string   `json:"content"`
	TimeoutMs int64    `json:"timeoutMs"`
	Icon      string   `json:"icon"`
	Class     string   `json:"class"`
	Severity  Severity `json:"severity"`
}

// MarshalJSON implements json.Marshaler.
func (r *TipRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(tipRequestJSON{
		ID:        r.ID,
		Visible:   r.Visible,
		Content:   r.Content,
		TimeoutMs: r.Timeout.Milliseconds(),
		Icon:      r.Icon,
		Class:     r.Class,
		Severity:  r.Severity,
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *TipRequest) UnmarshalJSON(data []byte) error {
	var w tipRequestJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ID = w.ID
	r.Visible = w.Visible
	r.Content = w.Content
	r.Timeout = time.Duration(w.TimeoutMs) * time.Millisecond
	r.Icon = w.Icon
	r.Class = w.Class
	r.Severity = w.Severity
	return nil
}

// NewTipRequest creates a visible tip with the fixed icon, style class, and
// timeout for the given severity.
func NewTipRequest(severity Severity, content string) *TipRequest {
	style := tipStyles[severity]
	return &TipRequest{
		ID:       uuid.New().String(),
		Visible:  true,
		Content:  content,
		Timeout:  TipTimeout,
		Icon:     style.icon,
		Class:    style.class,
		Severity: severity,
	}
}

// EventKind implements Event.
func (*TipRequest) EventKind() Kind { return KindTip }
