// Package event carries readiness and capture notifications from the
// pipeline to observers such as the tray, the web UI and plugins.
package event

import "time"

// Kind identifies what happened.
type Kind string

// Event kinds.
const (
	Armed            Kind = "armed"
	Disarmed         Kind = "disarmed"
	Detected         Kind = "detected"
	EstimationFailed Kind = "estimation_failed"
	Saved            Kind = "saved"
	SaveFailed       Kind = "save_failed"
)

var labels = map[Kind]string{
	Armed:            "Ready",
	Disarmed:         "Not ready",
	Detected:         "Not ready",
	EstimationFailed: "Failed processing",
	Saved:            "Saved. Not ready.",
	SaveFailed:       "Save failed",
}

// Kinds returns every known kind in a stable order.
func Kinds() []Kind {
	return []Kind{Armed, Disarmed, Detected, EstimationFailed, Saved, SaveFailed}
}

// Label returns the human readable status text for k.
func (k Kind) Label() string {
	if l, ok := labels[k]; ok {
		return l
	}
	return string(k)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := labels[k]
	return ok
}

// Event is a single notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	Label    string    `json:"label"`
	Time     time.Time `json:"time"`
	Error    string    `json:"error,omitempty"`
	IntentID string    `json:"intent_id,omitempty"`
	PhotoID  string    `json:"photo_id,omitempty"`
	Path     string    `json:"path,omitempty"`
}

// New returns an Event of kind k stamped with the current time.
func New(k Kind) Event {
	return Event{Kind: k, Label: k.Label(), Time: time.Now()}
}

// WithError returns a copy of e carrying err's message.
func (e Event) WithError(err error) Event {
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// Publisher accepts events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(e Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(Event)

// Publish calls f(e).
func (f PublisherFunc) Publish(e Event) { f(e) }

// Discard is a Publisher that drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})
