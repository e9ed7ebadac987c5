// Package webext implements the browser-extension transport of
// spec.md §4.10/§6: a length-prefixed JSON protocol over a Unix domain
// socket, one connection per browser instance, translated into
// engine.Event values.
package webext

import "time"

// Kind discriminates the payload shapes a browser's native-messaging
// host can send (spec.md §6).
type Kind string

const (
	KindCreated   Kind = "Created"
	KindRemoved   Kind = "Removed"
	KindUpdated   Kind = "Updated"
	KindActivated Kind = "Activated"
)

// Payload is the tagged-union wire shape of one browser-tab event. URL
// is absent for Removed/Activated messages.
type Payload struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Tab       int32     `json:"tab"`
	URL       *string   `json:"url,omitempty"`
}
