package hostcert

import "time"

// Event is one audit record of a lifecycle transition.
type Event struct {
	Hostname string
	State    State    // pending (submitted), fetched or dropped
	SANList  []string // names on the request; empty for fetch/drop events
	At       time.Time
}

// Recorder stores lifecycle events for auditing. The cache directory stays
// the sole source of lifecycle state; recorders are write-only history.
type Recorder interface {
	AddEvent(event Event) error
}
