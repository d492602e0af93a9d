package ingest

import "time"

type EventKind string

const (
	EventCreated  EventKind = "created"
	EventModified EventKind = "modified"
)

// Event is a filesystem notification about a candidate PDF.
type Event struct {
	Path string
	Kind EventKind
	At   time.Time
}
