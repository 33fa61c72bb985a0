package entity

import "time"

// Status is the lifecycle of a store: Idle until the first fetch starts,
// Loading while it runs, then Ready or Failed.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is a point-in-time copy of a store's lifecycle fields.
type State struct {
	Status      Status
	FetchedOnce bool
	Loading     bool
	LastError   error
	UpdatedAt   time.Time
}
