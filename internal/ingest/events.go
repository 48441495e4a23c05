package ingest

import "time"

// Event is a typed notification emitted by the scheduler. Observers are
// registered with Subscribe and invoked synchronously on the cycle
// goroutine; they must not block.
type Event interface {
	isEvent()
}

// EventCycleSucceeded is emitted after an ingestion cycle commits.
type EventCycleSucceeded struct {
	Items    int
	Duration time.Duration
}

// EventCycleFailed is emitted when a cycle fails after exhausting fetch
// retries.
type EventCycleFailed struct {
	Err                 string
	ConsecutiveFailures int
	Duration            time.Duration
}

// EventFailureAlert is emitted in addition to EventCycleFailed once the
// consecutive failure count reaches the alert threshold.
type EventFailureAlert struct {
	ConsecutiveFailures int
}

// EventConfigApplied is emitted when a new scheduler configuration is
// applied.
type EventConfigApplied struct {
	Config Config
}

func (EventCycleSucceeded) isEvent() {}
func (EventCycleFailed) isEvent()    {}
func (EventFailureAlert) isEvent()   {}
func (EventConfigApplied) isEvent()  {}
