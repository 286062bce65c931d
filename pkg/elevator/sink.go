package elevator

import (
	"context"
	"time"
)

// EventType represents the category of an elevator event.
type EventType string

const (
	EventRequested      EventType = "Requested"
	EventFloorPassed    EventType = "FloorPassed"
	EventFloorStopped   EventType = "FloorStopped"
	EventEpisodeStarted EventType = "EpisodeStarted"
	EventEpisodeEnded   EventType = "EpisodeEnded"
	EventOverweight     EventType = "Overweight"
	EventSensorOverride EventType = "SensorOverride"
)

// Event carries the state change information.
type Event struct {
	Type      EventType
	Payload   interface{}
	Timestamp time.Time
}

// Observer receives floor notifications from the traversal loop.
// Calls are made synchronously from the loop goroutine, outside the state lock.
type Observer interface {
	FloorPassed(floor int)
	FloorStopped(floor int)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnPassed  func(floor int)
	OnStopped func(floor int)
}

func (o ObserverFuncs) FloorPassed(floor int) {
	if o.OnPassed != nil {
		o.OnPassed(floor)
	}
}

func (o ObserverFuncs) FloorStopped(floor int) {
	if o.OnStopped != nil {
		o.OnStopped(floor)
	}
}

// Journal is the append-only text log of controller activity.
// Record must not block and must not fail the caller.
type Journal interface {
	Record(message string)
}

type nopJournal struct{}

func (nopJournal) Record(string) {}

// Clock supplies time and the travel/dwell suspension points.
type Clock interface {
	Now() time.Time
	// Sleep suspends for d or until ctx is done, returning ctx.Err() in that case.
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is a Clock backed by the runtime timers.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
