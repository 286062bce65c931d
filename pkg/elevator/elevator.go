// Package elevator implements the control logic of a single elevator car.
// 이 패키지는 단일 엘리베이터 카의 제어 로직(요청 큐, 방향 결정, 층별 이동)을 구현합니다.
// All state changes are guarded by one mutex; the traversal loop runs in Run.
package elevator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// Config holds immutable configuration parameters.
// Config는 시스템 시작 시 설정되며, 런타임 중에 변경되지 않습니다.
type Config struct {
	ID           string
	TravelTime   time.Duration // 한 층 이동 시간
	DwellTime    time.Duration // 정지 후 문 열림 유지 시간 (과적 대기 시간 포함)
	InitialFloor int           // 초기 층
	MinFloor     int           // 최저 층, MinFloor == MaxFloor이면 범위 검사 없음
	MaxFloor     int           // 최고 층
	EventBuffer  int           // 이벤트 채널 버퍼 크기
}

// DefaultConfig returns the stock timings: 3s between floors, 1s dwell, start at floor 1.
func DefaultConfig() Config {
	return Config{
		TravelTime:   3 * time.Second,
		DwellTime:    time.Second,
		InitialFloor: 1,
		EventBuffer:  1000,
	}
}

// Option customizes the collaborators of a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

// WithJournal sets the sink for the textual activity log.
func WithJournal(j Journal) Option {
	return func(c *Controller) { c.journal = j }
}

// WithObserver subscribes o before the controller starts.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observers = append(c.observers, o) }
}

// WithLogger sets the structured diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// OverweightObserver is implemented by observers that also want stall notices.
type OverweightObserver interface {
	Overweight(floor int)
}

// SensorReport is the payload of a sensor override event.
type SensorReport struct {
	IsMoving   bool      `json:"isMoving"`
	Floor      int       `json:"floor"`
	Direction  Direction `json:"direction"`
	Overweight bool      `json:"overweight"`
}

// Controller is the core state machine of the car.
// Controller의 모든 상태 변경은 Mutex로 보호되며, 변경 사항은 Observer와 Event 채널로 전파됩니다.
type Controller struct {
	mu     sync.RWMutex
	Config Config

	// --- State (가변 상태) ---
	floor      int
	direction  Direction
	isMoving   bool
	overweight bool
	pending    PendingRequests

	// --- Loop Control ---
	wake chan struct{} // 순회 루프 깨우기 신호

	// --- Collaborators ---
	clock     Clock
	journal   Journal
	observers []Observer

	// --- Observability ---
	logger            *slog.Logger
	eventCh           chan Event
	droppedEventCount uint64
}

// New initializes a Controller with strict validation.
// 잘못된 설정이 감지되면 즉시 에러를 반환합니다 (Fail Fast).
func New(config Config, opts ...Option) (*Controller, error) {
	if config.MinFloor > config.MaxFloor {
		return nil, fmt.Errorf("invalid config: MinFloor (%d) > MaxFloor (%d)", config.MinFloor, config.MaxFloor)
	}
	if config.TravelTime < 0 || config.DwellTime < 0 {
		return nil, fmt.Errorf("invalid config: negative interval (travel %s, dwell %s)", config.TravelTime, config.DwellTime)
	}
	if config.MinFloor < config.MaxFloor &&
		(config.InitialFloor < config.MinFloor || config.InitialFloor > config.MaxFloor) {
		return nil, fmt.Errorf("invalid config: InitialFloor %d outside [%d, %d]",
			config.InitialFloor, config.MinFloor, config.MaxFloor)
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = 1000
	}

	c := &Controller{
		Config:    config,
		floor:     config.InitialFloor,
		direction: DirNone,
		wake:      make(chan struct{}, 1),
		clock:     RealClock{},
		journal:   nopJournal{},
		eventCh:   make(chan Event, config.EventBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("id", config.ID)

	c.logger.Info("Elevator controller initialized",
		"init_floor", config.InitialFloor,
		"travel", config.TravelTime,
		"dwell", config.DwellTime,
	)
	return c, nil
}

// Subscribe registers an observer for floor notifications.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Floor returns the current floor safely.
func (c *Controller) Floor() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.floor
}

// Direction returns the current direction safely.
func (c *Controller) Direction() Direction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.direction
}

// IsMoving reports whether an episode is in progress.
func (c *Controller) IsMoving() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isMoving
}

// Overweight reports the overweight flag.
func (c *Controller) Overweight() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overweight
}

// Pending returns the pending floors in request order.
func (c *Controller) Pending() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending.Floors()
}

// Snapshot returns a deep copy of the whole state.
// Snapshot은 전체 상태의 복사본을 안전하게 반환합니다.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()

	live := State{
		Floor:      c.floor,
		Direction:  c.direction,
		IsMoving:   c.isMoving,
		Overweight: c.overweight,
		Pending:    c.pending.order,
	}
	var snap State
	if err := deepcopy.Copy(&snap, &live); err != nil {
		// same type on both sides, cannot fail
		panic(err)
	}
	return snap
}

// DroppedEventCount returns diagnostic metric for channel health.
func (c *Controller) DroppedEventCount() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.droppedEventCount
}

// Events returns the read-only channel for state change notifications.
func (c *Controller) Events() <-chan Event {
	return c.eventCh
}

// publishEvent sends an event to the channel without blocking logic.
// Caller must hold c.mu.
func (c *Controller) publishEvent(eventType EventType, payload interface{}) {
	event := Event{
		Type:      eventType,
		Payload:   payload,
		Timestamp: c.clock.Now(),
	}

	select {
	case c.eventCh <- event:
	default:
		c.droppedEventCount++
		if c.droppedEventCount%100 == 1 {
			c.logger.Error("Event Channel Saturated", "dropped", c.droppedEventCount, "type", eventType)
		}
	}
}

func (c *Controller) record(format string, args ...interface{}) {
	c.journal.Record(fmt.Sprintf(format, args...))
}

// signal wakes the traversal loop; a pending wake-up is enough.
func (c *Controller) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// RequestFloor registers floor as a destination.
// Duplicates and the current floor are ignored silently. The insert and the
// decision to start an episode happen under one lock, so a request racing the
// end of an episode is never lost.
func (c *Controller) RequestFloor(floor int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Config.MinFloor < c.Config.MaxFloor &&
		(floor < c.Config.MinFloor || floor > c.Config.MaxFloor) {
		c.logger.Warn("RequestFloor ignored: floor out of range",
			"floor", floor, "min", c.Config.MinFloor, "max", c.Config.MaxFloor)
		return
	}
	if floor == c.floor || !c.pending.Add(floor) {
		c.logger.Debug("Request ignored", "floor", floor, "current", c.floor)
		return
	}

	c.record("Requested floor: %d", floor)
	c.publishEvent(EventRequested, floor)
	c.logger.Info("Floor requested", "floor", floor, "pending", c.pending.Len())

	if !c.isMoving {
		c.startEpisode()
	}
	c.signal()
}

// ReportSensorState overwrites the position fields with sensor readings.
// Pending requests are kept; the next loop iteration works from the new values.
func (c *Controller) ReportSensorState(isMoving bool, currentFloor int, direction Direction, overweight bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.isMoving = isMoving
	c.floor = currentFloor
	c.direction = direction
	c.overweight = overweight

	c.logger.Debug("Sensor override",
		"moving", isMoving, "floor", currentFloor, "dir", direction, "overweight", overweight)
	c.publishEvent(EventSensorOverride, SensorReport{
		IsMoving:   isMoving,
		Floor:      currentFloor,
		Direction:  direction,
		Overweight: overweight,
	})

	if c.pending.Len() > 0 {
		c.signal()
	}
}

// ReportOverweight sets only the overweight flag from the load sensor.
// Position and direction are left to the traversal loop.
func (c *Controller) ReportOverweight(overweight bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.overweight = overweight
	c.logger.Debug("Load sensor", "overweight", overweight, "floor", c.floor)
	c.publishEvent(EventSensorOverride, SensorReport{
		IsMoving:   c.isMoving,
		Floor:      c.floor,
		Direction:  c.direction,
		Overweight: overweight,
	})

	if c.pending.Len() > 0 {
		c.signal()
	}
}

// startEpisode fixes the travel direction from the oldest request.
// Caller must hold c.mu.
func (c *Controller) startEpisode() {
	c.isMoving = true
	c.direction = selectDirection(c.floor, &c.pending)
	c.record("Elevator started moving %s", c.direction)
	c.publishEvent(EventEpisodeStarted, c.direction)
	c.logger.Info("🧭 Episode started", "dir", c.direction, "floor", c.floor)
}

// finishEpisode returns the car to idle. Caller must hold c.mu.
func (c *Controller) finishEpisode() {
	c.isMoving = false
	c.direction = DirNone
	c.record("Elevator stopped moving")
	c.publishEvent(EventEpisodeEnded, c.floor)
	c.logger.Info("💤 Episode ended", "floor", c.floor)
}

func (c *Controller) hasPending() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pending.Len() > 0
}

// Run executes the traversal loop until ctx is cancelled.
// Run은 요청이 들어올 때마다 순회 에피소드를 실행합니다.
func (c *Controller) Run(ctx context.Context) error {
	c.logger.Info("Elevator Engine Started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Engine Stopping (Context Cancelled)")
			return ctx.Err()
		case <-c.wake:
			if !c.hasPending() {
				continue
			}
			if err := c.traverse(ctx); err != nil {
				c.logger.Info("Engine Stopping mid-episode", "error", err)
				return err
			}
		}
	}
}

type notice struct {
	floor   int
	stopped bool
}

// stepOutcome tells the loop which suspension points follow a step.
type stepOutcome struct {
	notices  []notice
	stall    bool // overweight: dwell, then clear the flag
	stopped  bool // arrived: dwell with doors open
	advanced bool // moved one floor: travel interval follows
	done     bool // pending is empty, episode over
	stallAt  int
}

// traverse runs one episode: step, notify, suspend, until pending empties.
func (c *Controller) traverse(ctx context.Context) error {
	for {
		out := c.step()
		c.notify(out)

		if out.stall {
			if err := c.clock.Sleep(ctx, c.Config.DwellTime); err != nil {
				return err
			}
			c.clearOverweight()
			continue
		}
		if out.stopped {
			if err := c.clock.Sleep(ctx, c.Config.DwellTime); err != nil {
				return err
			}
		}
		if out.done {
			return nil
		}
		if out.advanced {
			if err := c.clock.Sleep(ctx, c.Config.TravelTime); err != nil {
				return err
			}
		}
	}
}

// step performs one logical iteration of the traversal under the lock.
func (c *Controller) step() stepOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out stepOutcome

	if c.pending.Len() == 0 {
		c.finishEpisode()
		out.done = true
		return out
	}

	// [Guard Clause] 과적 상태에서는 이동하지 않고 한 번 대기
	if c.overweight {
		c.record("Max weight reached. Elevator stopped.")
		c.logger.Warn("Overweight: holding car", "floor", c.floor, "pending", c.pending.Len())
		c.isMoving = false
		c.direction = DirNone
		c.publishEvent(EventOverweight, c.floor)
		out.stall = true
		out.stallAt = c.floor
		return out
	}

	// 센서 보정으로 요청 층에 놓인 경우: 이동 없이 도착 처리
	if c.pending.Contains(c.floor) {
		c.arrive(&out)
		return out
	}

	switch {
	case c.direction == DirNone:
		// 과적 해제 또는 센서 보정 이후 방향 재결정
		c.startEpisode()
	case !c.pending.AnyAhead(c.floor, c.direction):
		// 진행 방향에 남은 요청이 없음: 에피소드 종료 후 새로 시작
		c.finishEpisode()
		c.startEpisode()
	}

	c.isMoving = true
	c.floor = step(c.floor, c.direction)
	out.advanced = true
	out.notices = append(out.notices, notice{floor: c.floor})
	c.record("Passed floor: %d", c.floor)
	c.publishEvent(EventFloorPassed, c.floor)
	c.logger.Debug("🚅 Passed floor", "floor", c.floor, "dir", c.direction)

	if c.pending.Contains(c.floor) {
		c.arrive(&out)
	}
	return out
}

// arrive clears the current floor from pending. Caller must hold c.mu.
func (c *Controller) arrive(out *stepOutcome) {
	c.pending.Remove(c.floor)
	out.stopped = true
	out.notices = append(out.notices, notice{floor: c.floor, stopped: true})
	c.record("Stopped at floor: %d", c.floor)
	c.publishEvent(EventFloorStopped, c.floor)
	c.logger.Info("Stopped at floor", "floor", c.floor, "remaining", c.pending.Len())

	if c.pending.Len() == 0 {
		c.finishEpisode()
		out.done = true
	}
}

func (c *Controller) clearOverweight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.overweight = false
}

// notify delivers the notices of one step outside the lock.
func (c *Controller) notify(out stepOutcome) {
	if len(out.notices) == 0 && !out.stall {
		return
	}
	c.mu.RLock()
	observers := make([]Observer, len(c.observers))
	copy(observers, c.observers)
	c.mu.RUnlock()

	for _, o := range observers {
		if out.stall {
			if ow, ok := o.(OverweightObserver); ok {
				c.deliver(func() { ow.Overweight(out.stallAt) })
			}
		}
		for _, n := range out.notices {
			if n.stopped {
				c.deliver(func() { o.FloorStopped(n.floor) })
			} else {
				c.deliver(func() { o.FloorPassed(n.floor) })
			}
		}
	}
}

// deliver isolates the loop from a misbehaving observer.
func (c *Controller) deliver(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Observer panicked", "panic", r)
		}
	}()
	fn()
}
