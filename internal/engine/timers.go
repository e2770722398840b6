package engine

import (
	"sync"
	"time"
)

// TimerKind distinguishes the countdowns an order can have.
type TimerKind string

// List of timer kinds
const (
	KindAutoCancel  TimerKind = "auto_cancel"
	KindPreparation TimerKind = "preparation"
)

// TimerKey identifies a timer. At most one timer exists per key.
type TimerKey struct {
	OrderID string
	Kind    TimerKind
}

// ExpireFunc is invoked once per timer when its remaining time reaches zero.
type ExpireFunc func(key TimerKey)

type timer struct {
	key       TimerKey
	deadline  time.Time
	remaining time.Duration
	ticker    Ticker
	done      chan struct{}
}

// Orchestrator owns the timers of one engine.
//
// Ticks of every timer are forwarded to a single channel read by the engine loop,
// which is the only caller of Start, Stop, Reschedule and Tick. Remaining time is
// always recomputed from the absolute deadline.
//
// An expired timer leaves a tombstone so the same key is not started again while
// the order keeps its eligibility; Stop clears it.
type Orchestrator struct {
	clock    Clock
	interval time.Duration
	ticks    chan<- TimerKey
	onExpire ExpireFunc

	mu      sync.RWMutex
	timers  map[TimerKey]*timer
	expired map[TimerKey]time.Time
}

// NewOrchestrator creates an empty timer registry.
func NewOrchestrator(clock Clock, interval time.Duration, ticks chan<- TimerKey, onExpire ExpireFunc) *Orchestrator {
	if clock == nil {
		clock = RealClock{}
	}
	if interval <= 0 {
		interval = time.Second
	}
	if onExpire == nil {
		onExpire = func(TimerKey) {}
	}
	return &Orchestrator{
		clock:    clock,
		interval: interval,
		ticks:    ticks,
		onExpire: onExpire,
		timers:   make(map[TimerKey]*timer),
		expired:  make(map[TimerKey]time.Time),
	}
}

// Start creates a timer counting down to deadline. It is a no-op when the key is
// already running or has expired. A deadline in the past expires immediately.
func (o *Orchestrator) Start(key TimerKey, deadline time.Time) bool {
	o.mu.Lock()
	if _, ok := o.timers[key]; ok {
		o.mu.Unlock()
		return false
	}
	if _, ok := o.expired[key]; ok {
		o.mu.Unlock()
		return false
	}

	left := remainingUntil(deadline, o.clock.Now())
	if left == 0 {
		o.expired[key] = deadline
		o.mu.Unlock()
		o.onExpire(key)
		return true
	}

	t := &timer{
		key:       key,
		deadline:  deadline,
		remaining: left,
		ticker:    o.clock.NewTicker(o.interval),
		done:      make(chan struct{}),
	}
	o.timers[key] = t
	o.mu.Unlock()

	go o.forward(t)
	return true
}

// Reschedule moves the deadline of a running timer without restarting it.
func (o *Orchestrator) Reschedule(key TimerKey, deadline time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	t, ok := o.timers[key]
	if !ok || t.deadline.Equal(deadline) {
		return false
	}
	t.deadline = deadline
	t.remaining = remainingUntil(deadline, o.clock.Now())
	return true
}

// Tick recomputes the remaining time of key. When it reaches zero the timer is
// destroyed and the expire callback runs. Ticks for unknown keys are dropped.
func (o *Orchestrator) Tick(key TimerKey) {
	o.mu.Lock()
	t, ok := o.timers[key]
	if !ok {
		o.mu.Unlock()
		return
	}
	t.remaining = remainingUntil(t.deadline, o.clock.Now())
	if t.remaining > 0 {
		o.mu.Unlock()
		return
	}
	o.stopLocked(t)
	o.expired[key] = t.deadline
	o.mu.Unlock()

	o.onExpire(key)
}

// Stop destroys the timer or tombstone of key. It reports whether anything was removed.
func (o *Orchestrator) Stop(key TimerKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if t, ok := o.timers[key]; ok {
		o.stopLocked(t)
		return true
	}
	if _, ok := o.expired[key]; ok {
		delete(o.expired, key)
		return true
	}
	return false
}

// StopAll destroys every timer and tombstone.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.timers {
		o.stopLocked(t)
	}
	o.expired = make(map[TimerKey]time.Time)
}

// Remaining returns the remaining time of key as of its last tick.
// Expired keys report zero.
func (o *Orchestrator) Remaining(key TimerKey) (time.Duration, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if t, ok := o.timers[key]; ok {
		return t.remaining, true
	}
	if _, ok := o.expired[key]; ok {
		return 0, true
	}
	return 0, false
}

// Deadline returns the absolute deadline of a running or expired key.
func (o *Orchestrator) Deadline(key TimerKey) (time.Time, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if t, ok := o.timers[key]; ok {
		return t.deadline, true
	}
	dl, ok := o.expired[key]
	return dl, ok
}

// Expired reports whether key has run out and not been stopped since.
func (o *Orchestrator) Expired(key TimerKey) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, ok := o.expired[key]
	return ok
}

// Len returns the number of running timers.
func (o *Orchestrator) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.timers)
}

// Keys returns the keys of running timers and tombstones.
func (o *Orchestrator) Keys() []TimerKey {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]TimerKey, 0, len(o.timers)+len(o.expired))
	for k := range o.timers {
		out = append(out, k)
	}
	for k := range o.expired {
		out = append(out, k)
	}
	return out
}

func (o *Orchestrator) stopLocked(t *timer) {
	t.ticker.Stop()
	close(t.done)
	delete(o.timers, t.key)
}

func (o *Orchestrator) forward(t *timer) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.C():
			select {
			case o.ticks <- t.key:
			case <-t.done:
				return
			}
		}
	}
}

func remainingUntil(deadline, now time.Time) time.Duration {
	if d := deadline.Sub(now); d > 0 {
		return d
	}
	return 0
}
