package engine

import (
	"time"

	"restaurant-orders/internal/domain"
)

// ReconcileResult counts the registry changes made by one reconciliation pass.
type ReconcileResult struct {
	Started     int
	Stopped     int
	Rescheduled int
}

// Changed reports whether the pass touched the registry.
func (r ReconcileResult) Changed() bool {
	return r.Started+r.Stopped+r.Rescheduled > 0
}

// desiredTimers returns the deadline of every timer the snapshot makes eligible.
func desiredTimers(orders []domain.Order, grace time.Duration) map[TimerKey]time.Time {
	out := make(map[TimerKey]time.Time, len(orders))
	for _, o := range orders {
		if o.AwaitsAutoCancel() {
			out[TimerKey{OrderID: o.ID, Kind: KindAutoCancel}] = o.AutoCancelDeadline(grace)
		}
		if dl, ok := o.PreparationDeadline(); ok {
			out[TimerKey{OrderID: o.ID, Kind: KindPreparation}] = dl
		}
	}
	return out
}

// reconcile aligns the registry with a snapshot: timers whose order vanished or lost
// eligibility are stopped, missing eligible timers are started, and running timers
// keep ticking untouched.
func reconcile(o *Orchestrator, orders []domain.Order, grace time.Duration) ReconcileResult {
	desired := desiredTimers(orders, grace)

	var res ReconcileResult
	for _, key := range o.Keys() {
		if _, ok := desired[key]; !ok && o.Stop(key) {
			res.Stopped++
		}
	}
	for key, deadline := range desired {
		switch {
		case o.Start(key, deadline):
			res.Started++
		case o.Reschedule(key, deadline):
			res.Rescheduled++
		}
	}
	return res
}
