package metrics

import "github.com/prometheus/client_golang/prometheus"

// Set groups the collectors of the order engine.
type Set struct {
	AutoCancelFired      prometheus.Counter
	AutoCancelFailures   prometheus.Counter
	FeedErrors           prometheus.Counter
	ActiveTimers         *prometheus.GaugeVec
	Transitions          *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	StoreRetries         prometheus.Counter
}

// New builds an unregistered metric set.
func New() *Set {
	return &Set{
		AutoCancelFired:      NewAutoCancelFiredTotal(),
		AutoCancelFailures:   NewAutoCancelFailuresTotal(),
		FeedErrors:           NewFeedErrorsTotal(),
		ActiveTimers:         NewActiveTimers(),
		Transitions:          NewTransitionsTotal(),
		NotificationFailures: NewNotificationFailuresTotal(),
		StoreRetries:         NewStoreRetriesTotal(),
	}
}

// Register registers every collector of the set.
func (s *Set) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		s.AutoCancelFired,
		s.AutoCancelFailures,
		s.FeedErrors,
		s.ActiveTimers,
		s.Transitions,
		s.NotificationFailures,
		s.StoreRetries,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// NewAutoCancelFiredTotal returns a counter of auto-cancel deadlines that ran out.
func NewAutoCancelFiredTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_auto_cancel_fired_total",
		Help: "Total number of ASAP orders whose auto-cancel deadline ran out",
	})
}

// NewAutoCancelFailuresTotal returns a counter of auto-cancel writes that failed for good.
func NewAutoCancelFailuresTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_auto_cancel_failures_total",
		Help: "Total number of auto-cancel status writes that failed after retries",
	})
}

// NewFeedErrorsTotal returns a counter of error signals received from live order feeds.
func NewFeedErrorsTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_feed_errors_total",
		Help: "Total number of error signals received from live order feeds",
	})
}

// NewActiveTimers returns a gauge of running order timers per restaurant.
func NewActiveTimers() *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "order_active_timers",
		Help: "Number of running order timers",
	}, []string{"restaurant_id"})
}

// NewTransitionsTotal returns a counter of status transitions by action and result.
func NewTransitionsTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"action", "result"})
}

// NewNotificationFailuresTotal returns a counter of failed best-effort notifications.
func NewNotificationFailuresTotal() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_notification_failures_total",
		Help: "Total number of customer notifications that could not be sent",
	}, []string{"kind"})
}

// NewStoreRetriesTotal returns a counter of retried store writes.
func NewStoreRetriesTotal() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_store_retries_total",
		Help: "Total number of retry attempts performed by the order store",
	})
}
