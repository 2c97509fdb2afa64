package risk

import (
	"sync"

	"github.com/rxtech-lab/argo-algo/internal/types"
)

// DefaultAlertCapacity is the number of alerts kept before the oldest is dropped.
const DefaultAlertCapacity = 100

// DefaultRecentAlerts is the page size of Recent when no limit is given.
const DefaultRecentAlerts = 20

// AlertLog is an append-only ring of alerts.
type AlertLog struct {
	mu       sync.Mutex
	alerts   []types.Alert
	capacity int
}

// NewAlertLog creates a ring holding at most capacity alerts.
func NewAlertLog(capacity int) *AlertLog {
	if capacity <= 0 {
		capacity = DefaultAlertCapacity
	}

	return &AlertLog{
		mu:       sync.Mutex{},
		alerts:   make([]types.Alert, 0, capacity),
		capacity: capacity,
	}
}

// Append adds an alert, evicting the oldest when full.
func (a *AlertLog) Append(alert types.Alert) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.alerts) == a.capacity {
		copy(a.alerts, a.alerts[1:])
		a.alerts = a.alerts[:len(a.alerts)-1]
	}

	a.alerts = append(a.alerts, alert)
}

// Recent returns up to limit of the newest alerts, oldest first.
func (a *AlertLog) Recent(limit int) []types.Alert {
	a.mu.Lock()
	defer a.mu.Unlock()

	if limit <= 0 {
		limit = DefaultRecentAlerts
	}

	start := max(len(a.alerts)-limit, 0)

	return append([]types.Alert(nil), a.alerts[start:]...)
}

// Len returns the number of stored alerts.
func (a *AlertLog) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.alerts)
}

// Clear removes every alert.
func (a *AlertLog) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.alerts = a.alerts[:0]
}
