package alert

import (
	"context"
	"sync"

	"github.com/ccruz0/crypto-2.0-sub010/internal/signal"
)

// History stores delivered alerts in memory for quick inspection.
type History struct {
	mu     sync.Mutex
	alerts []signal.Alert
}

// NewHistory creates an empty history optionally pre-sizing storage.
func NewHistory(capacity int) *History {
	if capacity < 0 {
		capacity = 0
	}
	return &History{alerts: make([]signal.Alert, 0, capacity)}
}

// Record appends an alert to the history.
func (h *History) Record(a signal.Alert) {
	h.mu.Lock()
	h.alerts = append(h.alerts, a)
	h.mu.Unlock()
}

// Notify records the alert, letting a History sit in a notifier fan-out.
func (h *History) Notify(_ context.Context, a signal.Alert) error {
	h.Record(a)
	return nil
}

// Snapshot returns a copy of the recorded alerts.
func (h *History) Snapshot() []signal.Alert {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]signal.Alert, len(h.alerts))
	copy(out, h.alerts)
	return out
}

// Reset clears all stored alerts.
func (h *History) Reset() {
	h.mu.Lock()
	h.alerts = h.alerts[:0]
	h.mu.Unlock()
}
