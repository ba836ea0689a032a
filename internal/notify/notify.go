// Package notify posts helpdesk events to staff chat channels.
package notify

import (
	"context"

	"go.uber.org/zap"
)

// Severities for staff events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeveritySuccess = "success"
)

// Event is a formatted staff notification.
type Event struct {
	Title    string
	Body     string
	Severity string // info, warning, success
}

// Notifier delivers an event to one channel.
type Notifier interface {
	Post(ctx context.Context, evt Event) error
}

// Fanout posts each event to every configured notifier. Delivery is
// best-effort: a failing channel is logged and skipped.
type Fanout struct {
	notifiers []Notifier
	logger    *zap.Logger
}

// NewFanout creates a Fanout over the given notifiers.
func NewFanout(logger *zap.Logger, notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers, logger: logger}
}

// Post delivers the event to all channels. Post on a nil Fanout is a no-op.
func (f *Fanout) Post(ctx context.Context, evt Event) {
	if f == nil {
		return
	}
	for _, n := range f.notifiers {
		if err := n.Post(ctx, evt); err != nil && f.logger != nil {
			f.logger.Warn("notification delivery failed", zap.String("title", evt.Title), zap.Error(err))
		}
	}
}

// SeverityColor maps a severity to a sidebar color hint used by adapters.
func SeverityColor(severity string) string {
	switch severity {
	case SeveritySuccess:
		return "#36a64f"
	case SeverityWarning:
		return "#e8a317"
	default:
		return "#439fe0"
	}
}
