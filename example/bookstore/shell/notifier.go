package shell

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/eventforge/aggregate-eventstore-go/eventstore"
	"github.com/eventforge/aggregate-eventstore-go/example/bookstore/core"
)

// NotifyFunc receives low-stock alerts.
type NotifyFunc func(aggregateID uuid.UUID, leftover int)

// LowStockNotifier watches the stock level after each committed event and
// fires an alert when it drops below the threshold. It runs outside the
// append transaction: a failed or slow notification never blocks a sale.
//
// Alerts are a one-shot side effect, so the notifier reports itself as not
// replayable and rebuilds skip it.
type LowStockNotifier struct {
	threshold int
	notify    NotifyFunc

	mu       sync.Mutex
	leftover map[uuid.UUID]int
}

// NewLowStockNotifier creates a notifier alerting when a book's stock falls
// below threshold.
func NewLowStockNotifier(threshold int, notify NotifyFunc) *LowStockNotifier {
	return &LowStockNotifier{
		threshold: threshold,
		notify:    notify,
		leftover:  make(map[uuid.UUID]int),
	}
}

// Name identifies the notifier in logs and metrics.
func (n *LowStockNotifier) Name() string {
	return "low-stock-notifier"
}

// Replayable reports false: replaying history would re-fire old alerts.
func (n *LowStockNotifier) Replayable() bool {
	return false
}

// Handle folds one event into the tracked stock level and alerts when the
// level crossed below the threshold.
func (n *LowStockNotifier) Handle(_ context.Context, event eventstore.StoredEvent[core.BookEvent]) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	current, tracked := n.leftover[event.AggregateID]
	if !tracked {
		current = core.DefaultLeftover
	}

	switch evt := event.Payload.(type) {
	case core.Bought:
		current -= evt.Quantity
	case core.Restocked:
		current += evt.Quantity
	}

	n.leftover[event.AggregateID] = current

	if current < n.threshold && n.notify != nil {
		n.notify(event.AggregateID, current)
	}

	return nil
}

// Delete drops the tracked level for one book.
func (n *LowStockNotifier) Delete(_ context.Context, aggregateID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	delete(n.leftover, aggregateID)

	return nil
}

var _ eventstore.EventHandler[core.BookEvent] = (*LowStockNotifier)(nil)
var _ eventstore.Replayer = (*LowStockNotifier)(nil)
