package contract

import (
	"errors"
	"time"

	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/pkg/events"
)

var ErrOrderNotFound = errors.New("order not found")

// Emitter queues a dashboard event from inside a mutation. Events are broadcast
// in emission order before the store lock is released.
type Emitter func(event events.Event)

// MutateFunc changes an order in place. Returning false means nothing changed
// and updatedAt is left alone.
type MutateFunc func(order *entity.Order, emit Emitter) bool

type OrderRepository interface {
	// GetOrCreateActiveOrder returns the processing order, creating one if none exists.
	GetOrCreateActiveOrder(callerPhone string) entity.Order
	ListOrders() []entity.Order
	// Snapshot runs fn with a copy of all orders while holding the store lock,
	// so no event can be broadcast until fn returns.
	Snapshot(fn func(orders []entity.Order))
	FindOrder(orderID string) (entity.Order, bool)
	// Update runs fn against orderID, or the active order when orderID is empty.
	Update(orderID string, fn MutateFunc) (entity.Order, error)
	ProcessingOrderIDs() []string
	// CompleteStale completes every processing order last updated before cutoff,
	// broadcasting one ORDER_UPDATE each, and returns them.
	CompleteStale(cutoff time.Time) []entity.Order
	SetPendingCallerPhone(phone string)
	PendingCallerPhone() (string, bool)
	ClearPendingCallerPhone()
	Reset()
}
