package memory

import (
	"fmt"
	"sync"
	"time"

	"fbo-callrelay-be/internal/dto"
	"fbo-callrelay-be/internal/entity"
	"fbo-callrelay-be/internal/repository/contract"
	"fbo-callrelay-be/pkg/aviation"
	"fbo-callrelay-be/pkg/events"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const pendingCallerPhoneKey = "pending_caller_phone"

// OrderRepository keeps call orders in process memory. Every mutation runs under
// one lock and broadcasts its events before releasing it, so subscribers see
// changes in the order they were made.
type OrderRepository struct {
	mu          sync.Mutex
	orders      []*entity.Order
	pending     *cache.Cache
	directory   aviation.Directory
	broadcaster events.Broadcaster
	now         func() time.Time
}

var _ contract.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(broadcaster events.Broadcaster, directory aviation.Directory, pendingTTL time.Duration) *OrderRepository {
	if pendingTTL <= 0 {
		pendingTTL = cache.NoExpiration
	}
	return &OrderRepository{
		pending:     cache.New(pendingTTL, time.Minute),
		directory:   directory,
		broadcaster: broadcaster,
		now:         time.Now,
	}
}

// WithClock overrides the time source. Tests only.
func (r *OrderRepository) WithClock(now func() time.Time) *OrderRepository {
	r.now = now
	return r
}

func (r *OrderRepository) GetOrCreateActiveOrder(callerPhone string) entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.activeLocked(callerPhone).Clone()
}

func (r *OrderRepository) activeLocked(callerPhone string) *entity.Order {
	for _, o := range r.orders {
		if o.Status == entity.OrderStatusProcessing {
			return o
		}
	}

	now := r.now()
	order := &entity.Order{
		Id:              fmt.Sprintf("live-order-%s", uuid.NewString()),
		Customer:        entity.Customer{Name: entity.UnknownCallerName},
		Status:          entity.OrderStatusProcessing,
		ArrivalTime:     now.Add(2 * time.Hour),
		Passengers:      4,
		IsIdentifying:   true,
		TriggeredAgents: []entity.TriggeredAgent{},
		Transcript:      []entity.TranscriptEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	phone := callerPhone
	if phone == "" {
		if x, found := r.pending.Get(pendingCallerPhoneKey); found {
			phone = x.(string)
		}
	}
	r.pending.Delete(pendingCallerPhoneKey)
	order.AttachCaller(phone, r.directory)

	r.orders = append(r.orders, order)
	r.broadcaster.Broadcast(dto.NewOrderEvent(order.Clone()))
	return order
}

func (r *OrderRepository) ListOrders() []entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.cloneAllLocked()
}

func (r *OrderRepository) cloneAllLocked() []entity.Order {
	out := make([]entity.Order, 0, len(r.orders))
	for _, o := range r.orders {
		out = append(out, o.Clone())
	}
	return out
}

func (r *OrderRepository) Snapshot(fn func(orders []entity.Order)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fn(r.cloneAllLocked())
}

func (r *OrderRepository) FindOrder(orderID string) (entity.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o := r.findLocked(orderID)
	if o == nil {
		return entity.Order{}, false
	}
	return o.Clone(), true
}

func (r *OrderRepository) findLocked(orderID string) *entity.Order {
	for _, o := range r.orders {
		if o.Id == orderID {
			return o
		}
	}
	return nil
}

func (r *OrderRepository) Update(orderID string, fn contract.MutateFunc) (entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var order *entity.Order
	if orderID == "" {
		order = r.activeLocked("")
	} else if order = r.findLocked(orderID); order == nil {
		return entity.Order{}, fmt.Errorf("update %s: %w", orderID, contract.ErrOrderNotFound)
	}

	// Snapshots emitted by fn carry the new timestamp; it is rolled back when
	// fn reports no change.
	previous := order.UpdatedAt
	order.UpdatedAt = r.now()

	var queued []events.Event
	if changed := fn(order, func(event events.Event) {
		queued = append(queued, event)
	}); !changed {
		order.UpdatedAt = previous
	}
	for _, event := range queued {
		r.broadcaster.Broadcast(event)
	}

	return order.Clone(), nil
}

func (r *OrderRepository) ProcessingOrderIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for _, o := range r.orders {
		if o.Status == entity.OrderStatusProcessing {
			ids = append(ids, o.Id)
		}
	}
	return ids
}

func (r *OrderRepository) CompleteStale(cutoff time.Time) []entity.Order {
	r.mu.Lock()
	defer r.mu.Unlock()

	var completed []entity.Order
	for _, o := range r.orders {
		if o.Status != entity.OrderStatusProcessing || !o.UpdatedAt.Before(cutoff) {
			continue
		}
		o.Status = entity.OrderStatusCompleted
		snapshot := o.Clone()
		r.broadcaster.Broadcast(dto.OrderUpdateEvent(snapshot))
		completed = append(completed, snapshot)
	}
	return completed
}

func (r *OrderRepository) SetPendingCallerPhone(phone string) {
	r.pending.Set(pendingCallerPhoneKey, phone, cache.DefaultExpiration)
}

func (r *OrderRepository) PendingCallerPhone() (string, bool) {
	if x, found := r.pending.Get(pendingCallerPhoneKey); found {
		return x.(string), true
	}
	return "", false
}

func (r *OrderRepository) ClearPendingCallerPhone() {
	r.pending.Delete(pendingCallerPhoneKey)
}

func (r *OrderRepository) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.orders = nil
	r.pending.Flush()
	r.broadcaster.Broadcast(dto.ResetEvent())
}
