package bidengine

import (
	"sync"

	"github.com/google/uuid"
)

// Update is the change notification delivered to subscribers after a bid is
// accepted and persisted.
type Update struct {
	ItemID   string `json:"itemId"`
	NewPrice int64  `json:"newPrice"`
}

// UpdateFunc is a subscriber callback. Callbacks are invoked synchronously in
// subscription order; a panicking callback is isolated and logged, and does
// not prevent delivery to the remaining subscribers.
type UpdateFunc func(update Update)

type hubSubscriber struct {
	id       uuid.UUID
	callback UpdateFunc
}

// hub fans accepted changes out to zero or more subscribers.
type hub struct {
	mu          sync.Mutex
	subscribers []hubSubscriber
	logger      Logger
}

func newHub(logger Logger) *hub {
	return &hub{logger: logger}
}

// subscribe registers the callback and returns a removal func plus whether
// this was the first subscriber. The removal func is idempotent and reports
// whether the hub became empty.
func (h *hub) subscribe(callback UpdateFunc) (remove func() bool, becameFirst bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscriberID := uuid.New()
	h.subscribers = append(h.subscribers, hubSubscriber{id: subscriberID, callback: callback})
	becameFirst = len(h.subscribers) == 1

	remove = func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()

		for i, subscriber := range h.subscribers {
			if subscriber.id == subscriberID {
				h.subscribers = append(h.subscribers[:i], h.subscribers[i+1:]...)
				break
			}
		}

		return len(h.subscribers) == 0
	}

	return remove, becameFirst
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers)
}

// publish delivers the update to every subscriber in subscription order.
func (h *hub) publish(update Update) {
	h.mu.Lock()
	subscribers := make([]hubSubscriber, len(h.subscribers))
	copy(subscribers, h.subscribers)
	h.mu.Unlock()

	for _, subscriber := range subscribers {
		h.invoke(subscriber, update)
	}
}

func (h *hub) invoke(subscriber hubSubscriber, update Update) {
	defer func() {
		if recovered := recover(); recovered != nil && h.logger != nil {
			h.logger.Error(logMsgSubscriberPanicked,
				logAttrSubscriberID, subscriber.id.String(),
				logAttrItemID, update.ItemID,
				logAttrPanic, recovered)
		}
	}()

	subscriber.callback(update)
}
