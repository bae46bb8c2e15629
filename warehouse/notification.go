/*
notification.go - Stock event notifications

PURPOSE:
  Partners subscribe to products. When a product that has been priced
  before receives a batch, every subscriber gets a notification in its
  pending queue. Reading a partner's notifications drains the queue.

KINDS:
  NEW:     batch added to a product with no stock
  BARGAIN: batch priced strictly below the current cheapest batch

SUBSCRIPTIONS:
  Kept as product key -> set of partner keys (both folded). Every partner
  starts subscribed to every product: registering a partner subscribes it
  to all existing products and registering a product subscribes all
  existing partners. ToggleNotification flips a single pair.
*/
package warehouse

// NotificationKind is the event that produced a notification.
type NotificationKind int

const (
	NotifyNew NotificationKind = iota
	NotifyBargain
)

func (k NotificationKind) String() string {
	if k == NotifyBargain {
		return "BARGAIN"
	}
	return "NEW"
}

// Notification tells a partner a product has a new batch at Price.
type Notification struct {
	Kind    NotificationKind
	product *Product
	Price   Money
}

func (n Notification) Product() *Product { return n.product }

type notificationRegister struct {
	subscribers map[string]map[string]struct{}
	pending     map[string][]Notification
}

func newNotificationRegister() *notificationRegister {
	return &notificationRegister{
		subscribers: make(map[string]map[string]struct{}),
		pending:     make(map[string][]Notification),
	}
}

func (r *notificationRegister) subscribe(productKey, partnerKey string) {
	set, ok := r.subscribers[foldKey(productKey)]
	if !ok {
		set = make(map[string]struct{})
		r.subscribers[foldKey(productKey)] = set
	}
	set[foldKey(partnerKey)] = struct{}{}
}

func (r *notificationRegister) subscribed(productKey, partnerKey string) bool {
	_, ok := r.subscribers[foldKey(productKey)][foldKey(partnerKey)]
	return ok
}

// toggle flips the subscription and returns the new state.
func (r *notificationRegister) toggle(productKey, partnerKey string) bool {
	if r.subscribed(productKey, partnerKey) {
		delete(r.subscribers[foldKey(productKey)], foldKey(partnerKey))
		return false
	}
	r.subscribe(productKey, partnerKey)
	return true
}

// deliver queues n for every current subscriber of its product.
func (r *notificationRegister) deliver(n Notification) {
	for partner := range r.subscribers[foldKey(n.product.key)] {
		r.pending[partner] = append(r.pending[partner], n)
	}
}

func (r *notificationRegister) peek(partnerKey string) []Notification {
	q := r.pending[foldKey(partnerKey)]
	out := make([]Notification, len(q))
	copy(out, q)
	return out
}

func (r *notificationRegister) drain(partnerKey string) []Notification {
	k := foldKey(partnerKey)
	q := r.pending[k]
	delete(r.pending, k)
	if q == nil {
		return []Notification{}
	}
	return q
}
