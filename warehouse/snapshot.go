/*
snapshot.go - Whole-state snapshot and restore

PURPOSE:
  State is a plain, JSON-ready copy of everything a Warehouse holds:
  date, products with their batches and recipes, partners with their
  subscriptions and pending notifications, and the full ledger.
  Cross references are stored as keys, never as nested copies.

RESTORE:
  Restore rebuilds in two passes:
    1. Create every product and partner, keyed by folded key.
    2. Resolve recipes, batches, notifications and transactions by key
       lookup, so every reference points at the single restored object.

  Batches are re-inserted in consumption order, which keeps the tie order
  between equally priced batches.

VALIDATION:
  Restore fails with ErrCorruptSnapshot on duplicate keys, dangling keys,
  cyclic recipes, non-dense transaction IDs, unknown kinds or ranks, and
  batches with non-positive amounts.

SEE ALSO:
  - store.go: SnapshotStore persists State values
*/
package warehouse

import "fmt"

// State is a serializable snapshot of a Warehouse.
type State struct {
	Date         Date               `json:"date"`
	Products     []ProductState     `json:"products"`
	Partners     []PartnerState     `json:"partners"`
	Transactions []TransactionState `json:"transactions"`
}

type ProductState struct {
	Key         string           `json:"key"`
	Kind        string           `json:"kind"`
	MaxPrice    Money            `json:"max_price"`
	Aggravation Money            `json:"aggravation"`
	Components  []ComponentState `json:"components,omitempty"`
	Batches     []BatchState     `json:"batches,omitempty"`
}

type ComponentState struct {
	Product string `json:"product"`
	Amount  int    `json:"amount"`
}

type BatchState struct {
	Partner string `json:"partner"`
	Price   Money  `json:"price"`
	Amount  int    `json:"amount"`
}

type PartnerState struct {
	Key               string              `json:"key"`
	Name              string              `json:"name"`
	Address           string              `json:"address"`
	Rank              string              `json:"rank"`
	Points            Money               `json:"points"`
	AcquisitionsValue Money               `json:"acquisitions_value"`
	SalesValue        Money               `json:"sales_value"`
	PaidSalesValue    Money               `json:"paid_sales_value"`
	Subscriptions     []string            `json:"subscriptions"`
	Notifications     []NotificationState `json:"notifications,omitempty"`
}

type NotificationState struct {
	Kind    string `json:"kind"`
	Product string `json:"product"`
	Price   Money  `json:"price"`
}

// Transaction types in TransactionState.Type.
const (
	TypeAcquisition = "ACQUISITION"
	TypeSale        = "SALE"
	TypeBreakdown   = "BREAKDOWN"
)

type TransactionState struct {
	ID      TransactionID `json:"id"`
	Type    string        `json:"type"`
	Date    Date          `json:"date"`
	Amount  int           `json:"amount"`
	Product string        `json:"product"`
	Partner string        `json:"partner"`

	// Acquisition
	Price Money `json:"price"`
	Value Money `json:"value"`

	// Sale and breakdown
	BaseValue Money `json:"base_value"`

	// Sale
	Deadline    Date  `json:"deadline"`
	RealValue   Money `json:"real_value"`
	PaymentDate Date  `json:"payment_date"`

	// Breakdown
	PaidValue  Money                     `json:"paid_value"`
	Components []BreakdownComponentState `json:"components,omitempty"`
}

type BreakdownComponentState struct {
	Product string `json:"product"`
	Amount  int    `json:"amount"`
	Price   Money  `json:"price"`
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot copies the whole warehouse state.
func (w *Warehouse) Snapshot() *State {
	s := &State{
		Date:         w.date,
		Products:     make([]ProductState, 0, len(w.products)),
		Partners:     make([]PartnerState, 0, len(w.partners)),
		Transactions: make([]TransactionState, 0, w.ledger.Len()),
	}

	for _, p := range w.Products() {
		ps := ProductState{Key: p.key, Kind: p.kind.String(), MaxPrice: p.maxPrice, Aggravation: zero}
		if p.recipe != nil {
			ps.Aggravation = p.recipe.aggravation
			for _, c := range p.recipe.components {
				ps.Components = append(ps.Components, ComponentState{Product: c.product.key, Amount: c.amount})
			}
		}
		for _, b := range p.consumptionOrder() {
			ps.Batches = append(ps.Batches, BatchState{Partner: b.partner.key, Price: b.price, Amount: b.amount})
		}
		s.Products = append(s.Products, ps)
	}

	products := w.Products()
	for _, p := range w.Partners() {
		ps := PartnerState{
			Key:               p.key,
			Name:              p.name,
			Address:           p.address,
			Rank:              p.rank.String(),
			Points:            p.points,
			AcquisitionsValue: p.acquisitionsValue,
			SalesValue:        p.salesValue,
			PaidSalesValue:    p.paidSalesValue,
			Subscriptions:     []string{},
		}
		for _, product := range products {
			if w.notifications.subscribed(product.key, p.key) {
				ps.Subscriptions = append(ps.Subscriptions, product.key)
			}
		}
		for _, n := range w.notifications.peek(p.key) {
			ps.Notifications = append(ps.Notifications, NotificationState{
				Kind: n.Kind.String(), Product: n.product.key, Price: n.Price,
			})
		}
		s.Partners = append(s.Partners, ps)
	}

	for _, tx := range w.ledger.txs {
		s.Transactions = append(s.Transactions, transactionState(tx))
	}
	return s
}

func transactionState(tx Transaction) TransactionState {
	ts := TransactionState{
		ID:          tx.ID(),
		Date:        tx.Date(),
		Amount:      tx.Amount(),
		Product:     tx.Product().key,
		Partner:     tx.Partner().key,
		Price:       zero,
		Value:       zero,
		BaseValue:   zero,
		RealValue:   zero,
		PaidValue:   zero,
		PaymentDate: NoDate,
	}
	switch t := tx.(type) {
	case *Acquisition:
		ts.Type = TypeAcquisition
		ts.Price = t.price
		ts.Value = t.value
	case *Sale:
		ts.Type = TypeSale
		ts.Deadline = t.deadline
		ts.BaseValue = t.baseValue
		ts.RealValue = t.realValue
		ts.PaymentDate = t.paymentDate
	case *Breakdown:
		ts.Type = TypeBreakdown
		ts.BaseValue = t.baseValue
		ts.PaidValue = t.paidValue
		for _, c := range t.components {
			ts.Components = append(ts.Components, BreakdownComponentState{
				Product: c.product.key, Amount: c.Amount, Price: c.Price,
			})
		}
	}
	return ts
}

// =============================================================================
// RESTORE
// =============================================================================

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorruptSnapshot, fmt.Sprintf(format, args...))
}

// Restore rebuilds a Warehouse from a snapshot.
func Restore(s *State) (*Warehouse, error) {
	if s == nil {
		return nil, corrupt("nil state")
	}
	if s.Date < 0 {
		return nil, corrupt("negative date %d", s.Date)
	}

	w := New()
	w.date = s.Date

	// Pass 1: owned records.
	for _, ps := range s.Partners {
		if _, ok := w.partners[foldKey(ps.Key)]; ok {
			return nil, corrupt("duplicate partner %s", ps.Key)
		}
		rank, err := ParseRank(ps.Rank)
		if err != nil {
			return nil, corrupt("partner %s: %v", ps.Key, err)
		}
		p := newPartner(ps.Key, ps.Name, ps.Address)
		p.rank = rank
		p.points = ps.Points
		p.acquisitionsValue = ps.AcquisitionsValue
		p.salesValue = ps.SalesValue
		p.paidSalesValue = ps.PaidSalesValue
		w.partners[foldKey(ps.Key)] = p
	}
	for _, ps := range s.Products {
		if w.HasProduct(ps.Key) {
			return nil, corrupt("duplicate product %s", ps.Key)
		}
		var p *Product
		switch ps.Kind {
		case Simple.String():
			p = newSimpleProduct(ps.Key)
		case Derivate.String():
			p = newDerivateProduct(ps.Key, nil)
		default:
			return nil, corrupt("product %s: unknown kind %q", ps.Key, ps.Kind)
		}
		p.maxPrice = ps.MaxPrice
		w.products[foldKey(ps.Key)] = p
	}

	// Pass 2: references.
	for _, ps := range s.Products {
		if err := w.restoreProduct(ps); err != nil {
			return nil, err
		}
	}
	for _, p := range w.products {
		if p.recipe != nil && p.recipe.requires(p) {
			return nil, corrupt("product %s requires itself", p.key)
		}
	}
	for _, ps := range s.Partners {
		if err := w.restoreNotifications(ps); err != nil {
			return nil, err
		}
	}
	for i, ts := range s.Transactions {
		if ts.ID != TransactionID(i) {
			return nil, corrupt("transaction at position %d has id %d", i, ts.ID)
		}
		tx, err := w.restoreTransaction(ts)
		if err != nil {
			return nil, err
		}
		w.ledger.append(tx)
	}
	return w, nil
}

func (w *Warehouse) restoreProduct(ps ProductState) error {
	p := w.products[foldKey(ps.Key)]

	if p.kind == Derivate {
		amounts := make([]int, len(ps.Components))
		components := make([]*Product, len(ps.Components))
		for i, c := range ps.Components {
			amounts[i] = c.Amount
			cp, ok := w.products[foldKey(c.Product)]
			if !ok {
				return corrupt("product %s: unknown component %s", ps.Key, c.Product)
			}
			components[i] = cp
		}
		recipe, err := newRecipe(ps.Key, ps.Aggravation, components, amounts)
		if err != nil {
			return corrupt("%v", err)
		}
		p.recipe = recipe
	} else if len(ps.Components) > 0 {
		return corrupt("simple product %s has components", ps.Key)
	}

	for _, bs := range ps.Batches {
		partner, ok := w.partners[foldKey(bs.Partner)]
		if !ok {
			return corrupt("batch of %s: unknown partner %s", ps.Key, bs.Partner)
		}
		if err := validateBatch(bs.Amount, bs.Price); err != nil {
			return corrupt("batch of %s: %v", ps.Key, err)
		}
		p.insertBatch(partner, bs.Amount, bs.Price)
	}
	return nil
}

func (w *Warehouse) restoreNotifications(ps PartnerState) error {
	for _, key := range ps.Subscriptions {
		if !w.HasProduct(key) {
			return corrupt("partner %s subscribes to unknown product %s", ps.Key, key)
		}
		w.notifications.subscribe(key, ps.Key)
	}
	for _, ns := range ps.Notifications {
		product, ok := w.products[foldKey(ns.Product)]
		if !ok {
			return corrupt("notification for %s: unknown product %s", ps.Key, ns.Product)
		}
		n := Notification{Kind: NotifyNew, product: product, Price: ns.Price}
		switch ns.Kind {
		case NotifyNew.String():
		case NotifyBargain.String():
			n.Kind = NotifyBargain
		default:
			return corrupt("notification for %s: unknown kind %q", ps.Key, ns.Kind)
		}
		k := foldKey(ps.Key)
		w.notifications.pending[k] = append(w.notifications.pending[k], n)
	}
	return nil
}

func (w *Warehouse) restoreTransaction(ts TransactionState) (Transaction, error) {
	partner, ok := w.partners[foldKey(ts.Partner)]
	if !ok {
		return nil, corrupt("transaction %d: unknown partner %s", ts.ID, ts.Partner)
	}
	product, ok := w.products[foldKey(ts.Product)]
	if !ok {
		return nil, corrupt("transaction %d: unknown product %s", ts.ID, ts.Product)
	}
	rec := record{id: ts.ID, date: ts.Date, amount: ts.Amount, product: product, partner: partner}

	switch ts.Type {
	case TypeAcquisition:
		return &Acquisition{record: rec, price: ts.Price, value: ts.Value}, nil
	case TypeSale:
		return &Sale{
			record:      rec,
			deadline:    ts.Deadline,
			baseValue:   ts.BaseValue,
			realValue:   ts.RealValue,
			paymentDate: ts.PaymentDate,
		}, nil
	case TypeBreakdown:
		b := &Breakdown{record: rec, baseValue: ts.BaseValue, paidValue: ts.PaidValue}
		for _, cs := range ts.Components {
			cp, ok := w.products[foldKey(cs.Product)]
			if !ok {
				return nil, corrupt("transaction %d: unknown component %s", ts.ID, cs.Product)
			}
			b.components = append(b.components, BreakdownComponent{product: cp, Amount: cs.Amount, Price: cs.Price})
		}
		return b, nil
	}
	return nil, corrupt("transaction %d: unknown type %q", ts.ID, ts.Type)
}
