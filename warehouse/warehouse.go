/*
warehouse.go - The warehouse engine

PURPOSE:
  Warehouse owns products, partners, the ledger, the notification
  register and the simulated date. Every external call goes through it.

OPERATIONS:
  Calendar:      Date, AdvanceDate
  Balances:      Balances, AvailableBalance, AccountingBalance
  Products:      Product, Products, RegisterProduct, RegisterDerivateProduct
  Batches:       Batches, BatchesByPartner, BatchesByProduct, BatchesByPrice,
                 StockBatch
  Partners:      Partner, Partners, RegisterPartner, ToggleNotification,
                 PartnerNotifications
  Transactions:  Transaction, PartnerAcquisitions, PartnerSalesAndBreakdowns,
                 PartnerPaidTransactions, PartnerTransactions,
                 RegisterAcquisition, RegisterSale, RegisterBreakdown,
                 ReceiveSalePayment, CheckSale

ATOMICITY:
  Every operation validates everything it can before touching state. A
  returned error means nothing changed. RegisterSale runs the availability
  checker before any stock moves.

CONCURRENCY:
  None. A Warehouse must not be used from several goroutines without an
  external lock (see manager.Manager).

KEYS:
  Product and partner keys are case-insensitive. The key as first
  registered is the one displayed.
*/
package warehouse

import "fmt"

// Warehouse is the inventory and transaction engine.
type Warehouse struct {
	date          Date
	products      map[string]*Product
	partners      map[string]*Partner
	ledger        *Ledger
	notifications *notificationRegister
}

// New creates an empty warehouse at day 0.
func New() *Warehouse {
	return &Warehouse{
		products:      make(map[string]*Product),
		partners:      make(map[string]*Partner),
		ledger:        newLedger(),
		notifications: newNotificationRegister(),
	}
}

// =============================================================================
// CALENDAR AND BALANCES
// =============================================================================

func (w *Warehouse) Date() Date { return w.date }

// AdvanceDate moves the calendar forward and reprices every unpaid sale.
func (w *Warehouse) AdvanceDate(days int) error {
	if days <= 0 {
		return &InvalidDateError{Days: days}
	}
	w.date += Date(days)
	w.ledger.refreshSales(w.date)
	return nil
}

func (w *Warehouse) Balances() Balances { return w.ledger.Balances() }

func (w *Warehouse) AvailableBalance() Money { return w.ledger.Balances().Available }

func (w *Warehouse) AccountingBalance() Money { return w.ledger.Balances().Accounting }

// =============================================================================
// PRODUCTS
// =============================================================================

// Product looks up a product by key.
func (w *Warehouse) Product(key string) (*Product, error) {
	p, ok := w.products[foldKey(key)]
	if !ok {
		return nil, unknownProduct(key)
	}
	return p, nil
}

// HasProduct reports whether a product with the key exists.
func (w *Warehouse) HasProduct(key string) bool {
	_, ok := w.products[foldKey(key)]
	return ok
}

// Products returns all products in key order.
func (w *Warehouse) Products() []*Product {
	out := make([]*Product, 0, len(w.products))
	for _, p := range w.products {
		out = append(out, p)
	}
	sortProducts(out)
	return out
}

// RegisterProduct registers a simple product.
func (w *Warehouse) RegisterProduct(key string) (*Product, error) {
	if w.HasProduct(key) {
		return nil, &DuplicateKeyError{Kind: KindProductKey, Key: key}
	}
	p := newSimpleProduct(key)
	w.addProduct(p)
	return p, nil
}

// RegisterDerivateProduct registers a product fabricated from existing
// products. componentKeys and amounts are parallel.
func (w *Warehouse) RegisterDerivateProduct(key string, aggravation Money, componentKeys []string, amounts []int) (*Product, error) {
	components := make([]*Product, len(componentKeys))
	for i, ck := range componentKeys {
		c, err := w.Product(ck)
		if err != nil {
			return nil, err
		}
		components[i] = c
	}
	if w.HasProduct(key) {
		return nil, &DuplicateKeyError{Kind: KindProductKey, Key: key}
	}

	recipe, err := newRecipe(key, aggravation, components, amounts)
	if err != nil {
		return nil, err
	}
	p := newDerivateProduct(key, recipe)
	w.addProduct(p)
	return p, nil
}

func (w *Warehouse) addProduct(p *Product) {
	w.products[foldKey(p.key)] = p
	for _, partner := range w.partners {
		w.notifications.subscribe(p.key, partner.key)
	}
}

// =============================================================================
// BATCHES
// =============================================================================

// Batches returns every batch of every product.
func (w *Warehouse) Batches() []*Batch {
	return w.collectBatches(func(*Batch) bool { return true })
}

// BatchesByPartner returns the batches supplied by a partner.
func (w *Warehouse) BatchesByPartner(partnerKey string) ([]*Batch, error) {
	partner, err := w.Partner(partnerKey)
	if err != nil {
		return nil, err
	}
	return w.collectBatches(func(b *Batch) bool { return b.partner == partner }), nil
}

// BatchesByProduct returns the batches of one product.
func (w *Warehouse) BatchesByProduct(productKey string) ([]*Batch, error) {
	p, err := w.Product(productKey)
	if err != nil {
		return nil, err
	}
	return p.Batches(), nil
}

// BatchesByPrice returns the batches priced at or below limit.
func (w *Warehouse) BatchesByPrice(limit Money) []*Batch {
	return w.collectBatches(func(b *Batch) bool { return b.price.LessThanOrEqual(limit) })
}

func (w *Warehouse) collectBatches(keep func(*Batch) bool) []*Batch {
	out := []*Batch{}
	for _, p := range w.products {
		for _, b := range p.batches {
			if keep(b) {
				out = append(out, b)
			}
		}
	}
	sortBatches(out)
	return out
}

// StockBatch adds a batch without recording an acquisition. Bulk imports
// use it to seed stock.
func (w *Warehouse) StockBatch(partnerKey, productKey string, amount int, price Money) error {
	partner, product, err := w.resolve(partnerKey, productKey)
	if err != nil {
		return err
	}
	if err := validateBatch(amount, price); err != nil {
		return err
	}
	w.addBatch(product, partner, amount, price)
	return nil
}

func (w *Warehouse) addBatch(product *Product, partner *Partner, amount int, price Money) {
	if n, notify := product.addBatch(partner, amount, price); notify {
		w.notifications.deliver(n)
	}
}

func validateBatch(amount int, price Money) error {
	if amount <= 0 {
		return invalidAmount("amount", amount)
	}
	if price.IsNegative() {
		return invalidAmount("price", price)
	}
	return nil
}

// =============================================================================
// PARTNERS
// =============================================================================

// Partner looks up a partner by key.
func (w *Warehouse) Partner(key string) (*Partner, error) {
	p, ok := w.partners[foldKey(key)]
	if !ok {
		return nil, unknownPartner(key)
	}
	return p, nil
}

// Partners returns all partners in key order.
func (w *Warehouse) Partners() []*Partner {
	out := make([]*Partner, 0, len(w.partners))
	for _, p := range w.partners {
		out = append(out, p)
	}
	sortPartners(out)
	return out
}

// RegisterPartner registers a partner subscribed to every existing product.
func (w *Warehouse) RegisterPartner(key, name, address string) (*Partner, error) {
	if _, ok := w.partners[foldKey(key)]; ok {
		return nil, &DuplicateKeyError{Kind: KindPartnerKey, Key: key}
	}
	p := newPartner(key, name, address)
	w.partners[foldKey(key)] = p
	for _, product := range w.products {
		w.notifications.subscribe(product.key, p.key)
	}
	return p, nil
}

// ToggleNotification flips whether the partner is notified about the
// product and returns the new state.
func (w *Warehouse) ToggleNotification(partnerKey, productKey string) (bool, error) {
	partner, product, err := w.resolve(partnerKey, productKey)
	if err != nil {
		return false, err
	}
	return w.notifications.toggle(product.key, partner.key), nil
}

// Subscribed reports whether the partner is notified about the product.
func (w *Warehouse) Subscribed(partnerKey, productKey string) (bool, error) {
	partner, product, err := w.resolve(partnerKey, productKey)
	if err != nil {
		return false, err
	}
	return w.notifications.subscribed(product.key, partner.key), nil
}

// PartnerNotifications returns and clears the partner's pending
// notifications, oldest first.
func (w *Warehouse) PartnerNotifications(partnerKey string) ([]Notification, error) {
	p, err := w.Partner(partnerKey)
	if err != nil {
		return nil, err
	}
	return w.notifications.drain(p.key), nil
}

// =============================================================================
// TRANSACTIONS - QUERIES
// =============================================================================

// Transaction looks up a transaction by ID.
func (w *Warehouse) Transaction(id TransactionID) (Transaction, error) {
	return w.ledger.Get(id)
}

// Transactions returns the whole ledger in ID order.
func (w *Warehouse) Transactions() []Transaction { return w.ledger.All() }

func (w *Warehouse) PartnerAcquisitions(partnerKey string) ([]Transaction, error) {
	return w.partnerView(partnerKey, w.ledger.acquisitionsOf)
}

func (w *Warehouse) PartnerSalesAndBreakdowns(partnerKey string) ([]Transaction, error) {
	return w.partnerView(partnerKey, w.ledger.salesAndBreakdownsOf)
}

func (w *Warehouse) PartnerPaidTransactions(partnerKey string) ([]Transaction, error) {
	return w.partnerView(partnerKey, w.ledger.paidOf)
}

func (w *Warehouse) PartnerTransactions(partnerKey string) ([]Transaction, error) {
	return w.partnerView(partnerKey, w.ledger.historyOf)
}

func (w *Warehouse) partnerView(partnerKey string, view func(*Partner) []Transaction) ([]Transaction, error) {
	p, err := w.Partner(partnerKey)
	if err != nil {
		return nil, err
	}
	return view(p), nil
}

// CheckSale reports whether amount units of the product could be sold
// now, fabricating as needed. It never changes state.
func (w *Warehouse) CheckSale(productKey string, amount int) error {
	p, err := w.Product(productKey)
	if err != nil {
		return err
	}
	if amount <= 0 {
		return invalidAmount("amount", amount)
	}
	return checkSell(p, amount)
}

// =============================================================================
// TRANSACTIONS - MUTATIONS
// =============================================================================

// RegisterAcquisition buys amount units at price from the partner.
func (w *Warehouse) RegisterAcquisition(partnerKey, productKey string, amount int, price Money) (*Acquisition, error) {
	partner, product, err := w.resolve(partnerKey, productKey)
	if err != nil {
		return nil, err
	}
	if err := validateBatch(amount, price); err != nil {
		return nil, err
	}

	w.addBatch(product, partner, amount, price)
	value := price.Mul(Units(amount))
	partner.registerAcquisition(value)

	a := &Acquisition{
		record: w.newRecord(amount, product, partner),
		price:  price,
		value:  value,
	}
	w.ledger.append(a)
	return a, nil
}

// RegisterSale sells amount units to the partner, fabricating derivate
// products as needed. Payment without fee or discount is due at deadline.
func (w *Warehouse) RegisterSale(partnerKey, productKey string, deadline Date, amount int) (*Sale, error) {
	partner, product, err := w.resolve(partnerKey, productKey)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, invalidAmount("amount", amount)
	}
	if err := checkSell(product, amount); err != nil {
		return nil, err
	}

	baseValue, err := product.sell(amount)
	if err != nil {
		return nil, fmt.Errorf("sell after successful check: %w", err)
	}
	partner.registerSale(baseValue)

	s := &Sale{
		record:      w.newRecord(amount, product, partner),
		deadline:    deadline,
		baseValue:   baseValue,
		paymentDate: NoDate,
	}
	s.refresh(w.date)
	w.ledger.append(s)
	return s, nil
}

// RegisterBreakdown breaks amount units of a derivate product into its
// components, owned by the partner. For a simple product it does nothing
// and returns a nil breakdown.
func (w *Warehouse) RegisterBreakdown(partnerKey, productKey string, amount int) (*Breakdown, error) {
	partner, product, err := w.resolve(partnerKey, productKey)
	if err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, invalidAmount("amount", amount)
	}
	if product.kind != Derivate {
		return nil, nil
	}
	if amount > product.stock {
		return nil, &UnavailableProductError{ProductKey: product.key, Requested: amount, Available: product.stock}
	}

	res, _, err := product.breakdown(partner, amount)
	if err != nil {
		return nil, err
	}
	for _, n := range res.notifications {
		w.notifications.deliver(n)
	}
	partner.registerBreakdown(res.value)

	paid := res.value
	if paid.IsNegative() {
		paid = zero
	}
	b := &Breakdown{
		record:     w.newRecord(amount, product, partner),
		baseValue:  res.value,
		paidValue:  paid,
		components: res.components,
	}
	w.ledger.append(b)
	return b, nil
}

// ReceiveSalePayment pays a sale at the current date and returns the
// amount collected. Paying an already paid sale collects nothing.
func (w *Warehouse) ReceiveSalePayment(id TransactionID) (Money, error) {
	tx, err := w.ledger.Get(id)
	if err != nil {
		return zero, err
	}
	s, ok := tx.(*Sale)
	if !ok {
		return zero, fmt.Errorf("%w: transaction %d", ErrNotSale, id)
	}
	if !s.pay(w.date) {
		return zero, nil
	}
	return s.realValue, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (w *Warehouse) resolve(partnerKey, productKey string) (*Partner, *Product, error) {
	partner, err := w.Partner(partnerKey)
	if err != nil {
		return nil, nil, err
	}
	product, err := w.Product(productKey)
	if err != nil {
		return nil, nil, err
	}
	return partner, product, nil
}

func (w *Warehouse) newRecord(amount int, product *Product, partner *Partner) record {
	return record{
		id:      w.ledger.nextID(),
		date:    w.date,
		amount:  amount,
		product: product,
		partner: partner,
	}
}
