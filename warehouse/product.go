/*
product.go - Stock pools with price-ordered batch consumption

PURPOSE:
  A Product owns every batch of itself in a min-price heap. Stock only goes
  down through take(), which always draws from the cheapest batch first, so
  a caller always pays the minimum possible total for the units removed.

VARIANTS:
  Simple:   sold only from stock, periodN = 5
  Derivate: built from a Recipe, fabricates any shortfall on sale,
            periodN = 3

  periodN parameterizes the partner payment curves (see rank.go).

INVARIANTS:
  - stock == sum of batch amounts, stock >= 0
  - no batch with amount 0 stays in the heap
  - maxPrice never decreases

FABRICATION:
  Selling N units of a derivate product with S < N in stock sells
  (N-S) * perUnit of every component (recursively), charges the
  aggravation surcharge on top, records the effective unit cost as a new
  price and then takes the S units from stock.

  Fabrication never runs when stock already covers the request.

SEE ALSO:
  - recipe.go: Component lists
  - checker.go: Verifies a sell() will succeed before any stock moves
*/
package warehouse

import "sort"

// ProductKind discriminates simple and derivate products.
type ProductKind int

const (
	Simple ProductKind = iota
	Derivate
)

func (k ProductKind) String() string {
	if k == Derivate {
		return "DERIVATE"
	}
	return "SIMPLE"
}

// PeriodN is the period length used by the payment curves for this kind.
func (k ProductKind) PeriodN() int {
	if k == Derivate {
		return 3
	}
	return 5
}

// Product is a stock pool of one product.
type Product struct {
	key      string
	kind     ProductKind
	recipe   *Recipe
	maxPrice Money
	stock    int
	batches  batchHeap
	nextSeq  uint64
}

func newSimpleProduct(key string) *Product {
	return &Product{key: key, kind: Simple, maxPrice: zero}
}

func newDerivateProduct(key string, recipe *Recipe) *Product {
	return &Product{key: key, kind: Derivate, recipe: recipe, maxPrice: zero}
}

func (p *Product) Key() string       { return p.key }
func (p *Product) Kind() ProductKind { return p.kind }
func (p *Product) MaxPrice() Money   { return p.maxPrice }
func (p *Product) Stock() int        { return p.stock }
func (p *Product) PeriodN() int      { return p.kind.PeriodN() }
func (p *Product) IsDerivate() bool  { return p.kind == Derivate }

// Recipe returns the recipe of a derivate product, or nil.
func (p *Product) Recipe() *Recipe { return p.recipe }

// CheapestBatch returns the batch with the lowest price.
func (p *Product) CheapestBatch() (*Batch, bool) {
	return p.batches.peek()
}

// Batches returns the product's batches sorted for display.
func (p *Product) Batches() []*Batch {
	out := make([]*Batch, len(p.batches))
	copy(out, p.batches)
	sortBatches(out)
	return out
}

// consumptionOrder returns the batches in the order take() would draw them.
func (p *Product) consumptionOrder() []*Batch {
	out := make([]*Batch, len(p.batches))
	copy(out, p.batches)
	sort.Slice(out, func(i, j int) bool { return batchHeap(out).Less(i, j) })
	return out
}

// =============================================================================
// STOCK MOVEMENTS
// =============================================================================

// addBatch stores a new batch. A product that has been priced before
// announces it: NEW when it is out of stock, BARGAIN when the price
// undercuts the cheapest batch.
func (p *Product) addBatch(partner *Partner, amount int, price Money) (Notification, bool) {
	var (
		n      Notification
		notify bool
	)
	if p.maxPrice.IsPositive() {
		if p.stock == 0 {
			n, notify = Notification{Kind: NotifyNew, product: p, Price: price}, true
		} else if cheapest, ok := p.batches.peek(); ok && price.LessThan(cheapest.price) {
			n, notify = Notification{Kind: NotifyBargain, product: p, Price: price}, true
		}
	}
	p.insertBatch(partner, amount, price)
	return n, notify
}

func (p *Product) insertBatch(partner *Partner, amount int, price Money) *Batch {
	b := &Batch{product: p, partner: partner, price: price, amount: amount, seq: p.nextSeq}
	p.nextSeq++
	p.batches.push(b)
	p.stock += amount
	p.raiseMaxPrice(price)
	return b
}

func (p *Product) raiseMaxPrice(price Money) {
	if price.GreaterThan(p.maxPrice) {
		p.maxPrice = price
	}
}

// take removes amount units, cheapest batches first, and returns their
// total price.
func (p *Product) take(amount int) (Money, error) {
	if amount > p.stock {
		return zero, &UnavailableProductError{ProductKey: p.key, Requested: amount, Available: p.stock}
	}

	total := zero
	needed := amount
	for needed > 0 {
		b, _ := p.batches.peek()
		n := min(b.amount, needed)
		total = total.Add(b.price.Mul(Units(n)))
		b.amount -= n
		needed -= n
		if b.amount == 0 {
			p.batches.pop()
		}
	}
	p.stock -= amount
	return total, nil
}

// sell removes amount units, fabricating the shortfall of a derivate
// product from its components. Callers run checkSell first; sell itself
// does not roll back a partially fabricated sale.
func (p *Product) sell(amount int) (Money, error) {
	switch p.kind {
	case Derivate:
		if p.stock >= amount {
			return p.take(amount)
		}
		short := amount - p.stock
		fabricated := zero
		for _, c := range p.recipe.components {
			v, err := c.product.sell(short * c.amount)
			if err != nil {
				return zero, err
			}
			fabricated = fabricated.Add(v)
		}
		fabricated = fabricated.Mul(one.Add(p.recipe.aggravation))
		p.raiseMaxPrice(fabricated.Div(Units(short)))

		own, err := p.take(p.stock)
		if err != nil {
			return zero, err
		}
		return fabricated.Add(own), nil
	default:
		return p.take(amount)
	}
}

// BreakdownComponent is one component yielded by a breakdown.
type BreakdownComponent struct {
	product *Product
	Amount  int
	Price   Money
}

func (c BreakdownComponent) Product() *Product { return c.product }

// Value is the total value of the yielded units.
func (c BreakdownComponent) Value() Money {
	return c.Price.Mul(Units(c.Amount))
}

type breakdownResult struct {
	value         Money
	components    []BreakdownComponent
	notifications []Notification
}

// breakdown turns amount units of a derivate product back into its
// components, owned by partner. Simple products return ok == false.
// The value is the yielded component value minus the value taken.
func (p *Product) breakdown(partner *Partner, amount int) (breakdownResult, bool, error) {
	if p.kind != Derivate {
		return breakdownResult{}, false, nil
	}

	oldValue, err := p.take(amount)
	if err != nil {
		return breakdownResult{}, false, err
	}

	res := breakdownResult{components: make([]BreakdownComponent, 0, len(p.recipe.components))}
	newValue := zero
	for _, c := range p.recipe.components {
		units := c.amount * amount
		price := c.product.maxPrice
		if cheapest, ok := c.product.batches.peek(); ok {
			price = cheapest.price
		}
		if n, notify := c.product.addBatch(partner, units, price); notify {
			res.notifications = append(res.notifications, n)
		}
		yielded := BreakdownComponent{product: c.product, Amount: units, Price: price}
		res.components = append(res.components, yielded)
		newValue = newValue.Add(yielded.Value())
	}
	res.value = newValue.Sub(oldValue)
	return res, true, nil
}

// =============================================================================
// ORDERING
// =============================================================================

func sortProducts(ps []*Product) {
	c := keyCollator()
	sort.SliceStable(ps, func(i, j int) bool {
		return c.CompareString(ps[i].key, ps[j].key) < 0
	})
}

// sortBatches orders by product key, partner key, price, then amount.
func sortBatches(bs []*Batch) {
	c := keyCollator()
	sort.SliceStable(bs, func(i, j int) bool {
		a, b := bs[i], bs[j]
		if r := c.CompareString(a.product.key, b.product.key); r != 0 {
			return r < 0
		}
		if r := c.CompareString(a.partner.key, b.partner.key); r != 0 {
			return r < 0
		}
		if r := a.price.Cmp(b.price); r != 0 {
			return r < 0
		}
		return a.amount < b.amount
	})
}
