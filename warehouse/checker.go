/*
checker.go - Availability checking without side effects

PURPOSE:
  Decides whether sell(amount) on a product would succeed, using only
  virtual stock counters. Nothing is taken, fabricated or priced.

ALGORITHM:
  Pass 1 (find): walk the product tree depth-first in recipe order,
  reserving the requested amount against a per-product virtual stock
  (initialized lazily to the real stock). A derivate product whose virtual
  stock is short pushes (shortfall * perUnit) onto each component and
  recurses. The first simple product that cannot cover its requirement is
  the blocker; the walk stops there.

  Pass 2 (count): walk the tree again from the root using real stocks and
  sum every requirement that lands on the blocker. That total is reported
  as the requested amount, with the blocker's real stock as available.

  With several short components only the first one in recipe order is
  reported.

EXAMPLE:
  Cake = 2 Flour + 1 Egg, Flour stock 3, Egg stock 10, Cake stock 0.
  checkSell(Cake, 2):
    Pass 1: Cake short 2 -> Flour needs 4 > 3 -> blocker Flour
    Pass 2: Cake short 2 -> Flour needs 4
    Result: Unavailable{Flour, requested 4, available 3}

SEE ALSO:
  - product.go: sell() follows the same recursion for real
*/
package warehouse

type sellChecker struct {
	virtual       map[*Product]int
	missing       *Product
	missingAmount int
}

// checkSell returns an *UnavailableProductError if amount units of p
// cannot be sold, fabricating as needed.
func checkSell(p *Product, amount int) error {
	if p.kind == Simple {
		if p.stock < amount {
			return &UnavailableProductError{ProductKey: p.key, Requested: amount, Available: p.stock}
		}
		return nil
	}

	c := &sellChecker{virtual: make(map[*Product]int)}
	c.findMissing(p, amount)
	if c.missing == nil {
		return nil
	}

	c.countMissing(p, amount)
	return &UnavailableProductError{
		ProductKey: c.missing.key,
		Requested:  c.missingAmount,
		Available:  c.missing.stock,
	}
}

func (c *sellChecker) stockOf(p *Product) int {
	if v, ok := c.virtual[p]; ok {
		return v
	}
	c.virtual[p] = p.stock
	return p.stock
}

func (c *sellChecker) findMissing(p *Product, need int) {
	current := c.stockOf(p)

	if p.kind == Simple {
		if current < need {
			c.missing = p
			return
		}
		c.virtual[p] = current - need
		return
	}

	required := need - current
	if required <= 0 {
		c.virtual[p] = -required
		return
	}
	for _, comp := range p.recipe.components {
		c.findMissing(comp.product, required*comp.amount)
		if c.missing != nil {
			return
		}
	}
	c.virtual[p] = 0
}

func (c *sellChecker) countMissing(p *Product, need int) {
	if p.kind == Simple {
		if p == c.missing {
			c.missingAmount += need
		}
		return
	}

	required := need - p.stock
	if required <= 0 {
		return
	}
	for _, comp := range p.recipe.components {
		c.countMissing(comp.product, required*comp.amount)
	}
}
