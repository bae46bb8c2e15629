package warehouse

import "slices"

// Partner is a supplier and customer of the warehouse.
type Partner struct {
	key     string
	name    string
	address string

	rank   Rank
	points Money

	acquisitionsValue Money
	salesValue        Money
	paidSalesValue    Money
}

func newPartner(key, name, address string) *Partner {
	return &Partner{
		key:               key,
		name:              name,
		address:           address,
		rank:              RankNormal,
		points:            zero,
		acquisitionsValue: zero,
		salesValue:        zero,
		paidSalesValue:    zero,
	}
}

func (p *Partner) Key() string     { return p.key }
func (p *Partner) Name() string    { return p.name }
func (p *Partner) Address() string { return p.address }
func (p *Partner) Rank() Rank      { return p.rank }
func (p *Partner) Points() Money   { return p.points }

// AcquisitionsValue is the total value of everything bought from the partner.
func (p *Partner) AcquisitionsValue() Money { return p.acquisitionsValue }

// SalesValue is the total base value of everything sold to the partner.
func (p *Partner) SalesValue() Money { return p.salesValue }

// PaidSalesValue is the total value actually collected from the partner.
func (p *Partner) PaidSalesValue() Money { return p.paidSalesValue }

func (p *Partner) registerAcquisition(value Money) {
	p.acquisitionsValue = p.acquisitionsValue.Add(value)
}

func (p *Partner) registerSale(baseValue Money) {
	p.salesValue = p.salesValue.Add(baseValue)
}

func (p *Partner) registerSalePayment(delay int, real Money) {
	p.paidSalesValue = p.paidSalesValue.Add(real)
	p.rank.registerSalePayment(p, delay, real)
}

// registerBreakdown awards points for a profitable breakdown.
func (p *Partner) registerBreakdown(value Money) {
	if value.IsPositive() {
		p.points = p.points.Add(value.Mul(ten))
		p.rank.onPointsChange(p)
	}
}

// RealValue is what a sale with the given base value is worth when paid
// with delay days of lateness, under the partner's current rank.
func (p *Partner) RealValue(base Money, delay, periodN int) Money {
	return p.rank.RealValue(base, delay, periodN)
}

func sortPartners(ps []*Partner) {
	c := keyCollator()
	slices.SortStableFunc(ps, func(a, b *Partner) int {
		return c.CompareString(a.key, b.key)
	})
}
