package warehouse

import (
	"fmt"
	"strings"
)

// Display formats. Money is rounded half-up to whole units.
//
//	product      key|maxPrice|stock[|aggravation|c1:a1#c2:a2]
//	batch        product|partner|price|amount
//	partner      key|name|address|RANK|points|acquisitions|sales|paid
//	notification KIND|product|price
//	acquisition  COMPRA|id|partner|product|amount|value|date
//	sale         VENDA|id|partner|product|amount|base|real|deadline[|paymentDate]
//	breakdown    DESAGREGAÇÃO|id|partner|product|amount|base|paid|date|c:amount:value#...

func (p *Product) String() string {
	s := fmt.Sprintf("%s|%d|%d", p.key, Round(p.maxPrice), p.stock)
	if p.recipe == nil {
		return s
	}
	parts := make([]string, len(p.recipe.components))
	for i, c := range p.recipe.components {
		parts[i] = fmt.Sprintf("%s:%d", c.product.key, c.amount)
	}
	return s + "|" + p.recipe.aggravation.String() + "|" + strings.Join(parts, "#")
}

func (b *Batch) String() string {
	return fmt.Sprintf("%s|%s|%d|%d", b.product.key, b.partner.key, Round(b.price), b.amount)
}

func (p *Partner) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d|%d",
		p.key, p.name, p.address, p.rank,
		Round(p.points), Round(p.acquisitionsValue), Round(p.salesValue), Round(p.paidSalesValue))
}

func (n Notification) String() string {
	return fmt.Sprintf("%s|%s|%d", n.Kind, n.product.key, Round(n.Price))
}

func (r *record) prefix() string {
	return fmt.Sprintf("%d|%s|%s|%d", r.id, r.partner.key, r.product.key, r.amount)
}

func (a *Acquisition) String() string {
	return fmt.Sprintf("COMPRA|%s|%d|%d", a.prefix(), Round(a.value), a.date)
}

func (s *Sale) String() string {
	out := fmt.Sprintf("VENDA|%s|%d|%d|%d", s.prefix(), Round(s.baseValue), Round(s.realValue), s.deadline)
	if s.Paid() {
		out += fmt.Sprintf("|%d", s.paymentDate)
	}
	return out
}

func (b *Breakdown) String() string {
	parts := make([]string, len(b.components))
	for i, c := range b.components {
		parts[i] = fmt.Sprintf("%s:%d:%d", c.product.key, c.Amount, Round(c.Value()))
	}
	return fmt.Sprintf("DESAGREGAÇÃO|%s|%d|%d|%d|%s",
		b.prefix(), Round(b.baseValue), Round(b.paidValue), b.date, strings.Join(parts, "#"))
}
