/*
balance.go - Ledger-wide balances

PURPOSE:
  Computes both warehouse balances in one pass over the ledger.

FORMULAS:
  Accounting = sum(Sale.RealValue) + sum(Breakdown.PaidValue) - sum(Acquisition.Value)
  Available  = same, but only paid sales count

  Accounting - Available therefore equals the real value of all unpaid
  sales at the current date.
*/
package warehouse

// Balances holds both ledger aggregates.
type Balances struct {
	Accounting Money
	Available  Money
}

// Balances sums every transaction's contribution.
func (l *Ledger) Balances() Balances {
	b := Balances{Accounting: zero, Available: zero}
	for _, tx := range l.txs {
		switch t := tx.(type) {
		case *Acquisition:
			b.Accounting = b.Accounting.Sub(t.value)
			b.Available = b.Available.Sub(t.value)
		case *Sale:
			b.Accounting = b.Accounting.Add(t.realValue)
			if t.Paid() {
				b.Available = b.Available.Add(t.realValue)
			}
		case *Breakdown:
			b.Accounting = b.Accounting.Add(t.paidValue)
			b.Available = b.Available.Add(t.paidValue)
		}
	}
	return b
}
