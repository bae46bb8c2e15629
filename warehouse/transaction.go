/*
transaction.go - Immutable records of stock and money movements

PURPOSE:
  Every mutating warehouse operation produces exactly one Transaction.
  The set of kinds is closed: *Acquisition, *Sale and *Breakdown. Code
  that handles transactions switches on the concrete type.

MUTABILITY:
  Acquisitions and breakdowns never change. A sale's real value follows
  the calendar until it is paid; payment fixes the value and the payment
  date for good.

SEE ALSO:
  - ledger.go: Holds transactions and assigns IDs
  - balance.go: Aggregates over them
*/
package warehouse

// Transaction is implemented by *Acquisition, *Sale and *Breakdown only.
type Transaction interface {
	ID() TransactionID
	Date() Date
	Amount() int
	Product() *Product
	Partner() *Partner
	String() string

	transaction()
}

type record struct {
	id      TransactionID
	date    Date
	amount  int
	product *Product
	partner *Partner
}

func (r *record) ID() TransactionID { return r.id }
func (r *record) Date() Date        { return r.date }
func (r *record) Amount() int       { return r.amount }
func (r *record) Product() *Product { return r.product }
func (r *record) Partner() *Partner { return r.partner }
func (r *record) transaction()      {}

// =============================================================================
// ACQUISITION
// =============================================================================

// Acquisition records stock bought from a partner.
type Acquisition struct {
	record
	price Money
	value Money
}

func (a *Acquisition) Price() Money { return a.price }

// Value is amount * price.
func (a *Acquisition) Value() Money { return a.value }

// =============================================================================
// SALE
// =============================================================================

// Sale records stock sold to a partner, payable by a deadline.
type Sale struct {
	record
	deadline    Date
	baseValue   Money
	realValue   Money
	paymentDate Date
}

func (s *Sale) Deadline() Date   { return s.deadline }
func (s *Sale) BaseValue() Money { return s.baseValue }

// RealValue is the amount owed at the current date, or the amount paid.
func (s *Sale) RealValue() Money { return s.realValue }

// PaymentDate is NoDate until the sale is paid.
func (s *Sale) PaymentDate() Date { return s.paymentDate }

func (s *Sale) Paid() bool { return s.paymentDate != NoDate }

// refresh recomputes the real value for the given date. Paid sales keep
// their value.
func (s *Sale) refresh(now Date) {
	if s.Paid() {
		return
	}
	s.realValue = s.partner.RealValue(s.baseValue, int(now-s.deadline), s.product.PeriodN())
}

// pay settles the sale at now. It returns false if the sale was already
// paid.
func (s *Sale) pay(now Date) bool {
	if s.Paid() {
		return false
	}
	s.refresh(now)
	s.paymentDate = now
	s.partner.registerSalePayment(int(now-s.deadline), s.realValue)
	return true
}

// =============================================================================
// BREAKDOWN
// =============================================================================

// Breakdown records a derivate product turned back into its components.
type Breakdown struct {
	record
	baseValue  Money
	paidValue  Money
	components []BreakdownComponent
}

// BaseValue is the yielded component value minus the value of the units
// broken down. It may be negative.
func (b *Breakdown) BaseValue() Money { return b.baseValue }

// PaidValue is BaseValue floored at zero. Breakdowns settle immediately.
func (b *Breakdown) PaidValue() Money { return b.paidValue }

func (b *Breakdown) Components() []BreakdownComponent {
	out := make([]BreakdownComponent, len(b.components))
	copy(out, b.components)
	return out
}
