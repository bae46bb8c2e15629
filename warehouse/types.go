/*
types.go - Core value types for the warehouse engine

PURPOSE:
  Defines the primitive vocabulary shared by every component: the simulated
  calendar (Date), money (decimal-backed), transaction identifiers and the
  key handling rules for products and partners.

MONEY:
  All prices, values, balances and loyalty points are decimal.Decimal.
  Floating point is never used for arithmetic; it only appears at the edges
  (JSON input, import files) and is converted immediately.

  Display rounds half-up to whole units:
    12.5 -> 13
    12.4 -> 12
    -0.5 -> 0

KEYS:
  Product and partner keys are case-insensitive. "Hammer" and "HAMMER" name
  the same product. Lookups fold the key; display order uses a
  case-insensitive collation.

SEE ALSO:
  - product.go: Uses Money for batch prices
  - format.go: Uses Round for display
*/
package warehouse

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// =============================================================================
// CALENDAR
// =============================================================================

// Date is a day on the warehouse's simulated calendar. The calendar starts
// at day 0 and only moves forward.
type Date int

// NoDate marks the payment date of a sale that has not been paid yet.
const NoDate Date = -1

// =============================================================================
// MONEY
// =============================================================================

// Money is a monetary value. It is an alias so callers can use the full
// decimal.Decimal API directly.
type Money = decimal.Decimal

var (
	zero = decimal.Zero
	one  = decimal.NewFromInt(1)
	half = decimal.NewFromFloat(0.5)
	ten  = decimal.NewFromInt(10)
)

// NewMoney converts a float into Money.
func NewMoney(v float64) Money {
	return decimal.NewFromFloat(v)
}

// Units converts a unit count into Money for multiplication.
func Units(n int) Money {
	return decimal.NewFromInt(int64(n))
}

// Round rounds half-up to a whole number, the way every displayed value is
// rendered.
func Round(m Money) int64 {
	return m.Add(half).Floor().IntPart()
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

// TransactionID identifies a transaction. IDs are assigned densely from 0 in
// creation order.
type TransactionID int

// KeyKind names what a key refers to, for error reporting.
type KeyKind string

const (
	KindProductKey     KeyKind = "product"
	KindPartnerKey     KeyKind = "partner"
	KindTransactionKey KeyKind = "transaction"
)

// foldKey returns the canonical form of a product or partner key used for
// map lookups.
func foldKey(key string) string {
	return cases.Fold().String(key)
}

// keyCollator returns a collator ordering keys case-insensitively.
// Collators keep internal buffers, so each sort gets its own.
func keyCollator() *collate.Collator {
	return collate.New(language.Portuguese, collate.IgnoreCase)
}
