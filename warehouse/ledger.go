/*
ledger.go - Append-only transaction ledger

PURPOSE:
  Stores every transaction in creation order. The ID of a transaction is
  the ledger size when it was created, so IDs are dense, 0-based and equal
  to the position in the ledger.

APPEND-ONLY:
  Nothing is ever removed or replaced. Only unpaid sales change, through
  refresh and pay.

PARTNER VIEWS:
  Acquisitions          *Acquisition records of the partner
  SalesAndBreakdowns    *Sale and *Breakdown records of the partner
  Paid                  paid *Sale records of the partner
  History               every record of the partner
*/
package warehouse

import "fmt"

// Ledger is the warehouse's transaction history.
type Ledger struct {
	txs []Transaction
}

func newLedger() *Ledger {
	return &Ledger{}
}

// nextID is the ID the next appended transaction receives.
func (l *Ledger) nextID() TransactionID {
	return TransactionID(len(l.txs))
}

func (l *Ledger) append(tx Transaction) {
	if tx.ID() != l.nextID() {
		panic(fmt.Sprintf("ledger: appending transaction %d at position %d", tx.ID(), l.nextID()))
	}
	l.txs = append(l.txs, tx)
}

// Len returns the number of transactions.
func (l *Ledger) Len() int { return len(l.txs) }

// Get returns the transaction with the given ID.
func (l *Ledger) Get(id TransactionID) (Transaction, error) {
	if id < 0 || int(id) >= len(l.txs) {
		return nil, &UnknownKeyError{Kind: KindTransactionKey, Key: fmt.Sprint(int(id))}
	}
	return l.txs[id], nil
}

// All returns every transaction in ID order.
func (l *Ledger) All() []Transaction {
	return l.filter(func(Transaction) bool { return true })
}

func (l *Ledger) filter(keep func(Transaction) bool) []Transaction {
	out := []Transaction{}
	for _, tx := range l.txs {
		if keep(tx) {
			out = append(out, tx)
		}
	}
	return out
}

// =============================================================================
// PARTNER VIEWS
// =============================================================================

func (l *Ledger) acquisitionsOf(p *Partner) []Transaction {
	return l.filter(func(tx Transaction) bool {
		_, ok := tx.(*Acquisition)
		return ok && tx.Partner() == p
	})
}

func (l *Ledger) salesAndBreakdownsOf(p *Partner) []Transaction {
	return l.filter(func(tx Transaction) bool {
		switch tx.(type) {
		case *Sale, *Breakdown:
			return tx.Partner() == p
		}
		return false
	})
}

func (l *Ledger) paidOf(p *Partner) []Transaction {
	return l.filter(func(tx Transaction) bool {
		s, ok := tx.(*Sale)
		return ok && s.Paid() && tx.Partner() == p
	})
}

func (l *Ledger) historyOf(p *Partner) []Transaction {
	return l.filter(func(tx Transaction) bool { return tx.Partner() == p })
}

// refreshSales recomputes the real value of every unpaid sale.
func (l *Ledger) refreshSales(now Date) {
	for _, tx := range l.txs {
		if s, ok := tx.(*Sale); ok {
			s.refresh(now)
		}
	}
}
