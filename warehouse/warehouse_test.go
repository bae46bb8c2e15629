/*
warehouse_test.go - End-to-end tests of the warehouse operations

Tests for:
- Acquisition, sale, payment and balance scenarios
- Fabrication and availability failures
- Breakdowns
- Notifications and subscriptions
- Partner transaction views
- Key handling and validation errors
*/
package warehouse_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/warehouse-engine/warehouse"
)

func m(s string) warehouse.Money { return decimal.RequireFromString(s) }

func assertMoney(t *testing.T, want string, got warehouse.Money, msgAndArgs ...any) {
	t.Helper()
	if !m(want).Equal(got) {
		assert.Fail(t, "money mismatch: want "+want+", got "+got.String(), msgAndArgs...)
	}
}

func strings[T interface{ String() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

// newShop returns a warehouse with partner A and simple product P1.
func newShop(t *testing.T) *warehouse.Warehouse {
	t.Helper()
	w := warehouse.New()
	_, err := w.RegisterProduct("P1")
	require.NoError(t, err)
	_, err = w.RegisterPartner("A", "Alice", "addr")
	require.NoError(t, err)
	return w
}

// =============================================================================
// SALES AND BALANCES
// =============================================================================

func TestScenario_AcquireSellAdvancePay(t *testing.T) {
	// GIVEN: 10 units of P1 bought at 5
	w := newShop(t)
	acq, err := w.RegisterAcquisition("A", "P1", 10, m("5"))
	require.NoError(t, err)
	assert.Equal(t, warehouse.TransactionID(0), acq.ID())

	p1, _ := w.Product("P1")
	assert.Equal(t, 10, p1.Stock())
	assertMoney(t, "5", p1.MaxPrice())
	assertMoney(t, "-50", w.AccountingBalance())

	// WHEN: 4 units sold with deadline today
	sale, err := w.RegisterSale("A", "P1", 0, 4)
	require.NoError(t, err)

	// THEN
	assert.Equal(t, warehouse.TransactionID(1), sale.ID())
	assertMoney(t, "20", sale.BaseValue())
	assertMoney(t, "20", sale.RealValue())
	assert.Equal(t, 6, p1.Stock())
	assert.False(t, sale.Paid())

	// WHEN: ten days pass, beyond the 5-day period of a simple product
	require.NoError(t, w.AdvanceDate(10))

	// THEN: Normal curve past periodN: 20 * (1 + 0.10*10)
	assertMoney(t, "40", sale.RealValue())

	// WHEN: paid
	paid, err := w.ReceiveSalePayment(sale.ID())
	require.NoError(t, err)

	// THEN: value frozen
	assertMoney(t, "40", paid)
	assert.Equal(t, warehouse.Date(10), sale.PaymentDate())
	require.NoError(t, w.AdvanceDate(5))
	assertMoney(t, "40", sale.RealValue())

	assertMoney(t, "-10", w.AccountingBalance())
	assertMoney(t, "-10", w.AvailableBalance())

	alice, _ := w.Partner("A")
	assertMoney(t, "0", alice.Points(), "late payment earns nothing")
	assertMoney(t, "40", alice.PaidSalesValue())
	assertMoney(t, "20", alice.SalesValue())
	assertMoney(t, "50", alice.AcquisitionsValue())
}

func TestScenario_LateWithinPeriod(t *testing.T) {
	w := newShop(t)
	_, err := w.RegisterAcquisition("A", "P1", 10, m("5"))
	require.NoError(t, err)
	sale, err := w.RegisterSale("A", "P1", 0, 4)
	require.NoError(t, err)

	require.NoError(t, w.AdvanceDate(4))

	// 20 * (1 + 0.05*4)
	assertMoney(t, "24", sale.RealValue())
	assert.Equal(t, "VENDA|1|A|P1|4|20|24|0", sale.String())
}

func TestScenario_EarlyPaymentEarnsPoints(t *testing.T) {
	// GIVEN: a sale due in 10 days
	w := newShop(t)
	_, err := w.RegisterAcquisition("A", "P1", 100, m("50"))
	require.NoError(t, err)
	sale, err := w.RegisterSale("A", "P1", 10, 50)
	require.NoError(t, err)

	// THEN: 10 days early is beyond the period: 10% discount
	assertMoney(t, "2250", sale.RealValue())

	// WHEN: paid immediately
	_, err = w.ReceiveSalePayment(sale.ID())
	require.NoError(t, err)

	// THEN: 22500 points promotes to Selection
	alice, _ := w.Partner("A")
	assertMoney(t, "22500", alice.Points())
	assert.Equal(t, warehouse.RankSelection, alice.Rank())
	assert.Equal(t, "A|Alice|addr|SELECTION|22500|5000|2500|2250", alice.String())
}

func TestBalances_DifferenceIsUnpaidSales(t *testing.T) {
	// GIVEN: a mix of paid and unpaid sales across several dates
	w := newShop(t)
	_, err := w.RegisterAcquisition("A", "P1", 100, m("3"))
	require.NoError(t, err)

	var sales []*warehouse.Sale
	for i, deadline := range []warehouse.Date{0, 3, 8, 20} {
		s, err := w.RegisterSale("A", "P1", deadline, 5+i)
		require.NoError(t, err)
		sales = append(sales, s)
	}
	require.NoError(t, w.AdvanceDate(4))
	_, err = w.ReceiveSalePayment(sales[1].ID())
	require.NoError(t, err)
	require.NoError(t, w.AdvanceDate(7))

	// WHEN
	b := w.Balances()

	// THEN
	unpaid := decimal.Zero
	for _, s := range sales {
		if !s.Paid() {
			unpaid = unpaid.Add(s.RealValue())
		}
	}
	assert.True(t, b.Accounting.Sub(b.Available).Equal(unpaid),
		"accounting %s - available %s != unpaid %s", b.Accounting, b.Available, unpaid)
}

func TestReceiveSalePayment_Errors(t *testing.T) {
	w := newShop(t)
	acq, err := w.RegisterAcquisition("A", "P1", 10, m("5"))
	require.NoError(t, err)

	_, err = w.ReceiveSalePayment(acq.ID())
	assert.ErrorIs(t, err, warehouse.ErrNotSale)

	_, err = w.ReceiveSalePayment(42)
	assert.ErrorIs(t, err, warehouse.ErrUnknownTransaction)
	assert.True(t, warehouse.IsNotFound(err))

	sale, err := w.RegisterSale("A", "P1", 0, 1)
	require.NoError(t, err)
	_, err = w.ReceiveSalePayment(sale.ID())
	require.NoError(t, err)

	again, err := w.ReceiveSalePayment(sale.ID())
	require.NoError(t, err, "paying twice is a no-op")
	assert.True(t, again.IsZero())
}

func TestAdvanceDate_RejectsNonPositive(t *testing.T) {
	w := warehouse.New()

	for _, days := range []int{0, -3} {
		err := w.AdvanceDate(days)
		var dateErr *warehouse.InvalidDateError
		require.ErrorAs(t, err, &dateErr)
		assert.Equal(t, days, dateErr.Days)
	}
	assert.Equal(t, warehouse.Date(0), w.Date())
}

// =============================================================================
// FABRICATION AND AVAILABILITY
// =============================================================================

func TestSale_DerivateWithoutComponents(t *testing.T) {
	// GIVEN: D = 1 C, 10% surcharge, nothing in stock
	w := newShop(t)
	_, err := w.RegisterProduct("C")
	require.NoError(t, err)
	_, err = w.RegisterDerivateProduct("D", m("0.1"), []string{"C"}, []int{1})
	require.NoError(t, err)

	// WHEN
	_, err = w.RegisterSale("A", "D", 5, 3)

	// THEN: C is identified with the amount required
	var unavailable *warehouse.UnavailableProductError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "C", unavailable.ProductKey)
	assert.Equal(t, 3, unavailable.Requested)
	assert.Equal(t, 0, unavailable.Available)
	assert.Empty(t, w.Transactions())
}

func TestSale_FabricatesNestedRecipe(t *testing.T) {
	// GIVEN: CAKE = 2 DOUGH + 1 EGG, DOUGH = 3 FLOUR, all from stock
	w := newShop(t)
	for _, k := range []string{"FLOUR", "EGG"} {
		_, err := w.RegisterProduct(k)
		require.NoError(t, err)
	}
	_, err := w.RegisterDerivateProduct("DOUGH", m("0"), []string{"FLOUR"}, []int{3})
	require.NoError(t, err)
	_, err = w.RegisterDerivateProduct("CAKE", m("0.5"), []string{"DOUGH", "EGG"}, []int{2, 1})
	require.NoError(t, err)

	_, err = w.RegisterAcquisition("A", "FLOUR", 20, m("1"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "EGG", 5, m("2"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "DOUGH", 1, m("4"))
	require.NoError(t, err)

	require.NoError(t, w.CheckSale("CAKE", 2))

	// WHEN: 2 cakes: 4 dough (1 stocked + 3 made from 9 flour) and 2 eggs
	sale, err := w.RegisterSale("A", "CAKE", 0, 2)
	require.NoError(t, err)

	// THEN: dough = 9 + 4 = 13; cake = (13 + 4) * 1.5
	assertMoney(t, "25.5", sale.BaseValue())
	flour, _ := w.Product("FLOUR")
	egg, _ := w.Product("EGG")
	dough, _ := w.Product("DOUGH")
	assert.Equal(t, 11, flour.Stock())
	assert.Equal(t, 3, egg.Stock())
	assert.Equal(t, 0, dough.Stock())
	assertMoney(t, "4", dough.MaxPrice(), "fabricated dough cost 3 per unit, below the stocked 4")
}

func TestCheckSale_ReportsTotalShortfallOfFirstBlocker(t *testing.T) {
	// GIVEN: MIX = 2 A + 1 B + 1 SUB, SUB = 3 A; A and B both short
	w := warehouse.New()
	_, err := w.RegisterPartner("S", "Supplier", "x")
	require.NoError(t, err)
	for _, k := range []string{"A", "B"} {
		_, err := w.RegisterProduct(k)
		require.NoError(t, err)
	}
	_, err = w.RegisterDerivateProduct("SUB", m("0"), []string{"A"}, []int{3})
	require.NoError(t, err)
	_, err = w.RegisterDerivateProduct("MIX", m("0"), []string{"A", "B", "SUB"}, []int{2, 1, 1})
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("S", "A", 3, m("1"))
	require.NoError(t, err)

	// WHEN: 2 MIX needs 4 A directly and 6 A through SUB
	err = w.CheckSale("MIX", 2)

	// THEN: A is reported first, with the total requirement
	var unavailable *warehouse.UnavailableProductError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, warehouse.UnavailableProductError{ProductKey: "A", Requested: 10, Available: 3}, *unavailable)
}

func TestSale_SimpleProductShortReportsItself(t *testing.T) {
	w := newShop(t)
	_, err := w.RegisterAcquisition("A", "P1", 2, m("1"))
	require.NoError(t, err)

	_, err = w.RegisterSale("A", "P1", 0, 3)

	assert.Equal(t, &warehouse.UnavailableProductError{ProductKey: "P1", Requested: 3, Available: 2}, err)
}

// =============================================================================
// BREAKDOWN
// =============================================================================

func newKitShop(t *testing.T) *warehouse.Warehouse {
	t.Helper()
	w := newShop(t)
	for _, k := range []string{"C1", "C2"} {
		_, err := w.RegisterProduct(k)
		require.NoError(t, err)
	}
	_, err := w.RegisterDerivateProduct("KIT", m("0"), []string{"C1", "C2"}, []int{2, 1})
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "C1", 10, m("3"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "C2", 10, m("4"))
	require.NoError(t, err)
	return w
}

func TestBreakdown_Loss(t *testing.T) {
	// GIVEN: 5 kits bought at 20 each
	w := newKitShop(t)
	_, err := w.RegisterAcquisition("A", "KIT", 5, m("20"))
	require.NoError(t, err)

	// WHEN: 2 kits broken down
	b, err := w.RegisterBreakdown("A", "KIT", 2)
	require.NoError(t, err)
	require.NotNil(t, b)

	// THEN: 4 C1 at 3 + 2 C2 at 4 = 20, against 40 taken
	assertMoney(t, "-20", b.BaseValue())
	assertMoney(t, "0", b.PaidValue())
	assert.Equal(t, "DESAGREGAÇÃO|3|A|KIT|2|-20|0|0|C1:4:12#C2:2:8", b.String())

	kit, _ := w.Product("KIT")
	c1, _ := w.Product("C1")
	c2, _ := w.Product("C2")
	assert.Equal(t, 3, kit.Stock())
	assert.Equal(t, 14, c1.Stock())
	assert.Equal(t, 12, c2.Stock())

	alice, _ := w.Partner("A")
	assertMoney(t, "0", alice.Points())
}

func TestBreakdown_GainAwardsPoints(t *testing.T) {
	w := newKitShop(t)
	_, err := w.RegisterAcquisition("A", "KIT", 5, m("2"))
	require.NoError(t, err)
	before := w.AccountingBalance()

	b, err := w.RegisterBreakdown("A", "KIT", 2)
	require.NoError(t, err)

	assertMoney(t, "16", b.BaseValue())
	assertMoney(t, "16", b.PaidValue())
	assertMoney(t, before.Add(m("16")).String(), w.AccountingBalance())
	alice, _ := w.Partner("A")
	assertMoney(t, "160", alice.Points())

	txs, err := w.PartnerSalesAndBreakdowns("A")
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Same(t, b, txs[0])
}

func TestBreakdown_SimpleProductIsNoop(t *testing.T) {
	w := newShop(t)
	_, err := w.RegisterAcquisition("A", "P1", 5, m("2"))
	require.NoError(t, err)

	b, err := w.RegisterBreakdown("A", "P1", 2)

	require.NoError(t, err)
	assert.Nil(t, b)
	assert.Len(t, w.Transactions(), 1)
}

func TestBreakdown_MoreThanStock(t *testing.T) {
	w := newKitShop(t)
	_, err := w.RegisterAcquisition("A", "KIT", 1, m("2"))
	require.NoError(t, err)

	_, err = w.RegisterBreakdown("A", "KIT", 2)

	var unavailable *warehouse.UnavailableProductError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, warehouse.UnavailableProductError{ProductKey: "KIT", Requested: 2, Available: 1}, *unavailable)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func TestNotifications_DefaultSubscriptionsAndToggle(t *testing.T) {
	// GIVEN: two partners, both subscribed by default
	w := newShop(t)
	_, err := w.RegisterPartner("B", "Bob", "addr")
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "P1", 10, m("5"))
	require.NoError(t, err)
	_, err = w.RegisterSale("A", "P1", 0, 10)
	require.NoError(t, err)

	// WHEN: restocked after selling out
	_, err = w.RegisterAcquisition("B", "P1", 5, m("6"))
	require.NoError(t, err)

	// AND: B unsubscribes before a bargain arrives
	on, err := w.ToggleNotification("B", "P1")
	require.NoError(t, err)
	assert.False(t, on)
	_, err = w.RegisterAcquisition("B", "P1", 5, m("4"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("B", "P1", 5, m("7"))
	require.NoError(t, err)

	// THEN
	a, err := w.PartnerNotifications("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW|P1|6", "BARGAIN|P1|4"}, strings(a))

	b, err := w.PartnerNotifications("B")
	require.NoError(t, err)
	assert.Equal(t, []string{"NEW|P1|6"}, strings(b))

	again, err := w.PartnerNotifications("A")
	require.NoError(t, err)
	assert.Empty(t, again, "reading drains the queue")

	on, err = w.ToggleNotification("B", "P1")
	require.NoError(t, err)
	assert.True(t, on)
}

func TestNotifications_NewProductSubscribesExistingPartners(t *testing.T) {
	w := newShop(t)
	_, err := w.RegisterProduct("P2")
	require.NoError(t, err)

	on, err := w.Subscribed("A", "P2")
	require.NoError(t, err)
	assert.True(t, on)
}

// =============================================================================
// QUERIES AND KEYS
// =============================================================================

func TestKeys_CaseInsensitive(t *testing.T) {
	w := newShop(t)

	_, err := w.RegisterProduct("p1")
	assert.ErrorIs(t, err, warehouse.ErrDuplicateProduct)
	assert.True(t, warehouse.IsConflict(err))

	_, err = w.RegisterPartner("a", "Other", "x")
	assert.ErrorIs(t, err, warehouse.ErrDuplicatePartner)

	p, err := w.Product("p1")
	require.NoError(t, err)
	assert.Equal(t, "P1", p.Key(), "registered spelling is kept")

	_, err = w.RegisterAcquisition("a", "p1", 1, m("1"))
	assert.NoError(t, err)
}

func TestListings_Order(t *testing.T) {
	// GIVEN: keys registered out of order with mixed case
	w := warehouse.New()
	for _, k := range []string{"zeta", "Alpha", "beta"} {
		_, err := w.RegisterProduct(k)
		require.NoError(t, err)
		_, err = w.RegisterPartner("p-"+k, k, "x")
		require.NoError(t, err)
	}
	_, err := w.RegisterAcquisition("p-zeta", "beta", 3, m("2"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("p-Alpha", "beta", 1, m("9"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("p-Alpha", "beta", 4, m("2"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("p-beta", "Alpha", 2, m("5"))
	require.NoError(t, err)

	// THEN
	assert.Equal(t, []string{"Alpha|5|2", "beta|9|8", "zeta|0|0"}, strings(w.Products()))
	assert.Equal(t, []string{
		"Alpha|p-beta|5|2",
		"beta|p-Alpha|2|4",
		"beta|p-Alpha|9|1",
		"beta|p-zeta|2|3",
	}, strings(w.Batches()))

	byPrice := w.BatchesByPrice(m("5"))
	assert.Equal(t, []string{"Alpha|p-beta|5|2", "beta|p-Alpha|2|4", "beta|p-zeta|2|3"}, strings(byPrice))

	byPartner, err := w.BatchesByPartner("P-ALPHA")
	require.NoError(t, err)
	assert.Len(t, byPartner, 2)

	_, err = w.BatchesByPartner("nobody")
	assert.ErrorIs(t, err, warehouse.ErrUnknownPartner)

	partners := w.Partners()
	require.Len(t, partners, 3)
	assert.Equal(t, "p-Alpha", partners[0].Key())
}

func TestPartnerViews(t *testing.T) {
	// GIVEN: A buys, sells and is paid; B only buys
	w := newShop(t)
	_, err := w.RegisterPartner("B", "Bob", "addr")
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "P1", 10, m("1"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("B", "P1", 10, m("1"))
	require.NoError(t, err)
	paid, err := w.RegisterSale("A", "P1", 0, 2)
	require.NoError(t, err)
	_, err = w.RegisterSale("A", "P1", 0, 2)
	require.NoError(t, err)
	_, err = w.ReceiveSalePayment(paid.ID())
	require.NoError(t, err)

	ids := func(txs []warehouse.Transaction, err error) []warehouse.TransactionID {
		require.NoError(t, err)
		out := []warehouse.TransactionID{}
		for _, tx := range txs {
			out = append(out, tx.ID())
		}
		return out
	}

	// THEN
	assert.Equal(t, []warehouse.TransactionID{0}, ids(w.PartnerAcquisitions("A")))
	assert.Equal(t, []warehouse.TransactionID{2, 3}, ids(w.PartnerSalesAndBreakdowns("A")))
	assert.Equal(t, []warehouse.TransactionID{2}, ids(w.PartnerPaidTransactions("A")))
	assert.Equal(t, []warehouse.TransactionID{0, 2, 3}, ids(w.PartnerTransactions("A")))
	assert.Equal(t, []warehouse.TransactionID{1}, ids(w.PartnerTransactions("b")))

	_, err = w.PartnerTransactions("nobody")
	assert.ErrorIs(t, err, warehouse.ErrUnknownPartner)
}

func TestRegisterDerivateProduct_Errors(t *testing.T) {
	w := newShop(t)

	_, err := w.RegisterDerivateProduct("D", m("0"), []string{"P1", "MISSING"}, []int{1, 1})
	var unknown *warehouse.UnknownKeyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "MISSING", unknown.Key)

	_, err = w.RegisterDerivateProduct("D", m("0"), []string{"P1"}, []int{1, 2})
	assert.ErrorIs(t, err, warehouse.ErrInvalidRecipe)

	_, err = w.RegisterDerivateProduct("P1", m("0"), []string{"P1"}, []int{1})
	assert.ErrorIs(t, err, warehouse.ErrDuplicateProduct)

	assert.False(t, w.HasProduct("D"))
}

func TestInvalidAmounts(t *testing.T) {
	w := newShop(t)

	_, err := w.RegisterAcquisition("A", "P1", 0, m("1"))
	assert.ErrorIs(t, err, warehouse.ErrInvalidAmount)
	_, err = w.RegisterAcquisition("A", "P1", 1, m("-1"))
	assert.ErrorIs(t, err, warehouse.ErrInvalidAmount)
	_, err = w.RegisterSale("A", "P1", 0, -1)
	assert.ErrorIs(t, err, warehouse.ErrInvalidAmount)
	_, err = w.RegisterBreakdown("A", "P1", 0)
	assert.ErrorIs(t, err, warehouse.ErrInvalidAmount)
	assert.True(t, warehouse.IsClientError(err))
	assert.Empty(t, w.Transactions())
}
