/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Acquisition, sale, date advance and payment through the router
- Error to status mapping, including the unavailable-product body
- Derivate registration, availability checks and breakdowns
- Partner view consuming notifications
- Save, load and import endpoints
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/warehouse-engine/manager"
	"github.com/warp/warehouse-engine/store/file"
	"github.com/warp/warehouse-engine/store/memory"
)

type testServer struct {
	t       *testing.T
	router  http.Handler
	manager *manager.Manager
	store   *memory.Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memory.New()
	m := manager.New(store, nil)
	return &testServer{t: t, router: NewRouter(NewHandler(m), nil), manager: m, store: store}
}

func (s *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(data)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	return rec
}

// call performs a request, checks the status and decodes the body into out.
func (s *testServer) call(method, path string, body any, status int, out any) {
	s.t.Helper()
	rec := s.do(method, path, body)
	require.Equal(s.t, status, rec.Code, rec.Body.String())
	if out != nil {
		require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), out))
	}
}

func assertMoney(t *testing.T, want, got string) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(decimal.RequireFromString(got)), "want %s, got %s", want, got)
}

// seedShop registers partner A, simple product P1 and buys 10 P1 at 5.
func (s *testServer) seedShop() {
	s.t.Helper()
	s.call("POST", "/api/partners", RegisterPartnerRequest{Key: "A", Name: "Alice", Address: "addr"}, http.StatusCreated, nil)
	s.call("POST", "/api/products", RegisterProductRequest{Key: "P1"}, http.StatusCreated, nil)
	s.call("POST", "/api/acquisitions", AcquisitionRequest{Partner: "A", Product: "P1", Amount: 10, Price: "5"}, http.StatusCreated, nil)
}

// =============================================================================
// SALES FLOW
// =============================================================================

func TestAPI_SaleLifecycle(t *testing.T) {
	// GIVEN
	s := newTestServer(t)
	s.seedShop()

	// WHEN: 4 units sold with deadline 0
	var sale TransactionDTO
	s.call("POST", "/api/sales", SaleRequest{Partner: "A", Product: "P1", Deadline: 0, Amount: 4}, http.StatusCreated, &sale)

	// THEN
	assert.Equal(t, 1, sale.ID)
	assert.Equal(t, "SALE", sale.Type)
	assertMoney(t, "20", sale.BaseValue)
	require.NotNil(t, sale.Paid)
	assert.False(t, *sale.Paid)

	var balance BalanceDTO
	s.call("GET", "/api/balance", nil, http.StatusOK, &balance)
	assertMoney(t, "-50", balance.Available)
	assertMoney(t, "-30", balance.Accounting)

	// WHEN: ten days pass and the sale is paid
	var date DateDTO
	s.call("POST", "/api/date/advance", AdvanceDateRequest{Days: 10}, http.StatusOK, &date)
	assert.Equal(t, 10, date.Date)

	var payment PaymentDTO
	s.call("POST", "/api/transactions/1/payment", nil, http.StatusOK, &payment)

	// THEN
	assertMoney(t, "40", payment.Paid)
	assert.Equal(t, "VENDA|1|A|P1|4|20|40|0|10", payment.Transaction.Display)

	s.call("GET", "/api/balance", nil, http.StatusOK, &balance)
	assertMoney(t, "-10", balance.Available)
	assertMoney(t, "-10", balance.Accounting)

	// AND: paying again collects nothing
	s.call("POST", "/api/transactions/1/payment", nil, http.StatusOK, &payment)
	assertMoney(t, "0", payment.Paid)

	var history []TransactionDTO
	s.call("GET", "/api/partners/a/transactions", nil, http.StatusOK, &history)
	require.Len(t, history, 2)
	assert.Equal(t, "COMPRA|0|A|P1|10|50|0", history[0].Display)

	var paid []TransactionDTO
	s.call("GET", "/api/partners/A/paid", nil, http.StatusOK, &paid)
	require.Len(t, paid, 1)
	assert.Equal(t, 1, paid[0].ID)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestAPI_ErrorStatuses(t *testing.T) {
	s := newTestServer(t)
	s.seedShop()

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"unknown product", "GET", "/api/products/NOPE", nil, http.StatusNotFound},
		{"unknown partner", "GET", "/api/partners/NOPE/acquisitions", nil, http.StatusNotFound},
		{"unknown transaction", "GET", "/api/transactions/99", nil, http.StatusNotFound},
		{"non-numeric transaction", "GET", "/api/transactions/abc", nil, http.StatusBadRequest},
		{"duplicate partner", "POST", "/api/partners", RegisterPartnerRequest{Key: "a", Name: "x"}, http.StatusConflict},
		{"duplicate product", "POST", "/api/products", RegisterProductRequest{Key: "p1"}, http.StatusConflict},
		{"zero-day advance", "POST", "/api/date/advance", AdvanceDateRequest{Days: 0}, http.StatusBadRequest},
		{"pay an acquisition", "POST", "/api/transactions/0/payment", nil, http.StatusBadRequest},
		{"negative amount", "POST", "/api/acquisitions", AcquisitionRequest{Partner: "A", Product: "P1", Amount: -1, Price: "1"}, http.StatusBadRequest},
		{"bad price", "POST", "/api/acquisitions", AcquisitionRequest{Partner: "A", Product: "P1", Amount: 1, Price: "cheap"}, http.StatusBadRequest},
		{"malformed body", "POST", "/api/sales", "{", http.StatusBadRequest},
		{"missing key", "POST", "/api/products", RegisterProductRequest{}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestAPI_UnavailableSale(t *testing.T) {
	s := newTestServer(t)
	s.seedShop()

	var resp ErrorResponse
	s.call("POST", "/api/sales", SaleRequest{Partner: "A", Product: "P1", Amount: 100}, http.StatusUnprocessableEntity, &resp)

	require.NotNil(t, resp.Unavailable)
	assert.Equal(t, UnavailableDTO{Product: "P1", Requested: 100, Available: 10}, *resp.Unavailable)

	var txs []TransactionDTO
	s.call("GET", "/api/transactions", nil, http.StatusOK, &txs)
	assert.Len(t, txs, 1, "rejected sale leaves no transaction")
}

// =============================================================================
// DERIVATES
// =============================================================================

func TestAPI_DerivateProducts(t *testing.T) {
	// GIVEN: a kit made of 2 C1 and 1 C2 with 10% aggravation
	s := newTestServer(t)
	s.call("POST", "/api/partners", RegisterPartnerRequest{Key: "A", Name: "Alice"}, http.StatusCreated, nil)
	for _, key := range []string{"C1", "C2"} {
		s.call("POST", "/api/products", RegisterProductRequest{Key: key}, http.StatusCreated, nil)
	}
	s.call("POST", "/api/acquisitions", AcquisitionRequest{Partner: "A", Product: "C1", Amount: 3, Price: "2"}, http.StatusCreated, nil)
	s.call("POST", "/api/acquisitions", AcquisitionRequest{Partner: "A", Product: "C2", Amount: 5, Price: "4"}, http.StatusCreated, nil)

	var kit ProductDTO
	s.call("POST", "/api/products", RegisterProductRequest{
		Key:         "KIT",
		Aggravation: "0.1",
		Components:  []ComponentDTO{{Product: "C1", Amount: 2}, {Product: "C2", Amount: 1}},
	}, http.StatusCreated, &kit)
	assert.Equal(t, "DERIVATE", kit.Kind)
	assert.Equal(t, "KIT|0|0|0.1|C1:2#C2:1", kit.Display)

	// WHEN: availability of one and two kits is checked
	var one, two AvailabilityDTO
	s.call("GET", "/api/products/KIT/availability?amount=1", nil, http.StatusOK, &one)
	s.call("GET", "/api/products/KIT/availability?amount=2", nil, http.StatusOK, &two)

	// THEN: C1 blocks the second kit
	assert.True(t, one.Available)
	assert.False(t, two.Available)
	require.NotNil(t, two.Blocker)
	assert.Equal(t, UnavailableDTO{Product: "C1", Requested: 4, Available: 3}, *two.Blocker)

	// WHEN: one kit is sold, fabricated from components
	var sale TransactionDTO
	s.call("POST", "/api/sales", SaleRequest{Partner: "A", Product: "KIT", Deadline: 5, Amount: 1}, http.StatusCreated, &sale)
	assertMoney(t, "8.8", sale.BaseValue)

	s.call("GET", "/api/products/KIT", nil, http.StatusOK, &kit)
	assertMoney(t, "8.8", kit.MaxPrice)

	// AND: a breakdown of a simple product records nothing
	rec := s.do("POST", "/api/breakdowns", BreakdownRequest{Partner: "A", Product: "C1", Amount: 1})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	// AND: a breakdown of more kits than stocked is unavailable
	var resp ErrorResponse
	s.call("POST", "/api/breakdowns", BreakdownRequest{Partner: "A", Product: "KIT", Amount: 1}, http.StatusUnprocessableEntity, &resp)
	require.NotNil(t, resp.Unavailable)
	assert.Equal(t, "KIT", resp.Unavailable.Product)
}

// =============================================================================
// PARTNERS AND NOTIFICATIONS
// =============================================================================

func TestAPI_PartnerViewConsumesNotifications(t *testing.T) {
	// GIVEN: two partners and a bargain acquisition
	s := newTestServer(t)
	s.seedShop()
	s.call("POST", "/api/partners", RegisterPartnerRequest{Key: "B", Name: "Bob", Address: "street"}, http.StatusCreated, nil)

	var sub SubscriptionDTO
	s.call("POST", "/api/partners/A/subscriptions/P1/toggle", nil, http.StatusOK, &sub)
	assert.False(t, sub.Subscribed)

	s.call("POST", "/api/acquisitions", AcquisitionRequest{Partner: "A", Product: "P1", Amount: 1, Price: "3"}, http.StatusCreated, nil)

	// WHEN
	var first, second, alice PartnerViewDTO
	s.call("GET", "/api/partners/B", nil, http.StatusOK, &first)
	s.call("GET", "/api/partners/B", nil, http.StatusOK, &second)
	s.call("GET", "/api/partners/A", nil, http.StatusOK, &alice)

	// THEN
	assert.Equal(t, "B|Bob|street|NORMAL|0|0|0|0", first.Partner)
	assert.Equal(t, []string{"BARGAIN|P1|3"}, first.Notifications)
	assert.Empty(t, second.Notifications)
	assert.Empty(t, alice.Notifications, "A unsubscribed from P1")

	var batches []BatchDTO
	s.call("GET", "/api/batches?max_price=3", nil, http.StatusOK, &batches)
	require.Len(t, batches, 1)
	assert.Equal(t, "P1|A|3|1", batches[0].Display)
}

// =============================================================================
// STATE
// =============================================================================

func TestAPI_SaveLoadImport(t *testing.T) {
	s := newTestServer(t)

	// Save needs an association
	s.call("POST", "/api/state/save", nil, http.StatusConflict, nil)

	// Import
	var state StateDTO
	s.call("POST", "/api/state/import", "PARTNER|A|Alice|Rua 1\nBATCH_S|P1|A|5|10\n", http.StatusOK, &state)
	assert.True(t, state.Dirty)

	var resp ErrorResponse
	s.call("POST", "/api/state/import", "PARTNER|B|Bob|x\nGIFT|P1\n", http.StatusBadRequest, &resp)
	assert.Equal(t, 2, resp.Line)

	var partners []PartnerDTO
	s.call("GET", "/api/partners", nil, http.StatusOK, &partners)
	assert.Len(t, partners, 1, "failed import changes nothing")

	// Save as, then change and load back
	s.call("POST", "/api/state/save-as", SnapshotRequest{Name: "main"}, http.StatusOK, &state)
	assert.Equal(t, "main", state.Association)
	assert.False(t, state.Dirty)

	s.call("POST", "/api/date/advance", AdvanceDateRequest{Days: 3}, http.StatusOK, nil)
	s.call("GET", "/api/state", nil, http.StatusOK, &state)
	assert.True(t, state.Dirty)

	s.call("POST", "/api/state/load", SnapshotRequest{Name: "main"}, http.StatusOK, &state)
	assert.False(t, state.Dirty)

	var date DateDTO
	s.call("GET", "/api/date", nil, http.StatusOK, &date)
	assert.Equal(t, 0, date.Date)

	// Unknown snapshot
	s.call("POST", "/api/state/load", SnapshotRequest{Name: "missing"}, http.StatusNotFound, nil)

	// Full snapshot
	rec := s.do("GET", "/api/state/snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"key":"P1"`)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestAPI_Scenarios(t *testing.T) {
	s := newTestServer(t)

	var list []ScenarioDTO
	s.call("GET", "/api/scenarios", nil, http.StatusOK, &list)
	require.Len(t, list, len(scenarios))

	for _, sc := range list {
		var loaded, current ScenarioDTO
		s.call("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: sc.ID}, http.StatusOK, &loaded)
		assert.Equal(t, sc, loaded)

		s.call("GET", "/api/scenarios/current", nil, http.StatusOK, &current)
		assert.Equal(t, sc.ID, current.ID)
	}

	s.call("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "nope"}, http.StatusNotFound, nil)
}

func TestAPI_ScenarioContents(t *testing.T) {
	s := newTestServer(t)

	s.call("POST", "/api/scenarios/load", LoadScenarioRequest{ScenarioID: "late-payers"}, http.StatusOK, nil)

	var partners []PartnerDTO
	s.call("GET", "/api/partners", nil, http.StatusOK, &partners)
	require.Len(t, partners, 2)
	assert.Equal(t, "SELECTION", partners[0].Rank, partners[0].Display)
	assert.Equal(t, "NORMAL", partners[1].Rank)

	var txs []TransactionDTO
	s.call("GET", "/api/partners/T2/sales", nil, http.StatusOK, &txs)
	require.Len(t, txs, 1)
	assert.True(t, *txs[0].Paid)
	assert.True(t, decimal.RequireFromString(txs[0].RealValue).GreaterThan(decimal.RequireFromString(txs[0].BaseValue)),
		"late payment is fined")
}

func TestAPI_SnapshotNamesStayInDataDir(t *testing.T) {
	parent := t.TempDir()
	store, err := file.New(filepath.Join(parent, "data"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	s := &testServer{t: t, router: NewRouter(NewHandler(manager.New(store, nil)), nil)}

	for _, name := range []string{"../escaped", filepath.Join(parent, "abs-target")} {
		var resp ErrorResponse
		s.call("POST", "/api/state/save-as", SnapshotRequest{Name: name}, http.StatusBadRequest, &resp)
		assert.Equal(t, "Invalid snapshot name", resp.Error)

		s.call("POST", "/api/state/load", SnapshotRequest{Name: name}, http.StatusBadRequest, &resp)
		assert.Equal(t, "Invalid snapshot name", resp.Error)
	}

	entries, err := os.ReadDir(parent)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	var state StateDTO
	s.call("POST", "/api/state/save-as", SnapshotRequest{Name: "daily/mon"}, http.StatusOK, &state)
	assert.Equal(t, "daily/mon", state.Association)
}
