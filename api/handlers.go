/*
handlers.go - HTTP API handlers for the warehouse engine

PURPOSE:
  Exposes the warehouse engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the manager, which serializes every
  call against the single live warehouse.

ENDPOINTS:
  Warehouse:
    GET    /api/date                          Current date
    POST   /api/date/advance                  Advance the date
    GET    /api/balance                       Available and accounting balance

  Products:
    GET    /api/products                      List products
    POST   /api/products                      Register simple or derivate product
    GET    /api/products/{key}                Product details
    GET    /api/products/{key}/batches        Batches of a product
    GET    /api/products/{key}/availability   Check a sale (?amount=N)

  Batches:
    GET    /api/batches                       All batches (?max_price=P filters price <= P)

  Partners:
    GET    /api/partners                      List partners
    POST   /api/partners                      Register partner
    GET    /api/partners/{key}                Partner line + pending notifications (consumed)
    GET    /api/partners/{key}/batches        Batches supplied by partner
    GET    /api/partners/{key}/acquisitions   Partner acquisitions
    GET    /api/partners/{key}/sales          Partner sales and breakdowns
    GET    /api/partners/{key}/paid           Partner paid transactions
    GET    /api/partners/{key}/transactions   Full partner history
    POST   /api/partners/{key}/subscriptions/{product}/toggle

  Transactions:
    GET    /api/transactions                  Ledger in id order
    GET    /api/transactions/{id}             One transaction
    POST   /api/transactions/{id}/payment     Receive sale payment
    POST   /api/acquisitions                  Register acquisition
    POST   /api/sales                         Register sale
    POST   /api/breakdowns                    Register breakdown

  State:
    GET    /api/state                         Association and dirty flag
    GET    /api/state/snapshot                Full serializable state
    POST   /api/state/save                    Save to the associated snapshot
    POST   /api/state/save-as                 Save under a new name
    POST   /api/state/load                    Load a snapshot
    POST   /api/state/import                  Bulk text import (request body)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input, bad import entry, paying a non-sale, bad snapshot name
  - 404: Unknown product, partner, transaction or snapshot
  - 409: Duplicate key, save without association
  - 422: Product unavailable (body carries the blocking product), corrupt snapshot
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warp/warehouse-engine/importer"
	"github.com/warp/warehouse-engine/manager"
	"github.com/warp/warehouse-engine/warehouse"
)

// maxImportSize caps the body of an import request.
const maxImportSize = 8 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Manager *manager.Manager

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over m.
func NewHandler(m *manager.Manager) *Handler {
	return &Handler{Manager: m}
}

// =============================================================================
// WAREHOUSE ENDPOINTS
// =============================================================================

// GetDate returns the current date.
// GET /api/date
func (h *Handler) GetDate(w http.ResponseWriter, r *http.Request) {
	var dto DateDTO
	h.Manager.Read(func(wh *warehouse.Warehouse) error {
		dto.Date = int(wh.Date())
		return nil
	})
	writeJSON(w, http.StatusOK, dto)
}

// AdvanceDate moves the calendar forward.
// POST /api/date/advance
func (h *Handler) AdvanceDate(w http.ResponseWriter, r *http.Request) {
	var req AdvanceDateRequest
	if !decode(w, r, &req) {
		return
	}

	var dto DateDTO
	err := h.Manager.Write(r.Context(), "advance-date", func(wh *warehouse.Warehouse) error {
		if err := wh.AdvanceDate(req.Days); err != nil {
			return err
		}
		dto.Date = int(wh.Date())
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetBalance returns the available and accounting balances.
// GET /api/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	var dto BalanceDTO
	h.Manager.Read(func(wh *warehouse.Warehouse) error {
		dto = toBalanceDTO(wh.Balances())
		return nil
	})
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// PRODUCT ENDPOINTS
// =============================================================================

// ListProducts returns all products in key order.
// GET /api/products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var dtos []ProductDTO
	h.Manager.Read(func(wh *warehouse.Warehouse) error {
		dtos = toProductDTOs(wh.Products())
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

// GetProduct returns one product.
// GET /api/products/{key}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var dto ProductDTO
	err := h.Manager.Read(func(wh *warehouse.Warehouse) error {
		p, err := wh.Product(key)
		if err != nil {
			return err
		}
		dto = toProductDTO(p)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// RegisterProduct registers a simple product, or a derivate product when
// components are given.
// POST /api/products
func (h *Handler) RegisterProduct(w http.ResponseWriter, r *http.Request) {
	var req RegisterProductRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required", nil)
		return
	}

	aggravation := decimal.Zero
	if req.Aggravation != "" {
		var err error
		if aggravation, err = decimal.NewFromString(req.Aggravation); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid aggravation", err)
			return
		}
	}

	var dto ProductDTO
	err := h.Manager.Write(r.Context(), "register-product", func(wh *warehouse.Warehouse) error {
		var (
			p   *warehouse.Product
			err error
		)
		if len(req.Components) == 0 {
			p, err = wh.RegisterProduct(req.Key)
		} else {
			keys := make([]string, len(req.Components))
			amounts := make([]int, len(req.Components))
			for i, c := range req.Components {
				keys[i], amounts[i] = c.Product, c.Amount
			}
			p, err = wh.RegisterDerivateProduct(req.Key, aggravation, keys, amounts)
		}
		if err != nil {
			return err
		}
		dto = toProductDTO(p)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// ListProductBatches returns the batches of one product.
// GET /api/products/{key}/batches
func (h *Handler) ListProductBatches(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.listBatches(w, func(wh *warehouse.Warehouse) ([]*warehouse.Batch, error) {
		return wh.BatchesByProduct(key)
	})
}

// CheckAvailability reports whether a sale of ?amount units could be served.
// GET /api/products/{key}/availability
func (h *Handler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	amount, err := strconv.Atoi(r.URL.Query().Get("amount"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "amount must be an integer", err)
		return
	}

	dto := AvailabilityDTO{Product: key, Amount: amount, Available: true}
	err = h.Manager.Read(func(wh *warehouse.Warehouse) error {
		err := wh.CheckSale(key, amount)
		if errors.Is(err, warehouse.ErrUnavailableProduct) {
			dto.Available = false
			dto.Blocker = toUnavailableDTO(err)
			return nil
		}
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// BATCH ENDPOINTS
// =============================================================================

// ListBatches returns every batch, or those priced at most ?max_price.
// GET /api/batches
func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	limitParam := r.URL.Query().Get("max_price")
	if limitParam == "" {
		h.listBatches(w, func(wh *warehouse.Warehouse) ([]*warehouse.Batch, error) {
			return wh.Batches(), nil
		})
		return
	}

	limit, err := decimal.NewFromString(limitParam)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid max_price", err)
		return
	}
	h.listBatches(w, func(wh *warehouse.Warehouse) ([]*warehouse.Batch, error) {
		return wh.BatchesByPrice(limit), nil
	})
}

func (h *Handler) listBatches(w http.ResponseWriter, query func(*warehouse.Warehouse) ([]*warehouse.Batch, error)) {
	var dtos []BatchDTO
	err := h.Manager.Read(func(wh *warehouse.Warehouse) error {
		batches, err := query(wh)
		if err != nil {
			return err
		}
		dtos = toBatchDTOs(batches)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// PARTNER ENDPOINTS
// =============================================================================

// ListPartners returns all partners in key order.
// GET /api/partners
func (h *Handler) ListPartners(w http.ResponseWriter, r *http.Request) {
	var dtos []PartnerDTO
	h.Manager.Read(func(wh *warehouse.Warehouse) error {
		dtos = toPartnerDTOs(wh.Partners())
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

// RegisterPartner registers a new partner.
// POST /api/partners
func (h *Handler) RegisterPartner(w http.ResponseWriter, r *http.Request) {
	var req RegisterPartnerRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required", nil)
		return
	}

	var dto PartnerDTO
	err := h.Manager.Write(r.Context(), "register-partner", func(wh *warehouse.Warehouse) error {
		p, err := wh.RegisterPartner(req.Key, req.Name, req.Address)
		if err != nil {
			return err
		}
		dto = toPartnerDTOs([]*warehouse.Partner{p})[0]
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// ShowPartner returns the partner line and consumes its notifications.
// GET /api/partners/{key}
func (h *Handler) ShowPartner(w http.ResponseWriter, r *http.Request) {
	view, err := h.Manager.ShowPartner(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PartnerViewDTO{Partner: view.Partner, Notifications: view.Notifications})
}

// ListPartnerBatches returns the batches supplied by a partner.
// GET /api/partners/{key}/batches
func (h *Handler) ListPartnerBatches(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	h.listBatches(w, func(wh *warehouse.Warehouse) ([]*warehouse.Batch, error) {
		return wh.BatchesByPartner(key)
	})
}

// partnerTransactions serves one of the partner ledger views.
func (h *Handler) partnerTransactions(view func(*warehouse.Warehouse, string) ([]warehouse.Transaction, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		var dtos []TransactionDTO
		err := h.Manager.Read(func(wh *warehouse.Warehouse) error {
			txs, err := view(wh, key)
			if err != nil {
				return err
			}
			dtos = toTransactionDTOs(txs)
			return nil
		})
		if err != nil {
			writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dtos)
	}
}

// ToggleSubscription flips a partner's notification subscription to a product.
// POST /api/partners/{key}/subscriptions/{product}/toggle
func (h *Handler) ToggleSubscription(w http.ResponseWriter, r *http.Request) {
	dto := SubscriptionDTO{Partner: chi.URLParam(r, "key"), Product: chi.URLParam(r, "product")}
	err := h.Manager.Write(r.Context(), "toggle-notification", func(wh *warehouse.Warehouse) error {
		on, err := wh.ToggleNotification(dto.Partner, dto.Product)
		dto.Subscribed = on
		return err
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// TRANSACTION ENDPOINTS
// =============================================================================

// ListTransactions returns the ledger in id order.
// GET /api/transactions
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var dtos []TransactionDTO
	h.Manager.Read(func(wh *warehouse.Warehouse) error {
		dtos = toTransactionDTOs(wh.Transactions())
		return nil
	})
	writeJSON(w, http.StatusOK, dtos)
}

func transactionID(r *http.Request) (warehouse.TransactionID, error) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		return 0, fmt.Errorf("transaction id must be an integer: %w", err)
	}
	return warehouse.TransactionID(id), nil
}

// GetTransaction returns one transaction.
// GET /api/transactions/{id}
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction id", err)
		return
	}

	var dto TransactionDTO
	err = h.Manager.Read(func(wh *warehouse.Warehouse) error {
		tx, err := wh.Transaction(id)
		if err != nil {
			return err
		}
		dto = toTransactionDTO(tx)
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// ReceivePayment settles a sale at the current date.
// POST /api/transactions/{id}/payment
func (h *Handler) ReceivePayment(w http.ResponseWriter, r *http.Request) {
	id, err := transactionID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid transaction id", err)
		return
	}

	var dto PaymentDTO
	err = h.Manager.Write(r.Context(), "receive-payment", func(wh *warehouse.Warehouse) error {
		paid, err := wh.ReceiveSalePayment(id)
		if err != nil {
			return err
		}
		tx, err := wh.Transaction(id)
		if err != nil {
			return err
		}
		dto = PaymentDTO{Transaction: toTransactionDTO(tx), Paid: paid.String()}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto)
}

// RegisterAcquisition buys stock from a partner.
// POST /api/acquisitions
func (h *Handler) RegisterAcquisition(w http.ResponseWriter, r *http.Request) {
	var req AcquisitionRequest
	if !decode(w, r, &req) {
		return
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid price", err)
		return
	}

	h.registerTransaction(w, r, "register-acquisition", func(wh *warehouse.Warehouse) (warehouse.Transaction, error) {
		return wh.RegisterAcquisition(req.Partner, req.Product, req.Amount, price)
	})
}

// RegisterSale sells stock to a partner, fabricating derivates as needed.
// POST /api/sales
func (h *Handler) RegisterSale(w http.ResponseWriter, r *http.Request) {
	var req SaleRequest
	if !decode(w, r, &req) {
		return
	}
	h.registerTransaction(w, r, "register-sale", func(wh *warehouse.Warehouse) (warehouse.Transaction, error) {
		return wh.RegisterSale(req.Partner, req.Product, warehouse.Date(req.Deadline), req.Amount)
	})
}

// RegisterBreakdown breaks derivate stock back into components. Simple
// products cannot be broken down and answer 204.
// POST /api/breakdowns
func (h *Handler) RegisterBreakdown(w http.ResponseWriter, r *http.Request) {
	var req BreakdownRequest
	if !decode(w, r, &req) {
		return
	}
	h.registerTransaction(w, r, "register-breakdown", func(wh *warehouse.Warehouse) (warehouse.Transaction, error) {
		b, err := wh.RegisterBreakdown(req.Partner, req.Product, req.Amount)
		if b == nil {
			return nil, err
		}
		return b, err
	})
}

func (h *Handler) registerTransaction(w http.ResponseWriter, r *http.Request, op string, register func(*warehouse.Warehouse) (warehouse.Transaction, error)) {
	var (
		dto     TransactionDTO
		created bool
	)
	err := h.Manager.Write(r.Context(), op, func(wh *warehouse.Warehouse) error {
		tx, err := register(wh)
		if err != nil {
			return err
		}
		if tx != nil {
			dto, created = toTransactionDTO(tx), true
		}
		return nil
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if !created {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, dto)
}

// =============================================================================
// STATE ENDPOINTS
// =============================================================================

// GetState returns the association and dirty flag.
// GET /api/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateDTO{Association: h.Manager.Association(), Dirty: h.Manager.Dirty()})
}

// GetSnapshot returns the full serializable state.
// GET /api/state/snapshot
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Manager.Snapshot())
}

// Save writes the state to its associated snapshot.
// POST /api/state/save
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	saved, err := h.Manager.Save(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateDTO{
		Association: h.Manager.Association(),
		Dirty:       h.Manager.Dirty(),
		Saved:       boolPtr(saved),
	})
}

// SaveAs writes the state under a new name and associates it.
// POST /api/state/save-as
func (h *Handler) SaveAs(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Manager.SaveAs(r.Context(), req.Name); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateDTO{Association: h.Manager.Association(), Dirty: false, Saved: boolPtr(true)})
}

// Load replaces the state with a stored snapshot.
// POST /api/state/load
func (h *Handler) Load(w http.ResponseWriter, r *http.Request) {
	var req SnapshotRequest
	if !decode(w, r, &req) {
		return
	}
	if err := h.Manager.Load(r.Context(), req.Name); err != nil {
		writeEngineError(w, err)
		return
	}
	h.setScenario("")
	writeJSON(w, http.StatusOK, StateDTO{Association: h.Manager.Association(), Dirty: h.Manager.Dirty()})
}

// Import applies the request body as a bulk text import.
// POST /api/state/import
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxImportSize)
	if err := h.Manager.Import(r.Context(), body); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, StateDTO{Association: h.Manager.Association(), Dirty: h.Manager.Dirty()})
}

// =============================================================================
// HELPERS
// =============================================================================

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// statusFor maps engine, import and persistence errors to HTTP statuses.
func statusFor(err error) (int, string) {
	var lineErr *importer.LineError
	switch {
	case errors.Is(err, importer.ErrBadEntry), errors.As(err, &lineErr):
		return http.StatusBadRequest, "Import rejected"
	case errors.Is(err, warehouse.ErrInvalidSnapshotName):
		return http.StatusBadRequest, "Invalid snapshot name"
	case errors.Is(err, warehouse.ErrUnavailableProduct):
		return http.StatusUnprocessableEntity, "Product unavailable"
	case errors.Is(err, manager.ErrUnavailableFile) && errors.Is(err, warehouse.ErrCorruptSnapshot):
		return http.StatusUnprocessableEntity, "Snapshot is corrupt"
	case errors.Is(err, manager.ErrUnavailableFile):
		return http.StatusNotFound, "Snapshot unavailable"
	case warehouse.IsNotFound(err):
		return http.StatusNotFound, "Not found"
	case warehouse.IsConflict(err):
		return http.StatusConflict, "Key already exists"
	case errors.Is(err, manager.ErrMissingFileAssociation):
		return http.StatusConflict, "No snapshot associated"
	case warehouse.IsClientError(err):
		return http.StatusBadRequest, "Invalid request"
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, "Import too large"
	}
	return http.StatusInternalServerError, "Internal error"
}

func writeEngineError(w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	resp := ErrorResponse{Error: message, Details: err.Error(), Unavailable: toUnavailableDTO(err)}

	var lineErr *importer.LineError
	var badEntry *importer.BadEntryError
	switch {
	case errors.As(err, &badEntry):
		resp.Line = badEntry.Line
	case errors.As(err, &lineErr):
		resp.Line = lineErr.Line
	}
	writeJSON(w, status, resp)
}
