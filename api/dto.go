/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine objects never
  leave the manager lock; handlers copy what they need into these types
  inside Read/Write callbacks.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Money fields are exact decimal strings ("12.5"). Every DTO also carries
  "display", the rounded pipe-delimited line used by the text surfaces.

TYPES:
  Products:      ProductDTO, ComponentDTO, RegisterProductRequest
  Batches:       BatchDTO
  Partners:      PartnerDTO, PartnerViewDTO, RegisterPartnerRequest
  Transactions:  TransactionDTO, BreakdownComponentDTO, AcquisitionRequest,
                 SaleRequest, BreakdownRequest, PaymentDTO
  Warehouse:     DateDTO, AdvanceDateRequest, BalanceDTO, AvailabilityDTO
  State:         StateDTO, SnapshotRequest
  Scenarios:     ScenarioDTO, LoadScenarioRequest

VALIDATION:
  Validation is done by the engine, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"errors"

	"github.com/warp/warehouse-engine/warehouse"
)

// =============================================================================
// PRODUCTS
// =============================================================================

type ProductDTO struct {
	Key         string         `json:"key"`
	Kind        string         `json:"kind"`
	MaxPrice    string         `json:"max_price"`
	Stock       int            `json:"stock"`
	Aggravation string         `json:"aggravation,omitempty"`
	Components  []ComponentDTO `json:"components,omitempty"`
	Display     string         `json:"display"`
}

type ComponentDTO struct {
	Product string `json:"product"`
	Amount  int    `json:"amount"`
}

// RegisterProductRequest registers a simple product, or a derivate one
// when Components is not empty.
type RegisterProductRequest struct {
	Key         string         `json:"key"`
	Aggravation string         `json:"aggravation,omitempty"`
	Components  []ComponentDTO `json:"components,omitempty"`
}

func toProductDTO(p *warehouse.Product) ProductDTO {
	dto := ProductDTO{
		Key:      p.Key(),
		Kind:     p.Kind().String(),
		MaxPrice: p.MaxPrice().String(),
		Stock:    p.Stock(),
		Display:  p.String(),
	}
	if r := p.Recipe(); r != nil {
		dto.Aggravation = r.Aggravation().String()
		for _, c := range r.Components() {
			dto.Components = append(dto.Components, ComponentDTO{Product: c.Product().Key(), Amount: c.Amount()})
		}
	}
	return dto
}

func toProductDTOs(ps []*warehouse.Product) []ProductDTO {
	out := make([]ProductDTO, len(ps))
	for i, p := range ps {
		out[i] = toProductDTO(p)
	}
	return out
}

// =============================================================================
// BATCHES
// =============================================================================

type BatchDTO struct {
	Product string `json:"product"`
	Partner string `json:"partner"`
	Price   string `json:"price"`
	Amount  int    `json:"amount"`
	Display string `json:"display"`
}

func toBatchDTOs(bs []*warehouse.Batch) []BatchDTO {
	out := make([]BatchDTO, len(bs))
	for i, b := range bs {
		out[i] = BatchDTO{
			Product: b.Product().Key(),
			Partner: b.Partner().Key(),
			Price:   b.Price().String(),
			Amount:  b.Amount(),
			Display: b.String(),
		}
	}
	return out
}

// =============================================================================
// PARTNERS
// =============================================================================

type PartnerDTO struct {
	Key               string `json:"key"`
	Name              string `json:"name"`
	Address           string `json:"address"`
	Rank              string `json:"rank"`
	Points            string `json:"points"`
	AcquisitionsValue string `json:"acquisitions_value"`
	SalesValue        string `json:"sales_value"`
	PaidSalesValue    string `json:"paid_sales_value"`
	Display           string `json:"display"`
}

// PartnerViewDTO is a partner line with the notifications consumed by
// viewing it.
type PartnerViewDTO struct {
	Partner       string   `json:"partner"`
	Notifications []string `json:"notifications"`
}

type RegisterPartnerRequest struct {
	Key     string `json:"key"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

type SubscriptionDTO struct {
	Partner    string `json:"partner"`
	Product    string `json:"product"`
	Subscribed bool   `json:"subscribed"`
}

func toPartnerDTOs(ps []*warehouse.Partner) []PartnerDTO {
	out := make([]PartnerDTO, len(ps))
	for i, p := range ps {
		out[i] = PartnerDTO{
			Key:               p.Key(),
			Name:              p.Name(),
			Address:           p.Address(),
			Rank:              p.Rank().String(),
			Points:            p.Points().String(),
			AcquisitionsValue: p.AcquisitionsValue().String(),
			SalesValue:        p.SalesValue().String(),
			PaidSalesValue:    p.PaidSalesValue().String(),
			Display:           p.String(),
		}
	}
	return out
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// TransactionDTO flattens the three transaction kinds. Fields that do not
// apply to Type are omitted.
type TransactionDTO struct {
	ID      int    `json:"id"`
	Type    string `json:"type"`
	Date    int    `json:"date"`
	Amount  int    `json:"amount"`
	Product string `json:"product"`
	Partner string `json:"partner"`

	Price       string                  `json:"price,omitempty"`
	Value       string                  `json:"value,omitempty"`
	BaseValue   string                  `json:"base_value,omitempty"`
	RealValue   string                  `json:"real_value,omitempty"`
	Deadline    *int                    `json:"deadline,omitempty"`
	Paid        *bool                   `json:"paid,omitempty"`
	PaymentDate *int                    `json:"payment_date,omitempty"`
	PaidValue   string                  `json:"paid_value,omitempty"`
	Components  []BreakdownComponentDTO `json:"components,omitempty"`

	Display string `json:"display"`
}

type BreakdownComponentDTO struct {
	Product string `json:"product"`
	Amount  int    `json:"amount"`
	Price   string `json:"price"`
	Value   string `json:"value"`
}

type AcquisitionRequest struct {
	Partner string `json:"partner"`
	Product string `json:"product"`
	Amount  int    `json:"amount"`
	Price   string `json:"price"`
}

type SaleRequest struct {
	Partner  string `json:"partner"`
	Product  string `json:"product"`
	Deadline int    `json:"deadline"`
	Amount   int    `json:"amount"`
}

type BreakdownRequest struct {
	Partner string `json:"partner"`
	Product string `json:"product"`
	Amount  int    `json:"amount"`
}

// PaymentDTO is the result of receiving a sale payment. Paid is zero when
// the sale was already paid.
type PaymentDTO struct {
	Transaction TransactionDTO `json:"transaction"`
	Paid        string         `json:"paid"`
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func toTransactionDTO(tx warehouse.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:      int(tx.ID()),
		Date:    int(tx.Date()),
		Amount:  tx.Amount(),
		Product: tx.Product().Key(),
		Partner: tx.Partner().Key(),
		Display: tx.String(),
	}
	switch t := tx.(type) {
	case *warehouse.Acquisition:
		dto.Type = warehouse.TypeAcquisition
		dto.Price = t.Price().String()
		dto.Value = t.Value().String()
	case *warehouse.Sale:
		dto.Type = warehouse.TypeSale
		dto.BaseValue = t.BaseValue().String()
		dto.RealValue = t.RealValue().String()
		dto.Deadline = intPtr(int(t.Deadline()))
		dto.Paid = boolPtr(t.Paid())
		if t.Paid() {
			dto.PaymentDate = intPtr(int(t.PaymentDate()))
		}
	case *warehouse.Breakdown:
		dto.Type = warehouse.TypeBreakdown
		dto.BaseValue = t.BaseValue().String()
		dto.PaidValue = t.PaidValue().String()
		for _, c := range t.Components() {
			dto.Components = append(dto.Components, BreakdownComponentDTO{
				Product: c.Product().Key(),
				Amount:  c.Amount,
				Price:   c.Price.String(),
				Value:   c.Value().String(),
			})
		}
	}
	return dto
}

func toTransactionDTOs(txs []warehouse.Transaction) []TransactionDTO {
	out := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	return out
}

// =============================================================================
// WAREHOUSE
// =============================================================================

type DateDTO struct {
	Date int `json:"date"`
}

type AdvanceDateRequest struct {
	Days int `json:"days"`
}

// BalanceDTO holds exact balances and their rounded display values.
type BalanceDTO struct {
	Available         string `json:"available"`
	Accounting        string `json:"accounting"`
	AvailableRounded  int64  `json:"available_rounded"`
	AccountingRounded int64  `json:"accounting_rounded"`
}

func toBalanceDTO(b warehouse.Balances) BalanceDTO {
	return BalanceDTO{
		Available:         b.Available.String(),
		Accounting:        b.Accounting.String(),
		AvailableRounded:  warehouse.Round(b.Available),
		AccountingRounded: warehouse.Round(b.Accounting),
	}
}

// AvailabilityDTO answers whether a sale could be served right now. When
// it could not, the blocking product is reported.
type AvailabilityDTO struct {
	Product   string          `json:"product"`
	Amount    int             `json:"amount"`
	Available bool            `json:"available"`
	Blocker   *UnavailableDTO `json:"blocker,omitempty"`
}

type UnavailableDTO struct {
	Product   string `json:"product"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

func toUnavailableDTO(err error) *UnavailableDTO {
	var ue *warehouse.UnavailableProductError
	if !errors.As(err, &ue) {
		return nil
	}
	return &UnavailableDTO{Product: ue.ProductKey, Requested: ue.Requested, Available: ue.Available}
}

// =============================================================================
// STATE
// =============================================================================

type StateDTO struct {
	Association string `json:"association"`
	Dirty       bool   `json:"dirty"`
	Saved       *bool  `json:"saved,omitempty"`
}

type SnapshotRequest struct {
	Name string `json:"name"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error       string          `json:"error"`
	Details     string          `json:"details,omitempty"`
	Unavailable *UnavailableDTO `json:"unavailable,omitempty"`
	Line        int             `json:"line,omitempty"`
}
