/*
errors.go - Centralized error types for the warehouse engine

PURPOSE:
  All engine errors in one place. Every failure here is a recoverable
  validation failure: the operation that returned it left the warehouse
  unchanged.

ERROR CATEGORIES:
  1. Lookup errors     - Unknown product/partner/transaction
  2. Registration      - Duplicate keys, invalid recipes
  3. Business rules    - Unavailable stock, invalid dates and amounts
  4. Persistence       - Missing or corrupt snapshots

USAGE:
  Match categories with errors.Is, extract details with errors.As:

    var unavailable *warehouse.UnavailableProductError
    if errors.As(err, &unavailable) {
        fmt.Println(unavailable.ProductKey, unavailable.Requested)
    }

SEE ALSO:
  - warehouse.go: Returns these errors
  - importer/importer.go: Wraps these errors with line context
*/
package warehouse

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrUnknownProduct     = errors.New("unknown product")
	ErrUnknownPartner     = errors.New("unknown partner")
	ErrUnknownTransaction = errors.New("unknown transaction")

	ErrDuplicateProduct = errors.New("duplicate product")
	ErrDuplicatePartner = errors.New("duplicate partner")

	// ErrInvalidDate is returned when the date is advanced by zero or fewer days.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidRecipe is returned when a derivate product's recipe is malformed.
	ErrInvalidRecipe = errors.New("invalid recipe")

	// ErrInvalidAmount is returned for non-positive unit amounts or negative prices.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrUnavailableProduct is returned when stock plus fabrication capacity
	// cannot cover a request.
	ErrUnavailableProduct = errors.New("unavailable product")

	// ErrNotSale is returned when paying a transaction that is not a sale.
	ErrNotSale = errors.New("transaction is not a sale")

	// ErrSnapshotNotFound is returned by snapshot stores for unknown names.
	ErrSnapshotNotFound = errors.New("snapshot not found")

	// ErrCorruptSnapshot is returned when a snapshot cannot be decoded or its
	// references do not resolve.
	ErrCorruptSnapshot = errors.New("corrupt snapshot")

	// ErrInvalidSnapshotName is returned by stores for names they cannot
	// place, such as file names outside the snapshot directory.
	ErrInvalidSnapshotName = errors.New("invalid snapshot name")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// UnknownKeyError reports a lookup of a key that does not exist.
type UnknownKeyError struct {
	Kind KeyKind
	Key  string
}

func (e *UnknownKeyError) Error() string {
	return fmt.Sprintf("unknown %s key: %s", e.Kind, e.Key)
}

func (e *UnknownKeyError) Unwrap() error {
	switch e.Kind {
	case KindProductKey:
		return ErrUnknownProduct
	case KindPartnerKey:
		return ErrUnknownPartner
	default:
		return ErrUnknownTransaction
	}
}

// DuplicateKeyError reports a registration that reuses an existing key.
type DuplicateKeyError struct {
	Kind KeyKind
	Key  string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate %s key: %s", e.Kind, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error {
	if e.Kind == KindPartnerKey {
		return ErrDuplicatePartner
	}
	return ErrDuplicateProduct
}

// InvalidDateError reports a rejected date advance.
type InvalidDateError struct {
	Days int
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date advance: %d days", e.Days)
}

func (e *InvalidDateError) Unwrap() error {
	return ErrInvalidDate
}

// InvalidRecipeError explains why a recipe was rejected.
type InvalidRecipeError struct {
	ProductKey string
	Reason     string
}

func (e *InvalidRecipeError) Error() string {
	return fmt.Sprintf("invalid recipe for %s: %s", e.ProductKey, e.Reason)
}

func (e *InvalidRecipeError) Unwrap() error {
	return ErrInvalidRecipe
}

// UnavailableProductError identifies the product that blocks a sale or
// breakdown. Requested is the total amount of that product the operation
// needs; Available is its real stock.
type UnavailableProductError struct {
	ProductKey string
	Requested  int
	Available  int
}

func (e *UnavailableProductError) Error() string {
	return fmt.Sprintf("product %s unavailable: requested %d, available %d",
		e.ProductKey, e.Requested, e.Available)
}

func (e *UnavailableProductError) Unwrap() error {
	return ErrUnavailableProduct
}

func unknownProduct(key string) error {
	return &UnknownKeyError{Kind: KindProductKey, Key: key}
}

func unknownPartner(key string) error {
	return &UnknownKeyError{Kind: KindPartnerKey, Key: key}
}

func invalidAmount(what string, v any) error {
	return fmt.Errorf("%w: %s %v", ErrInvalidAmount, what, v)
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error is a failed lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownProduct) ||
		errors.Is(err, ErrUnknownPartner) ||
		errors.Is(err, ErrUnknownTransaction) ||
		errors.Is(err, ErrSnapshotNotFound)
}

// IsConflict returns true if the error is a duplicate registration.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateProduct) ||
		errors.Is(err, ErrDuplicatePartner)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return IsNotFound(err) || IsConflict(err) ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidRecipe) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrUnavailableProduct) ||
		errors.Is(err, ErrNotSale) ||
		errors.Is(err, ErrInvalidSnapshotName)
}
