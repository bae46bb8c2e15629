/*
Package importer loads the pipe-delimited bulk text format into a warehouse.

FORMAT:
  One record per line, fields separated by '|':

    PARTNER|key|name|address
    BATCH_S|productKey|partnerKey|price|amount
    BATCH_M|productKey|partnerKey|price|amount|aggravation|c1:a1#c2:a2#...

  BATCH_S registers the simple product the first time it appears.
  BATCH_M registers the derivate product the first time it appears; its
  aggravation and recipe fields are only parsed then. Later BATCH_M lines
  for the same product add stock and their recipe fields are ignored.

  Batches are stocked directly: no acquisition transaction is recorded and
  partner totals are untouched. Blank lines are skipped. A trailing '\r'
  is stripped, so CRLF files import unchanged.

ATOMICITY:
  Import works on a staged copy (snapshot then restore) of the target and
  returns the copy only when every line applied. The target warehouse is
  never modified, so a failed import leaves no partial state behind.

ERRORS:
  Unknown record kind      -> *BadEntryError (errors.Is ErrBadEntry)
  Any other failing line   -> *LineError wrapping the cause, which may be
                              ErrBadEntry (malformed field) or an engine
                              error (unknown partner, duplicate key, ...)

USAGE:
  imported, err := importer.ImportFile(ctx, w, "stock.txt")
  if err != nil {
      return err
  }
  w = imported
*/
package importer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/warp/warehouse-engine/warehouse"
)

// Record kinds.
const (
	KindPartner       = "PARTNER"
	KindSimpleBatch   = "BATCH_S"
	KindDerivateBatch = "BATCH_M"
)

// =============================================================================
// ERRORS
// =============================================================================

var ErrBadEntry = errors.New("bad import entry")

// BadEntryError reports a record whose kind is not recognized.
type BadEntryError struct {
	Line  int
	Token string
}

func (e *BadEntryError) Error() string {
	return fmt.Sprintf("line %d: bad entry %q", e.Line, e.Token)
}

func (e *BadEntryError) Unwrap() error {
	return ErrBadEntry
}

// LineError ties a failure to the input line that caused it.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

func badField(name, value string) error {
	return fmt.Errorf("%w: invalid %s %q", ErrBadEntry, name, value)
}

// =============================================================================
// IMPORT
// =============================================================================

// Import applies every record of r to a copy of w and returns the copy.
func Import(ctx context.Context, w *warehouse.Warehouse, r io.Reader) (*warehouse.Warehouse, error) {
	staged, err := warehouse.Restore(w.Snapshot())
	if err != nil {
		return nil, fmt.Errorf("failed to stage warehouse: %w", err)
	}
	if err := Apply(ctx, staged, r); err != nil {
		return nil, err
	}
	return staged, nil
}

// ImportFile is Import reading from the file at path.
func ImportFile(ctx context.Context, w *warehouse.Warehouse, path string) (*warehouse.Warehouse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open import file: %w", err)
	}
	defer f.Close()
	return Import(ctx, w, f)
}

// Apply runs every record of r against w in order. It stops at the first
// failing line and leaves w with the records before it applied; use
// Import for all-or-nothing semantics.
func Apply(ctx context.Context, w *warehouse.Warehouse, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		text := strings.TrimSuffix(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		if err := applyLine(w, line, text); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}
	return nil
}

func applyLine(w *warehouse.Warehouse, line int, text string) error {
	fields := strings.Split(text, "|")

	var err error
	switch fields[0] {
	case KindPartner:
		err = importPartner(w, fields)
	case KindSimpleBatch:
		err = importSimpleBatch(w, fields)
	case KindDerivateBatch:
		err = importDerivateBatch(w, fields)
	default:
		return &BadEntryError{Line: line, Token: fields[0]}
	}
	if err != nil {
		return &LineError{Line: line, Err: err}
	}
	return nil
}

func expectFields(fields []string, n int) error {
	if len(fields) != n {
		return fmt.Errorf("%w: %s expects %d fields, got %d", ErrBadEntry, fields[0], n, len(fields))
	}
	return nil
}

// =============================================================================
// RECORDS
// =============================================================================

func importPartner(w *warehouse.Warehouse, fields []string) error {
	if err := expectFields(fields, 4); err != nil {
		return err
	}
	_, err := w.RegisterPartner(fields[1], fields[2], fields[3])
	return err
}

type batchLine struct {
	product string
	partner string
	price   warehouse.Money
	amount  int
}

// parseBatch reads the fields shared by both batch kinds and checks that
// the partner exists.
func parseBatch(w *warehouse.Warehouse, fields []string) (batchLine, error) {
	b := batchLine{product: fields[1], partner: fields[2]}

	if _, err := w.Partner(b.partner); err != nil {
		return b, err
	}
	price, err := decimal.NewFromString(fields[3])
	if err != nil {
		return b, badField("price", fields[3])
	}
	amount, err := strconv.Atoi(fields[4])
	if err != nil {
		return b, badField("amount", fields[4])
	}
	b.price, b.amount = price, amount
	return b, nil
}

func importSimpleBatch(w *warehouse.Warehouse, fields []string) error {
	if err := expectFields(fields, 5); err != nil {
		return err
	}
	b, err := parseBatch(w, fields)
	if err != nil {
		return err
	}
	if !w.HasProduct(b.product) {
		if _, err := w.RegisterProduct(b.product); err != nil {
			return err
		}
	}
	return w.StockBatch(b.partner, b.product, b.amount, b.price)
}

func importDerivateBatch(w *warehouse.Warehouse, fields []string) error {
	if err := expectFields(fields, 7); err != nil {
		return err
	}
	b, err := parseBatch(w, fields)
	if err != nil {
		return err
	}
	if !w.HasProduct(b.product) {
		aggravation, keys, amounts, err := parseRecipe(fields[5], fields[6])
		if err != nil {
			return err
		}
		if _, err := w.RegisterDerivateProduct(b.product, aggravation, keys, amounts); err != nil {
			return err
		}
	}
	return w.StockBatch(b.partner, b.product, b.amount, b.price)
}

// parseRecipe reads "aggravation" and "c1:a1#c2:a2#...".
func parseRecipe(aggravationField, componentsField string) (warehouse.Money, []string, []int, error) {
	aggravation, err := decimal.NewFromString(aggravationField)
	if err != nil {
		return warehouse.Money{}, nil, nil, badField("aggravation", aggravationField)
	}

	parts := strings.Split(componentsField, "#")
	keys := make([]string, 0, len(parts))
	amounts := make([]int, 0, len(parts))
	for _, part := range parts {
		key, amountField, ok := strings.Cut(part, ":")
		if !ok || key == "" {
			return warehouse.Money{}, nil, nil, badField("component", part)
		}
		amount, err := strconv.Atoi(amountField)
		if err != nil {
			return warehouse.Money{}, nil, nil, badField("component amount", part)
		}
		keys = append(keys, key)
		amounts = append(amounts, amount)
	}
	return aggravation, keys, amounts, nil
}
