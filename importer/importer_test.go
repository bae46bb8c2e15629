package importer_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/warehouse-engine/importer"
	"github.com/warp/warehouse-engine/warehouse"
)

const sample = `PARTNER|A|Alice|Rua 1
PARTNER|B|Bob|Rua 2
BATCH_S|C1|A|3|10
BATCH_S|C2|B|4.5|6
BATCH_M|KIT|A|20|2|0.1|C1:2#C2:1
BATCH_M|KIT|B|18|1|garbage|ignored
BATCH_S|C1|B|2.5|4
`

func lines[T interface{ String() string }](items []T) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.String()
	}
	return out
}

func TestImport_Sample(t *testing.T) {
	// GIVEN
	w := warehouse.New()

	// WHEN
	got, err := importer.Import(context.Background(), w, strings.NewReader(sample))
	require.NoError(t, err)

	// THEN: products registered on first sight, recipe parsed once
	assert.Equal(t, []string{
		"C1|3|14",
		"C2|5|6",
		"KIT|20|3|0.1|C1:2#C2:1",
	}, lines(got.Products()))
	assert.Equal(t, []string{
		"C1|A|3|10",
		"C1|B|3|4",
		"C2|B|5|6",
		"KIT|A|20|2",
		"KIT|B|18|1",
	}, lines(got.Batches()))
	assert.Equal(t, []string{
		"A|Alice|Rua 1|NORMAL|0|0|0|0",
		"B|Bob|Rua 2|NORMAL|0|0|0|0",
	}, lines(got.Partners()))

	// AND: stock is seeded without transactions
	assert.Empty(t, got.Transactions())
	assert.True(t, got.AvailableBalance().IsZero())

	// AND: the source warehouse is untouched
	assert.Empty(t, w.Products())
	assert.Empty(t, w.Partners())
}

func TestImport_KeepsExistingState(t *testing.T) {
	w := warehouse.New()
	_, err := w.RegisterPartner("A", "Alice", "Rua 1")
	require.NoError(t, err)
	_, err = w.RegisterProduct("C1")
	require.NoError(t, err)

	got, err := importer.Import(context.Background(), w, strings.NewReader("BATCH_S|c1|a|2|5\n"))
	require.NoError(t, err)

	c1, err := got.Product("C1")
	require.NoError(t, err)
	assert.Equal(t, 5, c1.Stock())
	assert.Len(t, got.Products(), 1)
}

func TestImport_BlankLinesAndCRLF(t *testing.T) {
	input := "PARTNER|A|Alice|Rua 1\r\n\r\n   \nBATCH_S|C1|A|1|1\r\n"

	got, err := importer.Import(context.Background(), warehouse.New(), strings.NewReader(input))
	require.NoError(t, err)

	alice, err := got.Partner("A")
	require.NoError(t, err)
	assert.Equal(t, "Rua 1", alice.Address())
	assert.True(t, got.HasProduct("C1"))
}

func TestImport_UnknownRecordKind(t *testing.T) {
	input := "PARTNER|A|Alice|Rua 1\nCLIENT|X|Y|Z\n"
	w := warehouse.New()

	_, err := importer.Import(context.Background(), w, strings.NewReader(input))

	var bad *importer.BadEntryError
	require.True(t, errors.As(err, &bad))
	assert.Equal(t, 2, bad.Line)
	assert.Equal(t, "CLIENT", bad.Token)
	assert.ErrorIs(t, err, importer.ErrBadEntry)
	assert.Empty(t, w.Partners(), "no partial import")
}

func TestImport_FailingLines(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		want  error
	}{
		{
			name:  "unknown partner",
			input: "PARTNER|A|Alice|Rua 1\nBATCH_S|C1|A|1|1\nBATCH_S|C1|Z|1|1\n",
			line:  3,
			want:  warehouse.ErrUnknownPartner,
		},
		{
			name:  "duplicate partner",
			input: "PARTNER|A|Alice|Rua 1\nPARTNER|a|Other|Rua 2\n",
			line:  2,
			want:  warehouse.ErrDuplicatePartner,
		},
		{
			name:  "unknown recipe component",
			input: "PARTNER|A|Alice|Rua 1\nBATCH_M|KIT|A|1|1|0|GHOST:1\n",
			line:  2,
			want:  warehouse.ErrUnknownProduct,
		},
		{
			name:  "bad price",
			input: "PARTNER|A|Alice|Rua 1\nBATCH_S|C1|A|cheap|1\n",
			line:  2,
			want:  importer.ErrBadEntry,
		},
		{
			name:  "bad amount",
			input: "PARTNER|A|Alice|Rua 1\nBATCH_S|C1|A|1|many\n",
			line:  2,
			want:  importer.ErrBadEntry,
		},
		{
			name:  "non-positive amount",
			input: "PARTNER|A|Alice|Rua 1\nBATCH_S|C1|A|1|0\n",
			line:  2,
			want:  warehouse.ErrInvalidAmount,
		},
		{
			name:  "missing fields",
			input: "PARTNER|A|Alice\n",
			line:  1,
			want:  importer.ErrBadEntry,
		},
		{
			name:  "malformed component",
			input: "PARTNER|A|Alice|Rua 1\nBATCH_S|C1|A|1|1\nBATCH_M|KIT|A|1|1|0|C1-2\n",
			line:  3,
			want:  importer.ErrBadEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := warehouse.New()

			_, err := importer.Import(context.Background(), w, strings.NewReader(tt.input))

			var lineErr *importer.LineError
			require.True(t, errors.As(err, &lineErr), "got %v", err)
			assert.Equal(t, tt.line, lineErr.Line)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, w.Partners())
			assert.Empty(t, w.Products())
		})
	}
}

func TestImport_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := importer.Import(ctx, warehouse.New(), strings.NewReader(sample))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApply_StopsAtFailingLine(t *testing.T) {
	w := warehouse.New()

	err := importer.Apply(context.Background(), w, strings.NewReader("PARTNER|A|Alice|Rua 1\nBOGUS\n"))

	assert.ErrorIs(t, err, importer.ErrBadEntry)
	assert.Len(t, w.Partners(), 1)
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stock.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	got, err := importer.ImportFile(context.Background(), warehouse.New(), path)
	require.NoError(t, err)
	assert.Len(t, got.Products(), 3)

	_, err = importer.ImportFile(context.Background(), warehouse.New(), filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
