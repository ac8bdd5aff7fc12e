package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preciobot/internal"
	"preciobot/internal/config"
	"preciobot/internal/connectors"
	"preciobot/internal/logging"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	rows  map[string][][]string
	errs  []error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) FetchRows(_ context.Context, sheet string) ([][]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	rows, ok := f.rows[sheet]
	if !ok {
		return nil, connectors.ErrSheetNotFound
	}
	return rows, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var standardHeaderRow = []string{
	"CELULAR", "CODIGO", "VENTA", "INICIAL FINANCIERA", "INICIAL REAL",
	"DESCUENTO", "PRECIO BASE", "PRECIO ADDI Y SUMAS", "CONTADO",
}

func testConfig() config.Config {
	return config.Config{
		SheetsRateLimitRPS: 1000,
		SheetsMaxAttempts:  3,
		ValoresWorksheet:   "VALORES",
		RecompraSheet:      "RECOMPRA",
	}
}

func newTestClient(src connectors.SheetSource) *Client {
	c := NewClient(testConfig(), src, logging.Nop())
	c.backoff = 0
	return c
}

func TestFetchRecordsRetriesTransientErrors(t *testing.T) {
	src := &fakeSource{
		rows: map[string][][]string{"VALORES": {standardHeaderRow, {"Redmi A2", "R1", "$420.000"}}},
		errs: []error{&connectors.StatusError{Code: 503, Err: errors.New("unavailable")}},
	}

	records, err := newTestClient(src).FetchRecords(context.Background(), "VALORES", StandardHeaders)
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
	require.Len(t, records, 1)
	assert.Equal(t, "$420.000", records[0].Field(internal.FieldSale))
}

func TestFetchRecordsStopsOnPermanentErrors(t *testing.T) {
	src := &fakeSource{errs: []error{&connectors.StatusError{Code: 403, Err: errors.New("forbidden")}}}

	_, err := newTestClient(src).FetchRecords(context.Background(), "VALORES", StandardHeaders)
	require.Error(t, err)
	assert.Equal(t, 1, src.Calls())
}

func TestFetchRecordsGivesUpAfterMaxAttempts(t *testing.T) {
	boom := &connectors.StatusError{Code: 500, Err: errors.New("boom")}
	src := &fakeSource{errs: []error{boom, boom, boom, boom}}

	_, err := newTestClient(src).FetchRecords(context.Background(), "VALORES", StandardHeaders)
	var statusErr *connectors.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, 3, src.Calls())
}

func TestFetchRecordsRejectsHeaderMismatch(t *testing.T) {
	src := &fakeSource{rows: map[string][][]string{"VALORES": {{"CELULAR", "VENTA"}, {"Redmi A2", "1"}}}}

	records, err := newTestClient(src).FetchRecords(context.Background(), "VALORES", StandardHeaders)
	assert.ErrorIs(t, err, internal.ErrHeaderMismatch)
	assert.Nil(t, records)
	assert.Equal(t, 1, src.Calls())
}
