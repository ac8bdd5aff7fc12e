package sheets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"preciobot/internal/connectors"
)

func newTestConnector(t *testing.T, handler http.HandlerFunc) *Connector {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := sheets.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return newWithService(svc, "sheet-id", 0)
}

func TestFetchRows(t *testing.T) {
	var gotPath string
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, "FORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"VALORES!A1:C3","majorDimension":"ROWS","values":[["CELULAR","VENTA"],["Redmi A2 ","$ 420.000"],["Moto G04"]]}`))
	})

	rows, err := c.FetchRows(context.Background(), "VALORES")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(gotPath, "/v4/spreadsheets/sheet-id/values/"), gotPath)
	assert.Equal(t, [][]string{{"CELULAR", "VENTA"}, {"Redmi A2", "$ 420.000"}, {"Moto G04"}}, rows)
}

func TestFetchRowsStatusError(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	})

	_, err := c.FetchRows(context.Background(), "VALORES")
	var statusErr *connectors.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
}

func TestFetchRowsMissingSheet(t *testing.T) {
	c := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Unable to parse range: 'NOPE'","status":"INVALID_ARGUMENT"}}`))
	})

	_, err := c.FetchRows(context.Background(), "NOPE")
	assert.ErrorIs(t, err, connectors.ErrSheetNotFound)
}

func TestQuoteRange(t *testing.T) {
	assert.Equal(t, "'VALORES'", quoteRange("VALORES"))
	assert.Equal(t, "'Juan''s list'", quoteRange("Juan's list"))
}
