package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"preciobot/internal/config"
	"preciobot/internal/connectors"
)

type Connector struct {
	service       *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	if err := cfg.Require("GOOGLE_SHEETS_CREDENTIALS", cfg.SheetsCredentials); err != nil {
		return nil, err
	}
	if err := cfg.Require("SPREADSHEET_ID", cfg.SpreadsheetID); err != nil {
		return nil, err
	}

	blob, err := os.ReadFile(cfg.SheetsCredentials)
	if err != nil {
		return nil, fmt.Errorf("read sheets credentials: %w", err)
	}
	jwtCfg, err := google.JWTConfigFromJSON(blob, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse sheets credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(jwtCfg.TokenSource(ctx)))
	if err != nil {
		return nil, err
	}
	return newWithService(svc, cfg.SpreadsheetID, time.Duration(cfg.SheetsTimeoutMs)*time.Millisecond), nil
}

func newWithService(svc *sheets.Service, spreadsheetID string, timeout time.Duration) *Connector {
	return &Connector{service: svc, spreadsheetID: spreadsheetID, timeout: timeout}
}

func (c *Connector) Name() string {
	return "sheets"
}

func (c *Connector) FetchRows(ctx context.Context, sheet string) ([][]string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, quoteRange(sheet)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			if apiErr.Code == http.StatusBadRequest && strings.Contains(apiErr.Message, "Unable to parse range") {
				return nil, fmt.Errorf("%w: %s", connectors.ErrSheetNotFound, sheet)
			}
			return nil, &connectors.StatusError{Code: apiErr.Code, Err: err}
		}
		return nil, err
	}
	return toRows(resp.Values), nil
}

// quoteRange turns a worksheet title into an A1 range covering the whole
// sheet. Titles with spaces or quotes must be single-quoted.
func quoteRange(sheet string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
}

func toRows(values [][]interface{}) [][]string {
	out := make([][]string, 0, len(values))
	for _, row := range values {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				continue
			}
			cells[i] = strings.TrimSpace(fmt.Sprint(v))
		}
		out = append(out, cells)
	}
	return out
}
