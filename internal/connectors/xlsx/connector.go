package xlsx

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"preciobot/internal/connectors"
)

// Connector reads catalog worksheets from a local workbook. The file is
// reopened on every fetch so edits show up after the cache expires.
type Connector struct {
	path string
}

func NewConnector(path string) *Connector {
	return &Connector{path: path}
}

func (c *Connector) Name() string {
	return "xlsx"
}

func (c *Connector) FetchRows(ctx context.Context, sheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := excelize.OpenFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("open catalog workbook: %w", err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		var missing excelize.ErrSheetNotExist
		if errors.As(err, &missing) {
			return nil, fmt.Errorf("%w: %s", connectors.ErrSheetNotFound, sheet)
		}
		return nil, err
	}

	for _, row := range rows {
		for i := range row {
			row[i] = strings.TrimSpace(row[i])
		}
	}
	return rows, nil
}
