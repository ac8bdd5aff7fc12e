package pipeline

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"preciobot/internal"
)

func writeSheet(headers []string, rows [][]any, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	for i, row := range rows {
		for col, value := range row {
			cell, _ := excelize.CoordinatesToCellName(col+1, i+2)
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func ExportLookupsToXLSX(rows []internal.LookupRow, outputPath string) error {
	headers := []string{"id", "created_at", "trace_id", "identity", "message", "plan", "query", "outcome", "candidates", "device"}
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{r.ID, r.CreatedAt, r.TraceID, r.Identity, r.Message, r.Plan, r.Query, r.Outcome, r.Candidates, r.Device})
	}
	return writeSheet(headers, values, outputPath)
}

func ExportBatchToXLSX(rows []internal.BatchRow, outputPath string) error {
	headers := []string{"line_no", "input", "plan", "query", "outcome", "device", "candidates"}
	values := make([][]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, []any{r.LineNo, r.Input, r.Plan, r.Query, r.Outcome, r.Device, strings.Join(r.Candidates, " | ")})
	}
	return writeSheet(headers, values, outputPath)
}
