package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"preciobot/internal"
)

// ReadQueries loads one query per line from a .txt file, or the first column
// of the first sheet of a .xlsx file. Blank lines are dropped; line numbers
// refer to the source.
func ReadQueries(path string) ([]internal.BatchRow, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", "":
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return queriesFromText(blob), nil
	case ".xlsx":
		return queriesFromXLSX(path)
	default:
		return nil, fmt.Errorf("unsupported input type: %s", filepath.Ext(path))
	}
}

func queriesFromText(blob []byte) []internal.BatchRow {
	var out []internal.BatchRow
	scanner := bufio.NewScanner(bytes.NewReader(blob))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, internal.BatchRow{LineNo: lineNo, Input: line})
	}
	return out
}

func queriesFromXLSX(path string) ([]internal.BatchRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, err
	}
	var out []internal.BatchRow
	for i, row := range rows {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		out = append(out, internal.BatchRow{LineNo: i + 1, Input: strings.TrimSpace(row[0])})
	}
	return out, nil
}

// RunBatch resolves every row without touching sessions. A catalog failure
// aborts the batch.
func (s *Service) RunBatch(ctx context.Context, rows []internal.BatchRow) ([]internal.BatchRow, error) {
	out := make([]internal.BatchRow, 0, len(rows))
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		parsed := ParseQuery(row.Input)
		row.Plan = string(parsed.Plan)
		row.Query = parsed.Query
		if parsed.Query == "" {
			row.Outcome = string(ReplyParseFailure)
			out = append(out, row)
			continue
		}

		res, err := s.Resolve(ctx, parsed)
		if err != nil {
			return out, fmt.Errorf("line %d: %w", row.LineNo, err)
		}
		row.Outcome = string(res.Outcome.Kind)
		if res.RecompraOnly {
			row.Outcome += " (" + res.Sheet + ")"
		}
		for _, r := range res.Outcome.Records {
			row.Candidates = append(row.Candidates, r.Device)
		}
		if rec := res.Outcome.Record(); rec != nil {
			row.Device = rec.Device
		}
		out = append(out, row)
	}
	return out, nil
}
