package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"preciobot/internal"
)

func TestReadQueriesText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queries.txt")
	require.NoError(t, os.WriteFile(path, []byte("precio addi redmi a2\n\n# comentario\ncontado samsung a35\n"), 0o644))

	rows, err := ReadQueries(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].LineNo)
	assert.Equal(t, 4, rows[1].LineNo)
	assert.Equal(t, "contado samsung a35", rows[1].Input)
}

func TestReadQueriesXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "precio addi redmi a2"))
	require.NoError(t, f.SetCellValue(sheet, "A3", " recompra iphone 11 "))
	path := filepath.Join(t.TempDir(), "queries.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	rows, err := ReadQueries(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[1].LineNo)
	assert.Equal(t, "recompra iphone 11", rows[1].Input)
}

func TestReadQueriesRejectsUnknownType(t *testing.T) {
	_, err := ReadQueries("queries.pdf")
	assert.Error(t, err)
}

func TestRunBatch(t *testing.T) {
	s, _ := newTestService(testCatalog())
	rows := []internal.BatchRow{
		{LineNo: 1, Input: "precio addi redmi a2"},
		{LineNo: 2, Input: "samsung a35"},
		{LineNo: 3, Input: "precios por krediya"},
		{LineNo: 4, Input: "krediya iphone 11"},
		{LineNo: 5, Input: "brilla nokia 3310"},
	}

	out, err := s.RunBatch(context.Background(), rows)
	require.NoError(t, err)
	require.Len(t, out, 5)

	assert.Equal(t, "SINGLE", out[0].Outcome)
	assert.Equal(t, "REDMI A2 64GB 2GB", out[0].Device)
	assert.Equal(t, "addi", out[0].Plan)

	assert.Equal(t, "MULTIPLE", out[1].Outcome)
	assert.Len(t, out[1].Candidates, 2)
	assert.Empty(t, out[1].Device)

	assert.Equal(t, "parse_failure", out[2].Outcome)
	assert.Equal(t, "SINGLE (RECOMPRA)", out[3].Outcome)
	assert.Equal(t, "NO_MATCH", out[4].Outcome)
}

func TestRunBatchAbortsOnCatalogError(t *testing.T) {
	s, _ := newTestService(fakeCatalog{err: internal.ErrCatalogUnavailable})
	_, err := s.RunBatch(context.Background(), []internal.BatchRow{{LineNo: 7, Input: "addi redmi"}})
	assert.ErrorIs(t, err, internal.ErrCatalogUnavailable)
}

func TestExportLookupsAndBatch(t *testing.T) {
	dir := t.TempDir()
	lookups := filepath.Join(dir, "nested", "lookups.xlsx")
	require.NoError(t, ExportLookupsToXLSX([]internal.LookupRow{
		{ID: 1, TraceID: "abc", Identity: "whatsapp:+57300", Message: "contado redmi a2", Plan: "contado", Outcome: "resolved", Candidates: 1, Device: "REDMI A2"},
	}, lookups))

	f, err := excelize.OpenFile(lookups)
	require.NoError(t, err)
	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.Len(t, rows, 2)
	assert.Equal(t, "trace_id", rows[0][2])
	assert.Equal(t, "whatsapp:+57300", rows[1][3])

	batch := filepath.Join(dir, "batch.xlsx")
	require.NoError(t, ExportBatchToXLSX([]internal.BatchRow{
		{LineNo: 2, Input: "samsung a35", Outcome: "MULTIPLE", Candidates: []string{"A", "B"}},
	}, batch))

	f, err = excelize.OpenFile(batch)
	require.NoError(t, err)
	defer f.Close()
	cell, err := f.GetCellValue(f.GetSheetName(0), "G2")
	require.NoError(t, err)
	assert.Equal(t, "A | B", cell)
}
