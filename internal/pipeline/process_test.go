package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preciobot/internal"
	"preciobot/internal/assist"
	"preciobot/internal/catalog"
	"preciobot/internal/config"
	"preciobot/internal/logging"
	"preciobot/internal/session"
)

type fakeCatalog struct {
	sheets map[string][]internal.CatalogRecord
	err    error
}

func (f fakeCatalog) StandardSheet() string { return "VALORES" }
func (f fakeCatalog) RecompraSheet() string { return "RECOMPRA" }

func (f fakeCatalog) Index(_ context.Context, sheet string) (*catalog.Index, error) {
	if f.err != nil {
		return nil, f.err
	}
	return catalog.BuildIndex(sheet, f.sheets[sheet]), nil
}

type fakeAssistant struct {
	extraction assist.Extraction
	extractErr error
	enhanced   string
	enhanceErr error
}

func (f fakeAssistant) ExtractQuery(context.Context, string) (assist.Extraction, error) {
	return f.extraction, f.extractErr
}

func (f fakeAssistant) Enhance(context.Context, string, string, internal.CatalogRecord) (string, error) {
	return f.enhanced, f.enhanceErr
}

type memoryLookupLog struct {
	mu   sync.Mutex
	rows []internal.LookupRow
}

func (m *memoryLookupLog) InsertLookup(row internal.LookupRow) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, row)
	return int64(len(m.rows)), nil
}

func priced(sheet, device, venta, inicialFin, inicialReal, base, addi string) internal.CatalogRecord {
	return internal.CatalogRecord{
		Sheet:  sheet,
		Device: device,
		Headers: []string{
			internal.FieldDevice, internal.FieldSale, internal.FieldInitialFinancier,
			internal.FieldInitialReal, internal.FieldBasePrice, internal.FieldAddiSumas,
		},
		Fields: map[string]string{
			internal.FieldDevice:           device,
			internal.FieldSale:             venta,
			internal.FieldInitialFinancier: inicialFin,
			internal.FieldInitialReal:      inicialReal,
			internal.FieldBasePrice:        base,
			internal.FieldAddiSumas:        addi,
		},
	}
}

func testCatalog() fakeCatalog {
	return fakeCatalog{sheets: map[string][]internal.CatalogRecord{
		"VALORES": {
			priced("VALORES", "REDMI A2 64GB 2GB", "$400.000", "$100.000", "$80.000", "$350.000", "$50.000"),
			priced("VALORES", "SAMSUNG A35 128GB/6GB", "$1.500.000", "$300.000", "$250.000", "$1.300.000", "$200.000"),
			priced("VALORES", "SAMSUNG A35 256GB/8GB", "$1.800.000", "$360.000", "$300.000", "$1.600.000", "$220.000"),
		},
		"RECOMPRA": {
			priced("RECOMPRA", "IPHONE 11 64GB", "$1.200.000", "0", "0", "$1.000.000", "$1.350.000"),
		},
	}}
}

func newTestService(cat Catalog) (*Service, *session.MemoryStore) {
	store := session.NewMemoryStore(0)
	cfg := config.Config{ContadoExtra: 180000}
	return NewService(cfg, cat, store, logging.Nop()), store
}

func TestHandleGreeting(t *testing.T) {
	s, _ := newTestService(testCatalog())
	reply := s.Handle(context.Background(), "id", "Hola")
	assert.Equal(t, ReplyGreeting, reply.Kind)
	assert.Contains(t, reply.Text, "Financieras disponibles")
	assert.NotEmpty(t, reply.TraceID)
}

func TestHandleKrediyaResolved(t *testing.T) {
	s, _ := newTestService(testCatalog())
	reply := s.Handle(context.Background(), "id", "precios por krediya de redmi A2 64gb 2gb")

	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Equal(t, internal.PlanKrediya, reply.Plan)
	assert.Equal(t, "REDMI A2 64GB 2GB", reply.Query)
	assert.Contains(t, reply.Text, "Información para KREDIYA")
	assert.Contains(t, reply.Text, "Precio de Venta: $400.000")
	assert.Contains(t, reply.Text, "Inicial Financiera (25%): $100.000")
	assert.Contains(t, reply.Text, "Inicial real: $80.000")
}

func TestHandleContado(t *testing.T) {
	s, _ := newTestService(testCatalog())
	reply := s.Handle(context.Background(), "id", "contado redmi a2")

	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Equal(t, internal.PlanContado, reply.Plan)
	assert.Contains(t, reply.Text, "Total Contado: $530.000")
}

func TestHandleOtherPlanTotal(t *testing.T) {
	s, _ := newTestService(testCatalog())
	reply := s.Handle(context.Background(), "id", "precio addi redmi a2")

	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Contains(t, reply.Text, "Información para ADDI")
	assert.Contains(t, reply.Text, "Total: $400.000")
}

func TestHandleAmbiguousThenSelect(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(testCatalog())

	reply := s.Handle(ctx, "whatsapp:+57300", "precios por brilla de samsung a35")
	require.Equal(t, ReplyAmbiguous, reply.Kind)
	assert.Len(t, reply.Records, 2)
	assert.Contains(t, reply.Text, "1. SAMSUNG A35 128GB/6GB")
	assert.Contains(t, reply.Text, "2. SAMSUNG A35 256GB/8GB")

	other := s.Handle(ctx, "whatsapp:+57311", "2")
	assert.Equal(t, ReplyNotFound, other.Kind)

	picked := s.Handle(ctx, "whatsapp:+57300", "2")
	require.Equal(t, ReplyResolved, picked.Kind)
	assert.Equal(t, internal.PlanBrilla, picked.Plan)
	assert.Equal(t, "SAMSUNG A35 256GB/8GB", picked.Records[0].Device)
	assert.Contains(t, picked.Text, "Total: $1.820.000")

	again := s.Handle(ctx, "whatsapp:+57300", "2")
	assert.Equal(t, ReplyNotFound, again.Kind)
}

func TestHandleNewQueryDropsOffer(t *testing.T) {
	ctx := context.Background()
	s, store := newTestService(testCatalog())

	reply := s.Handle(ctx, "id", "precios por brilla de samsung a35")
	require.Equal(t, ReplyAmbiguous, reply.Kind)

	reply = s.Handle(ctx, "id", "precios por krediya de redmi a2 64gb 2gb")
	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Equal(t, 1, store.Sweep())

	stale := s.Handle(ctx, "id", "1")
	assert.NotEqual(t, ReplyResolved, stale.Kind)
	assert.NotEqual(t, internal.PlanBrilla, stale.Plan)
}

func TestHandleOutOfRangeKeepsOffer(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(testCatalog())

	reply := s.Handle(ctx, "id", "precios por brilla de samsung a35")
	require.Equal(t, ReplyAmbiguous, reply.Kind)

	miss := s.Handle(ctx, "id", "7")
	assert.NotEqual(t, ReplyResolved, miss.Kind)

	picked := s.Handle(ctx, "id", "1")
	require.Equal(t, ReplyResolved, picked.Kind)
	assert.Equal(t, "SAMSUNG A35 128GB/6GB", picked.Records[0].Device)
}

func TestHandleUnknownPlanIsGeneric(t *testing.T) {
	s, _ := newTestService(testCatalog())

	reply := s.Handle(context.Background(), "id", "precios por sistecredito de redmi a2")
	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Equal(t, internal.PlanGeneric, reply.Plan)
	assert.Equal(t, "REDMI A2", reply.Query)
}

func TestHandleUnspecifiedPlanPrompts(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestService(testCatalog())

	reply := s.Handle(ctx, "id", "redmi a2 64gb 2gb")
	assert.Equal(t, ReplyPlanPrompt, reply.Kind)
	assert.Contains(t, reply.Text, "¿Con qué financiera deseas consultar?")

	reply = s.Handle(ctx, "id", "samsung a35")
	require.Equal(t, ReplyAmbiguous, reply.Kind)
	picked := s.Handle(ctx, "id", "1")
	assert.Equal(t, ReplyPlanPrompt, picked.Kind)
	assert.Equal(t, "SAMSUNG A35 128GB/6GB", picked.Records[0].Device)
}

func TestHandleRecompra(t *testing.T) {
	s, _ := newTestService(testCatalog())

	reply := s.Handle(context.Background(), "id", "recompra iphone 11")
	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Contains(t, reply.Text, "Información para RECOMPRA")
	assert.Contains(t, reply.Text, "Precio Total: $1.350.000")
	assert.Contains(t, reply.Text, "Sin inicial requerida")

	missing := s.Handle(context.Background(), "id", "recompra redmi a2")
	assert.Equal(t, ReplyNotFound, missing.Kind)
	assert.Contains(t, missing.Text, "para recompra del modelo: REDMI A2")
}

func TestHandleFallsBackToRecompra(t *testing.T) {
	s, _ := newTestService(testCatalog())

	reply := s.Handle(context.Background(), "id", "precio krediya iphone 11")
	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Equal(t, internal.PlanRecompra, reply.Plan)
	assert.Contains(t, reply.Text, "El modelo IPHONE 11 solo está disponible para RECOMPRA.")

	contado := s.Handle(context.Background(), "id", "contado iphone 11")
	assert.Equal(t, ReplyNotFound, contado.Kind)
}

func TestHandleNotFoundAndParseFailure(t *testing.T) {
	s, _ := newTestService(testCatalog())

	reply := s.Handle(context.Background(), "id", "precio addi nonexistent phone xyz")
	assert.Equal(t, ReplyNotFound, reply.Kind)
	assert.Equal(t, "No se encontró información para el modelo: NONEXISTENT PHONE XYZ", reply.Text)

	failed := s.Handle(context.Background(), "id", "precios por krediya")
	assert.Equal(t, ReplyParseFailure, failed.Kind)
	assert.Contains(t, failed.Text, "No entendí tu consulta")
}

func TestHandleCatalogUnavailable(t *testing.T) {
	s, _ := newTestService(fakeCatalog{err: fmt.Errorf("%w: boom", internal.ErrCatalogUnavailable)})

	reply := s.Handle(context.Background(), "id", "precio addi redmi a2")
	assert.Equal(t, ReplyCatalogUnavailable, reply.Kind)
}

func TestHandleAssistantFallbackAndEnhance(t *testing.T) {
	s, _ := newTestService(testCatalog())
	s.WithAssistant(fakeAssistant{
		extraction: assist.Extraction{Plan: "adelanto", Model: "redmi a2"},
		enhanced:   "¡Claro! Redmi A2 con Adelantos.",
	}, true, true)

	reply := s.Handle(context.Background(), "id", "quiero saber por adelantos cuánto vale ese redmi")
	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Equal(t, internal.PlanAdelantos, reply.Plan)
	assert.Equal(t, "¡Claro! Redmi A2 con Adelantos.", reply.Text)
}

func TestHandleAssistantErrorsKeepDeterministicReply(t *testing.T) {
	s, _ := newTestService(testCatalog())
	s.WithAssistant(fakeAssistant{
		extractErr: errors.New("quota"),
		enhanceErr: errors.New("quota"),
	}, true, true)

	reply := s.Handle(context.Background(), "id", "precio addi redmi a2")
	require.Equal(t, ReplyResolved, reply.Kind)
	assert.Contains(t, reply.Text, "Información para ADDI")

	failed := s.Handle(context.Background(), "id", "precios por krediya")
	assert.Equal(t, ReplyParseFailure, failed.Kind)
}

func TestHandleWritesLookupLog(t *testing.T) {
	s, _ := newTestService(testCatalog())
	log := &memoryLookupLog{}
	s.WithLookupLog(log)

	s.Handle(context.Background(), "whatsapp:+57300", "hola")
	reply := s.Handle(context.Background(), "whatsapp:+57300", "contado redmi a2")

	require.Len(t, log.rows, 1)
	row := log.rows[0]
	assert.Equal(t, reply.TraceID, row.TraceID)
	assert.Equal(t, "whatsapp:+57300", row.Identity)
	assert.Equal(t, "contado", row.Plan)
	assert.Equal(t, "resolved", row.Outcome)
	assert.Equal(t, "REDMI A2 64GB 2GB", row.Device)
}
