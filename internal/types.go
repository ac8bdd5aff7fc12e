package internal

import (
	"errors"
	"strings"

	"preciobot/internal/util"
)

var (
	ErrHeaderMismatch     = errors.New("catalog headers do not match")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

type FinancingPlan string

const (
	PlanUnspecified FinancingPlan = ""
	PlanKrediya     FinancingPlan = "krediya"
	PlanAdelantos   FinancingPlan = "adelantos"
	PlanSumasPay    FinancingPlan = "sumas pay"
	PlanAddi        FinancingPlan = "addi"
	PlanBancoBogota FinancingPlan = "banco de bogota"
	PlanBrilla      FinancingPlan = "brilla"
	PlanRecompra    FinancingPlan = "recompra"
	PlanContado     FinancingPlan = "contado"
	PlanGeneric     FinancingPlan = "generic"
)

// Plans is the closed set offered to users, in display order.
var Plans = []FinancingPlan{
	PlanKrediya, PlanAdelantos, PlanSumasPay, PlanAddi,
	PlanBancoBogota, PlanBrilla, PlanRecompra, PlanContado,
}

func (p FinancingPlan) Label() string {
	switch p {
	case PlanSumasPay:
		return "Sumas Pay"
	case PlanBancoBogota:
		return "Banco de Bogotá"
	case PlanGeneric:
		return "General"
	case PlanUnspecified:
		return ""
	default:
		s := string(p)
		return strings.ToUpper(s[:1]) + s[1:]
	}
}

const (
	FieldDevice           = "CELULAR"
	FieldCode             = "CODIGO"
	FieldSale             = "VENTA"
	FieldInitialFinancier = "INICIAL FINANCIERA"
	FieldInitialReal      = "INICIAL REAL"
	FieldDiscount         = "DESCUENTO"
	FieldBasePrice        = "PRECIO BASE"
	FieldAddiSumas        = "PRECIO ADDI Y SUMAS"
	FieldCash             = "CONTADO"
)

// CatalogRecord is one spreadsheet row. Headers preserves the sheet's column
// order; Fields holds every cell keyed by header, including columns the core
// never reads.
type CatalogRecord struct {
	Sheet   string            `json:"sheet"`
	RowNo   int               `json:"rowNo"`
	Device  string            `json:"device"`
	Headers []string          `json:"headers"`
	Fields  map[string]string `json:"fields"`
}

func (r CatalogRecord) Field(name string) string {
	v, ok := r.Fields[name]
	if !ok || strings.TrimSpace(v) == "" {
		return "0"
	}
	return v
}

func (r CatalogRecord) Amount(name string) float64 {
	return util.ParseAmount(r.Field(name))
}

type MatchKind string

const (
	NoMatch         MatchKind = "NO_MATCH"
	SingleMatch     MatchKind = "SINGLE"
	MultipleMatches MatchKind = "MULTIPLE"
)

type MatchOutcome struct {
	Kind    MatchKind
	Exact   bool
	Records []CatalogRecord
}

func (o MatchOutcome) Record() *CatalogRecord {
	if o.Kind != SingleMatch || len(o.Records) == 0 {
		return nil
	}
	return &o.Records[0]
}

type LookupRow struct {
	ID         int
	TraceID    string
	Identity   string
	Message    string
	Plan       string
	Query      string
	Outcome    string
	Candidates int
	Device     string
	CreatedAt  string
}

type BatchRow struct {
	LineNo     int
	Input      string
	Plan       string
	Query      string
	Outcome    string
	Device     string
	Candidates []string
}
