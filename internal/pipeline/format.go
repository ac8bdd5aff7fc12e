package pipeline

import (
	"fmt"
	"strings"

	"preciobot/internal"
	"preciobot/internal/session"
	"preciobot/internal/util"
)

const usageExample = "'precios por krediya de redmi A2 64gb 2gb'"

func planList() string {
	var b strings.Builder
	for _, p := range internal.Plans {
		b.WriteString("\n- ")
		b.WriteString(p.Label())
	}
	return b.String()
}

func WelcomeText() string {
	return "¡Hola! 👋\n\n" +
		"Soy tu asistente para consultar precios de celulares con diferentes financieras.\n\n" +
		"Para consultar precios, escribe:\n" +
		"'precios por [financiera] de [modelo del celular]'\n\n" +
		"Ejemplo:\n" + usageExample + "\n\n" +
		"Financieras disponibles:" + planList()
}

func UsageText() string {
	return "No entendí tu consulta. Por favor usa el formato:\n" +
		"'precios por [financiera] de [modelo del celular]'\n\n" +
		"Ejemplo:\n" + usageExample + "\n\n" +
		"O simplemente escribe el modelo del celular que deseas consultar."
}

func CatalogUnavailableText() string {
	return "No pude consultar la lista de precios en este momento. Intenta de nuevo en unos minutos."
}

func NotFoundText(plan internal.FinancingPlan, query string) string {
	if plan == internal.PlanRecompra {
		return "No se encontró información para recompra del modelo: " + query
	}
	return "No se encontró información para el modelo: " + query
}

// CandidatesText lists an offer in the numbering the session store resolves.
func CandidatesText(query string, p session.Pending) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Encontré varios modelos para: %s\n\n", query)
	for i, r := range p.Ordered() {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.Device)
	}
	b.WriteString("\nResponde con el número del modelo que deseas consultar.")
	return b.String()
}

func PlanPromptText(record internal.CatalogRecord) string {
	return fmt.Sprintf("📱 %s\n\n¿Con qué financiera deseas consultar?\nEscribe por ejemplo: 'precios por krediya de %s'\n\nFinancieras disponibles:%s",
		record.Device, strings.ToLower(record.Device), planList())
}

// Formatter renders the price reply for a resolved record.
type Formatter struct {
	ContadoExtra float64
}

func (f Formatter) Price(plan internal.FinancingPlan, r internal.CatalogRecord) string {
	switch plan {
	case internal.PlanKrediya, internal.PlanAdelantos:
		venta := r.Amount(internal.FieldSale)
		inicial := r.Amount(internal.FieldInitialFinancier)
		return fmt.Sprintf("📱 %s\n📊 Información para %s 📊\n\nPrecio de Venta: %s\nInicial Financiera (%d%%): %s\nInicial real: %s",
			r.Device, strings.ToUpper(plan.Label()),
			util.FormatAmount(venta),
			util.Percent(inicial, venta), util.FormatAmount(inicial),
			util.FormatAmount(r.Amount(internal.FieldInitialReal)))
	case internal.PlanRecompra:
		return recompraBlock(r)
	case internal.PlanContado:
		total := r.Amount(internal.FieldBasePrice) + f.ContadoExtra
		return fmt.Sprintf("📱 %s\n\n💰 PRECIO DE CONTADO 💰\n\n💵 Total Contado: %s", r.Device, util.FormatAmount(total))
	default:
		total := r.Amount(internal.FieldBasePrice) + r.Amount(internal.FieldAddiSumas)
		return fmt.Sprintf("📱 %s\n\n📊 Información para %s 📊\n\n💰 Total: %s", r.Device, strings.ToUpper(plan.Label()), util.FormatAmount(total))
	}
}

// RecompraOnly answers a non-recompra query whose device only exists on the
// trade-in sheet.
func (f Formatter) RecompraOnly(query string, r internal.CatalogRecord) string {
	return fmt.Sprintf("El modelo %s solo está disponible para RECOMPRA.\n\n%s", query, recompraBlock(r))
}

func recompraBlock(r internal.CatalogRecord) string {
	return fmt.Sprintf("📱 %s\n\n📊 Información para RECOMPRA 📊\n\nPrecio de Venta: %s\nPrecio Total: %s\n💡 Sin inicial requerida",
		r.Device,
		util.FormatAmount(r.Amount(internal.FieldSale)),
		util.FormatAmount(r.Amount(internal.FieldAddiSumas)))
}
