package pipeline

import (
	"regexp"
	"strings"

	"preciobot/internal"
	"preciobot/internal/util"
)

type ParsedQuery struct {
	Plan  internal.FinancingPlan
	Query string
}

var (
	rePunct   = regexp.MustCompile(`[,;:!?¿¡"'()]+`)
	reContado = regexp.MustCompile(`(?:^|\s)contado(?:\s|$)`)
	rePlan    = regexp.MustCompile(`^(.*?)(?:^|\s)` +
		`(?:(?:precios?|info|informaci[oó]n|consulta)\s+)?` +
		`(?:(?:por|de|para)\s+)?` +
		`(krediya|kredi|crediya|credia|adelantos|adelanto|sumas\s*pay|sumas|addi|` +
		`banco\s*(?:de\s*)?bogot[aá]|bogot[aá]|brilla|recompra|re\s*compra|contado)` +
		`(?:\s+(?:(?:de|del|para|sobre)\s+)?(.*))?$`)
)

// reOtherPlan reads "precios por <financiera> de <modelo>" when the
// financiera is not one we know.
var reOtherPlan = regexp.MustCompile(`^(?:precios?|info|informaci[oó]n|consulta)\s+(?:por|para|con)\s+(\S+)\s+(?:de|del|para|sobre)\s+(.+)$`)

var fillerWords = map[string]struct{}{
	"precio": {}, "precios": {}, "info": {}, "informacion": {}, "información": {},
	"consulta": {}, "por": {}, "de": {}, "del": {}, "para": {}, "sobre": {},
}

var greetings = map[string]struct{}{
	"hola": {}, "hi": {}, "hello": {}, "hey": {},
	"buenos dias": {}, "buenos días": {}, "buenas": {},
	"buenas tardes": {}, "buenas noches": {},
}

// IsGreeting reports whether a message should get the welcome text instead of
// a lookup. Empty messages count as greetings.
func IsGreeting(raw string) bool {
	s := strings.Trim(strings.ToLower(strings.TrimSpace(raw)), "!.¡ ")
	if s == "" {
		return true
	}
	_, ok := greetings[strings.Join(strings.Fields(s), " ")]
	return ok
}

// ParseQuery splits a free-form message into a financing plan and a
// normalized device query. A message without a plan alias yields
// PlanUnspecified, an unknown financiera in plan position yields PlanGeneric,
// and a plan without a device yields an empty Query.
func ParseQuery(raw string) ParsedQuery {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Join(strings.Fields(rePunct.ReplaceAllString(s, " ")), " ")
	if s == "" {
		return ParsedQuery{}
	}

	if reContado.MatchString(s) {
		rest := dropWords(s, func(w string) bool { return w == "contado" })
		return ParsedQuery{Plan: internal.PlanContado, Query: util.NormalizeModel(rest)}
	}

	m := rePlan.FindStringSubmatch(s)
	if m == nil {
		if o := reOtherPlan.FindStringSubmatch(s); o != nil {
			if _, filler := fillerWords[o[1]]; !filler {
				return ParsedQuery{Plan: internal.PlanGeneric, Query: util.NormalizeModel(dropWords(o[2], nil))}
			}
		}
		return ParsedQuery{Plan: internal.PlanUnspecified, Query: util.NormalizeModel(dropWords(s, nil))}
	}

	model := strings.TrimSpace(m[3])
	if model == "" {
		model = m[1]
	}
	return ParsedQuery{
		Plan:  CanonicalPlan(m[2]),
		Query: util.NormalizeModel(dropWords(model, nil)),
	}
}

// CanonicalPlan maps a user-typed alias onto the closed plan set. Anything
// not in the alias table is PlanGeneric.
func CanonicalPlan(alias string) internal.FinancingPlan {
	key := strings.ToLower(strings.Join(strings.Fields(alias), " "))
	key = strings.ReplaceAll(key, "á", "a")
	switch key {
	case "krediya", "kredi", "credia", "crediya":
		return internal.PlanKrediya
	case "adelantos", "adelanto":
		return internal.PlanAdelantos
	case "sumas pay", "sumaspay", "sumas":
		return internal.PlanSumasPay
	case "addi":
		return internal.PlanAddi
	case "banco de bogota", "banco bogota", "bancobogota", "bancodebogota", "bogota":
		return internal.PlanBancoBogota
	case "brilla":
		return internal.PlanBrilla
	case "recompra", "re compra":
		return internal.PlanRecompra
	case "contado":
		return internal.PlanContado
	default:
		return internal.PlanGeneric
	}
}

func dropWords(s string, extra func(string) bool) string {
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if _, filler := fillerWords[w]; filler {
			continue
		}
		if extra != nil && extra(w) {
			continue
		}
		kept = append(kept, w)
	}
	return strings.Join(kept, " ")
}
