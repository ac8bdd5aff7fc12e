package util

import (
	"regexp"
	"strings"
)

var (
	reNonAllowed = regexp.MustCompile(`[^A-Z0-9 /]`)
	reSpaces     = regexp.MustCompile(`\s+`)
	reSlash      = regexp.MustCompile(` ?/ ?`)
	reUnitSpace  = regexp.MustCompile(`\b(\d+) (GB|TB|RAM)\b`)
	reUnitGlued  = regexp.MustCompile(`(\d)(GB|TB)(\d)`)
	reSamsung    = regexp.MustCompile(`\bSAMSUNG ?([A-Z]+) ?(\d+)\b`)
	reOppo       = regexp.MustCompile(`\bOPPO ([A-Z]+) (\d+)\b`)
)

// NormalizeModel canonicalizes a device name so that a user query and a
// catalog cell describing the same phone compare equal. The result only holds
// A-Z, 0-9, single spaces and '/'; NormalizeModel(NormalizeModel(x)) equals
// NormalizeModel(x).
func NormalizeModel(input string) string {
	s := strings.TrimSpace(input)
	for {
		next := normalizePass(s)
		if next == s {
			return next
		}
		s = next
	}
}

// normalizePass applies every rewrite once. Splitting glued memory can open
// a new "<n> GB" gap, so NormalizeModel repeats passes until nothing changes.
func normalizePass(input string) string {
	s := strings.ToUpper(input)
	s = reNonAllowed.ReplaceAllString(s, " ")
	s = collapse(s)

	s = reSlash.ReplaceAllString(s, "/")
	s = reUnitSpace.ReplaceAllString(s, "${1}${2}")
	s = reUnitGlued.ReplaceAllString(s, "${1}${2} ${3}")

	// Unit joining runs first so "SAMSUNG A 128 GB" keeps 128GB intact.
	s = reSamsung.ReplaceAllString(s, "SAMSUNG ${1}${2}")
	s = reOppo.ReplaceAllString(s, "OPPO ${1}${2}")

	return collapse(s)
}

// Tokenize splits a normalized name on spaces and slashes.
func Tokenize(normalized string) []string {
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return r == ' ' || r == '/'
	})
}

// DiscriminatingTokens drops pure-numeric tokens; storage and RAM figures do
// not tell models apart in the coarse pass.
func DiscriminatingTokens(normalized string) []string {
	parts := Tokenize(normalized)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if IsNumeric(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func IsNumeric(input string) bool {
	s := strings.TrimSpace(input)
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func collapse(s string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(s, " "))
}
