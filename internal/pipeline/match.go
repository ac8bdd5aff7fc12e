package pipeline

import (
	"preciobot/internal"
	"preciobot/internal/catalog"
	"preciobot/internal/util"
)

const maxPartialCandidates = 5

type Matcher struct {
	index *catalog.Index
}

func NewMatcher(index *catalog.Index) *Matcher {
	return &Matcher{index: index}
}

// NewMatcherFromRecords indexes records on the fly; used where no catalog
// service is involved.
func NewMatcherFromRecords(sheet string, records []internal.CatalogRecord) *Matcher {
	return NewMatcher(catalog.BuildIndex(sheet, records))
}

// Match resolves a device query against the indexed sheet. An exact name hit
// wins over any partial hit and is never truncated. Otherwise every
// non-numeric query token must appear in the record name; at most five such
// records are returned, in sheet order.
func (m *Matcher) Match(query string) internal.MatchOutcome {
	norm := util.NormalizeModel(query)
	if norm == "" || m.index == nil {
		return internal.MatchOutcome{Kind: internal.NoMatch}
	}

	if exact := m.index.Exact(norm); len(exact) > 0 {
		return m.outcome(exact, true)
	}

	hits := m.index.Containing(util.DiscriminatingTokens(norm))
	if len(hits) > maxPartialCandidates {
		hits = hits[:maxPartialCandidates]
	}
	return m.outcome(hits, false)
}

func (m *Matcher) outcome(positions []int, exact bool) internal.MatchOutcome {
	switch len(positions) {
	case 0:
		return internal.MatchOutcome{Kind: internal.NoMatch}
	case 1:
		return internal.MatchOutcome{Kind: internal.SingleMatch, Exact: exact, Records: m.records(positions)}
	default:
		return internal.MatchOutcome{Kind: internal.MultipleMatches, Exact: exact, Records: m.records(positions)}
	}
}

func (m *Matcher) records(positions []int) []internal.CatalogRecord {
	out := make([]internal.CatalogRecord, len(positions))
	for i, pos := range positions {
		out[i] = m.index.Records[pos]
	}
	return out
}
