package catalog

import (
	"preciobot/internal"
	"preciobot/internal/util"
)

// Index holds one sheet's records with their device names normalized once.
// Positions refer to Records and follow sheet order.
type Index struct {
	Sheet      string
	Records    []internal.CatalogRecord
	Normalized []string

	byName    map[string][]int
	postings  map[string][]int
	tokenSets []map[string]struct{}
}

func BuildIndex(sheet string, records []internal.CatalogRecord) *Index {
	idx := &Index{
		Sheet:      sheet,
		Records:    records,
		Normalized: make([]string, len(records)),
		byName:     map[string][]int{},
		postings:   map[string][]int{},
		tokenSets:  make([]map[string]struct{}, len(records)),
	}

	for pos, r := range records {
		norm := util.NormalizeModel(r.Device)
		idx.Normalized[pos] = norm
		idx.byName[norm] = append(idx.byName[norm], pos)

		set := map[string]struct{}{}
		for _, token := range util.DiscriminatingTokens(norm) {
			if _, seen := set[token]; seen {
				continue
			}
			set[token] = struct{}{}
			idx.postings[token] = append(idx.postings[token], pos)
		}
		idx.tokenSets[pos] = set
	}

	return idx
}

func (i *Index) Len() int {
	return len(i.Records)
}

// Exact returns the positions whose normalized name equals norm.
func (i *Index) Exact(norm string) []int {
	return i.byName[norm]
}

// Containing returns, in sheet order, the positions whose token set holds
// every token. No tokens means no positions.
func (i *Index) Containing(tokens []string) []int {
	if len(tokens) == 0 {
		return nil
	}

	// Walk the shortest posting list and check the rest per record.
	shortest := -1
	for n, t := range tokens {
		list, ok := i.postings[t]
		if !ok {
			return nil
		}
		if shortest < 0 || len(list) < len(i.postings[tokens[shortest]]) {
			shortest = n
		}
	}

	var out []int
	for _, pos := range i.postings[tokens[shortest]] {
		if i.hasAll(pos, tokens) {
			out = append(out, pos)
		}
	}
	return out
}

func (i *Index) hasAll(pos int, tokens []string) bool {
	set := i.tokenSets[pos]
	for _, t := range tokens {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}
