package search

import (
	"sort"
	"strings"

	"tidyframe/domain/frame"
)

// DefaultSuggestionLimit caps Suggest when no limit is given
const DefaultSuggestionLimit = 15

// Result is the set of rows matching a search
type Result struct {
	Column           string
	Term             string
	Rows             []int
	OriginalRowCount int
}

// FilteredRowCount is the number of matching rows
func (r Result) FilteredRowCount() int {
	return len(r.Rows)
}

// Apply finds rows whose display string in column contains term, ignoring case.
// Missing cells never match.
func Apply(f *frame.Frame, column, term string) (Result, error) {
	col, err := f.Lookup(column)
	if err != nil {
		return Result{}, err
	}
	needle := strings.ToLower(term)
	rows := make([]int, 0)
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsMissing() {
			continue
		}
		if strings.Contains(strings.ToLower(v.String()), needle) {
			rows = append(rows, i)
		}
	}
	return Result{Column: column, Term: term, Rows: rows, OriginalRowCount: f.NumRows()}, nil
}

// Suggest returns up to limit distinct values of column containing query, ignoring case.
// Prefix matches come first; both groups keep first-appearance order.
func Suggest(f *frame.Frame, column, query string, limit int) ([]string, error) {
	col, err := f.Lookup(column)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultSuggestionLimit
	}
	needle := strings.ToLower(strings.TrimSpace(query))

	type candidate struct {
		value  string
		prefix bool
	}
	seen := make(map[string]bool)
	var found []candidate
	for i := 0; i < col.Len(); i++ {
		v := col.At(i)
		if v.IsMissing() {
			continue
		}
		s := v.String()
		if seen[s] {
			continue
		}
		lower := strings.ToLower(s)
		if !strings.Contains(lower, needle) {
			continue
		}
		seen[s] = true
		found = append(found, candidate{value: s, prefix: strings.HasPrefix(lower, needle)})
	}
	sort.SliceStable(found, func(a, b int) bool {
		return found[a].prefix && !found[b].prefix
	})

	out := make([]string, 0, limit)
	for _, c := range found {
		if len(out) == limit {
			break
		}
		out = append(out, c.value)
	}
	return out, nil
}
