// Package table reshapes name→link tables between the wide spreadsheet layout
// (name, url1..urlK) and the long layout (one row per name, url pair).
package table

import (
	"fmt"
	"sort"
	"strings"

	"github.com/andresuchdata/linksync/internal/domain"
)

// NoneSentinel fills wide-table slots that have no link.
const NoneSentinel = "None"

const (
	NameColumn = "name"
	URLColumn  = "url"
)

// LongRow is one name-to-link association.
type LongRow struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// LongTable holds one row per (name, url) pair.
type LongTable []LongRow

// WideRow is a name followed by its ranked links. Empty strings are absent cells.
type WideRow struct {
	Name string   `json:"name"`
	URLs []string `json:"urls"`
}

// WideTable holds one row per name and one column per ranked link.
type WideTable struct {
	Header []string  `json:"header"`
	Rows   []WideRow `json:"rows"`
}

// ToLong unpivots a wide table. Column 0 is the name and every other column a
// candidate link; empty and sentinel cells are dropped. The result is sorted
// by name, ties keeping the original link column order.
func ToLong(wide WideTable) (LongTable, error) {
	if len(wide.Header) < 2 {
		return nil, domain.Errorf(domain.KindMalformedTable, "to long",
			"table must have at least two columns, got %d", len(wide.Header))
	}

	linkCols := len(wide.Header) - 1
	long := make(LongTable, 0, len(wide.Rows)*linkCols)
	// column-major, the order a melt produces
	for col := 0; col < linkCols; col++ {
		for _, row := range wide.Rows {
			if col >= len(row.URLs) {
				continue
			}
			link := strings.TrimSpace(row.URLs[col])
			if isAbsent(link) {
				continue
			}
			long = append(long, LongRow{Name: strings.TrimSpace(row.Name), URL: link})
		}
	}

	return SortByName(long), nil
}

// ToWide pivots a long table. Names keep their first-seen order and links are
// ranked in encounter order; missing ranks hold NoneSentinel.
func ToWide(long LongTable) WideTable {
	var order []string
	links := make(map[string][]string)
	for _, row := range long {
		if _, ok := links[row.Name]; !ok {
			order = append(order, row.Name)
		}
		links[row.Name] = append(links[row.Name], row.URL)
	}

	width := 0
	for _, urls := range links {
		if len(urls) > width {
			width = len(urls)
		}
	}

	header := make([]string, 0, width+1)
	header = append(header, NameColumn)
	for rank := 1; rank <= width; rank++ {
		header = append(header, fmt.Sprintf("%s%d", URLColumn, rank))
	}

	rows := make([]WideRow, 0, len(order))
	for _, name := range order {
		urls := make([]string, width)
		for i := range urls {
			urls[i] = NoneSentinel
		}
		copy(urls, links[name])
		rows = append(rows, WideRow{Name: name, URLs: urls})
	}

	return WideTable{Header: header, Rows: rows}
}

// SortByName returns a copy of long stably sorted by name ascending.
func SortByName(long LongTable) LongTable {
	sorted := make(LongTable, len(long))
	copy(sorted, long)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})
	return sorted
}

// Dedup drops repeated (name, url) pairs, keeping the first occurrence.
func Dedup(long LongTable) LongTable {
	seen := make(map[LongRow]struct{}, len(long))
	out := make(LongTable, 0, len(long))
	for _, row := range long {
		if _, ok := seen[row]; ok {
			continue
		}
		seen[row] = struct{}{}
		out = append(out, row)
	}
	return out
}

// Group is every link recorded for one name.
type Group struct {
	Name string
	URLs []string
}

// GroupByName collects trimmed links per name, names sorted ascending.
func GroupByName(long LongTable) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, row := range long {
		i, ok := index[row.Name]
		if !ok {
			i = len(groups)
			index[row.Name] = i
			groups = append(groups, Group{Name: row.Name})
		}
		groups[i].URLs = append(groups[i].URLs, strings.TrimSpace(row.URL))
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Name < groups[j].Name
	})
	return groups
}

func isAbsent(cell string) bool {
	return cell == "" || cell == NoneSentinel
}
