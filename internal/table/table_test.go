package table

import (
	"errors"
	"reflect"
	"testing"

	"github.com/andresuchdata/linksync/internal/domain"
)

func sampleWide() WideTable {
	return WideTable{
		Header: []string{"name", "link_a", "link_b"},
		Rows: []WideRow{
			{Name: "A", URLs: []string{"u1", "u2"}},
			{Name: "B", URLs: []string{"u3", ""}},
		},
	}
}

func TestToLong(t *testing.T) {
	long, err := ToLong(sampleWide())
	if err != nil {
		t.Fatalf("ToLong() error = %v", err)
	}

	want := LongTable{
		{Name: "A", URL: "u1"},
		{Name: "A", URL: "u2"},
		{Name: "B", URL: "u3"},
	}
	if !reflect.DeepEqual(long, want) {
		t.Errorf("ToLong() = %v, want %v", long, want)
	}
}

func TestToLong_TooFewColumns(t *testing.T) {
	tests := []struct {
		name   string
		header []string
	}{
		{"no columns", nil},
		{"name only", []string{"name"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToLong(WideTable{Header: tt.header, Rows: []WideRow{{Name: "A"}}})
			if !errors.Is(err, domain.ErrMalformedTable) {
				t.Errorf("ToLong() error = %v, want malformed table", err)
			}
		})
	}
}

func TestToLong_DropsSentinelAndTrims(t *testing.T) {
	wide := WideTable{
		Header: []string{"name", "url1", "url2", "url3"},
		Rows: []WideRow{
			{Name: " C ", URLs: []string{" u5 ", NoneSentinel, ""}},
			{Name: "A", URLs: []string{"u1"}},
		},
	}

	long, err := ToLong(wide)
	if err != nil {
		t.Fatalf("ToLong() error = %v", err)
	}
	want := LongTable{{Name: "A", URL: "u1"}, {Name: "C", URL: "u5"}}
	if !reflect.DeepEqual(long, want) {
		t.Errorf("ToLong() = %v, want %v", long, want)
	}
}

func TestToLong_StableForRepeatedNames(t *testing.T) {
	wide := WideTable{
		Header: []string{"name", "url1", "url2"},
		Rows: []WideRow{
			{Name: "A", URLs: []string{"a1", "a2"}},
			{Name: "A", URLs: []string{"a3", "a4"}},
		},
	}

	long, err := ToLong(wide)
	if err != nil {
		t.Fatalf("ToLong() error = %v", err)
	}
	got := make([]string, len(long))
	for i, row := range long {
		got[i] = row.URL
	}
	want := []string{"a1", "a3", "a2", "a4"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ToLong() urls = %v, want %v", got, want)
	}
}

func TestToWide(t *testing.T) {
	long := LongTable{
		{Name: "A", URL: "u1"},
		{Name: "A", URL: "u2"},
		{Name: "B", URL: "u3"},
	}

	wide := ToWide(long)

	wantHeader := []string{"name", "url1", "url2"}
	if !reflect.DeepEqual(wide.Header, wantHeader) {
		t.Errorf("header = %v, want %v", wide.Header, wantHeader)
	}
	wantRows := []WideRow{
		{Name: "A", URLs: []string{"u1", "u2"}},
		{Name: "B", URLs: []string{"u3", "None"}},
	}
	if !reflect.DeepEqual(wide.Rows, wantRows) {
		t.Errorf("rows = %v, want %v", wide.Rows, wantRows)
	}
}

func TestToWide_FirstSeenOrder(t *testing.T) {
	long := LongTable{
		{Name: "Z", URL: "z1"},
		{Name: "A", URL: "a1"},
		{Name: "Z", URL: "z2"},
	}

	wide := ToWide(long)
	if wide.Rows[0].Name != "Z" || wide.Rows[1].Name != "A" {
		t.Errorf("rows = %v, want Z before A", wide.Rows)
	}
	if got := wide.Rows[1].URLs; !reflect.DeepEqual(got, []string{"a1", NoneSentinel}) {
		t.Errorf("A urls = %v", got)
	}
}

func TestToWide_Empty(t *testing.T) {
	wide := ToWide(nil)
	if !reflect.DeepEqual(wide.Header, []string{"name"}) {
		t.Errorf("header = %v, want [name]", wide.Header)
	}
	if len(wide.Rows) != 0 {
		t.Errorf("rows = %v, want none", wide.Rows)
	}
}

func TestRoundTrip_PreservesAssociations(t *testing.T) {
	wide := WideTable{
		Header: []string{"name", "first", "second", "third"},
		Rows: []WideRow{
			{Name: "B", URLs: []string{"b1", "b2", "b3"}},
			{Name: "A", URLs: []string{"a1", "a2", "a3"}},
		},
	}

	long, err := ToLong(wide)
	if err != nil {
		t.Fatalf("ToLong() error = %v", err)
	}
	back := ToWide(long)

	links := func(w WideTable) map[string][]string {
		m := make(map[string][]string)
		for _, row := range w.Rows {
			m[row.Name] = row.URLs
		}
		return m
	}
	if got, want := links(back), links(wide); !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %v, want %v", got, want)
	}
}

func TestDedup(t *testing.T) {
	long := LongTable{
		{Name: "A", URL: "u1"},
		{Name: "B", URL: "u1"},
		{Name: "A", URL: "u1"},
		{Name: "A", URL: "u2"},
	}

	got := Dedup(long)
	want := LongTable{{Name: "A", URL: "u1"}, {Name: "B", URL: "u1"}, {Name: "A", URL: "u2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedup() = %v, want %v", got, want)
	}
}

func TestGroupByName(t *testing.T) {
	long := LongTable{
		{Name: "B", URL: " b1"},
		{Name: "A", URL: "a1 "},
		{Name: "B", URL: "b2"},
	}

	got := GroupByName(long)
	want := []Group{
		{Name: "A", URLs: []string{"a1"}},
		{Name: "B", URLs: []string{"b1", "b2"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("GroupByName() = %v, want %v", got, want)
	}
}

func TestSortByName_DoesNotMutate(t *testing.T) {
	long := LongTable{{Name: "B", URL: "b"}, {Name: "A", URL: "a"}}
	sorted := SortByName(long)
	if sorted[0].Name != "A" {
		t.Errorf("sorted[0] = %v, want A", sorted[0])
	}
	if long[0].Name != "B" {
		t.Errorf("input mutated: %v", long)
	}
}

func TestIsHTTPURL(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"https://example.com/a.jpg", true},
		{"http://example.com", true},
		{"https://cdn.example.com/images/2024/cat_1-b.png", true},
		{"ftp://x", false},
		{"not a url", false},
		{"https://example.com/a.jpg?x=1", false},
		{"https://example.com:8080/a.jpg", false},
		{"https://example.com/", false},
		{" https://example.com/a.jpg", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsHTTPURL(tt.in); got != tt.want {
				t.Errorf("IsHTTPURL(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilterURLs(t *testing.T) {
	long := LongTable{
		{Name: "A", URL: "https://example.com/a.jpg"},
		{Name: "B", URL: "nope"},
	}

	kept, dropped := FilterURLs(long, IsHTTPURL)
	if len(kept) != 1 || kept[0].Name != "A" {
		t.Errorf("kept = %v", kept)
	}
	if len(dropped) != 1 || dropped[0].Name != "B" {
		t.Errorf("dropped = %v", dropped)
	}
}
