package table

import "regexp"

var httpURLPattern = regexp.MustCompile(`^(http|https)://[a-zA-Z0-9._-]+(/[a-zA-Z0-9._-]+)*$`)

// IsHTTPURL reports whether s is a plain http(s) URL made only of host and
// path segments. Query strings, ports and fragments do not match.
func IsHTTPURL(s string) bool {
	return httpURLPattern.MatchString(s)
}

// FilterURLs splits long into rows whose URL passes valid and rows that don't.
func FilterURLs(long LongTable, valid func(string) bool) (kept, dropped LongTable) {
	for _, row := range long {
		if valid(row.URL) {
			kept = append(kept, row)
			continue
		}
		dropped = append(dropped, row)
	}
	return kept, dropped
}
