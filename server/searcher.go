package server

import "strings"

// Searcher returns the files matching a keyword. Implementations must be safe
// for concurrent use.
type Searcher interface {
	Search(keyword string) []string
}

// StaticResults is a fixed keyword to files table, matched case-insensitively.
type StaticResults map[string][]string

// NewStaticResults copies m with lowercased keys.
func NewStaticResults(m map[string][]string) StaticResults {
	r := make(StaticResults, len(m))
	for k, v := range m {
		k = strings.ToLower(k)
		r[k] = append(r[k], v...)
	}
	return r
}

func (r StaticResults) Search(keyword string) []string {
	return r[strings.ToLower(keyword)]
}
