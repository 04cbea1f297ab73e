package template

import "github.com/lithammer/fuzzysearch/fuzzy"

type Rank struct {
	// Kind is the matched node kind.
	Kind string

	// Title is the matched template title.
	Title string

	// Distance is the Levenshtein distance between the query and the match.
	Distance int
}

// Search fuzzy-matches the query against kind names and titles. Used by
// "did you mean" surfaces when a kind lookup comes back absent.
func Search(query string) []Rank {
	keys := make([]string, 0, len(order))
	for _, kind := range order {
		keys = append(keys, kind)
	}
	ranks := fuzzy.RankFindFold(query, keys)
	out := make([]Rank, ranks.Len())
	for i, r := range ranks {
		t := registry[r.Target]
		out[i] = Rank{
			Kind:     r.Target,
			Title:    t.Title,
			Distance: r.Distance,
		}
	}
	return out
}
