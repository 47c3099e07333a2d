package suggest

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/bosth/ottoman-routing/internal/corpus"
)

// Match is one scored candidate from the fuzzy matcher. Index points
// into the corpus; lower scores are better matches.
type Match struct {
	Index int
	Score float64
}

// Matcher is the fuzzy string-matching collaborator. Implementations
// run a query over the corpus name/id fields and return scored
// candidates in any order; the engine re-sorts.
type Matcher interface {
	Match(query string, c *corpus.Corpus) []Match
}

// LevenshteinMatcher is the default Matcher, backed by normalized
// case-folding fuzzy matching with a Levenshtein-distance score.
type LevenshteinMatcher struct{}

// Match implements Matcher. A record matches when the query fuzzily
// matches its name, or its identifier when the name is empty.
func (LevenshteinMatcher) Match(query string, c *corpus.Corpus) []Match {
	var out []Match
	for i := 0; i < c.Len(); i++ {
		loc := c.At(i)

		target := loc.Name
		if target == "" {
			target = loc.ID
		}
		if target == "" {
			continue
		}

		rank := fuzzy.RankMatchNormalizedFold(query, target)
		if rank < 0 {
			continue
		}
		out = append(out, Match{Index: i, Score: float64(rank)})
	}
	return out
}

// sortMatches orders candidates by match score ascending, breaking ties
// by rank ascending so more important places sort first among equally
// good text matches.
func sortMatches(c *corpus.Corpus, matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score < matches[j].Score
		}
		return c.At(matches[i].Index).Rank < c.At(matches[j].Index).Rank
	})
}
