package suggest

import (
	"strings"

	"github.com/bosth/ottoman-routing/internal/corpus"
)

// DefaultMaxResults caps the number of selectable suggestion rows.
const DefaultMaxResults = 8

// syntheticScore tags rows pulled in from full-corpus lookups rather
// than the matcher. It sorts after any real match score.
const syntheticScore = 1e9

// RowKind distinguishes the row types a suggestion list renders.
type RowKind int

const (
	// RowHeading is a non-selectable cluster divider.
	RowHeading RowKind = iota
	// RowHeader is the cluster header's own selectable row.
	RowHeader
	// RowMember is a clustered variant of the header place.
	RowMember
	// RowStandalone is a match with no cluster relation.
	RowStandalone
)

// Row is one rendered suggestion row.
type Row struct {
	Kind     RowKind
	Location corpus.Location
	// Label is the display name. It is empty for a member whose name
	// duplicates one of the header's names; such rows show only the
	// rank label.
	Label     string
	RankLabel string
	// Synthetic marks rows sourced purely from full-corpus lookups:
	// they never matched the query but were pulled in to complete a
	// cluster. They stay selectable like any other row.
	Synthetic bool
	Score     float64
}

// Selectable reports whether the row participates in index-based
// selection. Headings are dividers only.
func (r Row) Selectable() bool {
	return r.Kind != RowHeading
}

// Engine ranks and groups fuzzy matches over a corpus.
type Engine struct {
	c   *corpus.Corpus
	m   Matcher
	max int
}

// NewEngine builds an engine over an immutable corpus. A nil matcher
// falls back to LevenshteinMatcher; max <= 0 falls back to
// DefaultMaxResults.
func NewEngine(c *corpus.Corpus, m Matcher, max int) *Engine {
	if m == nil {
		m = LevenshteinMatcher{}
	}
	if max <= 0 {
		max = DefaultMaxResults
	}
	return &Engine{c: c, m: m, max: max}
}

// clusterAgg accumulates the matches that belong to one cluster while
// walking the ranked match list.
type clusterAgg struct {
	headerMatch  Match
	headerHit    bool
	memberHit    map[int]bool
	memberScores map[int]float64
}

// Search runs the query over the corpus and returns rendered rows:
// clusters first (in order of their first-ranked constituent), then
// standalone matches. An empty or whitespace-only query yields nil.
func (e *Engine) Search(query string) []Row {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}

	matches := e.m.Match(query, e.c)
	if len(matches) == 0 {
		return nil
	}
	sortMatches(e.c, matches)

	// Partition ranked matches into clusters and standalones. A match
	// without a cluster value heads a cluster only if something in the
	// whole corpus points at it.
	var order []string
	aggs := make(map[string]*clusterAgg)
	var standalones []Match

	agg := func(key string) *clusterAgg {
		a, ok := aggs[key]
		if !ok {
			a = &clusterAgg{memberHit: make(map[int]bool), memberScores: make(map[int]float64)}
			aggs[key] = a
			order = append(order, key)
		}
		return a
	}

	for _, m := range matches {
		loc := e.c.At(m.Index)
		switch {
		case loc.Cluster != "":
			a := agg(loc.Cluster)
			a.memberHit[m.Index] = true
			a.memberScores[m.Index] = m.Score
		case e.c.HasMembers(loc.ID):
			a := agg(loc.ID)
			if !a.headerHit {
				a.headerMatch = m
				a.headerHit = true
			}
		default:
			standalones = append(standalones, m)
		}
	}

	rows := make([]Row, 0, e.max)
	selectable := 0
	add := func(r Row) bool {
		if selectable >= e.max {
			return false
		}
		rows = append(rows, r)
		selectable++
		return true
	}

	for _, key := range order {
		if selectable >= e.max {
			break
		}
		a := aggs[key]

		headerLoc, resolved := e.c.Resolve(key)
		if !resolved {
			// Header identifier absent from the corpus entirely; use the
			// first member as the representative for display.
			if members := e.c.Members(key); len(members) > 0 {
				headerLoc = members[0]
			}
		}
		headingLabel := headerLoc.Name
		if headingLabel == "" {
			headingLabel = key
		}
		headerNames := e.c.NamesFor(key)

		rows = append(rows, Row{
			Kind:      RowHeading,
			Location:  headerLoc,
			Label:     headingLabel,
			RankLabel: headerLoc.RankLabel(),
		})

		// The header's own row renders first: the matched record when
		// the header matched the query directly, otherwise a synthetic
		// row resolved from the full corpus.
		if a.headerHit {
			hl := e.c.At(a.headerMatch.Index)
			add(Row{Kind: RowHeader, Location: hl, Label: hl.Name, RankLabel: hl.RankLabel(), Score: a.headerMatch.Score})
		} else if resolved {
			add(Row{Kind: RowHeader, Location: headerLoc, Label: headerLoc.Name, RankLabel: headerLoc.RankLabel(), Synthetic: true, Score: syntheticScore})
		}

		// Members in corpus order, whether or not they matched;
		// non-matching members come along as synthetic rows.
		for _, mi := range e.c.MemberIndexes(key) {
			if selectable >= e.max {
				break
			}
			ml := e.c.At(mi)
			label := ml.Name
			if nameMatchesAny(ml.Name, headerNames) {
				label = ""
			}
			score, hit := a.memberScores[mi], a.memberHit[mi]
			if !hit {
				score = syntheticScore
			}
			add(Row{Kind: RowMember, Location: ml, Label: label, RankLabel: ml.RankLabel(), Synthetic: !hit, Score: score})
		}
	}

	for _, m := range standalones {
		if selectable >= e.max {
			break
		}
		loc := e.c.At(m.Index)
		add(Row{Kind: RowStandalone, Location: loc, Label: loc.Name, RankLabel: loc.RankLabel(), Score: m.Score})
	}

	return rows
}

// nameMatchesAny reports whether name equals any of the given names,
// case-insensitively.
func nameMatchesAny(name string, names []string) bool {
	if name == "" {
		return false
	}
	for _, n := range names {
		if strings.EqualFold(name, n) {
			return true
		}
	}
	return false
}
