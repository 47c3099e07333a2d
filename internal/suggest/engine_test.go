package suggest

import (
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/bosth/ottoman-routing/internal/corpus"
)

// substringMatcher scores a match by the position of the query inside
// the name. Deterministic and easy to reason about in tests.
type substringMatcher struct{}

func (substringMatcher) Match(query string, c *corpus.Corpus) []Match {
	var out []Match
	q := strings.ToLower(query)
	for i := 0; i < c.Len(); i++ {
		name := strings.ToLower(c.At(i).Name)
		if pos := strings.Index(name, q); pos >= 0 {
			out = append(out, Match{Index: i, Score: float64(pos)})
		}
	}
	return out
}

func testCorpus() *corpus.Corpus {
	return corpus.New([]corpus.Location{
		{ID: "A1", Name: "Haydarpasa", Rank: 1, Geometry: orb.Point{29.019, 40.996}},
		{ID: "A2", Name: "Haidar Pacha", Rank: 2, Cluster: "A1"},
		{ID: "A3", Name: "Haydarpasa", Rank: 3, Cluster: "A1"},
		{ID: "B1", Name: "Sirkeci", Rank: 1, Geometry: orb.Point{28.977, 41.013}},
		{ID: "C1", Name: "Kadikoy Dock", Rank: 4, Geometry: orb.Point{29.025, 40.993}},
	})
}

func TestSearchEmptyQuery(t *testing.T) {
	e := NewEngine(testCorpus(), substringMatcher{}, 0)

	if rows := e.Search(""); rows != nil {
		t.Errorf("empty query should return nil, got %d rows", len(rows))
	}
	if rows := e.Search("   \t"); rows != nil {
		t.Errorf("whitespace query should return nil, got %d rows", len(rows))
	}
}

func TestSearchOrderingScoreThenRank(t *testing.T) {
	c := corpus.New([]corpus.Location{
		{ID: "1", Name: "Pera", Rank: 5},
		{ID: "2", Name: "Pera", Rank: 1},
		{ID: "3", Name: "Galata Pera", Rank: 1},
	})
	e := NewEngine(c, substringMatcher{}, 0)

	rows := e.Search("pera")

	var last float64 = -1
	var lastRank int
	for _, r := range rows {
		if !r.Selectable() {
			continue
		}
		if r.Score < last {
			t.Fatalf("rows out of score order: %v after %v", r.Score, last)
		}
		if r.Score == last && r.Location.Rank < lastRank {
			t.Fatalf("equal scores out of rank order")
		}
		last, lastRank = r.Score, r.Location.Rank
	}

	// Exact-position ties between the two "Pera" records resolve by rank.
	if rows[0].Location.ID != "2" {
		t.Errorf("first row = %q, want the lower-rank Pera (id 2)", rows[0].Location.ID)
	}
}

func TestSearchClusterGrouping(t *testing.T) {
	e := NewEngine(testCorpus(), substringMatcher{}, 0)

	// "haidar" matches only the A2 member; the A1 header is pulled in
	// from the full corpus as a synthetic row.
	rows := e.Search("haidar")

	if len(rows) < 3 {
		t.Fatalf("expected heading + header + members, got %d rows", len(rows))
	}
	if rows[0].Kind != RowHeading {
		t.Fatalf("first row should be the cluster heading, got kind %d", rows[0].Kind)
	}
	if rows[0].Selectable() {
		t.Error("heading must not be selectable")
	}
	if rows[1].Kind != RowHeader || rows[1].Location.ID != "A1" {
		t.Fatalf("header row should follow the heading, got %+v", rows[1])
	}
	if !rows[1].Synthetic {
		t.Error("unmatched header pulled from the corpus must be synthetic")
	}

	var memberIDs []string
	for _, r := range rows[2:] {
		if r.Kind == RowMember {
			memberIDs = append(memberIDs, r.Location.ID)
		}
	}
	if len(memberIDs) != 2 || memberIDs[0] != "A2" || memberIDs[1] != "A3" {
		t.Errorf("members = %v, want [A2 A3] in corpus order", memberIDs)
	}
}

func TestSearchHeaderMatchedDirectly(t *testing.T) {
	e := NewEngine(testCorpus(), substringMatcher{}, 0)

	// "haydarpasa" matches the A1 header itself and the A3 member.
	rows := e.Search("haydarpasa")

	if rows[0].Kind != RowHeading {
		t.Fatalf("first row should be a heading")
	}
	if rows[1].Kind != RowHeader || rows[1].Location.ID != "A1" {
		t.Fatalf("header's own row should render first in its cluster, got %+v", rows[1])
	}
	if rows[1].Synthetic {
		t.Error("directly matched header must not be synthetic")
	}
}

func TestSearchRedundantMemberNameShowsRankOnly(t *testing.T) {
	e := NewEngine(testCorpus(), substringMatcher{}, 0)

	rows := e.Search("haydarpasa")

	for _, r := range rows {
		if r.Kind == RowMember && r.Location.ID == "A3" {
			// A3's name duplicates the header's name, so only the rank
			// label renders.
			if r.Label != "" {
				t.Errorf("duplicate-name member label = %q, want empty", r.Label)
			}
			if r.RankLabel != "halt" {
				t.Errorf("rank label = %q, want halt", r.RankLabel)
			}
			return
		}
	}
	t.Fatal("member A3 not found in rows")
}

func TestSearchStandaloneAfterClusters(t *testing.T) {
	c := corpus.New([]corpus.Location{
		{ID: "S1", Name: "Pera Palace", Rank: 2},
		{ID: "H1", Name: "Pera Terminus", Rank: 1},
		{ID: "M1", Name: "Pera (old)", Rank: 3, Cluster: "H1"},
	})
	e := NewEngine(c, substringMatcher{}, 0)

	rows := e.Search("pera")

	sawStandalone := false
	for _, r := range rows {
		switch r.Kind {
		case RowStandalone:
			sawStandalone = true
		case RowHeading, RowHeader, RowMember:
			if sawStandalone {
				t.Fatal("cluster rows must precede standalone rows")
			}
		}
	}
	if !sawStandalone {
		t.Fatal("expected a standalone row for Pera Palace")
	}
}

func TestSearchCapCountsSelectableRowsOnly(t *testing.T) {
	locs := []corpus.Location{
		{ID: "H1", Name: "Stamboul", Rank: 1},
	}
	for i := 0; i < 10; i++ {
		locs = append(locs, corpus.Location{
			ID:      "M" + string(rune('0'+i)),
			Name:    "Stamboul Gate " + string(rune('0'+i)),
			Rank:    2,
			Cluster: "H1",
		})
	}
	e := NewEngine(corpus.New(locs), substringMatcher{}, 4)

	rows := e.Search("stamboul")

	selectable := 0
	headings := 0
	for _, r := range rows {
		if r.Selectable() {
			selectable++
		} else {
			headings++
		}
	}
	if selectable != 4 {
		t.Errorf("selectable rows = %d, want cap of 4", selectable)
	}
	if headings == 0 {
		t.Error("heading should still render and not count against the cap")
	}
}

func TestCursorWrapAndConfirm(t *testing.T) {
	rows := []Row{
		{Kind: RowHeading},
		{Kind: RowHeader, Location: corpus.Location{ID: "a"}},
		{Kind: RowMember, Location: corpus.Location{ID: "b"}},
		{Kind: RowStandalone, Location: corpus.Location{ID: "c"}},
	}
	cur := NewCursor(rows)

	if cur.Len() != 3 {
		t.Fatalf("selectable count = %d, want 3", cur.Len())
	}

	// Confirm with no explicit position selects the first selectable row.
	r, _, ok := cur.Confirm()
	if !ok || r.Location.ID != "a" {
		t.Errorf("default confirm = %+v, want row a", r)
	}

	cur.Down()
	cur.Down()
	cur.Down()
	cur.Down() // wraps past the end back to the first selectable row
	r, _, _ = cur.Current()
	if r.Location.ID != "a" {
		t.Errorf("after four Downs cursor = %q, want a", r.Location.ID)
	}

	cur2 := NewCursor(rows)
	cur2.Up() // from no position, Up lands on the last selectable row
	r, _, _ = cur2.Current()
	if r.Location.ID != "c" {
		t.Errorf("Up from rest = %q, want c", r.Location.ID)
	}
}

func TestCursorEmptyList(t *testing.T) {
	cur := NewCursor(nil)
	cur.Down()
	cur.Up()
	if _, _, ok := cur.Confirm(); ok {
		t.Error("confirm on an empty list must not select anything")
	}
}

func TestLevenshteinMatcherBasics(t *testing.T) {
	c := corpus.New([]corpus.Location{
		{ID: "1", Name: "Sirkeci"},
		{ID: "2", Name: "Kadikoy"},
		{ID: "only-id"},
	})
	m := LevenshteinMatcher{}

	matches := m.Match("sirkeci", c)
	found := false
	for _, mt := range matches {
		if c.At(mt.Index).Name == "Sirkeci" {
			found = true
		}
	}
	if !found {
		t.Error("exact name should match case-insensitively")
	}

	matches = m.Match("only-id", c)
	found = false
	for _, mt := range matches {
		if c.At(mt.Index).ID == "only-id" {
			found = true
		}
	}
	if !found {
		t.Error("records without a name should match on their identifier")
	}
}
