// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cluster provides the one text similarity function used by gap
// detection, suggestion dedup, and FAQ generation, plus single-linkage
// grouping over it.
//
// Similarity is lexical: text is Unicode-normalized, accent- and
// case-folded, split into words, stripped of stop words, lightly stemmed,
// and compared as token sets with the Jaccard index.
package cluster

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "you": true, "your": true, "it": true, "its": true,
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"which": true, "who": true, "do": true, "does": true, "did": true,
	"can": true, "could": true, "should": true, "would": true, "will": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "am": true,
	"to": true, "of": true, "in": true, "on": true, "for": true, "at": true,
	"by": true, "as": true, "from": true, "with": true, "about": true,
	"and": true, "or": true, "this": true, "that": true, "there": true,
	"please": true, "any": true, "have": true, "has": true, "some": true,
	"im": true, "us": true, "so": true, "if": true, "not": true,
}

// Normalize returns s in compatibility-decomposed form with combining marks
// removed, case-folded, with punctuation replaced by spaces and runs of
// whitespace collapsed. Two titles are "the same" when their normalized
// forms are equal.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = cases.Fold().String(folded)

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if r == '\'' {
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the distinct content words of s in first-seen order.
func Tokens(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range strings.Fields(Normalize(s)) {
		if stopWords[w] {
			continue
		}
		w = stem(w)
		if w == "" || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// stem strips common English inflections so "exports", "exporting" and
// "exported" agree.
func stem(w string) string {
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}

// Similarity scores a and b in [0, 1] as the Jaccard index of their token
// sets. Texts made only of stop words compare equal when their normalized
// forms match.
func Similarity(a, b string) float64 {
	ta, tb := Tokens(a), Tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		if Normalize(a) == Normalize(b) && Normalize(a) != "" {
			return 1
		}
		return 0
	}
	return jaccard(toSet(ta), toSet(tb))
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}

func jaccard(a, b map[string]bool) float64 {
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Group partitions texts into clusters by single linkage: two texts share a
// cluster when a chain of pairs with Similarity >= threshold connects them.
// Clusters are returned as index lists in order of their first member, and
// each list is ascending. The result is deterministic for a given input.
func Group(texts []string, threshold float64) [][]int {
	n := len(texts)
	if n == 0 {
		return nil
	}

	sets := make([]map[string]bool, n)
	norms := make([]string, n)
	for i, t := range texts {
		sets[i] = toSet(Tokens(t))
		norms[i] = Normalize(t)
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			var sim float64
			if len(sets[i]) == 0 || len(sets[j]) == 0 {
				if norms[i] != "" && norms[i] == norms[j] {
					sim = 1
				}
			} else {
				sim = jaccard(sets[i], sets[j])
			}
			if sim >= threshold {
				uf.union(i, j)
			}
		}
	}

	index := make(map[int]int)
	var groups [][]int
	for i := 0; i < n; i++ {
		root := uf.find(i)
		g, ok := index[root]
		if !ok {
			g = len(groups)
			index[root] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], i)
	}
	return groups
}

type unionFind struct {
	parent []int
	rank   []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n), rank: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra == rb {
		return
	}
	switch {
	case uf.rank[ra] < uf.rank[rb]:
		uf.parent[ra] = rb
	case uf.rank[ra] > uf.rank[rb]:
		uf.parent[rb] = ra
	default:
		uf.parent[rb] = ra
		uf.rank[ra]++
	}
}

// Phrasing is one distinct wording inside a cluster.
type Phrasing struct {
	// Text is the first occurrence as written.
	Text  string
	Count int
}

// Phrasings collapses texts whose normalized forms are equal and returns
// the distinct wordings, most frequent first and then in order of first
// appearance. Blank texts are skipped.
func Phrasings(texts []string) []Phrasing {
	index := make(map[string]int)
	var out []Phrasing
	for _, t := range texts {
		norm := Normalize(t)
		if norm == "" {
			continue
		}
		if i, ok := index[norm]; ok {
			out[i].Count++
			continue
		}
		index[norm] = len(out)
		out = append(out, Phrasing{Text: strings.TrimSpace(t), Count: 1})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}
