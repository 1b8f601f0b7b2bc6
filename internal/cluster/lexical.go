package cluster

import (
	"context"
	"hash/fnv"
	"math/bits"
	"strings"
	"unicode"

	"github.com/ppiankov/curator/internal/model"
)

// LexicalGrouper links articles whose titles are near-duplicates and returns
// the connected components. It never fails and needs no oracle.
type LexicalGrouper struct {
	TitleSimilarity float64 // trigram Jaccard at or above which titles link
	SimhashDistance int     // title simhash Hamming distance at or below which titles link
}

// Group implements Grouper.
func (g LexicalGrouper) Group(ctx context.Context, articles []model.ScoredArticle) ([]Group, error) {
	n := len(articles)
	if n == 0 {
		return nil, nil
	}

	hashes := make([]uint64, n)
	hashed := make([]bool, n)
	trigrams := make([]map[string]struct{}, n)
	for i, a := range articles {
		hashes[i], hashed[i] = simhash64(a.Title)
		trigrams[i] = trigramSet(a.Title)
	}

	uf := newUnionFind(n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < n; j++ {
			if uf.find(i) == uf.find(j) {
				continue
			}
			if g.linked(hashes[i], hashes[j], hashed[i] && hashed[j], trigrams[i], trigrams[j]) {
				uf.union(i, j)
			}
		}
	}

	byRoot := make(map[int]int)
	var groups []Group
	for i := 0; i < n; i++ {
		root := uf.find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(groups)
			byRoot[root] = idx
			groups = append(groups, Group{Label: articles[i].Title, Best: -1})
		}
		groups[idx].Indices = append(groups[idx].Indices, i)
	}
	return groups, nil
}

func (g LexicalGrouper) linked(ha, hb uint64, bothHashed bool, ta, tb map[string]struct{}) bool {
	if bothHashed && bits.OnesCount64(ha^hb) <= g.SimhashDistance {
		return true
	}
	return g.TitleSimilarity > 0 && jaccard(ta, tb) >= g.TitleSimilarity
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	return &unionFind{parent: parent}
}

func (u *unionFind) find(i int) int {
	for u.parent[i] != i {
		u.parent[i] = u.parent[u.parent[i]]
		i = u.parent[i]
	}
	return i
}

// union keeps the smaller index as root so components stay in input order.
func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if rb < ra {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
}

func normalizeText(input string) string {
	trimmed := strings.TrimSpace(strings.ToLower(input))
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed))
	lastSpace := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		if unicode.IsControl(r) {
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}

func tokenize(text string) []string {
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}
	return strings.FieldsFunc(normalized, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

func simhash64(text string) (uint64, bool) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return 0, false
	}

	var bitWeights [64]int
	for _, token := range tokens {
		hasher := fnv.New64a()
		_, _ = hasher.Write([]byte(token))
		h := hasher.Sum64()
		for bit := 0; bit < 64; bit++ {
			if h&(uint64(1)<<bit) != 0 {
				bitWeights[bit]++
			} else {
				bitWeights[bit]--
			}
		}
	}

	var result uint64
	for bit := 0; bit < 64; bit++ {
		if bitWeights[bit] > 0 {
			result |= uint64(1) << bit
		}
	}
	return result, true
}

func trigramSet(text string) map[string]struct{} {
	normalized := normalizeText(text)
	if normalized == "" {
		return nil
	}

	runes := []rune(normalized)
	if len(runes) < 3 {
		return map[string]struct{}{string(runes): {}}
	}

	set := make(map[string]struct{}, len(runes)-2)
	for i := 0; i <= len(runes)-3; i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

func jaccard(left, right map[string]struct{}) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	intersection := 0
	for token := range left {
		if _, ok := right[token]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
