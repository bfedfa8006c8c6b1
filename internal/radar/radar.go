// Package radar detects catalog products that probably describe the same item.
package radar

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/catalog"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/metrics"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/scoring"
)

// DefaultThreshold is the minimum product-to-product name score for a fuzzy collision.
const DefaultThreshold = 90.0

// GroupReason explains why products were grouped.
type GroupReason string

const (
	ReasonSharedIdentifier   GroupReason = "shared_identifier"
	ReasonFuzzyNameCollision GroupReason = "fuzzy_name_collision"
)

// Group is a set of products suspected to be duplicates.
type Group struct {
	Reason   GroupReason      `json:"reason"`
	Score    float64          `json:"score"`
	Products []models.Product `json:"products"`
}

// Radar scans the candidate index for duplicates.
type Radar struct {
	index     *catalog.Index
	threshold float64
}

// New returns a Radar over ix. A non-positive threshold selects DefaultThreshold.
func New(ix *catalog.Index, threshold float64) *Radar {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Radar{index: ix, threshold: threshold}
}

// FindDuplicateGroups returns products sharing an identifier, then products
// within one sub-category whose names collide. Output is ordered by reason
// and lowest product id.
func (r *Radar) FindDuplicateGroups(ctx context.Context) ([]Group, error) {
	entries := r.index.Entries()

	byCode := newUnionFind(len(entries))
	firstWithCode := make(map[string]int)
	for i, e := range entries {
		for _, c := range e.Codes {
			if j, ok := firstWithCode[c]; ok {
				byCode.union(i, j)
			} else {
				firstWithCode[c] = i
			}
		}
	}
	groups := collect(entries, byCode, ReasonSharedIdentifier, func([]int) float64 { return scoring.ExactScore })

	buckets := make(map[string][]int)
	for i, e := range entries {
		key := strings.ToLower(strings.TrimSpace(e.Product.SubCategory))
		buckets[key] = append(buckets[key], i)
	}
	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	byName := newUnionFind(len(entries))
	pairScore := make(map[int]float64)
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		members := buckets[k]
		for a := 0; a < len(members); a++ {
			for b := a + 1; b < len(members); b++ {
				i, j := members[a], members[b]
				if byCode.find(i) == byCode.find(j) {
					continue
				}
				res := scoring.Score(entries[i].Subject(), entries[j].Subject())
				if res.Reason == scoring.ReasonExactEAN || res.Score < r.threshold {
					continue
				}
				byName.union(i, j)
				for _, x := range []int{i, j} {
					if res.Score > pairScore[x] {
						pairScore[x] = res.Score
					}
				}
			}
		}
	}
	groups = append(groups, collect(entries, byName, ReasonFuzzyNameCollision, func(members []int) float64 {
		best := 0.0
		for _, m := range members {
			if pairScore[m] > best {
				best = pairScore[m]
			}
		}
		return best
	})...)

	metrics.SetDuplicateGroups(len(groups))
	logrus.WithFields(logrus.Fields{
		"products": len(entries),
		"groups":   len(groups),
	}).Info("Duplicate scan finished")
	return groups, nil
}

func collect(entries []catalog.Entry, uf *unionFind, reason GroupReason, score func([]int) float64) []Group {
	members := make(map[int][]int)
	for i := range entries {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var out []Group
	for _, idx := range members {
		if len(idx) < 2 {
			continue
		}
		sort.Ints(idx)
		g := Group{Reason: reason, Score: score(idx)}
		for _, i := range idx {
			g.Products = append(g.Products, entries[i].Product)
		}
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Products[0].ID < out[j].Products[0].ID })
	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (u *unionFind) find(x int) int {
	for u.parent[x] != x {
		u.parent[x] = u.parent[u.parent[x]]
		x = u.parent[x]
	}
	return x
}

func (u *unionFind) union(a, b int) {
	ra, rb := u.find(a), u.find(b)
	if ra == rb {
		return
	}
	if ra < rb {
		u.parent[rb] = ra
	} else {
		u.parent[ra] = rb
	}
}
