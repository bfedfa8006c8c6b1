// Package catalog keeps an in-memory candidate index over the product catalog.
package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/normalize"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/scoring"
)

// DefaultLimit bounds the candidates returned by FindCandidates.
const DefaultLimit = 20

// Entry is an indexed product with its precomputed comparison data.
type Entry struct {
	Product    models.Product
	Tokens     []string
	LineTokens []string
	Codes      []string
	Figure     int64
	HasFigure  bool
}

// NewEntry normalizes p for indexing.
func NewEntry(p models.Product) Entry {
	_, tokens := normalize.Tokenize(p.Name)
	_, line := normalize.Tokenize(p.SubCategory)

	e := Entry{Product: p, Tokens: tokens, LineTokens: line}
	for _, code := range []*string{p.EAN, p.UPC, p.ASIN} {
		if code == nil {
			continue
		}
		if c := identifier(*code); c != "" {
			e.Codes = append(e.Codes, c)
		}
	}
	if p.FigureID != nil {
		if nums := normalize.Numbers(*p.FigureID); len(nums) > 0 {
			if n, err := strconv.ParseInt(nums[len(nums)-1], 10, 64); err == nil {
				e.Figure, e.HasFigure = n, true
			}
		}
	}
	return e
}

// Subject is the scoring view of the entry.
func (e Entry) Subject() scoring.Subject {
	var categories []string
	for _, c := range []string{e.Product.Category, e.Product.SubCategory} {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			categories = append(categories, c)
		}
	}
	return scoring.Subject{
		ID:         e.Product.ID,
		Tokens:     e.Tokens,
		Codes:      e.Codes,
		Categories: categories,
		LineTokens: e.LineTokens,
	}
}

// identifier normalizes EAN/UPC digits; ASINs are alphanumeric and kept upper-cased.
func identifier(raw string) string {
	if c := normalize.CleanCode(raw); c != "" {
		return c
	}
	raw = strings.ToUpper(strings.TrimSpace(raw))
	if len(raw) == 10 && !strings.ContainsAny(raw, " -") {
		return raw
	}
	return ""
}

// Candidate is a product surfaced for an offer.
type Candidate struct {
	Entry
	Shared    int
	ExactCode bool
}

// Lister loads the full catalog.
type Lister interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
}

// Index supports identifier lookup and token-overlap search. It is safe for
// concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries map[uint]Entry
	byCode  map[string]map[uint]struct{}
	byToken map[string]map[uint]struct{}

	// loads counts Refresh calls reading the catalog; writes made meanwhile
	// are kept in changed (nil marks a removal) and replayed over the result.
	loads   int
	changed map[uint]*models.Product
}

// New returns an empty index.
func New() *Index {
	return &Index{
		entries: make(map[uint]Entry),
		byCode:  make(map[string]map[uint]struct{}),
		byToken: make(map[string]map[uint]struct{}),
	}
}

// Refresh replaces the index contents with the catalog read from l. Upserts
// and removals made while the catalog is read are kept.
func (ix *Index) Refresh(ctx context.Context, l Lister) error {
	ix.mu.Lock()
	ix.loads++
	ix.mu.Unlock()
	defer func() {
		ix.mu.Lock()
		if ix.loads--; ix.loads == 0 {
			ix.changed = nil
		}
		ix.mu.Unlock()
	}()

	products, err := l.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	ix.Rebuild(products)
	logrus.WithField("products", len(products)).Info("Candidate index rebuilt")
	return nil
}

// Rebuild replaces the index contents with products.
func (ix *Index) Rebuild(products []models.Product) {
	entries := make(map[uint]Entry, len(products))
	byCode := make(map[string]map[uint]struct{})
	byToken := make(map[string]map[uint]struct{})
	for _, p := range products {
		e := NewEntry(p)
		entries[p.ID] = e
		addPostings(byCode, byToken, e)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.entries, ix.byCode, ix.byToken = entries, byCode, byToken
	for id, p := range ix.changed {
		ix.removeLocked(id)
		if p != nil {
			ix.putLocked(NewEntry(*p))
		}
	}
}

// Upsert indexes p, replacing any previous version.
func (ix *Index) Upsert(p models.Product) {
	e := NewEntry(p)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.track(p.ID, &p)
	ix.removeLocked(p.ID)
	ix.putLocked(e)
}

// Remove drops a product from the index.
func (ix *Index) Remove(id uint) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.track(id, nil)
	ix.removeLocked(id)
}

// Get returns the indexed entry for id.
func (ix *Index) Get(id uint) (Entry, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	e, ok := ix.entries[id]
	return e, ok
}

// Len reports the number of indexed products.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Entries returns every indexed product ordered by id.
func (ix *Index) Entries() []Entry {
	ix.mu.RLock()
	out := make([]Entry, 0, len(ix.entries))
	for _, e := range ix.entries {
		out = append(out, e)
	}
	ix.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
	return out
}

// FindCandidates returns products plausibly matching o. An identifier hit
// short-circuits to the products carrying that code. Otherwise products are
// ranked by shared tokens, then by figure-number proximity, then by id.
// No overlap yields an empty result.
func (ix *Index) FindCandidates(o normalize.Offer, limit int) []Candidate {
	if limit <= 0 {
		limit = DefaultLimit
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if code := identifier(o.Code); code != "" {
		if ids, ok := ix.byCode[code]; ok && len(ids) > 0 {
			out := make([]Candidate, 0, len(ids))
			for id := range ids {
				out = append(out, Candidate{Entry: ix.entries[id], ExactCode: true})
			}
			sort.Slice(out, func(i, j int) bool { return out[i].Product.ID < out[j].Product.ID })
			if len(out) > limit {
				out = out[:limit]
			}
			return out
		}
	}

	shared := make(map[uint]int)
	for _, tok := range o.Tokens {
		for id := range ix.byToken[tok] {
			shared[id]++
		}
	}
	if len(shared) == 0 {
		return []Candidate{}
	}

	numbers := offerNumbers(o.Numbers)
	out := make([]Candidate, 0, len(shared))
	for id, n := range shared {
		out = append(out, Candidate{Entry: ix.entries[id], Shared: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Shared != out[j].Shared {
			return out[i].Shared > out[j].Shared
		}
		di, dj := figureDistance(out[i].Entry, numbers), figureDistance(out[j].Entry, numbers)
		if di != dj {
			return di < dj
		}
		return out[i].Product.ID < out[j].Product.ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (ix *Index) track(id uint, p *models.Product) {
	if ix.loads == 0 {
		return
	}
	if ix.changed == nil {
		ix.changed = make(map[uint]*models.Product)
	}
	ix.changed[id] = p
}

func (ix *Index) putLocked(e Entry) {
	ix.entries[e.Product.ID] = e
	addPostings(ix.byCode, ix.byToken, e)
}

func (ix *Index) removeLocked(id uint) {
	old, ok := ix.entries[id]
	if !ok {
		return
	}
	delete(ix.entries, id)
	for _, c := range old.Codes {
		dropPosting(ix.byCode, c, id)
	}
	for _, t := range indexTokens(old) {
		dropPosting(ix.byToken, t, id)
	}
}

func addPostings(byCode, byToken map[string]map[uint]struct{}, e Entry) {
	for _, c := range e.Codes {
		addPosting(byCode, c, e.Product.ID)
	}
	for _, t := range indexTokens(e) {
		addPosting(byToken, t, e.Product.ID)
	}
}

// indexTokens are the searchable tokens: name plus product line.
func indexTokens(e Entry) []string {
	return append(append([]string(nil), e.Tokens...), e.LineTokens...)
}

func addPosting(m map[string]map[uint]struct{}, key string, id uint) {
	set, ok := m[key]
	if !ok {
		set = make(map[uint]struct{})
		m[key] = set
	}
	set[id] = struct{}{}
}

func dropPosting(m map[string]map[uint]struct{}, key string, id uint) {
	set, ok := m[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(m, key)
	}
}

func offerNumbers(raw []string) []int64 {
	out := make([]int64, 0, len(raw))
	for _, r := range raw {
		if n, err := strconv.ParseInt(r, 10, 64); err == nil {
			out = append(out, n)
		}
	}
	return out
}

func figureDistance(e Entry, numbers []int64) int64 {
	if !e.HasFigure || len(numbers) == 0 {
		return math.MaxInt64
	}
	best := int64(math.MaxInt64)
	for _, n := range numbers {
		d := n - e.Figure
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
		}
	}
	return best
}
