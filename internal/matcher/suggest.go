package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/metrics"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/normalize"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/scoring"
)

// Suggestion is a ranked catalog product for a queued listing.
type Suggestion struct {
	ProductID   uint           `json:"product_id"`
	Name        string         `json:"name"`
	SubCategory string         `json:"sub_category"`
	FigureID    string         `json:"figure_id,omitempty"`
	ImageURL    string         `json:"image_url,omitempty"`
	MatchScore  float64        `json:"match_score"`
	Reason      scoring.Reason `json:"reason"`
}

// PendingView is a queued listing with its current suggestions.
type PendingView struct {
	models.PendingOffer
	Suggestions []Suggestion `json:"suggestions"`
}

// Suggest ranks the best catalog candidates for a queued listing. It has no
// side effects.
func (e *Engine) Suggest(ctx context.Context, pendingID uint) ([]Suggestion, error) {
	p, err := e.store.GetPending(ctx, pendingID)
	if err != nil {
		return nil, fmt.Errorf("pending offer %d: %w", pendingID, err)
	}
	return e.SuggestFor(p), nil
}

// SuggestFor ranks candidates for an already loaded listing.
func (e *Engine) SuggestFor(p models.PendingOffer) []Suggestion {
	start := time.Now()
	defer func() { metrics.ObserveSuggest(time.Since(start)) }()

	o := NormalizePending(p)
	subject := offerSubject(p, o)

	candidates := e.index.FindCandidates(o, e.cfg.CandidateLimit)
	ranked := make([]scoring.Ranked, 0, len(candidates))
	byID := make(map[uint]models.Product, len(candidates))
	for _, c := range candidates {
		r := scoring.Score(subject, c.Subject())
		if r.Score <= 0 {
			continue
		}
		ranked = append(ranked, scoring.Ranked{ID: c.Product.ID, Result: r})
		byID[c.Product.ID] = c.Product
	}
	scoring.Rank(ranked)
	if len(ranked) > e.cfg.SuggestionLimit {
		ranked = ranked[:e.cfg.SuggestionLimit]
	}

	out := make([]Suggestion, 0, len(ranked))
	for _, r := range ranked {
		prod := byID[r.ID]
		s := Suggestion{
			ProductID:   prod.ID,
			Name:        prod.Name,
			SubCategory: prod.SubCategory,
			ImageURL:    prod.ImageURL,
			MatchScore:  r.Score,
			Reason:      r.Reason,
		}
		if prod.FigureID != nil {
			s.FigureID = *prod.FigureID
		}
		out = append(out, s)
	}
	return out
}

// ListPending returns the newest queued listings with suggestions computed in
// parallel.
func (e *Engine) ListPending(ctx context.Context, limit int) ([]PendingView, error) {
	pending, err := e.store.ListPending(ctx, models.StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}

	views := make([]PendingView, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i := range pending {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			views[i] = PendingView{PendingOffer: pending[i], Suggestions: e.SuggestFor(pending[i])}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// NormalizePending normalizes a stored listing. A stored EAN takes precedence
// over a code found in the title.
func NormalizePending(p models.PendingOffer) normalize.Offer {
	o := normalize.Normalize(p.ScrapedName, "", p.Currency)
	o.Price, o.PriceParseFailed = p.Price, p.PriceParseFailed
	if p.EAN != nil {
		if code := normalize.CleanCode(*p.EAN); code != "" {
			o.Code = code
		}
	}
	return o
}

func offerSubject(p models.PendingOffer, o normalize.Offer) scoring.Subject {
	s := scoring.Subject{ID: p.ID, Tokens: o.Tokens}
	if code := normalize.CleanCode(o.Code); code != "" {
		s.Codes = []string{code}
	}
	if c := strings.ToLower(strings.TrimSpace(p.OriginCategory)); c != "" {
		s.Categories = []string{c}
	}
	return s
}
