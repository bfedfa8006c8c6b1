// Package matcher reconciles queued listings with catalog products: it ranks
// suggestions, applies human and automatic decisions, and keeps the
// append-only match history.
package matcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/catalog"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/lockset"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/metrics"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// Config tunes matching decisions and batch pacing.
type Config struct {
	// AutoLinkThreshold is the minimum top score for an automatic link.
	AutoLinkThreshold float64
	// AutoLinkMargin is how far the runner-up must trail the top score.
	AutoLinkMargin  float64
	SuggestionLimit int
	CandidateLimit  int
	// BatchSize and BatchInterval pace bulk operations.
	BatchSize     int
	BatchInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		AutoLinkThreshold: 95,
		AutoLinkMargin:    5,
		SuggestionLimit:   5,
		CandidateLimit:    catalog.DefaultLimit,
		BatchSize:         100,
		BatchInterval:     50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.AutoLinkThreshold <= 0 {
		c.AutoLinkThreshold = d.AutoLinkThreshold
	}
	if c.AutoLinkMargin < 0 {
		c.AutoLinkMargin = d.AutoLinkMargin
	}
	if c.SuggestionLimit <= 0 {
		c.SuggestionLimit = d.SuggestionLimit
	}
	if c.CandidateLimit <= 0 {
		c.CandidateLimit = d.CandidateLimit
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	return c
}

// Publisher receives history entries after they are committed.
type Publisher interface {
	PublishHistory(ctx context.Context, entries ...models.MatchHistoryEntry) error
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPublisher forwards committed history entries to p.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine applies reconciliation decisions. Mutations of one listing, product
// or offer are serialized through per-entity locks; the database enforces the
// same transitions across processes.
type Engine struct {
	store     *store.Store
	index     *catalog.Index
	locks     *lockset.Set
	cfg       Config
	publisher Publisher
	limiter   *rate.Limiter
	now       func() time.Time
}

// New builds an Engine over st and ix.
func New(st *store.Store, ix *catalog.Index, cfg Config, opts ...Option) *Engine {
	cfg = cfg.withDefaults()
	limit := rate.Inf
	if cfg.BatchInterval > 0 {
		limit = rate.Every(cfg.BatchInterval)
	}
	e := &Engine{
		store:   st,
		index:   ix,
		locks:   lockset.New(),
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Store returns the backing store.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Index returns the candidate index.
func (e *Engine) Index() *catalog.Index {
	return e.index
}

// pace yields between bulk batches.
func (e *Engine) pace(ctx context.Context) error {
	return e.limiter.Wait(ctx)
}

func (e *Engine) newEntry(action models.HistoryAction) models.MatchHistoryEntry {
	return models.MatchHistoryEntry{
		ReceiptID:  uuid.NewString(),
		ActionType: action,
		CreatedAt:  e.now(),
	}
}

// emit reports committed history entries.
func (e *Engine) emit(ctx context.Context, entries ...models.MatchHistoryEntry) {
	for _, en := range entries {
		metrics.RecordDecision(string(en.ActionType))
		logrus.WithFields(logrus.Fields{
			"history_id": en.ID,
			"action":     en.ActionType,
			"pending_id": derefUint(en.PendingOfferID),
			"offer_id":   derefUint(en.OfferID),
			"product_id": derefUint(en.ProductID),
			"receipt_id": en.ReceiptID,
		}).Info("Match history appended")
	}
	if e.publisher == nil || len(entries) == 0 {
		return
	}
	if err := e.publisher.PublishHistory(ctx, entries...); err != nil {
		logrus.WithError(err).WithField("entries", len(entries)).Warn("Failed to publish match history")
	}
}

func pendingKey(id uint) string { return fmt.Sprintf("pending:%d", id) }
func productKey(id uint) string { return fmt.Sprintf("product:%d", id) }
func offerKey(id uint) string   { return fmt.Sprintf("offer:%d", id) }
func historyKey(id uint) string { return fmt.Sprintf("history:%d", id) }

func uintPtr(v uint) *uint { return &v }

func derefUint(p *uint) uint {
	if p == nil {
		return 0
	}
	return *p
}

func saleTypeFor(origin string) string {
	if strings.EqualFold(origin, models.OriginAuction) {
		return models.SaleTypeAuction
	}
	return models.SaleTypeDirect
}
