// Package ingest turns scraped listings into queue entries: it drops repeats
// and blacklisted URLs, refreshes prices of offers that are already linked,
// queues the rest and gives each new listing one auto-match attempt.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/matcher"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/metrics"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/normalize"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/store"
)

// Price is a scraped price that arrives either as a JSON number or as the
// shop's display string.
type Price struct {
	Raw    string
	Number *float64
}

// UnmarshalJSON accepts "12,99 €", 12.99 and null.
func (p *Price) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		p.Raw, p.Number = s, nil
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("price must be a number or string: %w", err)
	}
	v, err := n.Float64()
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	p.Raw, p.Number = n.String(), &v
	return nil
}

// MarshalJSON writes the number when known, the raw string otherwise.
func (p Price) MarshalJSON() ([]byte, error) {
	if p.Number != nil {
		return json.Marshal(*p.Number)
	}
	return json.Marshal(p.Raw)
}

// Listing is one scraped offer as produced by a spider.
type Listing struct {
	ProductName string `json:"product_name" validate:"required"`
	Price       Price  `json:"price"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
	URL         string `json:"url" validate:"required,url"`
	ShopName    string `json:"shop_name" validate:"required"`
	EAN         string `json:"ean"`
	ImageURL    string `json:"image_url"`
	SaleType    string `json:"sale_type" validate:"omitempty,oneof=direct auction"`
	SourceType  string `json:"source_type"`
	ReceiptID   string `json:"receipt_id"`
	IsAvailable *bool  `json:"is_available"`
}

func (l Listing) available() bool {
	return l.IsAvailable == nil || *l.IsAvailable
}

// Result summarizes one ingested batch.
type Result struct {
	Received    int      `json:"received"`
	Invalid     int      `json:"invalid"`
	Duplicates  int      `json:"duplicates"`
	Blacklisted int      `json:"blacklisted"`
	Refreshed   int      `json:"refreshed"`
	Skipped     int      `json:"skipped"`
	Queued      int      `json:"queued"`
	AutoLinked  int      `json:"auto_linked"`
	Errors      []string `json:"errors,omitempty"`
}

// Ingestor feeds scraped listings into the matcher.
type Ingestor struct {
	engine   *matcher.Engine
	store    *store.Store
	validate *validator.Validate
	now      func() time.Time
}

// New returns an Ingestor writing through the engine's store.
func New(engine *matcher.Engine) *Ingestor {
	return &Ingestor{
		engine:   engine,
		store:    engine.Store(),
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Ingest processes one batch. A failure on a single listing is recorded in
// the result and does not stop the batch; only lookups covering the whole
// batch return an error.
func (in *Ingestor) Ingest(ctx context.Context, listings []Listing) (Result, error) {
	res := Result{Received: len(listings)}

	batch := make([]Listing, 0, len(listings))
	seen := make(map[string]struct{}, len(listings))
	for _, l := range listings {
		l.URL = strings.TrimSpace(l.URL)
		if err := in.validate.Struct(&l); err != nil {
			res.Invalid++
			logrus.WithError(err).WithField("url", l.URL).Warn("Rejected invalid listing")
			continue
		}
		if _, dup := seen[l.URL]; dup {
			res.Duplicates++
			continue
		}
		seen[l.URL] = struct{}{}
		batch = append(batch, l)
	}
	defer in.record(&res)

	urls := make([]string, len(batch))
	for i, l := range batch {
		urls[i] = l.URL
	}
	blacklisted, err := in.store.BlacklistedURLs(ctx, urls)
	if err != nil {
		return res, fmt.Errorf("load blacklist: %w", err)
	}
	linked, err := in.store.OffersByURL(ctx, urls)
	if err != nil {
		return res, fmt.Errorf("load offers: %w", err)
	}
	queued, err := in.store.QueuedURLs(ctx, urls)
	if err != nil {
		return res, fmt.Errorf("load queue: %w", err)
	}

	touched := make(map[uint]struct{})
	var fresh []uint
	for _, l := range batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if _, ok := blacklisted[l.URL]; ok {
			res.Blacklisted++
			continue
		}

		norm := in.normalize(l)
		if norm.PriceParseFailed {
			logrus.WithFields(logrus.Fields{
				"url":   l.URL,
				"price": l.Price.Raw,
			}).Warn("Could not parse listing price")
		}

		if offer, ok := linked[l.URL]; ok {
			changed, err := in.store.RefreshOfferPrice(ctx, offer, norm.Price, l.available(), in.now())
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", l.URL, err))
				continue
			}
			if changed {
				touched[offer.ProductID] = struct{}{}
			}
			res.Refreshed++
			continue
		}

		switch status, ok := queued[l.URL]; {
		case !ok:
			id, err := in.enqueue(ctx, l, norm)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", l.URL, err))
				continue
			}
			if id == 0 {
				res.Skipped++
				continue
			}
			fresh = append(fresh, id)
		case status == models.StatusDiscarded:
			// discarded and no longer blacklisted
			id, err := in.requeue(ctx, l, norm)
			if err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", l.URL, err))
				continue
			}
			fresh = append(fresh, id)
		default:
			res.Skipped++
		}
	}
	res.Queued = len(fresh)

	for productID := range touched {
		if err := in.store.RecomputeBest(ctx, productID); err != nil {
			logrus.WithError(err).WithField("product_id", productID).Error("Failed to recompute best offer")
		}
	}

	for _, id := range fresh {
		decision, err := in.engine.AutoMatch(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("pending_id", id).Error("Auto-match failed")
			continue
		}
		if decision == matcher.AutoLinked {
			res.AutoLinked++
		}
	}

	logrus.WithFields(logrus.Fields{
		"received":    res.Received,
		"queued":      res.Queued,
		"refreshed":   res.Refreshed,
		"auto_linked": res.AutoLinked,
	}).Info("Ingested listing batch")
	return res, nil
}

func (in *Ingestor) record(res *Result) {
	metrics.RecordIngested("invalid", res.Invalid)
	metrics.RecordIngested("duplicate", res.Duplicates)
	metrics.RecordIngested("blacklisted", res.Blacklisted)
	metrics.RecordIngested("refreshed", res.Refreshed)
	metrics.RecordIngested("skipped", res.Skipped)
	metrics.RecordIngested("queued", res.Queued)
	metrics.RecordIngested("failed", len(res.Errors))
}

func (in *Ingestor) normalize(l Listing) normalize.Offer {
	o := normalize.Normalize(l.ProductName, l.Price.Raw, l.Currency)
	if l.Price.Number != nil {
		o.Price = *l.Price.Number
		o.PriceParseFailed = *l.Price.Number < 0
	}
	if code := normalize.CleanCode(l.EAN); code != "" {
		o.Code = code
	}
	return o
}

// enqueue inserts a new pending row. It returns 0 when another writer queued
// the same URL first.
func (in *Ingestor) enqueue(ctx context.Context, l Listing, o normalize.Offer) (uint, error) {
	p := models.PendingOffer{
		ScrapedName:      l.ProductName,
		NormalizedName:   o.Name,
		EAN:              codePtr(o.Code),
		Price:            o.Price,
		PriceParseFailed: o.PriceParseFailed,
		Currency:         o.Currency,
		URL:              l.URL,
		ShopName:         l.ShopName,
		ImageURL:         l.ImageURL,
		OriginCategory:   originFor(l.SaleType),
		SourceType:       sourceFor(l.SourceType),
		ReceiptID:        l.ReceiptID,
		Status:           models.StatusPending,
		FoundAt:          in.now(),
	}
	inserted, err := in.store.CreatePending(ctx, &p)
	if err != nil || !inserted {
		return 0, err
	}
	return p.ID, nil
}

// requeue revives a discarded listing through the engine so the move is
// audited.
func (in *Ingestor) requeue(ctx context.Context, l Listing, o normalize.Offer) (uint, error) {
	ids, err := in.store.PendingIDsByURL(ctx, []string{l.URL})
	if err != nil {
		return 0, err
	}
	id, ok := ids[l.URL]
	if !ok {
		return 0, store.ErrNotFound
	}
	err = in.engine.Requeue(ctx, id, models.PendingOffer{
		ScrapedName:      l.ProductName,
		NormalizedName:   o.Name,
		EAN:              codePtr(o.Code),
		Price:            o.Price,
		PriceParseFailed: o.PriceParseFailed,
		Currency:         o.Currency,
		ShopName:         l.ShopName,
		FoundAt:          in.now(),
	})
	return id, err
}

func codePtr(code string) *string {
	if code == "" {
		return nil
	}
	return &code
}

func originFor(saleType string) string {
	if saleType == models.SaleTypeAuction {
		return models.OriginAuction
	}
	return models.OriginRetail
}

func sourceFor(sourceType string) string {
	if strings.EqualFold(sourceType, models.SourceP2P) {
		return models.SourceP2P
	}
	return models.SourceRetail
}

// Decode parses a listing batch. A bare object is accepted as a batch of one.
func Decode(data []byte) ([]Listing, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var l Listing
		if err := json.Unmarshal(data, &l); err != nil {
			return nil, err
		}
		return []Listing{l}, nil
	}
	var out []Listing
	err := json.Unmarshal(data, &out)
	return out, err
}
