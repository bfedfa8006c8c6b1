package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// PendingStatus is the lifecycle state of a scraped listing waiting in the queue.
type PendingStatus string

const (
	StatusPending   PendingStatus = "pending"
	StatusMatched   PendingStatus = "matched"
	StatusDiscarded PendingStatus = "discarded"
)

// HistoryAction names a decision recorded in the match history.
type HistoryAction string

const (
	ActionLinkedAuto   HistoryAction = "LINKED_AUTO"
	ActionLinkedManual HistoryAction = "LINKED_MANUAL"
	ActionUnlinked     HistoryAction = "UNLINKED"
	ActionDiscarded    HistoryAction = "DISCARDED"
	ActionRestored     HistoryAction = "RESTORED"
	ActionMerged       HistoryAction = "MERGED"
)

// IsLink reports whether the action created a product link.
func (a HistoryAction) IsLink() bool {
	return a == ActionLinkedAuto || a == ActionLinkedManual
}

const (
	OriginRetail  = "retail"
	OriginAuction = "auction"

	SaleTypeDirect  = "direct"
	SaleTypeAuction = "auction"

	SourceRetail = "Retail"
	SourceP2P    = "Peer-to-Peer"
)

// Product is a canonical catalog item.
type Product struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"not null;index" json:"name"`
	EAN            *string   `gorm:"index" json:"ean,omitempty"`
	UPC            *string   `gorm:"index" json:"upc,omitempty"`
	ASIN           *string   `gorm:"index" json:"asin,omitempty"`
	Category       string    `json:"category"`
	SubCategory    string    `gorm:"index" json:"sub_category"`
	FigureID       *string   `gorm:"uniqueIndex" json:"figure_id,omitempty"`
	VariantName    string    `json:"variant_name,omitempty"`
	ImageURL       string    `json:"image_url,omitempty"`
	RetailPrice    float64   `json:"retail_price"`
	AvgMarketPrice float64   `json:"avg_market_price"`
	P25Price       float64   `json:"p25_price"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PendingOffer is a scraped listing not yet reconciled. Rows are never deleted;
// resolution only changes Status.
type PendingOffer struct {
	ID               uint          `gorm:"primaryKey" json:"id"`
	ScrapedName      string        `gorm:"not null" json:"scraped_name"`
	NormalizedName   string        `json:"normalized_name"`
	EAN              *string       `gorm:"index" json:"ean,omitempty"`
	Price            float64       `json:"price"`
	PriceParseFailed bool          `json:"price_parse_failed"`
	Currency         string        `json:"currency"`
	URL              string        `gorm:"uniqueIndex;not null" json:"url"`
	ShopName         string        `gorm:"index" json:"shop_name"`
	ImageURL         string        `json:"image_url,omitempty"`
	OriginCategory   string        `json:"origin_category"`
	SourceType       string        `json:"source_type"`
	ReceiptID        string        `json:"receipt_id,omitempty"`
	Status           PendingStatus `gorm:"index;not null" json:"status"`
	FoundAt          time.Time     `gorm:"index" json:"found_at"`
	ResolvedAt       *time.Time    `json:"resolved_at,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Offer is a confirmed price point for a product at a shop.
type Offer struct {
	ID             uint          `gorm:"primaryKey" json:"id"`
	ProductID      uint          `gorm:"index;not null" json:"product_id"`
	PendingOfferID *uint         `gorm:"uniqueIndex" json:"pending_offer_id,omitempty"`
	ShopName       string        `json:"shop_name"`
	Price          float64       `json:"price"`
	Currency       string        `json:"currency"`
	URL            string        `gorm:"index" json:"url"`
	SaleType       string        `json:"sale_type"`
	SourceType     string        `json:"source_type"`
	IsBest         bool          `json:"is_best"`
	IsAvailable    bool          `json:"is_available"`
	MinPrice       float64       `json:"min_price"`
	MaxPrice       float64       `json:"max_price"`
	LinkAction     HistoryAction `gorm:"index" json:"link_action"`
	LinkHistoryID  *uint         `json:"link_history_id,omitempty"`
	FirstSeenAt    time.Time     `json:"first_seen_at"`
	LastSeen       time.Time     `json:"last_seen"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// MatchHistoryEntry is an append-only audit record. Reverting an entry appends
// a new entry whose RevertsID points back at it.
type MatchHistoryEntry struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ReceiptID      string         `gorm:"uniqueIndex;not null" json:"receipt_id"`
	ActionType     HistoryAction  `gorm:"index;not null" json:"action_type"`
	PendingOfferID *uint          `gorm:"index" json:"pending_offer_id,omitempty"`
	OfferID        *uint          `gorm:"index" json:"offer_id,omitempty"`
	ProductID      *uint          `gorm:"index" json:"product_id,omitempty"`
	ShopName       string         `json:"shop_name,omitempty"`
	OfferURL       string         `json:"offer_url,omitempty"`
	Price          float64        `json:"price"`
	Score          float64        `json:"score"`
	Reason         string         `json:"reason,omitempty"`
	RevertsID      *uint          `gorm:"uniqueIndex" json:"reverts_id,omitempty"`
	Details        datatypes.JSON `json:"details,omitempty"`
	CreatedAt      time.Time      `gorm:"index" json:"created_at"`
}

// HistoryDetails is the prior-state snapshot stored in MatchHistoryEntry.Details.
type HistoryDetails struct {
	Info           string         `json:"info,omitempty"`
	PriorStatus    PendingStatus  `json:"prior_status,omitempty"`
	PriorProductID *uint          `json:"prior_product_id,omitempty"`
	Offer          *OfferSnapshot `json:"offer,omitempty"`
}

// OfferSnapshot captures enough of an Offer to recreate it.
type OfferSnapshot struct {
	PendingOfferID *uint     `json:"pending_offer_id,omitempty"`
	ShopName       string    `json:"shop_name"`
	Price          float64   `json:"price"`
	Currency       string    `json:"currency"`
	URL            string    `json:"url"`
	SaleType       string    `json:"sale_type"`
	SourceType     string    `json:"source_type"`
	IsAvailable    bool      `json:"is_available"`
	MinPrice       float64   `json:"min_price"`
	MaxPrice       float64   `json:"max_price"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
}

// Snapshot returns the restorable fields of o.
func (o Offer) Snapshot() *OfferSnapshot {
	return &OfferSnapshot{
		PendingOfferID: o.PendingOfferID,
		ShopName:       o.ShopName,
		Price:          o.Price,
		Currency:       o.Currency,
		URL:            o.URL,
		SaleType:       o.SaleType,
		SourceType:     o.SourceType,
		IsAvailable:    o.IsAvailable,
		MinPrice:       o.MinPrice,
		MaxPrice:       o.MaxPrice,
		FirstSeenAt:    o.FirstSeenAt,
	}
}

// EncodeDetails marshals d for storage.
func EncodeDetails(d HistoryDetails) datatypes.JSON {
	raw, err := json.Marshal(d)
	if err != nil {
		return datatypes.JSON("{}")
	}
	return datatypes.JSON(raw)
}

// DecodeDetails reads the snapshot stored on e. Missing details decode to zero.
func (e MatchHistoryEntry) DecodeDetails() (HistoryDetails, error) {
	var d HistoryDetails
	if len(e.Details) == 0 {
		return d, nil
	}
	err := json.Unmarshal(e.Details, &d)
	return d, err
}

// BlacklistedItem is a listing URL a human discarded; ingestion skips it.
type BlacklistedItem struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	URL         string    `gorm:"uniqueIndex;not null" json:"url"`
	ScrapedName string    `json:"scraped_name"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

// PriceHistory records price movements of an offer.
type PriceHistory struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	OfferID    uint      `gorm:"index;not null" json:"offer_id"`
	Price      float64   `json:"price"`
	RecordedAt time.Time `gorm:"index" json:"recorded_at"`
}

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&Product{},
		&PendingOffer{},
		&Offer{},
		&MatchHistoryEntry{},
		&BlacklistedItem{},
		&PriceHistory{},
	}
}
