package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	PriceDocumentApplied      = "applied"
	PriceDocumentPendingOrder = "pending_order"
	PriceDocumentDuplicate    = "duplicate"
)

// PriceDocument tracks one ingested price document. ContentHash deduplicates
// re-uploads of the same bytes.
type PriceDocument struct {
	ID          int       `gorm:"primary_key" json:"id"`
	OrderNumber string    `gorm:"index;size:64;not null" json:"order_number"`
	ContentHash string    `gorm:"uniqueIndex;size:64;not null" json:"content_hash"`
	Status      string    `gorm:"size:16;not null" json:"status"`
	EntryCount  int       `json:"entry_count"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Entries []PriceEntry `gorm:"foreignKey:PriceDocumentId" json:"entries"`
}

// PriceEntry is one article price from a price document. Entries of a
// pending_order document are applied once the referenced order arrives.
type PriceEntry struct {
	ID              int             `gorm:"primary_key" json:"id"`
	PriceDocumentId int             `gorm:"index;not null" json:"price_document_id"`
	ArticleCode     string          `gorm:"index;size:64;not null" json:"article_code"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_price"`
}

func GetPriceDocumentByHash(db *gorm.DB, hash string) (*PriceDocument, error) {
	var doc PriceDocument
	err := db.Where("content_hash = ?", hash).Take(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// PendingPriceDocuments returns queued documents waiting for the given order.
func PendingPriceDocuments(db *gorm.DB, orderNumber string) ([]PriceDocument, error) {
	var docs []PriceDocument
	err := db.Preload("Entries").
		Where("order_number = ? AND status = ?", orderNumber, PriceDocumentPendingOrder).
		Find(&docs).Error
	return docs, err
}
