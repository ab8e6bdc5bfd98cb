package models

import (
	"context"
	"encoding/json"
	"time"

	"bitbucket.org/mmdatafocus/production_backend/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ImportEventRecord is the transactional outbox row for post-commit events.
// The record is written inside the apply transaction; publishing to Pub/Sub
// happens asynchronously in the outbox dispatcher after commit, so subscribers
// never observe a partially-written order graph.
type ImportEventRecord struct {
	ID            int        `gorm:"primary_key" json:"id"`
	Event         string     `gorm:"size:64;index;not null" json:"event"`
	OrderNumber   string     `gorm:"size:64" json:"order_number"`
	DeliveryId    int        `json:"delivery_id"`
	Payload       []byte     `gorm:"type:json" json:"payload"`
	PublishStatus string     `gorm:"size:16;index;not null" json:"publish_status"`
	Attempts      int        `gorm:"default:0" json:"attempts"`
	NextAttemptAt *time.Time `json:"next_attempt_at"`
	LockedAt      *time.Time `json:"locked_at"`
	LockedBy      string     `gorm:"size:64" json:"locked_by"`
	PublishedAt   *time.Time `json:"published_at"`
	MessageId     string     `gorm:"size:128" json:"message_id"`
	LastError     *string    `gorm:"type:text" json:"last_error"`
	CorrelationId string     `gorm:"size:64" json:"correlation_id"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// EmitImportEvent writes the outbox row inside the caller's transaction but
// does NOT publish.
func EmitImportEvent(ctx context.Context, tx *gorm.DB, event string, orderNumber string, deliveryId int, payload any) error {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	record := ImportEventRecord{
		Event:         event,
		OrderNumber:   orderNumber,
		DeliveryId:    deliveryId,
		Payload:       payloadJSON,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
