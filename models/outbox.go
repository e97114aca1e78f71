package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AlertOutboxRecord implements a transactional outbox for stock alerts: the
// row is written inside the ledger commit transaction, and published to
// Pub/Sub asynchronously by the dispatcher after commit.
type AlertOutboxRecord struct {
	ID               int                 `gorm:"primary_key" json:"id"`
	BusinessId       string              `gorm:"index;not null" json:"business_id"`
	AlertType        AlertType           `gorm:"type:enum('LOW_STOCK','DATA_INTEGRITY');not null" json:"alert_type"`
	IngredientId     int                 `gorm:"index" json:"ingredient_id"`
	Payload          []byte              `gorm:"type:json" json:"payload"`
	PublishStatus    OutboxPublishStatus `gorm:"size:20;not null;default:PENDING;index" json:"publish_status"`
	PublishAttempts  int                 `gorm:"not null;default:0" json:"publish_attempts"`
	LastPublishError *string             `gorm:"type:text" json:"last_publish_error"`
	NextAttemptAt    *time.Time          `gorm:"index" json:"next_attempt_at"`
	LockedAt         *time.Time          `gorm:"index" json:"locked_at"`
	LockedBy         *string             `gorm:"size:64" json:"locked_by"`
	CorrelationId    string              `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// LowStockAlertPayload is the published body for LOW_STOCK alerts.
type LowStockAlertPayload struct {
	IngredientId     int             `json:"ingredient_id"`
	IngredientName   string          `json:"ingredient_name"`
	CurrentQty       decimal.Decimal `json:"current_qty"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
}

// DataIntegrityAlertPayload is the published body for DATA_INTEGRITY alerts.
type DataIntegrityAlertPayload struct {
	Detail string `json:"detail"`
}

// QueueLowStockAlert writes an outbox row inside the caller's transaction.
// Called by the ledger commit path when a batch drops an ingredient to or
// below its reorder threshold.
func QueueLowStockAlert(ctx context.Context, tx *gorm.DB, businessId string, ingredient *Ingredient, newQty decimal.Decimal) error {
	payload, err := json.Marshal(LowStockAlertPayload{
		IngredientId:     ingredient.ID,
		IngredientName:   ingredient.Name,
		CurrentQty:       newQty,
		ReorderThreshold: ingredient.ReorderThreshold,
	})
	if err != nil {
		return err
	}
	record := AlertOutboxRecord{
		BusinessId:    businessId,
		AlertType:     AlertTypeLowStock,
		IngredientId:  ingredient.ID,
		Payload:       payload,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	return tx.Create(&record).Error
}

// QueueDataIntegrityAlert records corrupted reference data for operator attention.
func QueueDataIntegrityAlert(ctx context.Context, tx *gorm.DB, businessId string, ingredientId int, detail string) error {
	payload, err := json.Marshal(DataIntegrityAlertPayload{Detail: detail})
	if err != nil {
		return err
	}
	record := AlertOutboxRecord{
		BusinessId:    businessId,
		AlertType:     AlertTypeDataIntegrity,
		IngredientId:  ingredientId,
		Payload:       payload,
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
