package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockMovement is one immutable row of the append-only inventory ledger.
// Corrections never rewrite history: they append a compensating ADJUSTMENT row
// that points back at the original via ReversesMovementId.
type StockMovement struct {
	ID           string           `gorm:"size:36;primary_key" json:"id"` // uuid
	BusinessId   string           `gorm:"index:idx_stock_move_biz_ing_date,priority:1;not null" json:"business_id"`
	IngredientId int              `gorm:"index:idx_stock_move_biz_ing_date,priority:2;not null" json:"ingredient_id"`
	Kind         MovementKind     `gorm:"type:enum('PURCHASE','USAGE','WASTE','ADJUSTMENT','RETURN','TRANSFER','BATCH_ADJUSTMENT');not null" json:"kind"`
	QtyDelta     decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"qty_delta"`
	UnitPrice    *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unit_price"`
	BatchId      *string          `gorm:"size:36;index" json:"batch_id"`
	OrderId      *int             `gorm:"index" json:"order_id"`
	PurchaseId   *int             `gorm:"index" json:"purchase_id"`
	MovementDate time.Time        `gorm:"index:idx_stock_move_biz_ing_date,priority:3;not null" json:"movement_date"`
	Note         string           `gorm:"size:255" json:"note"`
	CreatedBy    int              `gorm:"index" json:"created_by"`

	// Reversal linkage (append-only ledger, originals stay untouched except
	// for this metadata).
	IsReversal           bool       `gorm:"not null;default:false;index" json:"is_reversal"`
	ReversesMovementId   *string    `gorm:"size:36;index" json:"reverses_movement_id"`
	ReversedByMovementId *string    `gorm:"size:36;index" json:"reversed_by_movement_id"`
	ReversalReason       *string    `gorm:"type:text" json:"reversal_reason"`
	ReversedAt           *time.Time `gorm:"index" json:"reversed_at"`

	CorrelationId string    `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// BeforeCreate assigns the uuid and defaults the movement date.
func (m *StockMovement) BeforeCreate(tx *gorm.DB) error {
	_ = tx
	if m == nil {
		return nil
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.MovementDate.IsZero() {
		m.MovementDate = time.Now().UTC()
	}
	return nil
}

// MovementFilter narrows a history query. Nil fields are ignored; the query is
// stateless and restartable via Offset/Limit.
type MovementFilter struct {
	IngredientId *int
	Kind         *MovementKind
	BatchId      *string
	OrderId      *int
	PurchaseId   *int
	FromDate     *time.Time
	ToDate       *time.Time
	Limit        int
	Offset       int
}

// GetStockMovements reads ledger history, newest first.
func GetStockMovements(ctx context.Context, filter *MovementFilter) ([]*StockMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	db := config.GetDB()
	q := db.WithContext(ctx).Where("business_id = ?", businessId)

	if filter != nil {
		if filter.IngredientId != nil {
			q = q.Where("ingredient_id = ?", *filter.IngredientId)
		}
		if filter.Kind != nil {
			q = q.Where("kind = ?", *filter.Kind)
		}
		if filter.BatchId != nil {
			q = q.Where("batch_id = ?", *filter.BatchId)
		}
		if filter.OrderId != nil {
			q = q.Where("order_id = ?", *filter.OrderId)
		}
		if filter.PurchaseId != nil {
			q = q.Where("purchase_id = ?", *filter.PurchaseId)
		}
		if filter.FromDate != nil {
			q = q.Where("movement_date >= ?", *filter.FromDate)
		}
		if filter.ToDate != nil {
			q = q.Where("movement_date <= ?", *filter.ToDate)
		}
	}

	limit := config.SearchLimit
	offset := 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		offset = filter.Offset
	}

	var movements []*StockMovement
	err := q.Order("movement_date DESC, created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}

// GetStockMovement loads one ledger entry by id.
func GetStockMovement(ctx context.Context, id string) (*StockMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	db := config.GetDB()

	var movement StockMovement
	err := db.WithContext(ctx).
		Where("business_id = ? AND id = ?", businessId, id).
		First(&movement).Error
	if err != nil {
		return nil, utils.NotFoundf("stock movement", id)
	}
	return &movement, nil
}

// GetMovementsByBatch loads every entry of one atomic ledger batch.
func GetMovementsByBatch(tx *gorm.DB, businessId string, batchId string) ([]*StockMovement, error) {
	var movements []*StockMovement
	err := tx.Where("business_id = ? AND batch_id = ?", businessId, batchId).
		Order("created_at ASC").
		Find(&movements).Error
	if err != nil {
		return nil, err
	}
	return movements, nil
}
