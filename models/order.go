package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

// Order freezes its cost and requirement snapshots at creation/modification
// time. Once fulfillment is confirmed the snapshots are the commitment made
// against stock; they are never re-derived from current prices.
type Order struct {
	ID            int         `gorm:"primary_key" json:"id"`
	BusinessId    string      `gorm:"index;not null" json:"business_id"`
	CurrentStatus OrderStatus `gorm:"type:enum('PENDING','IN_PROGRESS','COMPLETED','CANCELLED');default:PENDING" json:"current_status"`
	OrderDate     time.Time   `gorm:"index;not null" json:"order_date"`
	TotalCost     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_cost"`
	// UsageBatchId links the order to the USAGE ledger batch committed at the
	// PENDING -> IN_PROGRESS transition.
	UsageBatchId *string     `gorm:"size:36;index" json:"usage_batch_id"`
	Notes        string      `gorm:"size:255" json:"notes"`
	Items        []OrderItem `gorm:"foreignKey:OrderId" json:"items"`
	CreatedBy    int         `gorm:"index" json:"created_by"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type OrderItem struct {
	ID       int             `gorm:"primary_key" json:"id"`
	OrderId  int             `gorm:"index;not null" json:"order_id"`
	RecipeId int             `gorm:"index;not null" json:"recipe_id"`
	Qty      decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	// Cost snapshots frozen when the item was estimated.
	UnitCost     decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
	TotalCost    decimal.Decimal        `gorm:"type:decimal(20,4);not null" json:"total_cost"`
	Requirements []OrderItemRequirement `gorm:"foreignKey:OrderItemId" json:"requirements"`
}

// OrderItemRequirement is the scaled per-ingredient need frozen with the item.
type OrderItemRequirement struct {
	ID           int             `gorm:"primary_key" json:"id"`
	OrderItemId  int             `gorm:"index;not null" json:"order_item_id"`
	IngredientId int             `gorm:"index;not null" json:"ingredient_id"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Unit         string          `gorm:"size:20;not null" json:"unit"`
	UnitCost     decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_cost"`
}

type NewOrderItem struct {
	RecipeId int             `json:"recipe_id" validate:"required"`
	Qty      decimal.Decimal `json:"qty"`
}

type NewOrder struct {
	OrderDate time.Time      `json:"order_date"`
	Notes     string         `json:"notes" validate:"omitempty,max=255"`
	Items     []NewOrderItem `json:"items" validate:"required,min=1,dive"`
}

func (input *NewOrder) Validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	return ValidateOrderItems(ctx, businessId, input.Items)
}

func ValidateOrderItems(ctx context.Context, businessId string, items []NewOrderItem) error {
	recipeIds := make([]int, 0, len(items))
	for _, item := range items {
		if !item.Qty.IsPositive() {
			return utils.InvalidQuantityf("order item qty", item.Qty)
		}
		recipeIds = append(recipeIds, item.RecipeId)
	}
	if err := utils.ValidateResourcesId[Recipe](ctx, businessId, recipeIds); err != nil {
		return utils.NotFoundf("recipe", recipeIds)
	}
	return nil
}

func GetOrder(ctx context.Context, id int) (*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	order, err := utils.FetchModel[Order](ctx, businessId, id, "Items", "Items.Requirements")
	if err != nil {
		return nil, utils.NotFoundf("order", id)
	}
	return order, nil
}

func GetOrders(ctx context.Context, statuses ...OrderStatus) ([]*Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	db := config.GetDB()
	q := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Preload("Items").
		Preload("Items.Requirements")
	if len(statuses) > 0 {
		q = q.Where("current_status IN ?", statuses)
	}

	var orders []*Order
	if err := q.Order("order_date DESC").Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
