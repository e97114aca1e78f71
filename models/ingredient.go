package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Ingredient holds the materialized stock snapshot for one ingredient.
//
// CurrentQty is a view over the stock_movements ledger: only the ledger commit
// path writes it. Administrative updates may touch name/unit/cost/supplier and
// the reorder threshold, never the quantity.
type Ingredient struct {
	ID               int             `gorm:"primary_key" json:"id"`
	BusinessId       string          `gorm:"index;not null" json:"business_id"`
	Name             string          `gorm:"size:100;not null" json:"name"`
	Unit             string          `gorm:"size:20;not null" json:"unit"`
	UnitCost         decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"unit_cost"`
	CurrentQty       decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"current_qty"`
	ReorderThreshold decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"reorder_threshold"`
	SupplierId       int             `gorm:"index" json:"supplier_id"`
	IsActive         *bool           `gorm:"not null;default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewIngredient struct {
	Name             string          `json:"name" validate:"required,max=100"`
	Unit             string          `json:"unit" validate:"required,max=20"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	SupplierId       int             `json:"supplier_id"`
}

// validate input for both create & update. (id = 0 for create)
func (input *NewIngredient) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.UnitCost.IsNegative() {
		return utils.InvalidQuantityf("unit_cost", input.UnitCost)
	}
	if input.ReorderThreshold.IsNegative() {
		return utils.InvalidQuantityf("reorder_threshold", input.ReorderThreshold)
	}
	if input.SupplierId != 0 {
		if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
			return utils.NotFoundf("supplier", input.SupplierId)
		}
	}
	return utils.ValidateUnique[Ingredient](ctx, businessId, "name", input.Name, id)
}

func CreateIngredient(ctx context.Context, input *NewIngredient) (*Ingredient, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	ingredient := Ingredient{
		BusinessId:       businessId,
		Name:             input.Name,
		Unit:             input.Unit,
		UnitCost:         input.UnitCost,
		CurrentQty:       decimal.Zero,
		ReorderThreshold: input.ReorderThreshold,
		SupplierId:       input.SupplierId,
		IsActive:         utils.NewTrue(),
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&ingredient).Error; err != nil {
		return nil, err
	}
	utils.ClearRedisCache[Ingredient](businessId, ingredient.ID)

	return &ingredient, nil
}

func GetIngredient(ctx context.Context, id int) (*Ingredient, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	ingredient, err := utils.FetchModel[Ingredient](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("ingredient", id)
	}
	return ingredient, nil
}

func GetIngredients(ctx context.Context) ([]*Ingredient, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	cached, err := utils.RetrieveRedisList[Ingredient](businessId)
	if err == nil && cached != nil {
		return cached, nil
	}

	ingredients, err := utils.FetchAllModels[Ingredient](ctx, businessId)
	if err != nil {
		return nil, err
	}
	utils.StoreRedisList[Ingredient](ingredients, businessId)
	return ingredients, nil
}

// GetIngredientsById loads the given ingredients into a map. Missing ids are a
// data-integrity failure for callers resolving recipe references.
func GetIngredientsById(ctx context.Context, ids []int) (map[int]*Ingredient, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	db := config.GetDB()
	var ingredients []*Ingredient
	err := db.WithContext(ctx).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(ids)).
		Find(&ingredients).Error
	if err != nil {
		return nil, err
	}
	byId := make(map[int]*Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byId[ing.ID] = ing
	}
	return byId, nil
}

// GetCurrentQuantity reads the materialized snapshot.
func GetCurrentQuantity(ctx context.Context, id int) (decimal.Decimal, error) {
	ingredient, err := GetIngredient(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return ingredient.CurrentQty, nil
}

// UpdateIngredient edits identity/cost/supplier fields. It deliberately never
// writes current_qty: that column belongs to the ledger. A cost change takes
// effect for future cost computations only; committed order snapshots keep the
// price they froze.
func UpdateIngredient(ctx context.Context, id int, input *NewIngredient) (*Ingredient, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	ingredient, err := utils.FetchModel[Ingredient](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("ingredient", id)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Model(ingredient).Updates(map[string]interface{}{
		"name":              input.Name,
		"unit":              input.Unit,
		"unit_cost":         input.UnitCost,
		"reorder_threshold": input.ReorderThreshold,
		"supplier_id":       input.SupplierId,
	}).Error
	if err != nil {
		return nil, err
	}
	utils.ClearRedisCache[Ingredient](businessId, id)

	return ingredient, nil
}

// DeleteIngredient refuses to remove an ingredient that is still referenced by
// a recipe, a non-terminal order requirement, or any ledger entry.
func DeleteIngredient(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return ErrBusinessIdRequired
	}

	if _, err := utils.FetchModel[Ingredient](ctx, businessId, id); err != nil {
		return utils.NotFoundf("ingredient", id)
	}

	db := config.GetDB()

	var recipeRefs int64
	if err := db.WithContext(ctx).Model(&RecipeIngredient{}).
		Where("ingredient_id = ?", id).Count(&recipeRefs).Error; err != nil {
		return err
	}
	if recipeRefs > 0 {
		return utils.DataIntegrityf("ingredient %d is referenced by %d recipe(s)", id, recipeRefs)
	}

	var openOrderRefs int64
	err := db.WithContext(ctx).Model(&OrderItemRequirement{}).
		Joins("JOIN order_items ON order_items.id = order_item_requirements.order_item_id").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_item_requirements.ingredient_id = ? AND orders.current_status IN ?",
			id, []OrderStatus{OrderStatusPending, OrderStatusInProgress}).
		Count(&openOrderRefs).Error
	if err != nil {
		return err
	}
	if openOrderRefs > 0 {
		return utils.DataIntegrityf("ingredient %d is required by %d open order item(s)", id, openOrderRefs)
	}

	var ledgerRefs int64
	if err := db.WithContext(ctx).Model(&StockMovement{}).
		Where("business_id = ? AND ingredient_id = ?", businessId, id).
		Count(&ledgerRefs).Error; err != nil {
		return err
	}
	if ledgerRefs > 0 {
		return utils.DataIntegrityf("ingredient %d has %d ledger entries", id, ledgerRefs)
	}

	if err := db.WithContext(ctx).Delete(&Ingredient{}, id).Error; err != nil {
		return err
	}
	utils.ClearRedisCache[Ingredient](businessId, id)
	return nil
}

// LockIngredientsForUpdate loads the given ingredients under FOR UPDATE row
// locks, in ascending id order so concurrent batches acquire locks in the same
// sequence. Every ledger commit goes through this before checking quantities.
func LockIngredientsForUpdate(tx *gorm.DB, businessId string, ids []int) (map[int]*Ingredient, error) {
	var ingredients []*Ingredient
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id IN ?", businessId, utils.UniqueSlice(ids)).
		Order("id ASC").
		Find(&ingredients).Error
	if err != nil {
		return nil, err
	}
	byId := make(map[int]*Ingredient, len(ingredients))
	for _, ing := range ingredients {
		byId[ing.ID] = ing
	}
	return byId, nil
}

// ApplySnapshotDelta moves the materialized quantity. Caller must hold the row
// lock from LockIngredientsForUpdate and have verified the projected quantity.
func ApplySnapshotDelta(tx *gorm.DB, businessId string, ingredientId int, delta decimal.Decimal) error {
	return tx.Model(&Ingredient{}).
		Where("business_id = ? AND id = ?", businessId, ingredientId).
		Update("current_qty", gorm.Expr("current_qty + ?", delta)).Error
}
