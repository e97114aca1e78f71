package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Recipe struct {
	ID          int                `gorm:"primary_key" json:"id"`
	BusinessId  string             `gorm:"index;not null" json:"business_id"`
	Name        string             `gorm:"size:100;not null" json:"name"`
	Description string             `gorm:"size:255" json:"description"`
	Ingredients []RecipeIngredient `gorm:"foreignKey:RecipeId" json:"ingredients"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

type RecipeIngredient struct {
	ID           int             `gorm:"primary_key" json:"id"`
	RecipeId     int             `gorm:"index;not null" json:"recipe_id"`
	IngredientId int             `gorm:"index;not null" json:"ingredient_id"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	Unit         string          `gorm:"size:20;not null" json:"unit"`
}

// IngredientRequirement is one resolved line of a recipe's ingredient needs,
// priced at the unit cost current at resolution time.
type IngredientRequirement struct {
	IngredientId int             `json:"ingredient_id"`
	Qty          decimal.Decimal `json:"qty"`
	Unit         string          `json:"unit"`
	UnitCost     decimal.Decimal `json:"unit_cost"`
}

// RecipeCost is the derived cost of one batch of a recipe.
type RecipeCost struct {
	RecipeId     int                     `json:"recipe_id"`
	UnitCost     decimal.Decimal         `json:"unit_cost"`
	Requirements []IngredientRequirement `json:"requirements"`
}

type NewRecipe struct {
	Name        string                `json:"name" validate:"required,max=100"`
	Description string                `json:"description" validate:"omitempty,max=255"`
	Ingredients []NewRecipeIngredient `json:"ingredients" validate:"required,min=1,dive"`
}

type NewRecipeIngredient struct {
	IngredientId int             `json:"ingredient_id" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
	Unit         string          `json:"unit" validate:"required,max=20"`
}

func (input *NewRecipe) validate(ctx context.Context, businessId string, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	ingredientIds := make([]int, 0, len(input.Ingredients))
	for _, ri := range input.Ingredients {
		if !ri.Qty.IsPositive() {
			return utils.InvalidQuantityf("ingredient qty", ri.Qty)
		}
		ingredientIds = append(ingredientIds, ri.IngredientId)
	}
	if err := utils.ValidateResourcesId[Ingredient](ctx, businessId, ingredientIds); err != nil {
		return utils.NotFoundf("ingredient", ingredientIds)
	}
	return utils.ValidateUnique[Recipe](ctx, businessId, "name", input.Name, id)
}

// Cost resolves the recipe's per-batch requirement against the supplied
// ingredient map and sums requiredQty * unitCost. A referenced ingredient
// missing from the map means the reference data is corrupted.
func (r *Recipe) Cost(ingredientsById map[int]*Ingredient) (*RecipeCost, error) {
	cost := RecipeCost{
		RecipeId:     r.ID,
		UnitCost:     decimal.Zero,
		Requirements: make([]IngredientRequirement, 0, len(r.Ingredients)),
	}
	for _, ri := range r.Ingredients {
		ingredient, ok := ingredientsById[ri.IngredientId]
		if !ok {
			return nil, utils.DataIntegrityf("recipe %d references missing ingredient %d", r.ID, ri.IngredientId)
		}
		cost.Requirements = append(cost.Requirements, IngredientRequirement{
			IngredientId: ri.IngredientId,
			Qty:          ri.Qty,
			Unit:         ri.Unit,
			UnitCost:     ingredient.UnitCost,
		})
		cost.UnitCost = cost.UnitCost.Add(ri.Qty.Mul(ingredient.UnitCost))
	}
	return &cost, nil
}

// ScaleRequirement multiplies each per-batch quantity by batchQty.
func (r *Recipe) ScaleRequirement(batchQty decimal.Decimal, ingredientsById map[int]*Ingredient) ([]IngredientRequirement, error) {
	if !batchQty.IsPositive() {
		return nil, utils.InvalidQuantityf("batch quantity", batchQty)
	}
	cost, err := r.Cost(ingredientsById)
	if err != nil {
		return nil, err
	}
	scaled := make([]IngredientRequirement, 0, len(cost.Requirements))
	for _, req := range cost.Requirements {
		req.Qty = req.Qty.Mul(batchQty)
		scaled = append(scaled, req)
	}
	return scaled, nil
}

// IngredientIds returns the referenced ingredient ids.
func (r *Recipe) IngredientIds() []int {
	ids := make([]int, 0, len(r.Ingredients))
	for _, ri := range r.Ingredients {
		ids = append(ids, ri.IngredientId)
	}
	return ids
}

func CreateRecipe(ctx context.Context, input *NewRecipe) (*Recipe, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	if err := input.validate(ctx, businessId, 0); err != nil {
		return nil, err
	}

	recipe := Recipe{
		BusinessId:  businessId,
		Name:        input.Name,
		Description: input.Description,
	}
	for _, ri := range input.Ingredients {
		recipe.Ingredients = append(recipe.Ingredients, RecipeIngredient{
			IngredientId: ri.IngredientId,
			Qty:          ri.Qty,
			Unit:         ri.Unit,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&recipe).Error; err != nil {
		return nil, err
	}
	utils.ClearRedisCache[Recipe](businessId, recipe.ID)

	return &recipe, nil
}

func GetRecipe(ctx context.Context, id int) (*Recipe, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	recipe, err := utils.FetchModel[Recipe](ctx, businessId, id, "Ingredients")
	if err != nil {
		return nil, utils.NotFoundf("recipe", id)
	}
	return recipe, nil
}

func GetRecipes(ctx context.Context) ([]*Recipe, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	cached, err := utils.RetrieveRedisList[Recipe](businessId)
	if err == nil && cached != nil {
		return cached, nil
	}

	recipes, err := utils.FetchAllModels[Recipe](ctx, businessId, "Ingredients")
	if err != nil {
		return nil, err
	}
	utils.StoreRedisList[Recipe](recipes, businessId)
	return recipes, nil
}

// ComputeRecipeUnitCost resolves the recipe against current ingredient prices.
// The result is never cached: a price or stock change must be visible on the
// next read.
func ComputeRecipeUnitCost(ctx context.Context, recipeId int) (*RecipeCost, error) {
	recipe, err := GetRecipe(ctx, recipeId)
	if err != nil {
		return nil, err
	}
	ingredientsById, err := GetIngredientsById(ctx, recipe.IngredientIds())
	if err != nil {
		return nil, err
	}
	return recipe.Cost(ingredientsById)
}

// countNonTerminalOrderRefs counts open orders whose items reference the recipe.
func countNonTerminalOrderRefs(tx *gorm.DB, recipeId int) (int64, error) {
	var count int64
	err := tx.Model(&OrderItem{}).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("order_items.recipe_id = ? AND orders.current_status IN ?",
			recipeId, []OrderStatus{OrderStatusPending, OrderStatusInProgress}).
		Count(&count).Error
	return count, err
}

// UpdateRecipe replaces the recipe definition. A recipe referenced by a
// non-terminal order is frozen: its requirement snapshots are a commitment
// against stock and must not drift under the order.
func UpdateRecipe(ctx context.Context, id int, input *NewRecipe) (*Recipe, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	if err := input.validate(ctx, businessId, id); err != nil {
		return nil, err
	}

	recipe, err := utils.FetchModel[Recipe](ctx, businessId, id)
	if err != nil {
		return nil, utils.NotFoundf("recipe", id)
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs, err := countNonTerminalOrderRefs(tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return utils.InvalidTransitionf("recipe", id, "referenced by open orders", "modified")
		}

		if err := tx.Model(recipe).Updates(map[string]interface{}{
			"name":        input.Name,
			"description": input.Description,
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&RecipeIngredient{}).Error; err != nil {
			return err
		}
		for _, ri := range input.Ingredients {
			row := RecipeIngredient{
				RecipeId:     id,
				IngredientId: ri.IngredientId,
				Qty:          ri.Qty,
				Unit:         ri.Unit,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	utils.ClearRedisCache[Recipe](businessId, id)

	return GetRecipe(ctx, id)
}

// DeleteRecipe removes a recipe unless a non-terminal order references it.
func DeleteRecipe(ctx context.Context, id int) error {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return ErrBusinessIdRequired
	}

	if _, err := utils.FetchModel[Recipe](ctx, businessId, id); err != nil {
		return utils.NotFoundf("recipe", id)
	}

	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		refs, err := countNonTerminalOrderRefs(tx, id)
		if err != nil {
			return err
		}
		if refs > 0 {
			return utils.InvalidTransitionf("recipe", id, "referenced by open orders", "deleted")
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&RecipeIngredient{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Recipe{}, id).Error
	})
	if err != nil {
		return err
	}
	utils.ClearRedisCache[Recipe](businessId, id)
	return nil
}
