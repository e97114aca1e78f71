package models

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

func testIngredients() map[int]*Ingredient {
	return map[int]*Ingredient{
		1: {ID: 1, Name: "Flour", Unit: "kg", UnitCost: decimal.NewFromFloat(2.0), CurrentQty: decimal.NewFromInt(10)},
		2: {ID: 2, Name: "Yeast", Unit: "g", UnitCost: decimal.NewFromFloat(0.05), CurrentQty: decimal.NewFromInt(500)},
	}
}

func breadRecipe() *Recipe {
	return &Recipe{
		ID:   7,
		Name: "Bread",
		Ingredients: []RecipeIngredient{
			{RecipeId: 7, IngredientId: 1, Qty: decimal.NewFromInt(2), Unit: "kg"},
		},
	}
}

func TestRecipeCost(t *testing.T) {
	cost, err := breadRecipe().Cost(testIngredients())
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	// 2 kg * 2.0 per kg
	if !cost.UnitCost.Equal(decimal.NewFromFloat(4.0)) {
		t.Fatalf("unit cost: got %s, want 4", cost.UnitCost)
	}
	if len(cost.Requirements) != 1 {
		t.Fatalf("requirements: got %d, want 1", len(cost.Requirements))
	}
	req := cost.Requirements[0]
	if req.IngredientId != 1 || !req.Qty.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("unexpected requirement %+v", req)
	}
	if !req.UnitCost.Equal(decimal.NewFromFloat(2.0)) {
		t.Fatalf("requirement unit cost: got %s, want 2", req.UnitCost)
	}
}

func TestRecipeScaleRequirement(t *testing.T) {
	scaled, err := breadRecipe().ScaleRequirement(decimal.NewFromInt(3), testIngredients())
	if err != nil {
		t.Fatalf("ScaleRequirement: %v", err)
	}
	if len(scaled) != 1 {
		t.Fatalf("got %d requirements", len(scaled))
	}
	if !scaled[0].Qty.Equal(decimal.NewFromInt(6)) {
		t.Fatalf("scaled qty: got %s, want 6", scaled[0].Qty)
	}
}

func TestRecipeScaleRequirementRejectsNonPositiveQty(t *testing.T) {
	for _, qty := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		_, err := breadRecipe().ScaleRequirement(qty, testIngredients())
		if !errors.Is(err, utils.ErrorInvalidQuantity) {
			t.Fatalf("qty %s: got %v, want ErrorInvalidQuantity", qty, err)
		}
	}
}

func TestRecipeCostMissingIngredientIsDataIntegrity(t *testing.T) {
	recipe := breadRecipe()
	recipe.Ingredients = append(recipe.Ingredients, RecipeIngredient{
		RecipeId: 7, IngredientId: 99, Qty: decimal.NewFromInt(1), Unit: "kg",
	})
	_, err := recipe.Cost(testIngredients())
	if !errors.Is(err, utils.ErrorDataIntegrity) {
		t.Fatalf("got %v, want ErrorDataIntegrity", err)
	}
}

func TestRecipeCostSumsMultipleIngredients(t *testing.T) {
	recipe := &Recipe{
		ID: 8,
		Ingredients: []RecipeIngredient{
			{IngredientId: 1, Qty: decimal.NewFromFloat(0.5), Unit: "kg"},
			{IngredientId: 2, Qty: decimal.NewFromInt(20), Unit: "g"},
		},
	}
	cost, err := recipe.Cost(testIngredients())
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	// 0.5*2.0 + 20*0.05 = 2.0
	if !cost.UnitCost.Equal(decimal.NewFromFloat(2.0)) {
		t.Fatalf("unit cost: got %s, want 2", cost.UnitCost)
	}
}
