package models

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

func TestPurchaseTotalsValid(t *testing.T) {
	input := &NewPurchase{
		SupplierId:  1,
		TotalAmount: decimal.NewFromFloat(15.00),
		Items: []NewPurchaseItem{
			{IngredientId: 1, Qty: decimal.NewFromInt(5), UnitPrice: decimal.NewFromFloat(2.00), LineTotal: decimal.NewFromFloat(10.00)},
			{IngredientId: 2, Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(2.50), LineTotal: decimal.NewFromFloat(5.00)},
		},
	}
	if err := input.validateTotals(); err != nil {
		t.Fatalf("validateTotals: %v", err)
	}
}

func TestPurchaseTotalsMismatchRejected(t *testing.T) {
	// Items sum to 15.00 but the document declares 20.00.
	input := &NewPurchase{
		SupplierId:  1,
		TotalAmount: decimal.NewFromFloat(20.00),
		Items: []NewPurchaseItem{
			{IngredientId: 1, Qty: decimal.NewFromInt(5), UnitPrice: decimal.NewFromFloat(2.00), LineTotal: decimal.NewFromFloat(10.00)},
			{IngredientId: 2, Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromFloat(2.50), LineTotal: decimal.NewFromFloat(5.00)},
		},
	}
	err := input.validateTotals()
	if !errors.Is(err, utils.ErrorDataIntegrity) {
		t.Fatalf("got %v, want ErrorDataIntegrity", err)
	}
}

func TestPurchaseLineTotalMismatchRejected(t *testing.T) {
	input := &NewPurchase{
		SupplierId:  1,
		TotalAmount: decimal.NewFromFloat(12.00),
		Items: []NewPurchaseItem{
			{IngredientId: 1, Qty: decimal.NewFromInt(5), UnitPrice: decimal.NewFromFloat(2.00), LineTotal: decimal.NewFromFloat(12.00)},
		},
	}
	err := input.validateTotals()
	if !errors.Is(err, utils.ErrorDataIntegrity) {
		t.Fatalf("got %v, want ErrorDataIntegrity", err)
	}
}

func TestPurchaseTotalsWithinEpsilonAccepted(t *testing.T) {
	// 3 * 0.333 = 0.999, declared 1.00: inside the 0.01 tolerance.
	input := &NewPurchase{
		SupplierId:  1,
		TotalAmount: decimal.NewFromFloat(1.00),
		Items: []NewPurchaseItem{
			{IngredientId: 1, Qty: decimal.NewFromInt(3), UnitPrice: decimal.NewFromFloat(0.333), LineTotal: decimal.NewFromFloat(0.999)},
		},
	}
	if err := input.validateTotals(); err != nil {
		t.Fatalf("validateTotals: %v", err)
	}
}

func TestPurchaseRejectsNonPositiveQtyAndNegativePrice(t *testing.T) {
	badQty := &NewPurchase{
		TotalAmount: decimal.Zero,
		Items: []NewPurchaseItem{
			{IngredientId: 1, Qty: decimal.Zero, UnitPrice: decimal.NewFromInt(1), LineTotal: decimal.Zero},
		},
	}
	if err := badQty.validateTotals(); !errors.Is(err, utils.ErrorInvalidQuantity) {
		t.Fatalf("zero qty: got %v, want ErrorInvalidQuantity", err)
	}

	badPrice := &NewPurchase{
		TotalAmount: decimal.NewFromInt(-2),
		Items: []NewPurchaseItem{
			{IngredientId: 1, Qty: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(-1), LineTotal: decimal.NewFromInt(-2)},
		},
	}
	if err := badPrice.validateTotals(); !errors.Is(err, utils.ErrorInvalidQuantity) {
		t.Fatalf("negative price: got %v, want ErrorInvalidQuantity", err)
	}
}
