package workflow

import (
	"errors"
	"testing"

	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

func TestValidateMovementInputSigns(t *testing.T) {
	cases := []struct {
		name  string
		kind  models.MovementKind
		delta decimal.Decimal
		ok    bool
	}{
		{"purchase positive", models.MovementKindPurchase, decimal.NewFromInt(5), true},
		{"purchase negative", models.MovementKindPurchase, decimal.NewFromInt(-5), false},
		{"return negative", models.MovementKindReturn, decimal.NewFromInt(-1), false},
		{"usage negative", models.MovementKindUsage, decimal.NewFromInt(-5), true},
		{"usage positive", models.MovementKindUsage, decimal.NewFromInt(5), false},
		{"waste positive", models.MovementKindWaste, decimal.NewFromInt(2), false},
		{"adjustment positive", models.MovementKindAdjustment, decimal.NewFromInt(3), true},
		{"adjustment negative", models.MovementKindAdjustment, decimal.NewFromInt(-3), true},
		{"transfer negative", models.MovementKindTransfer, decimal.NewFromInt(-3), true},
		{"zero delta", models.MovementKindAdjustment, decimal.Zero, false},
	}
	for _, c := range cases {
		err := validateMovementInput(&MovementInput{
			IngredientId: 1,
			Kind:         c.kind,
			QtyDelta:     c.delta,
		})
		if c.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && !errors.Is(err, utils.ErrorInvalidQuantity) {
			t.Fatalf("%s: got %v, want ErrorInvalidQuantity", c.name, err)
		}
	}
}

func TestUsageInputsFromSnapshots(t *testing.T) {
	order := &models.Order{
		ID: 42,
		Items: []models.OrderItem{
			{
				RecipeId: 7,
				Qty:      decimal.NewFromInt(3),
				Requirements: []models.OrderItemRequirement{
					{IngredientId: 1, Qty: decimal.NewFromInt(6), Unit: "kg", UnitCost: decimal.NewFromFloat(2.0)},
					{IngredientId: 2, Qty: decimal.NewFromInt(60), Unit: "g", UnitCost: decimal.NewFromFloat(0.05)},
				},
			},
		},
	}

	inputs := usageInputsFromSnapshots(order)
	if len(inputs) != 2 {
		t.Fatalf("inputs: got %d, want 2", len(inputs))
	}
	for _, in := range inputs {
		if in.Kind != models.MovementKindUsage {
			t.Fatalf("kind: got %s", in.Kind)
		}
		if !in.QtyDelta.IsNegative() {
			t.Fatalf("usage delta must be negative, got %s", in.QtyDelta)
		}
		if in.OrderId == nil || *in.OrderId != 42 {
			t.Fatalf("order ref missing on %+v", in)
		}
		if err := validateMovementInput(in); err != nil {
			t.Fatalf("derived input invalid: %v", err)
		}
	}
	if !inputs[0].QtyDelta.Equal(decimal.NewFromInt(-6)) {
		t.Fatalf("first delta: got %s, want -6", inputs[0].QtyDelta)
	}
}
