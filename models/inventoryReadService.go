package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

// LedgerQuantity is the authoritative signed sum of ledger entries for one
// ingredient. The snapshot column on ingredients is a materialized view of
// this value; the two must agree at all times.
type LedgerQuantity struct {
	IngredientId int             `json:"ingredient_id"`
	Qty          decimal.Decimal `json:"qty"`
}

// ComputeLedgerQuantities aggregates stock_movements per ingredient. With no
// ids it returns every ingredient that has ledger history. Used by the
// consistency checks and the rebuild tool.
func ComputeLedgerQuantities(ctx context.Context, ingredientIds ...int) ([]LedgerQuantity, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, ErrDBNotInitialized
	}

	q := db.WithContext(ctx).Model(&StockMovement{}).
		Select("ingredient_id, SUM(qty_delta) AS qty").
		Where("business_id = ?", businessId).
		Group("ingredient_id")
	if len(ingredientIds) > 0 {
		q = q.Where("ingredient_id IN ?", utils.UniqueSlice(ingredientIds))
	}

	var rows []LedgerQuantity
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

type LowStockAlert struct {
	IngredientId     int             `json:"ingredient_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	CurrentQty       decimal.Decimal `json:"current_qty"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
}

// LowStockAlerts returns ingredients at or below their reorder threshold.
// A non-nil thresholdOverride replaces every ingredient's own threshold.
func LowStockAlerts(ctx context.Context, thresholdOverride *decimal.Decimal) ([]LowStockAlert, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	db := config.GetDB()

	q := db.WithContext(ctx).Model(&Ingredient{}).
		Select("id AS ingredient_id, name, unit, current_qty, reorder_threshold").
		Where("business_id = ? AND is_active = ?", businessId, true)
	if thresholdOverride != nil {
		q = q.Where("current_qty <= ?", *thresholdOverride)
	} else {
		q = q.Where("current_qty <= reorder_threshold")
	}

	var alerts []LowStockAlert
	if err := q.Order("ingredient_id ASC").Scan(&alerts).Error; err != nil {
		return nil, err
	}
	return alerts, nil
}

type ReorderSuggestion struct {
	IngredientId     int             `json:"ingredient_id"`
	Name             string          `json:"name"`
	Unit             string          `json:"unit"`
	SupplierId       int             `json:"supplier_id"`
	CurrentQty       decimal.Decimal `json:"current_qty"`
	DailyUsage       decimal.Decimal `json:"daily_usage"`
	SuggestedQty     decimal.Decimal `json:"suggested_qty"`
	LastPurchaseDate *time.Time      `json:"last_purchase_date"`
}

// reorderCoverDays is how much demand a suggested reorder should cover.
const reorderCoverDays = 14

// ReorderSuggestions derives reorder quantities from the trailing consumption
// rate: suggested = dailyUsage*cover + threshold - currentQty, floored at
// zero. Ingredients with nothing to reorder are omitted. The most recent
// PURCHASE ledger entry supplies lastPurchaseDate.
func ReorderSuggestions(ctx context.Context, windowDays int) ([]ReorderSuggestion, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	db := config.GetDB()
	from, to := utils.TrailingWindow(windowDays)

	// Trailing USAGE magnitude per ingredient (usage deltas are negative).
	type usageRow struct {
		IngredientId int
		TotalUsage   decimal.Decimal
	}
	var usages []usageRow
	err := db.WithContext(ctx).Model(&StockMovement{}).
		Select("ingredient_id, SUM(-qty_delta) AS total_usage").
		Where("business_id = ? AND kind = ? AND movement_date BETWEEN ? AND ?",
			businessId, MovementKindUsage, from, to).
		Group("ingredient_id").
		Scan(&usages).Error
	if err != nil {
		return nil, err
	}
	usageById := make(map[int]decimal.Decimal, len(usages))
	for _, u := range usages {
		usageById[u.IngredientId] = u.TotalUsage
	}

	// Most recent PURCHASE entry per ingredient.
	type purchaseRow struct {
		IngredientId int
		LastPurchase time.Time
	}
	var lastPurchases []purchaseRow
	err = db.WithContext(ctx).Model(&StockMovement{}).
		Select("ingredient_id, MAX(movement_date) AS last_purchase").
		Where("business_id = ? AND kind = ?", businessId, MovementKindPurchase).
		Group("ingredient_id").
		Scan(&lastPurchases).Error
	if err != nil {
		return nil, err
	}
	lastPurchaseById := make(map[int]time.Time, len(lastPurchases))
	for _, p := range lastPurchases {
		lastPurchaseById[p.IngredientId] = p.LastPurchase
	}

	ingredients, err := GetIngredients(ctx)
	if err != nil {
		return nil, err
	}

	days := decimal.NewFromInt(int64(windowDays))
	cover := decimal.NewFromInt(reorderCoverDays)

	suggestions := make([]ReorderSuggestion, 0)
	for _, ing := range ingredients {
		if ing.IsActive != nil && !*ing.IsActive {
			continue
		}
		dailyUsage := decimal.Zero
		if total, ok := usageById[ing.ID]; ok && total.IsPositive() {
			dailyUsage = total.Div(days)
		}
		suggested := dailyUsage.Mul(cover).Add(ing.ReorderThreshold).Sub(ing.CurrentQty)
		if !suggested.IsPositive() {
			continue
		}
		suggestion := ReorderSuggestion{
			IngredientId: ing.ID,
			Name:         ing.Name,
			Unit:         ing.Unit,
			SupplierId:   ing.SupplierId,
			CurrentQty:   ing.CurrentQty,
			DailyUsage:   dailyUsage,
			SuggestedQty: suggested,
		}
		if lp, ok := lastPurchaseById[ing.ID]; ok {
			lpCopy := lp
			suggestion.LastPurchaseDate = &lpCopy
		}
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

type UsageForecast struct {
	IngredientId           int             `json:"ingredient_id"`
	Name                   string          `json:"name"`
	CurrentQty             decimal.Decimal `json:"current_qty"`
	DailyUsage             decimal.Decimal `json:"daily_usage"`
	ProjectedDepletionDate time.Time       `json:"projected_depletion_date"`
}

// UsageForecastReport projects depletion dates linearly from the trailing
// consumption rate. Ingredients with no recent consumption are omitted
// (nothing meaningful to project, and it guards the division).
func UsageForecastReport(ctx context.Context, windowDays int) ([]UsageForecast, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	if windowDays <= 0 {
		windowDays = 30
	}
	db := config.GetDB()
	from, to := utils.TrailingWindow(windowDays)

	type usageRow struct {
		IngredientId int
		TotalUsage   decimal.Decimal
	}
	var usages []usageRow
	err := db.WithContext(ctx).Model(&StockMovement{}).
		Select("ingredient_id, SUM(-qty_delta) AS total_usage").
		Where("business_id = ? AND kind = ? AND movement_date BETWEEN ? AND ?",
			businessId, MovementKindUsage, from, to).
		Group("ingredient_id").
		Scan(&usages).Error
	if err != nil {
		return nil, err
	}

	ingredients, err := GetIngredients(ctx)
	if err != nil {
		return nil, err
	}
	ingredientById := make(map[int]*Ingredient, len(ingredients))
	for _, ing := range ingredients {
		ingredientById[ing.ID] = ing
	}

	days := decimal.NewFromInt(int64(windowDays))
	now := time.Now().UTC()

	forecasts := make([]UsageForecast, 0)
	for _, u := range usages {
		if !u.TotalUsage.IsPositive() {
			continue
		}
		ing, ok := ingredientById[u.IngredientId]
		if !ok {
			continue
		}
		dailyUsage := u.TotalUsage.Div(days)
		daysLeft := ing.CurrentQty.Div(dailyUsage)
		hoursLeft := daysLeft.Mul(decimal.NewFromInt(24)).IntPart()
		forecasts = append(forecasts, UsageForecast{
			IngredientId:           ing.ID,
			Name:                   ing.Name,
			CurrentQty:             ing.CurrentQty,
			DailyUsage:             dailyUsage,
			ProjectedDepletionDate: now.Add(time.Duration(hoursLeft) * time.Hour),
		})
	}
	return forecasts, nil
}
