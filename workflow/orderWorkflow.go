package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ItemAvailability reports whether current stock covers one ingredient line of
// an estimate. Insufficiency is reported here, not rejected; rejection only
// happens when fulfillment is confirmed.
type ItemAvailability struct {
	IngredientId int                       `json:"ingredient_id"`
	Required     decimal.Decimal           `json:"required"`
	Available    decimal.Decimal           `json:"available"`
	Status       models.AvailabilityStatus `json:"status"`
}

type ItemEstimate struct {
	RecipeId     int                            `json:"recipe_id"`
	Qty          decimal.Decimal                `json:"qty"`
	UnitCost     decimal.Decimal                `json:"unit_cost"`
	TotalCost    decimal.Decimal                `json:"total_cost"`
	Requirements []models.IngredientRequirement `json:"requirements"`
}

type OrderEstimate struct {
	TotalCost    decimal.Decimal    `json:"total_cost"`
	Items        []ItemEstimate     `json:"items"`
	Availability []ItemAvailability `json:"availability"`
}

// EstimateOrder prices the requested items against current recipe definitions
// and ingredient prices, and reports per-ingredient availability. It is a pure
// read: no rows are written and nothing is reserved.
func EstimateOrder(ctx context.Context, items []models.NewOrderItem) (*OrderEstimate, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	logger := config.GetLogger()

	estimate := OrderEstimate{TotalCost: decimal.Zero}
	requiredById := make(map[int]decimal.Decimal)

	for _, item := range items {
		if !item.Qty.IsPositive() {
			return nil, utils.InvalidQuantityf("order item qty", item.Qty)
		}
		recipe, err := models.GetRecipe(ctx, item.RecipeId)
		if err != nil {
			return nil, err
		}
		ingredientsById, err := models.GetIngredientsById(ctx, recipe.IngredientIds())
		if err != nil {
			return nil, err
		}
		cost, err := recipe.Cost(ingredientsById)
		if err != nil {
			if errors.Is(err, utils.ErrorDataIntegrity) {
				config.LogDataIntegrity(logger, "orderWorkflow.go", "EstimateOrder", "recipe costing", recipe.ID, err)
			}
			return nil, err
		}
		scaled, err := recipe.ScaleRequirement(item.Qty, ingredientsById)
		if err != nil {
			return nil, err
		}

		itemTotal := cost.UnitCost.Mul(item.Qty)
		estimate.Items = append(estimate.Items, ItemEstimate{
			RecipeId:     item.RecipeId,
			Qty:          item.Qty,
			UnitCost:     cost.UnitCost,
			TotalCost:    itemTotal,
			Requirements: scaled,
		})
		estimate.TotalCost = estimate.TotalCost.Add(itemTotal)

		for _, req := range scaled {
			requiredById[req.IngredientId] = requiredById[req.IngredientId].Add(req.Qty)
		}
	}

	ingredientIds := make([]int, 0, len(requiredById))
	for id := range requiredById {
		ingredientIds = append(ingredientIds, id)
	}
	sort.Ints(ingredientIds)
	ingredientsById, err := models.GetIngredientsById(ctx, ingredientIds)
	if err != nil {
		return nil, err
	}
	for _, id := range ingredientIds {
		required := requiredById[id]
		available := decimal.Zero
		if ing, ok := ingredientsById[id]; ok {
			available = ing.CurrentQty
		}
		status := models.AvailabilityAvailable
		if available.LessThan(required) {
			status = models.AvailabilityInsufficient
		}
		estimate.Availability = append(estimate.Availability, ItemAvailability{
			IngredientId: id,
			Required:     required,
			Available:    available,
			Status:       status,
		})
	}
	return &estimate, nil
}

// CreateOrder estimates the items and persists the order as PENDING with the
// cost and requirement snapshots frozen. No stock moves until fulfillment is
// confirmed.
func CreateOrder(ctx context.Context, input *models.NewOrder) (*models.Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := input.Validate(ctx, businessId); err != nil {
		return nil, err
	}

	estimate, err := EstimateOrder(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	orderDate := input.OrderDate
	if orderDate.IsZero() {
		orderDate = time.Now().UTC()
	}

	order := models.Order{
		BusinessId:    businessId,
		CurrentStatus: models.OrderStatusPending,
		OrderDate:     orderDate,
		TotalCost:     estimate.TotalCost,
		Notes:         input.Notes,
		CreatedBy:     userId,
	}
	order.Items = buildOrderItems(estimate)

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func buildOrderItems(estimate *OrderEstimate) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(estimate.Items))
	for _, est := range estimate.Items {
		item := models.OrderItem{
			RecipeId:  est.RecipeId,
			Qty:       est.Qty,
			UnitCost:  est.UnitCost,
			TotalCost: est.TotalCost,
		}
		for _, req := range est.Requirements {
			item.Requirements = append(item.Requirements, models.OrderItemRequirement{
				IngredientId: req.IngredientId,
				Qty:          req.Qty,
				Unit:         req.Unit,
				UnitCost:     req.UnitCost,
			})
		}
		items = append(items, item)
	}
	return items
}

// ModifyOrderItems replaces the items of a PENDING order and refreezes the
// snapshots at current prices. Any other status rejects the change: once
// stock is committed the snapshots must not drift.
func ModifyOrderItems(ctx context.Context, orderId int, items []models.NewOrderItem) (*models.Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	if err := models.ValidateOrderItems(ctx, businessId, items); err != nil {
		return nil, err
	}

	estimate, err := EstimateOrder(ctx, items)
	if err != nil {
		return nil, err
	}

	db := config.GetDB()
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("business_id = ? AND id = ?", businessId, orderId).
			First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.NotFoundf("order", orderId)
		}
		if err != nil {
			return err
		}
		if order.CurrentStatus != models.OrderStatusPending {
			return utils.InvalidTransitionf("order", orderId, string(order.CurrentStatus), "modified")
		}

		var itemIds []int
		if err := tx.Model(&models.OrderItem{}).
			Where("order_id = ?", orderId).
			Pluck("id", &itemIds).Error; err != nil {
			return err
		}
		if len(itemIds) > 0 {
			if err := tx.Where("order_item_id IN ?", itemIds).
				Delete(&models.OrderItemRequirement{}).Error; err != nil {
				return err
			}
			if err := tx.Where("order_id = ?", orderId).
				Delete(&models.OrderItem{}).Error; err != nil {
				return err
			}
		}
		for _, item := range buildOrderItems(estimate) {
			item.OrderId = orderId
			if err := tx.Create(&item).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Order{}).
			Where("id = ?", orderId).
			Update("total_cost", estimate.TotalCost).Error
	})
	if err != nil {
		return nil, err
	}
	return models.GetOrder(ctx, orderId)
}

// orderTransitionLockTTL bounds how long a confirm/cancel can hold the
// per-order distributed lock.
const orderTransitionLockTTL = 30 * time.Second

// lockOrderTransition takes the per-order distributed lock so two instances
// cannot race the same status transition. Without redis configured the MySQL
// row lock inside the transaction still serializes transitions on one
// instance.
func lockOrderTransition(ctx context.Context, orderId int) (*redislock.Lock, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return nil, nil
	}
	key := fmt.Sprintf("order:%d", orderId)
	lock, err := locker.Obtain(ctx, key, orderTransitionLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 5),
	})
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, utils.ConcurrencyConflictf(key, 5)
	}
	if err != nil {
		return nil, err
	}
	return lock, nil
}

func releaseOrderTransition(ctx context.Context, lock *redislock.Lock) {
	if lock != nil {
		_ = lock.Release(ctx)
	}
}

// ConfirmOrderFulfillment commits a PENDING order's frozen requirements
// against stock: one USAGE ledger entry per ingredient per item, all in one
// atomic batch, then PENDING -> IN_PROGRESS. If any ingredient would go
// negative the whole transaction rolls back and the order stays PENDING.
func ConfirmOrderFulfillment(ctx context.Context, orderId int) (*models.Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	lock, err := lockOrderTransition(ctx, orderId)
	if err != nil {
		return nil, err
	}
	defer releaseOrderTransition(ctx, lock)

	var committed []*models.StockMovement
	err = withPostingRetry("order fulfillment", func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquirePostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleasePostingLock(tx, businessId)

			order, err := lockOrder(tx, businessId, orderId)
			if err != nil {
				return err
			}
			if !order.CurrentStatus.CanTransitionTo(models.OrderStatusInProgress) {
				return utils.InvalidTransitionf("order", orderId,
					string(order.CurrentStatus), string(models.OrderStatusInProgress))
			}

			inputs := usageInputsFromSnapshots(order)
			batchId, movements, err := PostMovementBatch(ctx, tx, logger, inputs)
			if err != nil {
				return err
			}
			committed = movements

			return tx.Model(&models.Order{}).
				Where("id = ?", orderId).
				Updates(map[string]interface{}{
					"current_status": models.OrderStatusInProgress,
					"usage_batch_id": batchId,
				}).Error
		})
	})
	if err != nil {
		return nil, err
	}
	clearIngredientCache(businessId, committed)
	return models.GetOrder(ctx, orderId)
}

// usageInputsFromSnapshots builds the USAGE entries from the order's frozen
// requirement snapshots. Requirements are per unit of item quantity at freeze
// time, already scaled; each (item, ingredient) pair becomes its own entry so
// the ledger preserves line-level traceability.
func usageInputsFromSnapshots(order *models.Order) []*MovementInput {
	inputs := make([]*MovementInput, 0)
	for _, item := range order.Items {
		for _, req := range item.Requirements {
			unitCost := req.UnitCost
			orderIdCopy := order.ID
			inputs = append(inputs, &MovementInput{
				IngredientId: req.IngredientId,
				QtyDelta:     req.Qty.Neg(),
				Kind:         models.MovementKindUsage,
				UnitPrice:    &unitCost,
				OrderId:      &orderIdCopy,
				Note:         fmt.Sprintf("order #%d recipe #%d", order.ID, item.RecipeId),
			})
		}
	}
	return inputs
}

func lockOrder(tx *gorm.DB, businessId string, orderId int) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("business_id = ? AND id = ?", businessId, orderId).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NotFoundf("order", orderId)
	}
	if err != nil {
		return nil, err
	}
	if err := tx.Preload("Requirements").
		Where("order_id = ?", orderId).
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// CancelOrder cancels a PENDING order (no ledger effect) or an IN_PROGRESS
// order (the USAGE batch is reversed entry by entry, restoring stock).
// Terminal orders reject the transition.
func CancelOrder(ctx context.Context, orderId int, reason string) (*models.Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	lock, err := lockOrderTransition(ctx, orderId)
	if err != nil {
		return nil, err
	}
	defer releaseOrderTransition(ctx, lock)

	var reversals []*models.StockMovement
	err = withPostingRetry("order cancellation", func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquirePostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleasePostingLock(tx, businessId)

			order, err := lockOrder(tx, businessId, orderId)
			if err != nil {
				return err
			}
			if !order.CurrentStatus.CanTransitionTo(models.OrderStatusCancelled) {
				return utils.InvalidTransitionf("order", orderId,
					string(order.CurrentStatus), string(models.OrderStatusCancelled))
			}

			if order.CurrentStatus == models.OrderStatusInProgress && order.UsageBatchId != nil {
				originals, err := models.GetMovementsByBatch(tx, businessId, *order.UsageBatchId)
				if err != nil {
					return err
				}
				reversals, err = reverseMovements(ctx, tx, logger, originals, reason)
				if err != nil {
					return err
				}
			}

			return tx.Model(&models.Order{}).
				Where("id = ?", orderId).
				Update("current_status", models.OrderStatusCancelled).Error
		})
	})
	if err != nil {
		return nil, err
	}
	clearIngredientCache(businessId, reversals)
	return models.GetOrder(ctx, orderId)
}

// CompleteOrder moves IN_PROGRESS -> COMPLETED. Stock was already consumed at
// confirmation, so this is a pure status change.
func CompleteOrder(ctx context.Context, orderId int) (*models.Order, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}

	lock, err := lockOrderTransition(ctx, orderId)
	if err != nil {
		return nil, err
	}
	defer releaseOrderTransition(ctx, lock)

	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOrder(tx, businessId, orderId)
		if err != nil {
			return err
		}
		if !order.CurrentStatus.CanTransitionTo(models.OrderStatusCompleted) {
			return utils.InvalidTransitionf("order", orderId,
				string(order.CurrentStatus), string(models.OrderStatusCompleted))
		}
		return tx.Model(&models.Order{}).
			Where("id = ?", orderId).
			Update("current_status", models.OrderStatusCompleted).Error
	})
	if err != nil {
		return nil, err
	}
	return models.GetOrder(ctx, orderId)
}
