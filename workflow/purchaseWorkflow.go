package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReceivePurchase credits stock for every item of the purchase in one atomic
// PURCHASE ledger batch and moves the purchase to Received. Receiving is
// idempotent at the state-machine level: Received is terminal, so a second
// receive fails the transition check before touching the ledger.
func ReceivePurchase(ctx context.Context, purchaseId int) (*models.Purchase, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	var committed []*models.StockMovement
	err := withPostingRetry("purchase receiving", func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquirePostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleasePostingLock(tx, businessId)

			var purchase models.Purchase
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("business_id = ? AND id = ?", businessId, purchaseId).
				First(&purchase).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundf("purchase", purchaseId)
			}
			if err != nil {
				return err
			}
			if !purchase.CurrentStatus.CanTransitionTo(models.PurchaseStatusReceived) {
				return utils.InvalidTransitionf("purchase", purchaseId,
					string(purchase.CurrentStatus), string(models.PurchaseStatusReceived))
			}
			if err := tx.Where("purchase_id = ?", purchaseId).
				Find(&purchase.Items).Error; err != nil {
				return err
			}

			inputs := make([]*MovementInput, 0, len(purchase.Items))
			for _, item := range purchase.Items {
				unitPrice := item.UnitPrice
				purchaseIdCopy := purchaseId
				inputs = append(inputs, &MovementInput{
					IngredientId: item.IngredientId,
					QtyDelta:     item.Qty,
					Kind:         models.MovementKindPurchase,
					UnitPrice:    &unitPrice,
					PurchaseId:   &purchaseIdCopy,
					Note:         fmt.Sprintf("purchase #%d", purchaseId),
				})
			}

			batchId, movements, err := PostMovementBatch(ctx, tx, logger, inputs)
			if err != nil {
				return err
			}
			committed = movements

			now := time.Now().UTC()
			return tx.Model(&models.Purchase{}).
				Where("id = ?", purchaseId).
				Updates(map[string]interface{}{
					"current_status":   models.PurchaseStatusReceived,
					"receive_batch_id": batchId,
					"received_at":      now,
				}).Error
		})
	})
	if err != nil {
		return nil, err
	}
	clearIngredientCache(businessId, committed)
	return models.GetPurchase(ctx, purchaseId)
}
