package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReverseMovement appends a compensating ADJUSTMENT entry for one ledger row.
// The original row is never rewritten; it only gains the reversed_by linkage.
// Reversing an already-reversed entry is a no-op.
func ReverseMovement(ctx context.Context, movementId string, reason string) ([]*models.StockMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	var reversals []*models.StockMovement
	err := withPostingRetry("stock reversal", func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquirePostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleasePostingLock(tx, businessId)

			var original models.StockMovement
			err := tx.Where("business_id = ? AND id = ?", businessId, movementId).
				First(&original).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NotFoundf("stock movement", movementId)
			}
			if err != nil {
				return err
			}

			reversals, err = reverseMovements(ctx, tx, logger, []*models.StockMovement{&original}, reason)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	clearIngredientCache(businessId, reversals)
	return reversals, nil
}

// reverseMovements appends one compensating entry per original inside the
// caller's transaction. Originals already carrying a reversed_by link are
// skipped, which makes the cancel path safe to retry. The compensating
// entries go through the ledger commit path so the non-negativity check and
// snapshot update apply to them like any other batch.
func reverseMovements(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, originals []*models.StockMovement, reason string) ([]*models.StockMovement, error) {
	inputs := make([]*MovementInput, 0, len(originals))
	toReverse := make([]*models.StockMovement, 0, len(originals))
	for _, original := range originals {
		if original.ReversedByMovementId != nil {
			continue
		}
		originalId := original.ID
		reasonCopy := reason
		inputs = append(inputs, &MovementInput{
			IngredientId:       original.IngredientId,
			QtyDelta:           original.QtyDelta.Neg(),
			Kind:               models.MovementKindAdjustment,
			UnitPrice:          original.UnitPrice,
			OrderId:            original.OrderId,
			PurchaseId:         original.PurchaseId,
			Note:               "REV: " + original.Note,
			isReversal:         true,
			reversesMovementId: &originalId,
			reversalReason:     &reasonCopy,
		})
		toReverse = append(toReverse, original)
	}
	if len(inputs) == 0 {
		return []*models.StockMovement{}, nil
	}

	_, reversals, err := PostMovementBatch(ctx, tx, logger, inputs)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	reversalByOriginal := make(map[string]*models.StockMovement, len(reversals))
	for _, rev := range reversals {
		if rev.ReversesMovementId != nil {
			reversalByOriginal[*rev.ReversesMovementId] = rev
		}
	}
	for _, original := range toReverse {
		rev, ok := reversalByOriginal[original.ID]
		if !ok {
			continue
		}
		err := tx.Model(&models.StockMovement{}).
			Where("id = ?", original.ID).
			Updates(map[string]interface{}{
				"reversed_by_movement_id": rev.ID,
				"reversal_reason":         reason,
				"reversed_at":             now,
			}).Error
		if err != nil {
			config.LogError(logger, "stockReversal.go", "reverseMovements", "mark original reversed", original.ID, err)
			return nil, err
		}
	}
	return reversals, nil
}
