package workflow

import (
	"context"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SnapshotDrift is one ingredient whose materialized quantity disagrees with
// the ledger sum.
type SnapshotDrift struct {
	IngredientId int             `json:"ingredient_id"`
	SnapshotQty  decimal.Decimal `json:"snapshot_qty"`
	LedgerQty    decimal.Decimal `json:"ledger_qty"`
}

// CheckSnapshotConsistency compares every ingredient's materialized quantity
// against the authoritative ledger sum and returns the drifted ones. Drift
// means a bug or manual database surgery; each finding is queued as a
// DATA_INTEGRITY alert.
func CheckSnapshotConsistency(ctx context.Context) ([]SnapshotDrift, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	ledger, err := models.ComputeLedgerQuantities(ctx)
	if err != nil {
		return nil, err
	}
	ledgerById := make(map[int]decimal.Decimal, len(ledger))
	for _, lq := range ledger {
		ledgerById[lq.IngredientId] = lq.Qty
	}

	ingredients, err := models.GetIngredients(ctx)
	if err != nil {
		return nil, err
	}

	drifts := make([]SnapshotDrift, 0)
	for _, ing := range ingredients {
		ledgerQty := ledgerById[ing.ID] // zero when no ledger history
		if ing.CurrentQty.Equal(ledgerQty) {
			continue
		}
		drift := SnapshotDrift{
			IngredientId: ing.ID,
			SnapshotQty:  ing.CurrentQty,
			LedgerQty:    ledgerQty,
		}
		drifts = append(drifts, drift)
		config.LogDataIntegrity(logger, "snapshotRebuild.go", "CheckSnapshotConsistency",
			"snapshot drift", drift,
			utils.DataIntegrityf("ingredient %d snapshot %s != ledger %s",
				ing.ID, ing.CurrentQty.String(), ledgerQty.String()))

		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return models.QueueDataIntegrityAlert(ctx, tx, businessId, ing.ID,
				"snapshot "+ing.CurrentQty.String()+" != ledger "+ledgerQty.String())
		})
		if err != nil {
			return nil, err
		}
	}
	return drifts, nil
}

// RebuildSnapshots recomputes every ingredient's materialized quantity from
// the ledger under the posting lock. Recovery tool; the ledger commit path is
// the only writer during normal operation.
func RebuildSnapshots(ctx context.Context) (int, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return 0, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return 0, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	rebuilt := 0
	var changedIds []int
	err := withPostingRetry("snapshot rebuild", func() error {
		rebuilt = 0
		changedIds = changedIds[:0]
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquirePostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleasePostingLock(tx, businessId)

			ledger, err := models.ComputeLedgerQuantities(ctx)
			if err != nil {
				return err
			}
			ledgerById := make(map[int]decimal.Decimal, len(ledger))
			for _, lq := range ledger {
				ledgerById[lq.IngredientId] = lq.Qty
			}

			var ingredients []*models.Ingredient
			if err := tx.Where("business_id = ?", businessId).
				Find(&ingredients).Error; err != nil {
				return err
			}

			for _, ing := range ingredients {
				ledgerQty := ledgerById[ing.ID]
				if ing.CurrentQty.Equal(ledgerQty) {
					continue
				}
				err := tx.Model(&models.Ingredient{}).
					Where("business_id = ? AND id = ?", businessId, ing.ID).
					Update("current_qty", ledgerQty).Error
				if err != nil {
					return err
				}
				rebuilt++
				changedIds = append(changedIds, ing.ID)
				logger.WithFields(logrus.Fields{
					"business_id":   businessId,
					"ingredient_id": ing.ID,
					"old_qty":       ing.CurrentQty.String(),
					"new_qty":       ledgerQty.String(),
				}).Info("snapshot.rebuild")
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	for _, id := range changedIds {
		_ = utils.ClearRedisCache[models.Ingredient](businessId, id)
	}
	return rebuilt, nil
}
