package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MovementInput describes one ledger entry to append.
type MovementInput struct {
	// MovementId may be preset by callers that need replay safety; an entry
	// whose id already exists in the ledger is skipped without re-applying.
	MovementId   string
	IngredientId int
	QtyDelta     decimal.Decimal
	Kind         models.MovementKind
	UnitPrice    *decimal.Decimal
	OrderId      *int
	PurchaseId   *int
	MovementDate time.Time
	Note         string

	// Reversal linkage, set only by the reversal path.
	isReversal         bool
	reversesMovementId *string
	reversalReason     *string
}

func validateMovementInput(in *MovementInput) error {
	if in.QtyDelta.IsZero() {
		return utils.InvalidQuantityf("movement qty_delta", in.QtyDelta)
	}
	if in.Kind.MustCredit() && in.QtyDelta.IsNegative() {
		return utils.InvalidQuantityf(string(in.Kind)+" qty_delta", in.QtyDelta)
	}
	if in.Kind.MustDebit() && in.QtyDelta.IsPositive() {
		return utils.InvalidQuantityf(string(in.Kind)+" qty_delta", in.QtyDelta)
	}
	return nil
}

// PostMovementBatch appends a list of ledger entries and moves the ingredient
// snapshots, all inside the caller's transaction. Either every entry lands and
// every snapshot moves, or the transaction rolls back untouched.
//
// The affected ingredient rows are locked FOR UPDATE in ascending id order
// before the projected quantities are checked, so the read-check-write
// sequence is atomic with respect to concurrent writers: of two batches that
// would jointly overdraw an ingredient, exactly one commits.
func PostMovementBatch(ctx context.Context, tx *gorm.DB, logger *logrus.Logger, inputs []*MovementInput) (string, []*models.StockMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return "", nil, models.ErrBusinessIdRequired
	}
	userId, _ := utils.GetUserIdFromContext(ctx)

	ingredientIds := make([]int, 0, len(inputs))
	for _, in := range inputs {
		if err := validateMovementInput(in); err != nil {
			return "", nil, err
		}
		ingredientIds = append(ingredientIds, in.IngredientId)
	}
	if len(inputs) == 0 {
		return "", nil, utils.InvalidQuantityf("movement batch size", decimal.Zero)
	}

	// Skip entries already committed under a preset id (replay safety).
	inputs, err := dropReplayedInputs(tx, inputs)
	if err != nil {
		return "", nil, err
	}
	if len(inputs) == 0 {
		return "", []*models.StockMovement{}, nil
	}

	ingredients, err := models.LockIngredientsForUpdate(tx, businessId, ingredientIds)
	if err != nil {
		return "", nil, err
	}

	// Aggregate deltas per ingredient and check the projected quantity for
	// the whole batch before writing anything.
	deltaById := make(map[int]decimal.Decimal)
	for _, in := range inputs {
		if _, ok := ingredients[in.IngredientId]; !ok {
			return "", nil, utils.NotFoundf("ingredient", in.IngredientId)
		}
		deltaById[in.IngredientId] = deltaById[in.IngredientId].Add(in.QtyDelta)
	}
	for ingredientId, delta := range deltaById {
		ingredient := ingredients[ingredientId]
		projected := ingredient.CurrentQty.Add(delta)
		if projected.IsNegative() {
			return "", nil, utils.InsufficientStockf(ingredientId, delta.Neg(), ingredient.CurrentQty)
		}
	}

	batchId := uuid.NewString()
	correlationId := correlationIdFromContextOrNew(ctx)

	// Only deltas of entries this transaction actually inserts move the
	// snapshot. A duplicate-key hit means another writer committed the same
	// preset id after our replay check ran, and that writer already applied
	// the delta; applying it again here would diverge the snapshot from the
	// ledger sum.
	appliedById := make(map[int]decimal.Decimal)
	movements := make([]*models.StockMovement, 0, len(inputs))
	for _, in := range inputs {
		movement := &models.StockMovement{
			ID:                 in.MovementId,
			BusinessId:         businessId,
			IngredientId:       in.IngredientId,
			Kind:               in.Kind,
			QtyDelta:           in.QtyDelta,
			UnitPrice:          in.UnitPrice,
			BatchId:            &batchId,
			OrderId:            in.OrderId,
			PurchaseId:         in.PurchaseId,
			MovementDate:       in.MovementDate,
			Note:               in.Note,
			CreatedBy:          userId,
			IsReversal:         in.isReversal,
			ReversesMovementId: in.reversesMovementId,
			ReversalReason:     in.reversalReason,
			CorrelationId:      correlationId,
		}
		if err := tx.Create(movement).Error; err != nil {
			if isDuplicateKeyErr(err) {
				continue
			}
			config.LogError(logger, "stockLedger.go", "PostMovementBatch", "create movement", in, err)
			return "", nil, err
		}
		movements = append(movements, movement)
		appliedById[in.IngredientId] = appliedById[in.IngredientId].Add(in.QtyDelta)
	}

	for ingredientId, delta := range appliedById {
		if delta.IsZero() {
			continue
		}
		if err := models.ApplySnapshotDelta(tx, businessId, ingredientId, delta); err != nil {
			config.LogError(logger, "stockLedger.go", "PostMovementBatch", "apply snapshot delta", ingredientId, err)
			return "", nil, err
		}

		// Queue a low-stock alert when this batch drops the ingredient to or
		// below its threshold.
		ingredient := ingredients[ingredientId]
		projected := ingredient.CurrentQty.Add(delta)
		crossed := ingredient.CurrentQty.GreaterThan(ingredient.ReorderThreshold) &&
			projected.LessThanOrEqual(ingredient.ReorderThreshold)
		if crossed {
			if err := models.QueueLowStockAlert(ctx, tx, businessId, ingredient, projected); err != nil {
				config.LogError(logger, "stockLedger.go", "PostMovementBatch", "queue low stock alert", ingredientId, err)
				return "", nil, err
			}
		}
	}

	return batchId, movements, nil
}

// dropReplayedInputs removes inputs whose preset movement id already exists.
func dropReplayedInputs(tx *gorm.DB, inputs []*MovementInput) ([]*MovementInput, error) {
	presetIds := make([]string, 0)
	for _, in := range inputs {
		if in.MovementId != "" {
			presetIds = append(presetIds, in.MovementId)
		}
	}
	if len(presetIds) == 0 {
		return inputs, nil
	}

	var existing []string
	err := tx.Model(&models.StockMovement{}).
		Where("id IN ?", presetIds).
		Pluck("id", &existing).Error
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return inputs, nil
	}
	existingSet := make(map[string]bool, len(existing))
	for _, id := range existing {
		existingSet[id] = true
	}

	remaining := make([]*MovementInput, 0, len(inputs))
	for _, in := range inputs {
		if in.MovementId != "" && existingSet[in.MovementId] {
			continue
		}
		remaining = append(remaining, in)
	}
	return remaining, nil
}

// RecordMovement appends one ledger entry as its own atomic unit: posting
// lock, transaction, snapshot update. This is the entry point for manual
// adjustments, waste entries, and transfers. Replaying a preset movement id
// returns the already-committed entry without re-applying its delta.
func RecordMovement(ctx context.Context, input *MovementInput) (*models.StockMovement, error) {
	movements, err := RecordMovements(ctx, []*MovementInput{input})
	if err != nil {
		return nil, err
	}
	if len(movements) == 0 {
		return models.GetStockMovement(ctx, input.MovementId)
	}
	return movements[0], nil
}

// RecordMovements appends a batch of ledger entries as one atomic unit.
func RecordMovements(ctx context.Context, inputs []*MovementInput) ([]*models.StockMovement, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, models.ErrBusinessIdRequired
	}
	db := config.GetDB()
	if db == nil {
		return nil, models.ErrDBNotInitialized
	}
	logger := config.GetLogger()

	var movements []*models.StockMovement
	err := withPostingRetry("stock ledger", func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := AcquirePostingLock(tx, businessId); err != nil {
				return err
			}
			defer ReleasePostingLock(tx, businessId)

			var err error
			_, movements, err = PostMovementBatch(ctx, tx, logger, inputs)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	clearIngredientCache(businessId, movements)
	return movements, nil
}

// clearIngredientCache drops the cached ingredient list (and the affected
// instances) after a committed batch. The snapshot column moved, and the
// analytics reads go through the list cache.
func clearIngredientCache(businessId string, movements []*models.StockMovement) {
	seen := make(map[int]bool, len(movements))
	for _, m := range movements {
		if seen[m.IngredientId] {
			continue
		}
		seen[m.IngredientId] = true
		_ = utils.ClearRedisCache[models.Ingredient](businessId, m.IngredientId)
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
