package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

// totalAmountEpsilon bounds rounding drift between line totals and the
// declared purchase total (0.01 currency units).
var totalAmountEpsilon = decimal.NewFromFloat(0.01)

// Purchase is a supplier purchase document. Receiving it is the only event
// that credits ingredient stock, via a PURCHASE ledger batch.
type Purchase struct {
	ID            int             `gorm:"primary_key" json:"id"`
	BusinessId    string          `gorm:"index;not null" json:"business_id"`
	SupplierId    int             `gorm:"index;not null" json:"supplier_id"`
	CurrentStatus PurchaseStatus  `gorm:"type:enum('Pending','Confirmed','Received','Cancelled');default:Pending" json:"current_status"`
	PurchaseDate  time.Time       `gorm:"index;not null" json:"purchase_date"`
	TotalAmount   decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"total_amount"`
	// ReceiveBatchId links the purchase to the PURCHASE ledger batch committed on receipt.
	ReceiveBatchId *string        `gorm:"size:36;index" json:"receive_batch_id"`
	ReceivedAt     *time.Time     `json:"received_at"`
	Notes          string         `gorm:"size:255" json:"notes"`
	Items          []PurchaseItem `gorm:"foreignKey:PurchaseId" json:"items"`
	CreatedBy      int            `gorm:"index" json:"created_by"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

type PurchaseItem struct {
	ID           int             `gorm:"primary_key" json:"id"`
	PurchaseId   int             `gorm:"index;not null" json:"purchase_id"`
	IngredientId int             `gorm:"index;not null" json:"ingredient_id"`
	Qty          decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"qty"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"unit_price"`
	LineTotal    decimal.Decimal `gorm:"type:decimal(20,4);not null" json:"line_total"`
}

type NewPurchaseItem struct {
	IngredientId int             `json:"ingredient_id" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type NewPurchase struct {
	SupplierId   int               `json:"supplier_id" validate:"required"`
	PurchaseDate time.Time         `json:"purchase_date"`
	TotalAmount  decimal.Decimal   `json:"total_amount"`
	Notes        string            `json:"notes" validate:"omitempty,max=255"`
	Items        []NewPurchaseItem `json:"items" validate:"required,min=1,dive"`
}

// validateTotals checks the arithmetic that needs no database access: positive
// quantities, non-negative prices, line totals matching qty*unitPrice, and the
// declared total matching the line-total sum within epsilon.
func (input *NewPurchase) validateTotals() error {
	sum := decimal.Zero
	for _, item := range input.Items {
		if !item.Qty.IsPositive() {
			return utils.InvalidQuantityf("purchase item qty", item.Qty)
		}
		if item.UnitPrice.IsNegative() {
			return utils.InvalidQuantityf("purchase item unit_price", item.UnitPrice)
		}
		expected := item.Qty.Mul(item.UnitPrice)
		if expected.Sub(item.LineTotal).Abs().GreaterThan(totalAmountEpsilon) {
			return utils.DataIntegrityf("purchase item for ingredient %d: line total %s does not match qty %s * unit price %s",
				item.IngredientId, item.LineTotal.String(), item.Qty.String(), item.UnitPrice.String())
		}
		sum = sum.Add(item.LineTotal)
	}
	if sum.Sub(input.TotalAmount).Abs().GreaterThan(totalAmountEpsilon) {
		return utils.DataIntegrityf("purchase total %s does not match item sum %s",
			input.TotalAmount.String(), sum.String())
	}
	return nil
}

func (input *NewPurchase) validate(ctx context.Context, businessId string) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := input.validateTotals(); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Supplier](ctx, businessId, input.SupplierId); err != nil {
		return utils.NotFoundf("supplier", input.SupplierId)
	}

	// Every item's ingredient must belong to the declared supplier.
	ingredientIds := make([]int, 0, len(input.Items))
	for _, item := range input.Items {
		ingredientIds = append(ingredientIds, item.IngredientId)
	}
	unqIds := utils.UniqueSlice(ingredientIds)
	count, err := utils.ResourceCountWhere[Ingredient](ctx, businessId,
		"id IN ? AND supplier_id = ?", unqIds, input.SupplierId)
	if err != nil {
		return err
	}
	if count != int64(len(unqIds)) {
		return utils.DataIntegrityf("purchase for supplier %d references ingredients of another supplier", input.SupplierId)
	}
	return nil
}

func CreatePurchase(ctx context.Context, input *NewPurchase) (*Purchase, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}

	if err := input.validate(ctx, businessId); err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)

	purchaseDate := input.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}

	purchase := Purchase{
		BusinessId:    businessId,
		SupplierId:    input.SupplierId,
		CurrentStatus: PurchaseStatusPending,
		PurchaseDate:  purchaseDate,
		TotalAmount:   input.TotalAmount,
		Notes:         input.Notes,
		CreatedBy:     userId,
	}
	for _, item := range input.Items {
		purchase.Items = append(purchase.Items, PurchaseItem{
			IngredientId: item.IngredientId,
			Qty:          item.Qty,
			UnitPrice:    item.UnitPrice,
			LineTotal:    item.LineTotal,
		})
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&purchase).Error; err != nil {
		return nil, err
	}

	return &purchase, nil
}

func GetPurchase(ctx context.Context, id int) (*Purchase, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, ErrBusinessIdRequired
	}
	purchase, err := utils.FetchModel[Purchase](ctx, businessId, id, "Items")
	if err != nil {
		return nil, utils.NotFoundf("purchase", id)
	}
	return purchase, nil
}

// ConfirmPurchase moves Pending -> Confirmed.
func ConfirmPurchase(ctx context.Context, id int) (*Purchase, error) {
	return transitionPurchase(ctx, id, PurchaseStatusConfirmed)
}

// CancelPurchase moves a non-terminal purchase to Cancelled. No ledger effect:
// stock is only credited at receipt.
func CancelPurchase(ctx context.Context, id int) (*Purchase, error) {
	return transitionPurchase(ctx, id, PurchaseStatusCancelled)
}

func transitionPurchase(ctx context.Context, id int, next PurchaseStatus) (*Purchase, error) {
	purchase, err := GetPurchase(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := applyPurchaseTransition(ctx, purchase, next); err != nil {
		return nil, err
	}
	return purchase, nil
}

// applyPurchaseTransition writes the transition with the loaded status as a
// guard. Zero rows affected means another writer moved the purchase first
// (receive vs cancel racing), so the stale transition is rejected rather than
// reported as success.
func applyPurchaseTransition(ctx context.Context, purchase *Purchase, next PurchaseStatus) error {
	if !purchase.CurrentStatus.CanTransitionTo(next) {
		return utils.InvalidTransitionf("purchase", purchase.ID, string(purchase.CurrentStatus), string(next))
	}

	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Purchase{}).
		Where("business_id = ? AND id = ? AND current_status = ?",
			purchase.BusinessId, purchase.ID, purchase.CurrentStatus).
		Update("current_status", next)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.InvalidTransitionf("purchase", purchase.ID, string(purchase.CurrentStatus), string(next))
	}
	purchase.CurrentStatus = next
	return nil
}
