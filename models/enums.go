package models

import "fmt"

// MovementKind classifies a ledger entry. The sign convention is enforced at
// record time: PURCHASE and RETURN credit stock, USAGE and WASTE debit it,
// ADJUSTMENT / TRANSFER / BATCH_ADJUSTMENT may go either way.
type MovementKind string

const (
	MovementKindPurchase        MovementKind = "PURCHASE"
	MovementKindUsage           MovementKind = "USAGE"
	MovementKindWaste           MovementKind = "WASTE"
	MovementKindAdjustment      MovementKind = "ADJUSTMENT"
	MovementKindReturn          MovementKind = "RETURN"
	MovementKindTransfer        MovementKind = "TRANSFER"
	MovementKindBatchAdjustment MovementKind = "BATCH_ADJUSTMENT"
)

func ParseMovementKind(s string) (MovementKind, error) {
	kinds := map[string]MovementKind{
		"PURCHASE":         MovementKindPurchase,
		"USAGE":            MovementKindUsage,
		"WASTE":            MovementKindWaste,
		"ADJUSTMENT":       MovementKindAdjustment,
		"RETURN":           MovementKindReturn,
		"TRANSFER":         MovementKindTransfer,
		"BATCH_ADJUSTMENT": MovementKindBatchAdjustment,
	}
	kind, ok := kinds[s]
	if !ok {
		return "", fmt.Errorf("unknown movement kind %q", s)
	}
	return kind, nil
}

// MustCredit reports whether entries of this kind are required to have a positive delta.
func (k MovementKind) MustCredit() bool {
	return k == MovementKindPurchase || k == MovementKindReturn
}

// MustDebit reports whether entries of this kind are required to have a negative delta.
func (k MovementKind) MustDebit() bool {
	return k == MovementKindUsage || k == MovementKindWaste
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// orderTransitions is the closed transition table. COMPLETED and CANCELLED are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "Pending"
	PurchaseStatusConfirmed PurchaseStatus = "Confirmed"
	PurchaseStatusReceived  PurchaseStatus = "Received"
	PurchaseStatusCancelled PurchaseStatus = "Cancelled"
)

var purchaseTransitions = map[PurchaseStatus][]PurchaseStatus{
	PurchaseStatusPending:   {PurchaseStatusConfirmed, PurchaseStatusReceived, PurchaseStatusCancelled},
	PurchaseStatusConfirmed: {PurchaseStatusReceived, PurchaseStatusCancelled},
	PurchaseStatusReceived:  {},
	PurchaseStatusCancelled: {},
}

func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	for _, allowed := range purchaseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s PurchaseStatus) IsTerminal() bool {
	return len(purchaseTransitions[s]) == 0
}

// AvailabilityStatus classifies one required ingredient in an order estimate.
type AvailabilityStatus string

const (
	AvailabilityAvailable    AvailabilityStatus = "available"
	AvailabilityInsufficient AvailabilityStatus = "insufficient"
)

type AlertType string

const (
	AlertTypeLowStock      AlertType = "LOW_STOCK"
	AlertTypeDataIntegrity AlertType = "DATA_INTEGRITY"
)

type OutboxPublishStatus = string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusSent       OutboxPublishStatus = "SENT"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)
