package models

import "testing"

func TestOrderStatusTransitions(t *testing.T) {
	cases := []struct {
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{OrderStatusPending, OrderStatusInProgress, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusCompleted, false},
		{OrderStatusInProgress, OrderStatusCompleted, true},
		{OrderStatusInProgress, OrderStatusCancelled, true},
		{OrderStatusInProgress, OrderStatusPending, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusInProgress, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Fatalf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	if OrderStatusPending.IsTerminal() || OrderStatusInProgress.IsTerminal() {
		t.Fatal("open statuses must not be terminal")
	}
	if !OrderStatusCompleted.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Fatal("COMPLETED and CANCELLED must be terminal")
	}
}

func TestPurchaseStatusTransitions(t *testing.T) {
	cases := []struct {
		from    PurchaseStatus
		to      PurchaseStatus
		allowed bool
	}{
		{PurchaseStatusPending, PurchaseStatusConfirmed, true},
		{PurchaseStatusPending, PurchaseStatusReceived, true},
		{PurchaseStatusPending, PurchaseStatusCancelled, true},
		{PurchaseStatusConfirmed, PurchaseStatusReceived, true},
		{PurchaseStatusConfirmed, PurchaseStatusCancelled, true},
		{PurchaseStatusConfirmed, PurchaseStatusPending, false},
		// Received is terminal: receiving twice must fail the transition check.
		{PurchaseStatusReceived, PurchaseStatusReceived, false},
		{PurchaseStatusReceived, PurchaseStatusCancelled, false},
		{PurchaseStatusCancelled, PurchaseStatusReceived, false},
	}
	for _, c := range cases {
		if got := c.from.CanTransitionTo(c.to); got != c.allowed {
			t.Fatalf("%s -> %s: got %v, want %v", c.from, c.to, got, c.allowed)
		}
	}
}

func TestMovementKindSignConventions(t *testing.T) {
	credits := []MovementKind{MovementKindPurchase, MovementKindReturn}
	debits := []MovementKind{MovementKindUsage, MovementKindWaste}
	free := []MovementKind{MovementKindAdjustment, MovementKindTransfer, MovementKindBatchAdjustment}

	for _, k := range credits {
		if !k.MustCredit() || k.MustDebit() {
			t.Fatalf("%s must be credit-only", k)
		}
	}
	for _, k := range debits {
		if !k.MustDebit() || k.MustCredit() {
			t.Fatalf("%s must be debit-only", k)
		}
	}
	for _, k := range free {
		if k.MustCredit() || k.MustDebit() {
			t.Fatalf("%s must allow either sign", k)
		}
	}
}

func TestParseMovementKind(t *testing.T) {
	kind, err := ParseMovementKind("BATCH_ADJUSTMENT")
	if err != nil {
		t.Fatalf("ParseMovementKind: %v", err)
	}
	if kind != MovementKindBatchAdjustment {
		t.Fatalf("got %s", kind)
	}
	if _, err := ParseMovementKind("purchase"); err == nil {
		t.Fatal("lowercase kind must not parse")
	}
}
