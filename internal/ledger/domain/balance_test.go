package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
)

func TestRemainingBalanceNoTransactions(t *testing.T) {
	if got := RemainingBalance(5000, nil); got != 5000 {
		t.Fatalf("expected full amount 5000, got %d", got)
	}
	if got := RemainingBalance(5000, []int64{}); got != 5000 {
		t.Fatalf("expected full amount 5000, got %d", got)
	}
}

func TestRemainingBalanceMinClosingWins(t *testing.T) {
	// Closings shrink as allocations accrue; only the smallest reflects the
	// current state.
	if got := RemainingBalance(5000, []int64{3000, 1000, 2000}); got != 1000 {
		t.Fatalf("expected 1000, got %d", got)
	}
}

func TestRemainingBalanceFullySettled(t *testing.T) {
	if got := RemainingBalance(5000, []int64{2000, 0}); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestChargeRemainingFiltersOtherCharges(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	charge := Charge{ID: node.Generate(), Amount: 4000}
	other := node.Generate()

	txns := []Transaction{
		{ChargeID: charge.ID, ChargeClosingBalance: 2500},
		{ChargeID: other, ChargeClosingBalance: 100},
	}
	if got := ChargeRemaining(charge, txns); got != 2500 {
		t.Fatalf("expected 2500, got %d", got)
	}
}

func TestPaymentRemainingFiltersOtherPayments(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	payment := Payment{ID: node.Generate(), Amount: 10000}
	other := node.Generate()

	txns := []Transaction{
		{PaymentID: payment.ID, PaymentClosingBalance: 7000},
		{PaymentID: payment.ID, PaymentClosingBalance: 4000},
		{PaymentID: other, PaymentClosingBalance: 0},
	}
	if got := PaymentRemaining(payment, txns); got != 4000 {
		t.Fatalf("expected 4000, got %d", got)
	}
}

func TestTargetValidate(t *testing.T) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	id := node.Generate()

	if err := ResidenceTarget(id).Validate(); err != nil {
		t.Fatalf("residence target: %v", err)
	}
	if err := OccupantTarget(id).Validate(); err != nil {
		t.Fatalf("occupant target: %v", err)
	}
	if err := (Target{Kind: "garage", ID: id}).Validate(); err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget for unknown kind, got %v", err)
	}
	if err := (Target{Kind: TargetKindResidence}).Validate(); err != ErrInvalidTarget {
		t.Fatalf("expected ErrInvalidTarget for zero id, got %v", err)
	}
}
