package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/quorumhq/quorum/internal/clock"
	"github.com/quorumhq/quorum/internal/communityctx"
	ledgerdomain "github.com/quorumhq/quorum/internal/ledger/domain"
	"github.com/quorumhq/quorum/internal/ledger/lock"
	ledgerrepository "github.com/quorumhq/quorum/internal/ledger/repository"
	registryrepository "github.com/quorumhq/quorum/internal/registry/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ledgerFixture struct {
	svc         ledgerdomain.Service
	db          *gorm.DB
	node        *snowflake.Node
	clock       *clock.FakeClock
	communityID snowflake.ID
	residenceID snowflake.ID
	occupantID  snowflake.ID
}

func setupLedgerService(t *testing.T) *ledgerFixture {
	t.Helper()

	node := mustNode(t)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	_ = db.Exec("PRAGMA busy_timeout = 5000").Error
	_ = db.Exec("PRAGMA foreign_keys = ON").Error
	prepareLedgerSchema(t, db)

	communityID := node.Generate()
	residenceID := node.Generate()
	occupantID := node.Generate()
	seedRegistry(t, db, communityID, residenceID, occupantID)

	fakeClock := clock.NewFakeClock(time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC))

	svc := New(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fakeClock,
		Repo:     ledgerrepository.Provide(),
		Registry: registryrepository.Provide(),
		Locker:   lock.NewMemoryLocker(),
	})

	return &ledgerFixture{
		svc:         svc,
		db:          db,
		node:        node,
		clock:       fakeClock,
		communityID: communityID,
		residenceID: residenceID,
		occupantID:  occupantID,
	}
}

func (f *ledgerFixture) ctx() context.Context {
	return communityctx.WithCommunityID(context.Background(), f.communityID)
}

func (f *ledgerFixture) createCharge(t *testing.T, amount int64) ledgerdomain.Charge {
	t.Helper()
	charge, err := f.svc.CreateCharge(f.ctx(), ledgerdomain.CreateChargeRequest{
		Target:  ledgerdomain.ResidenceTarget(f.residenceID),
		Name:    "maintenance fee",
		Amount:  amount,
		DueDate: time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("create charge: %v", err)
	}
	return charge
}

func (f *ledgerFixture) recordPayment(t *testing.T, amount int64) ledgerdomain.Payment {
	t.Helper()
	payment, err := f.svc.RecordPayment(f.ctx(), ledgerdomain.RecordPaymentRequest{
		PayerID: f.occupantID,
		Amount:  amount,
	})
	if err != nil {
		t.Fatalf("record payment: %v", err)
	}
	return payment
}

func TestAllocateSettlesChargeAndPayment(t *testing.T) {
	f := setupLedgerService(t)

	charge := f.createCharge(t, 5000)
	payment := f.recordPayment(t, 5000)

	txn, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID,
		ChargeID:  charge.ID,
		Amount:    5000,
	})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if txn.ChargeOpeningBalance != 5000 || txn.ChargeClosingBalance != 0 {
		t.Fatalf("charge balances = %d -> %d, want 5000 -> 0", txn.ChargeOpeningBalance, txn.ChargeClosingBalance)
	}
	if txn.PaymentOpeningBalance != 5000 || txn.PaymentClosingBalance != 0 {
		t.Fatalf("payment balances = %d -> %d, want 5000 -> 0", txn.PaymentOpeningBalance, txn.PaymentClosingBalance)
	}

	gotCharge, err := f.svc.GetCharge(f.ctx(), charge.ID)
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if gotCharge.RemainingBalance != 0 {
		t.Fatalf("charge remaining = %d, want 0", gotCharge.RemainingBalance)
	}

	gotPayment, err := f.svc.GetPayment(f.ctx(), payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if gotPayment.RemainingBalance != 0 {
		t.Fatalf("payment remaining = %d, want 0", gotPayment.RemainingBalance)
	}
}

func TestAllocateSplitsPaymentAcrossCharges(t *testing.T) {
	f := setupLedgerService(t)

	first := f.createCharge(t, 4000)
	second := f.createCharge(t, 3000)
	payment := f.recordPayment(t, 10000)

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: first.ID, Amount: 4000,
	}); err != nil {
		t.Fatalf("allocate first: %v", err)
	}
	txn, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: second.ID, Amount: 3000,
	})
	if err != nil {
		t.Fatalf("allocate second: %v", err)
	}

	if txn.PaymentOpeningBalance != 6000 || txn.PaymentClosingBalance != 3000 {
		t.Fatalf("payment balances = %d -> %d, want 6000 -> 3000", txn.PaymentOpeningBalance, txn.PaymentClosingBalance)
	}

	gotPayment, err := f.svc.GetPayment(f.ctx(), payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if gotPayment.RemainingBalance != 3000 {
		t.Fatalf("payment remaining = %d, want 3000", gotPayment.RemainingBalance)
	}

	for _, chargeID := range []snowflake.ID{first.ID, second.ID} {
		gotCharge, err := f.svc.GetCharge(f.ctx(), chargeID)
		if err != nil {
			t.Fatalf("get charge: %v", err)
		}
		if gotCharge.RemainingBalance != 0 {
			t.Fatalf("charge %s remaining = %d, want 0", chargeID, gotCharge.RemainingBalance)
		}
	}
}

func TestAllocateSettlesChargeFromMultiplePayments(t *testing.T) {
	f := setupLedgerService(t)

	charge := f.createCharge(t, 6000)
	first := f.recordPayment(t, 2500)
	second := f.recordPayment(t, 3500)

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: first.ID, ChargeID: charge.ID, Amount: 2500,
	}); err != nil {
		t.Fatalf("allocate first: %v", err)
	}
	txn, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: second.ID, ChargeID: charge.ID, Amount: 3500,
	})
	if err != nil {
		t.Fatalf("allocate second: %v", err)
	}

	if txn.ChargeOpeningBalance != 3500 || txn.ChargeClosingBalance != 0 {
		t.Fatalf("charge balances = %d -> %d, want 3500 -> 0", txn.ChargeOpeningBalance, txn.ChargeClosingBalance)
	}

	txns, err := f.svc.ChargeTransactions(f.ctx(), charge.ID)
	if err != nil {
		t.Fatalf("charge transactions: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txns))
	}
}

func TestAllocateDuplicatePairRejected(t *testing.T) {
	f := setupLedgerService(t)

	charge := f.createCharge(t, 5000)
	payment := f.recordPayment(t, 5000)

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: 2000,
	}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	_, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: 1000,
	})
	if !errors.Is(err, ledgerdomain.ErrDuplicateAllocation) {
		t.Fatalf("expected ErrDuplicateAllocation, got %v", err)
	}

	if count := countTransactions(t, f.db); count != 1 {
		t.Fatalf("expected 1 transaction, got %d", count)
	}
}

func TestAllocateRejectsChargeOverdraw(t *testing.T) {
	f := setupLedgerService(t)

	charge := f.createCharge(t, 1000)
	payment := f.recordPayment(t, 5000)

	_, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: 2000,
	})
	if !errors.Is(err, ledgerdomain.ErrBalanceViolation) {
		t.Fatalf("expected ErrBalanceViolation, got %v", err)
	}

	// The failed allocation must leave no trace.
	if count := countTransactions(t, f.db); count != 0 {
		t.Fatalf("expected 0 transactions, got %d", count)
	}
	gotCharge, err := f.svc.GetCharge(f.ctx(), charge.ID)
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if gotCharge.RemainingBalance != 1000 {
		t.Fatalf("charge remaining = %d, want 1000", gotCharge.RemainingBalance)
	}
}

func TestAllocateRejectsPaymentOverdraw(t *testing.T) {
	f := setupLedgerService(t)

	first := f.createCharge(t, 3000)
	second := f.createCharge(t, 3000)
	payment := f.recordPayment(t, 4000)

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: first.ID, Amount: 3000,
	}); err != nil {
		t.Fatalf("allocate first: %v", err)
	}

	_, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: second.ID, Amount: 2000,
	})
	if !errors.Is(err, ledgerdomain.ErrBalanceViolation) {
		t.Fatalf("expected ErrBalanceViolation, got %v", err)
	}
}

func TestAllocateValidation(t *testing.T) {
	f := setupLedgerService(t)

	charge := f.createCharge(t, 5000)
	payment := f.recordPayment(t, 5000)

	if _, err := f.svc.Allocate(context.Background(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: 1000,
	}); !errors.Is(err, ledgerdomain.ErrInvalidCommunity) {
		t.Fatalf("expected ErrInvalidCommunity, got %v", err)
	}

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		ChargeID: charge.ID, Amount: 1000,
	}); !errors.Is(err, ledgerdomain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: 0,
	}); !errors.Is(err, ledgerdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: -100,
	}); !errors.Is(err, ledgerdomain.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestAllocateUnknownEntitiesNotFound(t *testing.T) {
	f := setupLedgerService(t)

	payment := f.recordPayment(t, 5000)
	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: f.node.Generate(), Amount: 1000,
	}); !errors.Is(err, ledgerdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown charge, got %v", err)
	}

	charge := f.createCharge(t, 5000)
	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: f.node.Generate(), ChargeID: charge.ID, Amount: 1000,
	}); !errors.Is(err, ledgerdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown payment, got %v", err)
	}
}

func TestCreateChargeValidation(t *testing.T) {
	f := setupLedgerService(t)

	cases := []struct {
		name string
		req  ledgerdomain.CreateChargeRequest
		want error
	}{
		{
			name: "empty name",
			req: ledgerdomain.CreateChargeRequest{
				Target:  ledgerdomain.ResidenceTarget(f.residenceID),
				Amount:  1000,
				DueDate: time.Now(),
			},
			want: ledgerdomain.ErrInvalidName,
		},
		{
			name: "zero amount",
			req: ledgerdomain.CreateChargeRequest{
				Target:  ledgerdomain.ResidenceTarget(f.residenceID),
				Name:    "fee",
				DueDate: time.Now(),
			},
			want: ledgerdomain.ErrInvalidAmount,
		},
		{
			name: "bad target",
			req: ledgerdomain.CreateChargeRequest{
				Target:  ledgerdomain.Target{Kind: "garage", ID: f.residenceID},
				Name:    "fee",
				Amount:  1000,
				DueDate: time.Now(),
			},
			want: ledgerdomain.ErrInvalidTarget,
		},
		{
			name: "zero due date",
			req: ledgerdomain.CreateChargeRequest{
				Target: ledgerdomain.ResidenceTarget(f.residenceID),
				Name:   "fee",
				Amount: 1000,
			},
			want: ledgerdomain.ErrInvalidDueDate,
		},
		{
			name: "unknown residence",
			req: ledgerdomain.CreateChargeRequest{
				Target:  ledgerdomain.ResidenceTarget(f.node.Generate()),
				Name:    "fee",
				Amount:  1000,
				DueDate: time.Now(),
			},
			want: ledgerdomain.ErrNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.CreateCharge(f.ctx(), tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRecordPaymentDefaultsDateFromClock(t *testing.T) {
	f := setupLedgerService(t)

	payment := f.recordPayment(t, 1000)
	if !payment.PaymentDate.Equal(f.clock.Now()) {
		t.Fatalf("payment date = %v, want %v", payment.PaymentDate, f.clock.Now())
	}

	if _, err := f.svc.RecordPayment(f.ctx(), ledgerdomain.RecordPaymentRequest{
		PayerID: f.node.Generate(),
		Amount:  1000,
	}); !errors.Is(err, ledgerdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown payer, got %v", err)
	}
}

func TestDeleteChargeRestoresPaymentBalance(t *testing.T) {
	f := setupLedgerService(t)

	charge := f.createCharge(t, 3000)
	payment := f.recordPayment(t, 3000)
	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: charge.ID, Amount: 3000,
	}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	if err := f.svc.DeleteCharge(f.ctx(), charge.ID); err != nil {
		t.Fatalf("delete charge: %v", err)
	}

	// Cascade removed the transaction, so the payment is fully open again.
	if count := countTransactions(t, f.db); count != 0 {
		t.Fatalf("expected 0 transactions after delete, got %d", count)
	}
	gotPayment, err := f.svc.GetPayment(f.ctx(), payment.ID)
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if gotPayment.RemainingBalance != 3000 {
		t.Fatalf("payment remaining = %d, want 3000", gotPayment.RemainingBalance)
	}

	if _, err := f.svc.GetCharge(f.ctx(), charge.ID); !errors.Is(err, ledgerdomain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestListChargesDerivesBalances(t *testing.T) {
	f := setupLedgerService(t)

	open := f.createCharge(t, 4000)
	settled := f.createCharge(t, 1500)
	payment := f.recordPayment(t, 1500)
	if _, err := f.svc.Allocate(f.ctx(), ledgerdomain.AllocateRequest{
		PaymentID: payment.ID, ChargeID: settled.ID, Amount: 1500,
	}); err != nil {
		t.Fatalf("allocate: %v", err)
	}

	charges, err := f.svc.ListCharges(f.ctx(), ledgerdomain.ListChargesFilter{})
	if err != nil {
		t.Fatalf("list charges: %v", err)
	}
	if len(charges) != 2 {
		t.Fatalf("expected 2 charges, got %d", len(charges))
	}
	remaining := map[snowflake.ID]int64{}
	for _, c := range charges {
		remaining[c.ID] = c.RemainingBalance
	}
	if remaining[open.ID] != 4000 {
		t.Fatalf("open charge remaining = %d, want 4000", remaining[open.ID])
	}
	if remaining[settled.ID] != 0 {
		t.Fatalf("settled charge remaining = %d, want 0", remaining[settled.ID])
	}
}

func countTransactions(t *testing.T, db *gorm.DB) int {
	t.Helper()
	var count int
	if err := db.Raw(`SELECT COUNT(1) FROM billing_transactions`).Scan(&count).Error; err != nil {
		t.Fatalf("count transactions: %v", err)
	}
	return count
}

func prepareLedgerSchema(t *testing.T, db *gorm.DB) {
	t.Helper()
	statements := []string{
		`CREATE TABLE communities (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE residences (
			id BIGINT PRIMARY KEY,
			community_id BIGINT NOT NULL,
			unit_no TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE occupants (
			id BIGINT PRIMARY KEY,
			community_id BIGINT NOT NULL,
			residence_id BIGINT,
			name TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE billing_charges (
			id BIGINT PRIMARY KEY,
			community_id BIGINT NOT NULL,
			target_kind TEXT NOT NULL,
			target_id BIGINT NOT NULL,
			name TEXT NOT NULL,
			amount BIGINT NOT NULL,
			charge_date DATETIME NOT NULL,
			due_date DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE billing_payments (
			id BIGINT PRIMARY KEY,
			community_id BIGINT NOT NULL,
			payer_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			payment_date DATETIME NOT NULL,
			created_at DATETIME NOT NULL
		)`,
		`CREATE TABLE billing_transactions (
			community_id BIGINT NOT NULL,
			payment_id BIGINT NOT NULL REFERENCES billing_payments (id) ON DELETE CASCADE,
			charge_id BIGINT NOT NULL REFERENCES billing_charges (id) ON DELETE CASCADE,
			transaction_amount BIGINT NOT NULL CHECK (transaction_amount > 0),
			charge_opening_balance BIGINT NOT NULL,
			charge_closing_balance BIGINT NOT NULL CHECK (charge_closing_balance >= 0),
			payment_opening_balance BIGINT NOT NULL,
			payment_closing_balance BIGINT NOT NULL CHECK (payment_closing_balance >= 0),
			created_at DATETIME NOT NULL,
			PRIMARY KEY (payment_id, charge_id)
		)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("prepare schema: %v", err)
		}
	}
}

func seedRegistry(t *testing.T, db *gorm.DB, communityID, residenceID, occupantID snowflake.ID) {
	t.Helper()
	now := time.Now().UTC()
	if err := db.Exec(
		`INSERT INTO communities (id, name, created_at) VALUES (?, ?, ?)`,
		communityID, "Test Estate", now,
	).Error; err != nil {
		t.Fatalf("seed community: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO residences (id, community_id, unit_no, created_at) VALUES (?, ?, ?, ?)`,
		residenceID, communityID, "A-101", now,
	).Error; err != nil {
		t.Fatalf("seed residence: %v", err)
	}
	if err := db.Exec(
		`INSERT INTO occupants (id, community_id, residence_id, name, created_at) VALUES (?, ?, ?, ?, ?)`,
		occupantID, communityID, residenceID, "Alex Doe", now,
	).Error; err != nil {
		t.Fatalf("seed occupant: %v", err)
	}
}

func mustNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}
