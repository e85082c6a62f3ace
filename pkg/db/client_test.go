package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ledgerRow struct {
	ID   int
	Code string `gorm:"uniqueIndex"`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := conn.AutoMigrate(&ledgerRow{}); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db)

	ctx := context.Background()
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Code: "FOUNDER"}).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	var count int64
	if err := db.Model(&ledgerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 record, got %d", count)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&ledgerRow{Code: "WELCOME20"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}
	if err := db.Model(&ledgerRow{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestPing(t *testing.T) {
	client := FromGorm(newTestDB(t))
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	db := newTestDB(t)
	if err := db.Create(&ledgerRow{Code: "DUP"}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	err := db.Create(&ledgerRow{Code: "DUP"}).Error
	if !IsUniqueViolation(err, "") {
		t.Fatalf("expected sqlite unique violation, got %v", err)
	}

	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "subscriptions_gateway_subscription_id_key"}
	if !IsUniqueViolation(pgErr, "subscriptions_gateway_subscription_id_key") {
		t.Fatalf("expected postgres unique violation")
	}
	if IsUniqueViolation(pgErr, "other_constraint") {
		t.Fatalf("constraint mismatch should not match")
	}
	if IsUniqueViolation(nil, "") {
		t.Fatalf("nil is not a violation")
	}
}

func TestIsNotFound(t *testing.T) {
	db := newTestDB(t)
	var row ledgerRow
	err := db.First(&row, "code = ?", "MISSING").Error
	if !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWithTxRollsBackOnPanic(t *testing.T) {
	db := newTestDB(t)
	client := FromGorm(db)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			if err := tx.Create(&ledgerRow{Code: "PANIC"}).Error; err != nil {
				return err
			}
			panic("boom")
		})
	}()

	var count int64
	if err := db.Model(&ledgerRow{}).Where("code = ?", "PANIC").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic to roll back, got %d rows", count)
	}
}
