// Package testutil holds helpers shared by storage-backed tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/db"
	"github.com/DavidLopezGarci4/oraculo-nueva-eternia-sub000/internal/models"
)

// OpenDB returns a migrated in-memory SQLite database scoped to the test.
// The pool is pinned to one connection so every query sees the same memory database.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	conn, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

var seq atomic.Int64

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// SeedProduct inserts p and returns it with its ID set.
func SeedProduct(t testing.TB, conn *gorm.DB, p models.Product) models.Product {
	t.Helper()
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("seed product %q: %v", p.Name, err)
	}
	return p
}

// SeedPending inserts a pending listing. Empty fields get usable defaults.
func SeedPending(t testing.TB, conn *gorm.DB, p models.PendingOffer) models.PendingOffer {
	t.Helper()
	if p.URL == "" {
		p.URL = fmt.Sprintf("https://shop.example/item/%d", seq.Add(1))
	}
	if p.Status == "" {
		p.Status = models.StatusPending
	}
	if p.Currency == "" {
		p.Currency = "EUR"
	}
	if p.ShopName == "" {
		p.ShopName = "Test Shop"
	}
	if p.OriginCategory == "" {
		p.OriginCategory = models.OriginRetail
	}
	if p.FoundAt.IsZero() {
		p.FoundAt = time.Now().UTC()
	}
	if err := conn.Create(&p).Error; err != nil {
		t.Fatalf("seed pending %q: %v", p.ScrapedName, err)
	}
	return p
}
