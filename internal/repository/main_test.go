package repository

import (
	"testing"

	"chirp/internal/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB returns a fresh in-memory database with the full schema. Each
// test gets its own database so tests can run in parallel.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(database.Models()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}
