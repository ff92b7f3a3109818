// Package testutil opens throwaway sqlite databases for package tests.
package testutil

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"soil-monitor/internal/core/database"
	"soil-monitor/internal/repo"
)

// NewDB 在 t.TempDir() 下创建 sqlite 库并完成迁移
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := database.NewGorm(database.Opts{
		Driver:   "sqlite",
		DSN:      filepath.Join(t.TempDir(), "solo_test.db"),
		LogLevel: "silent",
	}, nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := repo.Migrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}
