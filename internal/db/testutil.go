package db

import (
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB creates an in-memory SQLite database for testing
// Auto-migrates all models and registers t.Cleanup() for automatic cleanup
func TestDB(t testing.TB) *gorm.DB {
	t.Helper()

	config := SQLiteConfig{
		Path:     ":memory:",
		LogLevel: logger.Silent, // Keep tests quiet by default
	}

	db, err := OpenSQLite(config)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := AutoMigrate(db); err != nil {
		t.Fatalf("failed to auto-migrate test database: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err != nil {
			t.Logf("failed to get sql.DB for cleanup: %v", err)
			return
		}
		if err := sqlDB.Close(); err != nil {
			t.Logf("failed to close test database: %v", err)
		}
	})

	return db
}

// SeedAggregatedError inserts a minimal aggregated error for tests.
func SeedAggregatedError(t testing.TB, gdb *gorm.DB, tenantID, fingerprint, errorType string, firstSeen time.Time) *AggregatedError {
	t.Helper()

	record := &AggregatedError{
		Fingerprint:     fingerprint,
		TenantID:        tenantID,
		ErrorType:       errorType,
		OccurrenceCount: 1,
		FirstSeenAt:     firstSeen,
		LastSeenAt:      firstSeen,
		Status:          StatusNew,
	}
	if err := gdb.Create(record).Error; err != nil {
		t.Fatalf("failed to seed aggregated error: %v", err)
	}
	return record
}

// SeedOccurrences inserts occurrence rows at the given timestamps for a
// detection key, all linked to the given aggregated error id.
func SeedOccurrences(t testing.TB, gdb *gorm.DB, aggID uint, errorType, platform string, times []time.Time) {
	t.Helper()

	for _, ts := range times {
		occ := &ErrorOccurrence{
			AggregatedErrorID: aggID,
			Fingerprint:       "seed",
			ErrorType:         errorType,
			Platform:          platform,
			OccurredAt:        ts,
		}
		if err := gdb.Create(occ).Error; err != nil {
			t.Fatalf("failed to seed occurrence: %v", err)
		}
	}
}
