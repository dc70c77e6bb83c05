package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAutoMigrate_CreatesTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))

	for _, table := range []string{"users", "listings", "listing_images", "retired_slugs", "events", "contact_requests"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.NoError(t, (&Pinger{DB: db}).Ping())
}
