// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"deluxe_backend/internal/model"
)

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

// SeedAccount inserts an account with the given trial flag.
func SeedAccount(t *testing.T, db *gorm.DB, username string, trialed bool) *model.Account {
	t.Helper()
	acc := &model.Account{
		Username:         username,
		Email:            username + "@deluxe.com",
		StripeCustomerID: "cus_" + username,
	}
	require.NoError(t, db.Create(acc).Error)
	if trialed {
		require.NoError(t, db.Model(acc).Update("trialed", true).Error)
		acc.Trialed = true
	}
	return acc
}

// SeedPlans inserts the Standard and Premium plans.
func SeedPlans(t *testing.T, db *gorm.DB) (standard, premium *model.Plan) {
	t.Helper()
	standard = &model.Plan{Name: "Standard", Slug: "standard", Price: decimal.RequireFromString("9.90"), StripeProductID: "prod_std", StripePriceID: "price_std"}
	premium = &model.Plan{Name: "Premium", Slug: "premium", Price: decimal.RequireFromString("15.90"), StripeProductID: "prod_prem", StripePriceID: "price_prem"}
	require.NoError(t, db.Create(standard).Error)
	require.NoError(t, db.Create(premium).Error)
	return standard, premium
}
