package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/davidrys/gatepass/internal/models"
	"github.com/davidrys/gatepass/internal/store"
)

func openServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.Registrant{}, &models.ScanEvent{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

func newRegistrantStore(t *testing.T) *store.Registrants {
	t.Helper()
	return newRegistrantStoreFromDB(t, openServiceTestDB(t))
}

func newRegistrantStoreFromDB(t *testing.T, db *gorm.DB) *store.Registrants {
	t.Helper()

	registrants, err := store.NewRegistrants(db)
	require.NoError(t, err)
	return registrants
}

func registerFixture(t *testing.T, registrants *store.Registrants, intent bool) *models.Registrant {
	t.Helper()

	svc, err := NewRegistrationService(registrants)
	require.NoError(t, err)

	record, err := svc.Register(context.Background(), Identity{
		Name:  "Ana",
		Email: "a@x.com",
		Phone: "+1 5551234567",
	}, intent)
	require.NoError(t, err)
	return record
}
