package controller

import (
	"io"
	"log"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"leadbaze/models"
	"leadbaze/stream"
)

// newTestController builds a CampaignController over an in-memory database
// with the full schema migrated.
func newTestController(t *testing.T) *CampaignController {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.LeadList{},
		&models.Lead{},
		&models.Campaign{},
		&models.CampaignList{},
		&models.CampaignUniqueLead{},
	))

	logger := log.New(io.Discard, "", 0)
	return NewCampaignController(db, logger, stream.NewBroker(logger), nil)
}

func createTestCampaign(t *testing.T, cc *CampaignController, campaign *models.Campaign) *models.Campaign {
	t.Helper()
	if campaign.Name == "" {
		campaign.Name = "Promo setembro"
	}
	if campaign.UserID == 0 {
		campaign.UserID = 1
	}
	require.NoError(t, cc.DB.Create(campaign).Error)
	return campaign
}
