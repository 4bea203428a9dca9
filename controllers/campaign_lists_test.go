package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadbaze/models"
)

func createTestList(t *testing.T, cc *CampaignController, name string, phones ...string) models.LeadList {
	t.Helper()
	list := models.LeadList{UserID: 1, Name: name, Source: "maps_extraction"}
	require.NoError(t, cc.DB.Create(&list).Error)
	for _, phone := range phones {
		require.NoError(t, cc.DB.Create(&models.Lead{
			LeadListID: list.ID,
			UserID:     1,
			Name:       "Lead " + phone,
			Phone:      phone,
		}).Error)
	}
	require.NoError(t, cc.DB.Preload("Leads").First(&list, list.ID).Error)
	return list
}

func TestAddAllListsSkipsIgnoredLists(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{Status: models.CampaignStatusDraft})

	listA := createTestList(t, cc, "Padarias BH", "31999990001", "31999990002")
	listB := createTestList(t, cc, "Oficinas BH", "31999990002", "31988887777")
	ignored := createTestList(t, cc, "Lista descartada", "31911110000")
	require.NoError(t, cc.DB.Create(&models.CampaignList{
		CampaignID: campaign.ID,
		LeadListID: ignored.ID,
		Ignored:    true,
	}).Error)

	available := []models.LeadList{listA, listB, ignored}
	result := cc.addAllListsToCampaign(campaign.ID, available, nil, []uint{ignored.ID}, nil)

	require.True(t, result.Success, result.Message)
	assert.ElementsMatch(t, []uint{listA.ID, listB.ID}, result.Data.SelectedLists)
	assert.Equal(t, []uint{ignored.ID}, result.Data.IgnoredLists)
	assert.Equal(t, 1, result.Data.DuplicatesRemoved)

	// One association row per list, the ignored one still flagged
	var associations []models.CampaignList
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).Find(&associations).Error)
	require.Len(t, associations, 3)
	flags := make(map[uint]bool, len(associations))
	for _, a := range associations {
		flags[a.LeadListID] = a.Ignored
	}
	assert.False(t, flags[listA.ID])
	assert.False(t, flags[listB.ID])
	assert.True(t, flags[ignored.ID])

	// The ignored list's lead never joins the recipient set
	var recipients []models.CampaignUniqueLead
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).Find(&recipients).Error)
	require.Len(t, recipients, 3)
	for _, r := range recipients {
		assert.NotEqual(t, "31911110000", r.Phone)
	}

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, 2, reloaded.SelectedListsCount)
	assert.Equal(t, 1, reloaded.IgnoredListsCount)
	assert.Equal(t, 3, reloaded.UniqueLeads)
	assert.Equal(t, 3, reloaded.TotalLeads)
	assert.Equal(t, 1, reloaded.DuplicatesCount)
}

func TestAddAllListsIsRepeatable(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{Status: models.CampaignStatusDraft})

	listA := createTestList(t, cc, "Padarias BH", "31999990001", "31999990002")
	available := []models.LeadList{listA}

	result := cc.addAllListsToCampaign(campaign.ID, available, nil, nil, nil)
	require.True(t, result.Success, result.Message)

	// Re-run with the state the handler would load on a second request
	selected, ignoredIDs, err := cc.campaignListIDs(campaign.ID)
	require.NoError(t, err)
	var currentLeads []models.CampaignUniqueLead
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).Order("id ASC").Find(&currentLeads).Error)

	result = cc.addAllListsToCampaign(campaign.ID, available, selected, ignoredIDs, currentLeads)
	require.True(t, result.Success, result.Message)

	var count int64
	require.NoError(t, cc.DB.Model(&models.CampaignUniqueLead{}).Where("campaign_id = ?", campaign.ID).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, 1, reloaded.SelectedListsCount)
	assert.Equal(t, 2, reloaded.UniqueLeads)
}

func TestRemoveAllListsKeepsIgnoredRecord(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{Status: models.CampaignStatusDraft})

	listA := createTestList(t, cc, "Padarias BH", "31999990001")
	ignored := createTestList(t, cc, "Lista descartada", "31911110000")
	require.NoError(t, cc.DB.Create(&models.CampaignList{
		CampaignID: campaign.ID,
		LeadListID: ignored.ID,
		Ignored:    true,
	}).Error)

	result := cc.addAllListsToCampaign(campaign.ID, []models.LeadList{listA, ignored}, nil, []uint{ignored.ID}, nil)
	require.True(t, result.Success, result.Message)

	result = cc.removeAllListsFromCampaign(campaign.ID, []uint{ignored.ID})
	require.True(t, result.Success, result.Message)

	var associations []models.CampaignList
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).Find(&associations).Error)
	require.Len(t, associations, 1)
	assert.Equal(t, ignored.ID, associations[0].LeadListID)
	assert.True(t, associations[0].Ignored)

	var count int64
	require.NoError(t, cc.DB.Model(&models.CampaignUniqueLead{}).Where("campaign_id = ?", campaign.ID).Count(&count).Error)
	assert.Equal(t, int64(0), count)

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, 0, reloaded.SelectedListsCount)
	assert.Equal(t, 1, reloaded.IgnoredListsCount)
	assert.Equal(t, 0, reloaded.UniqueLeads)
	assert.Equal(t, 0, reloaded.DuplicatesCount)
}
