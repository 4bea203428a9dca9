package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadbaze/models"
	"leadbaze/stream"
)

func postDispatchWebhook(t *testing.T, cc *CampaignController, payload interface{}) (int, map[string]interface{}) {
	t.Helper()

	app := fiber.New()
	app.Post("/webhook/dispatch", cc.HandleDispatchWebhook)

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/webhook/dispatch", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

func TestWebhookProgressUpdatesSendingCampaign(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{
		Status:     models.CampaignStatusSending,
		TotalLeads: 10,
	})

	events, cancel := cc.Broker.Subscribe(campaign.ID)
	defer cancel()

	code, body := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "progress",
		"data": map[string]interface{}{
			"lead_index":    4,
			"success_count": 3,
			"failed_count":  1,
		},
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusSending, reloaded.Status)
	assert.Equal(t, 3, reloaded.SuccessCount)
	assert.Equal(t, 1, reloaded.FailedCount)
	assert.Equal(t, float64(40), reloaded.Progress)

	select {
	case ev := <-events:
		assert.Equal(t, stream.EventProgress, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("progress was not fanned out to subscribers")
	}
}

func TestWebhookCompletionMarksCampaignTerminal(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{
		Status:     models.CampaignStatusSending,
		TotalLeads: 10,
	})

	events, cancel := cc.Broker.Subscribe(campaign.ID)
	defer cancel()

	code, body := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "complete",
		"data": map[string]interface{}{
			"status":        models.CampaignStatusCompleted,
			"success_count": 9,
			"failed_count":  1,
		},
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
	assert.Equal(t, 9, reloaded.SuccessCount)
	assert.Equal(t, 1, reloaded.FailedCount)
	assert.Equal(t, float64(100), reloaded.Progress)
	require.NotNil(t, reloaded.CompletedAt)

	select {
	case ev := <-events:
		assert.Equal(t, stream.EventComplete, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("completion was not fanned out to subscribers")
	}
}

func TestWebhookIgnoresProgressForTerminalCampaign(t *testing.T) {
	cc := newTestController(t)
	done := time.Now()
	campaign := createTestCampaign(t, cc, &models.Campaign{
		Status:       models.CampaignStatusCompleted,
		TotalLeads:   50,
		SuccessCount: 50,
		Progress:     100,
		CompletedAt:  &done,
	})

	code, body := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "progress",
		"data": map[string]interface{}{
			"lead_index":    1,
			"success_count": 0,
			"failed_count":  1,
		},
	})

	// Acknowledged so the engine stops retrying, but nothing is applied
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["ignored"])

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status)
	assert.Equal(t, 50, reloaded.SuccessCount)
	assert.Equal(t, 0, reloaded.FailedCount)
	assert.Equal(t, float64(100), reloaded.Progress)
}

func TestWebhookIgnoresCompletionForTerminalCampaign(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{
		Status:       models.CampaignStatusCompleted,
		SuccessCount: 20,
		TotalLeads:   20,
	})

	code, body := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "complete",
		"data": map[string]interface{}{
			"status":       models.CampaignStatusFailed,
			"failed_count": 20,
		},
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ignored"])

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusCompleted, reloaded.Status, "a terminal campaign is never resurrected or flipped")
	assert.Equal(t, 20, reloaded.SuccessCount)
	assert.Equal(t, 0, reloaded.FailedCount)
}

func TestWebhookIgnoresEventsForDraftCampaign(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{Status: models.CampaignStatusDraft})

	code, body := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "progress",
		"data":        map[string]interface{}{"success_count": 1},
	})

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["ignored"])

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, 0, reloaded.SuccessCount)
}

func TestWebhookRejectsUnknownEventType(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{Status: models.CampaignStatusSending})

	code, body := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "paused",
		"data":        map[string]interface{}{},
	})

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "Unknown event type")
}

func TestWebhookRejectsInvalidCompletionStatus(t *testing.T) {
	cc := newTestController(t)
	campaign := createTestCampaign(t, cc, &models.Campaign{Status: models.CampaignStatusSending})

	code, _ := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": campaign.ID,
		"type":        "complete",
		"data":        map[string]interface{}{"status": "done"},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	var reloaded models.Campaign
	require.NoError(t, cc.DB.First(&reloaded, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusSending, reloaded.Status)
}

func TestWebhookUnknownCampaign(t *testing.T) {
	cc := newTestController(t)

	code, _ := postDispatchWebhook(t, cc, map[string]interface{}{
		"campaign_id": 9999,
		"type":        "progress",
		"data":        map[string]interface{}{},
	})
	assert.Equal(t, http.StatusNotFound, code)
}
