package utils

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"leadbaze/models"
)

func TestDispatcherPostsPayload(t *testing.T) {
	var got DispatchPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(nil, log.New(io.Discard, "", 0), server.URL, 60)
	payload := DispatchPayload{
		CampaignID: 11,
		UserID:     3,
		TotalLeads: 2,
		Jobs: []DispatchJob{
			{MessageID: "m-1", Phone: "5531999990001", Name: "Padaria Central", Message: "Olá {{nome}}"},
			{MessageID: "m-2", Phone: "5531988887777", Name: "Oficina do Zé", Message: "Olá {{nome}}"},
		},
	}

	require.NoError(t, d.post(context.Background(), payload))
	assert.Equal(t, payload, got)
}

func TestDispatcherRejectsEngineError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDispatcher(nil, log.New(io.Discard, "", 0), server.URL, 60)
	err := d.post(context.Background(), DispatchPayload{CampaignID: 1})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "queue full")
}

func newDispatchDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Campaign{}, &models.CampaignUniqueLead{}))
	return db
}

func newDraftCampaign(t *testing.T, db *gorm.DB, phones ...string) *models.Campaign {
	t.Helper()
	campaign := &models.Campaign{
		UserID:  1,
		Name:    "Promo setembro",
		Message: "Olá {{nome}}",
		Status:  models.CampaignStatusDraft,
	}
	require.NoError(t, db.Create(campaign).Error)
	for _, phone := range phones {
		require.NoError(t, db.Create(&models.CampaignUniqueLead{
			CampaignID: campaign.ID,
			PhoneHash:  PhoneHash(phone),
			Phone:      phone,
			Name:       "Lead " + phone,
		}).Error)
	}
	return campaign
}

func TestDispatchCampaignClaimsDraftOnlyOnce(t *testing.T) {
	db := newDispatchDB(t)
	campaign := newDraftCampaign(t, db, "5531999990001", "5531988887777")

	var posts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	d := NewDispatcher(db, log.New(io.Discard, "", 0), server.URL, 60)
	require.NoError(t, d.DispatchCampaign(context.Background(), campaign))
	assert.Equal(t, models.CampaignStatusSending, campaign.Status)
	assert.Equal(t, 2, campaign.TotalLeads)

	var row models.Campaign
	require.NoError(t, db.First(&row, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusSending, row.Status)
	require.NotNil(t, row.SentAt)

	// A racing caller still holding the draft snapshot loses the claim and
	// never reaches the engine
	stale := &models.Campaign{
		Model:   gorm.Model{ID: campaign.ID},
		UserID:  campaign.UserID,
		Message: campaign.Message,
		Status:  models.CampaignStatusDraft,
	}
	err := d.DispatchCampaign(context.Background(), stale)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already claimed")
	assert.Equal(t, int32(1), posts.Load(), "the campaign must be handed to the engine exactly once")
}

func TestDispatchCampaignRevertsClaimOnEngineFailure(t *testing.T) {
	db := newDispatchDB(t)
	campaign := newDraftCampaign(t, db, "5531999990001")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "queue full", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	d := NewDispatcher(db, log.New(io.Discard, "", 0), server.URL, 60)
	require.Error(t, d.DispatchCampaign(context.Background(), campaign))

	// The claim is released so the campaign can be retried
	var row models.Campaign
	require.NoError(t, db.First(&row, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusDraft, row.Status)
	assert.Nil(t, row.SentAt)
}

func TestDispatchCampaignRequiresRecipients(t *testing.T) {
	db := newDispatchDB(t)
	campaign := newDraftCampaign(t, db)

	d := NewDispatcher(db, log.New(io.Discard, "", 0), "http://invalid.localhost", 60)
	err := d.DispatchCampaign(context.Background(), campaign)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients")

	var row models.Campaign
	require.NoError(t, db.First(&row, campaign.ID).Error)
	assert.Equal(t, models.CampaignStatusDraft, row.Status)
}

func TestDispatcherHonorsContextCancellation(t *testing.T) {
	// A cancelled context aborts at the limiter, before any request goes out
	d := NewDispatcher(nil, log.New(io.Discard, "", 0), "http://invalid.localhost", 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.post(ctx, DispatchPayload{CampaignID: 1})
	assert.Error(t, err)
}
