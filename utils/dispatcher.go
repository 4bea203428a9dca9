package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"leadbaze/models"
)

// DispatchJob is one message job handed to the workflow engine
type DispatchJob struct {
	MessageID string `json:"message_id"`
	Phone     string `json:"phone"`
	Name      string `json:"name"`
	Message   string `json:"message"`
}

// DispatchPayload is the campaign payload POSTed to the workflow webhook.
// The engine reports per-job outcomes back through /webhook/dispatch.
type DispatchPayload struct {
	CampaignID uint          `json:"campaign_id"`
	UserID     uint          `json:"user_id"`
	TotalLeads int           `json:"total_leads"`
	Jobs       []DispatchJob `json:"jobs"`
}

// Dispatcher hands campaigns to the external workflow engine
type Dispatcher struct {
	DB         *gorm.DB
	Logger     *log.Logger
	webhookURL string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewDispatcher(db *gorm.DB, logger *log.Logger, webhookURL string, dispatchesPerMinute int) *Dispatcher {
	if dispatchesPerMinute <= 0 {
		dispatchesPerMinute = 10
	}
	return &Dispatcher{
		DB:         db,
		Logger:     logger,
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(dispatchesPerMinute)), dispatchesPerMinute),
	}
}

// DispatchCampaign builds the message jobs from the campaign's unique leads,
// posts them to the workflow engine and transitions the campaign to sending.
// The campaign must be in draft and have at least one recipient.
func (d *Dispatcher) DispatchCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.Status != models.CampaignStatusDraft {
		return fmt.Errorf("campaign %d is %s, only draft campaigns can be dispatched", campaign.ID, campaign.Status)
	}

	var recipients []models.CampaignUniqueLead
	if err := d.DB.Where("campaign_id = ?", campaign.ID).
		Order("id ASC").
		Find(&recipients).Error; err != nil {
		return fmt.Errorf("failed to load campaign recipients: %w", err)
	}
	if len(recipients) == 0 {
		return errors.New("campaign has no recipients")
	}

	payload := DispatchPayload{
		CampaignID: campaign.ID,
		UserID:     campaign.UserID,
		TotalLeads: len(recipients),
		Jobs:       make([]DispatchJob, 0, len(recipients)),
	}
	for _, r := range recipients {
		payload.Jobs = append(payload.Jobs, DispatchJob{
			MessageID: uuid.New().String(),
			Phone:     r.Phone,
			Name:      r.Name,
			Message:   campaign.Message,
		})
	}

	// Claim the campaign before posting: the conditional update makes a user
	// start racing the scheduler lose cleanly instead of dispatching twice
	now := time.Now()
	claim := d.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusDraft).
		Updates(map[string]interface{}{
			"status":      models.CampaignStatusSending,
			"sent_at":     now,
			"total_leads": len(recipients),
			"progress":    0,
		})
	if claim.Error != nil {
		return fmt.Errorf("failed to mark campaign as sending: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		return fmt.Errorf("campaign %d was already claimed for dispatch", campaign.ID)
	}

	if err := d.post(ctx, payload); err != nil {
		// Release the claim so the campaign can be retried
		if revertErr := d.DB.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaign.ID, models.CampaignStatusSending).
			Updates(map[string]interface{}{"status": models.CampaignStatusDraft, "sent_at": nil}).Error; revertErr != nil {
			d.Logger.Printf("Failed to revert claim on campaign %d: %v", campaign.ID, revertErr)
		}
		return err
	}

	campaign.Status = models.CampaignStatusSending
	campaign.SentAt = &now
	campaign.TotalLeads = len(recipients)

	d.Logger.Printf("Dispatched campaign %d with %d jobs", campaign.ID, len(recipients))
	return nil
}

func (d *Dispatcher) post(ctx context.Context, payload DispatchPayload) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("workflow engine unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("workflow engine returned %d: %s", resp.StatusCode, string(snippet))
	}
	return nil
}
