package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"leadbaze/models"
	"leadbaze/stream"
	"leadbaze/utils"
)

// DispatchWorker dispatches scheduled campaigns and fails ones whose dispatch
// run stopped reporting.
type DispatchWorker struct {
	DB           *gorm.DB
	Dispatcher   *utils.Dispatcher
	Broker       *stream.Broker
	Logger       *log.Logger
	StallTimeout time.Duration
}

func NewDispatchWorker(db *gorm.DB, dispatcher *utils.Dispatcher, broker *stream.Broker, logger *log.Logger, stallTimeout time.Duration) *DispatchWorker {
	if stallTimeout <= 0 {
		stallTimeout = time.Hour
	}
	return &DispatchWorker{
		DB:           db,
		Dispatcher:   dispatcher,
		Broker:       broker,
		Logger:       logger,
		StallTimeout: stallTimeout,
	}
}

func (dw *DispatchWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	dw.Logger.Println("Dispatch worker started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			dw.Logger.Println("Dispatch worker shutting down...")
			return
		case <-ticker.C:
			dw.dispatchScheduled(ctx)
			dw.failStalled()
		}
	}
}

// dispatchScheduled hands every due draft campaign to the workflow engine
func (dw *DispatchWorker) dispatchScheduled(ctx context.Context) {
	var due []models.Campaign
	if err := dw.DB.Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?",
		models.CampaignStatusDraft, time.Now()).Find(&due).Error; err != nil {
		dw.Logger.Printf("Error fetching scheduled campaigns: %v", err)
		return
	}

	for i := range due {
		campaign := &due[i]
		if campaign.UniqueLeads == 0 {
			dw.Logger.Printf("Skipping scheduled campaign %d: no leads", campaign.ID)
			continue
		}
		if err := dw.Dispatcher.DispatchCampaign(ctx, campaign); err != nil {
			dw.Logger.Printf("Error dispatching scheduled campaign %d: %v", campaign.ID, err)
		}
	}
}

// failStalled marks sending campaigns as failed when the dispatch engine has
// not reported for longer than the stall timeout, and tells any subscriber.
func (dw *DispatchWorker) failStalled() {
	deadline := time.Now().Add(-dw.StallTimeout)

	var stalled []models.Campaign
	if err := dw.DB.Where("status = ? AND updated_at < ?",
		models.CampaignStatusSending, deadline).Find(&stalled).Error; err != nil {
		dw.Logger.Printf("Error fetching stalled campaigns: %v", err)
		return
	}

	for i := range stalled {
		campaign := &stalled[i]
		now := time.Now()
		if err := dw.DB.Model(campaign).Updates(map[string]interface{}{
			"status":       models.CampaignStatusFailed,
			"completed_at": now,
		}).Error; err != nil {
			dw.Logger.Printf("Error failing stalled campaign %d: %v", campaign.ID, err)
			continue
		}

		dw.Logger.Printf("Campaign %d marked as failed: no dispatch report since %v", campaign.ID, campaign.UpdatedAt)
		dw.Broker.Publish(stream.Event{
			Type:       stream.EventComplete,
			CampaignID: campaign.ID,
			Data: models.CampaignCompletion{
				CampaignID:   campaign.ID,
				Status:       models.CampaignStatusFailed,
				SuccessCount: campaign.SuccessCount,
				FailedCount:  campaign.FailedCount,
				TotalLeads:   campaign.TotalLeads,
				CompletedAt:  now,
			},
		})
	}
}
