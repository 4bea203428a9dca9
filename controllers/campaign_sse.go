package controller

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"leadbaze/config"
	"leadbaze/models"
	"leadbaze/stream"
	"leadbaze/utils"
)

// StreamCampaignStatus is the SSE endpoint: it emits named progress/complete
// events for one campaign plus heartbeats so proxies keep the connection open.
// The stream ends after the complete event or when the client goes away.
func (cc *CampaignController) StreamCampaignStatus(c *fiber.Ctx) error {
	campaignID := utils.ParseUint(c.Params("id"))
	if campaignID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid campaign id",
		})
	}

	var campaign models.Campaign
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	heartbeat := time.Duration(config.AppConfig.StreamHeartbeatSecond) * time.Second
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}

	// Subscribe before the stream writer starts so no event is missed between
	// handler return and first write
	events, cancel := cc.Broker.Subscribe(campaignID)

	// Re-read after subscribing: a completion published between the first
	// read and Subscribe would otherwise be lost and the stream would only
	// ever heartbeat
	if err := cc.DB.First(&campaign, campaignID).Error; err != nil {
		cancel()
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Campaign not found",
		})
	}
	alreadyDone := campaign.IsTerminal()

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()

		writeEvent(w, stream.EventConnected, fiber.Map{"campaign_id": campaignID})
		if err := w.Flush(); err != nil {
			return
		}

		// A terminal campaign gets its completion replayed immediately so a
		// late subscriber doesn't wait on a stream that will never move
		if alreadyDone {
			writeEvent(w, stream.EventComplete, models.CampaignCompletion{
				CampaignID:   campaign.ID,
				Status:       campaign.Status,
				SuccessCount: campaign.SuccessCount,
				FailedCount:  campaign.FailedCount,
				TotalLeads:   campaign.TotalLeads,
				CompletedAt:  derefTime(campaign.CompletedAt),
			})
			w.Flush()
			return
		}

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				writeEvent(w, ev.Type, ev.Data)
				if err := w.Flush(); err != nil {
					return
				}
				if ev.Type == stream.EventComplete {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": heartbeat\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func writeEvent(w *bufio.Writer, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
