package controller

import (
	"github.com/gofiber/websocket/v2"

	"leadbaze/stream"
	"leadbaze/utils"
)

// HandleCampaignProgressWS mirrors the SSE stream over a websocket for
// clients that keep a socket open instead of an event stream.
func (cc *CampaignController) HandleCampaignProgressWS(c *websocket.Conn) {
	defer c.Close()

	campaignID := utils.ParseUint(c.Params("id"))
	if campaignID == 0 {
		return
	}

	events, cancel := cc.Broker.Subscribe(campaignID)
	defer cancel()

	// Drain reads so close frames are noticed; cancel unblocks the write loop
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for ev := range events {
		if err := c.WriteJSON(ev); err != nil {
			return
		}
		if ev.Type == stream.EventComplete {
			return
		}
	}
}
