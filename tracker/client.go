// Package tracker is the client side of the campaign status API: a live SSE
// subscription with a polling fallback, so callers get one progress/completion
// abstraction regardless of transport.
package tracker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"leadbaze/models"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultPollMaxAttempts = 120
)

// CompletionReason distinguishes a completion the server reported from one we
// gave up waiting for. Exhausting the polling ceiling is NOT the same as the
// campaign finishing; callers can surface it as "outcome unknown".
type CompletionReason string

const (
	ReasonReported  CompletionReason = "reported"
	ReasonExhausted CompletionReason = "exhausted"
)

// CampaignStatus is the point-in-time snapshot served by GET campaign-status
type CampaignStatus struct {
	ID           uint      `json:"id"`
	Status       string    `json:"status"`
	SuccessCount int       `json:"success_count"`
	FailedCount  int       `json:"failed_count"`
	TotalLeads   int       `json:"total_leads"`
	Progress     float64   `json:"progress"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsTerminal reports whether the snapshot shows a finished campaign
func (s *CampaignStatus) IsTerminal() bool {
	return s.Status == models.CampaignStatusCompleted || s.Status == models.CampaignStatusFailed
}

// Completion is the terminal notification handed to callers
type Completion struct {
	Reason CompletionReason
	Status *CampaignStatus
}

// Client talks to the campaign status API. It holds at most one live stream
// at a time: opening a new one always closes the previous one first.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *log.Logger

	mu       sync.Mutex
	stopLive func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithAuthToken(token string) Option {
	return func(c *Client) { c.authToken = token }
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     log.New(os.Stdout, "TRACKER: ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCampaignTracking registers the campaign with the backend tracker.
// Re-registration is tolerated by the server.
func (c *Client) StartCampaignTracking(ctx context.Context, campaignID uint, totalLeads int) error {
	body, err := json.Marshal(map[string]interface{}{
		"campaign_id": campaignID,
		"total_leads": totalLeads,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/campaign-status/start", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("tracking registration returned %d", resp.StatusCode)
	}
	return nil
}

// GetCampaignStatus fetches the persisted status. Any failure, network or
// non-2xx, returns nil: callers treat unknown as "keep trying", not an error.
func (c *Client) GetCampaignStatus(ctx context.Context, campaignID uint) *CampaignStatus {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/campaign-status/%d", c.baseURL, campaignID), nil)
	if err != nil {
		c.logger.Printf("Status request build failed for campaign %d: %v", campaignID, err)
		return nil
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Printf("Status check failed for campaign %d: %v", campaignID, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Printf("Status check for campaign %d returned %d", campaignID, resp.StatusCode)
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	var envelope struct {
		Success  bool           `json:"success"`
		Campaign CampaignStatus `json:"campaign"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		c.logger.Printf("Status decode failed for campaign %d: %v", campaignID, err)
		return nil
	}
	if !envelope.Success {
		return nil
	}
	return &envelope.Campaign
}

// StartRealTimeUpdates opens the SSE stream for one campaign. Any previously
// open stream is closed first, so at most one live connection exists per
// client. The stream is not reopened on error; recovery belongs to whoever
// composed the polling fallback.
func (c *Client) StartRealTimeUpdates(
	campaignID uint,
	onProgress func(models.CampaignProgress),
	onComplete func(models.CampaignCompletion),
) (func(), error) {
	ctx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/v1/campaign-status/stream/%d", c.baseURL, campaignID), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream request returned %d", resp.StatusCode)
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			resp.Body.Close()
		})
	}

	c.mu.Lock()
	if c.stopLive != nil {
		c.stopLive()
	}
	c.stopLive = stop
	c.mu.Unlock()

	go func() {
		defer stop()
		err := c.consumeStream(resp.Body, campaignID, onProgress, onComplete)
		if err != nil && ctx.Err() == nil {
			c.logger.Printf("Stream for campaign %d ended: %v", campaignID, err)
		}
	}()

	return stop, nil
}

// consumeStream reads SSE frames until the stream closes or a complete event
// arrives.
func (c *Client) consumeStream(
	body io.Reader,
	campaignID uint,
	onProgress func(models.CampaignProgress),
	onComplete func(models.CampaignCompletion),
) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)

	var event string
	var data []byte

	for scanner.Scan() {
		line := scanner.Bytes()

		switch {
		case len(line) == 0:
			// Blank line terminates a frame
			if len(data) > 0 {
				if done := c.dispatchEvent(event, data, campaignID, onProgress, onComplete); done {
					return nil
				}
			}
			event = ""
			data = nil
		case bytes.HasPrefix(line, []byte(":")):
			// Comment/heartbeat
		case bytes.HasPrefix(line, []byte("event:")):
			event = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			data = append(data, bytes.TrimSpace(line[len("data:"):])...)
		}
	}
	return scanner.Err()
}

// dispatchEvent routes one frame to the right callback; returns true when the
// stream is done.
func (c *Client) dispatchEvent(
	event string,
	data []byte,
	campaignID uint,
	onProgress func(models.CampaignProgress),
	onComplete func(models.CampaignCompletion),
) bool {
	switch event {
	case "progress":
		var progress models.CampaignProgress
		if err := json.Unmarshal(data, &progress); err != nil {
			c.logger.Printf("Bad progress frame for campaign %d: %v", campaignID, err)
			return false
		}
		onProgress(progress)
		return false

	case "complete":
		var completion models.CampaignCompletion
		if err := json.Unmarshal(data, &completion); err != nil {
			c.logger.Printf("Bad completion frame for campaign %d: %v", campaignID, err)
			return false
		}
		onComplete(completion)
		return true

	case "connected":
		return false

	case "", "message":
		// Unnamed frames carry the tagged envelope
		var envelope struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil || envelope.Type == "" {
			c.logger.Printf("Unrecognized frame for campaign %d", campaignID)
			return false
		}
		return c.dispatchEvent(envelope.Type, envelope.Data, campaignID, onProgress, onComplete)

	default:
		c.logger.Printf("Ignoring unknown event %q for campaign %d", event, campaignID)
		return false
	}
}

// StartFallbackPolling checks the status endpoint on a timer. The first check
// happens immediately. Polling stops on a terminal status or after
// maxAttempts; both invoke onComplete exactly once, with the reason saying
// which one it was.
func (c *Client) StartFallbackPolling(
	campaignID uint,
	onStatus func(*CampaignStatus),
	onComplete func(Completion),
	interval time.Duration,
	maxAttempts int,
) func() {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultPollMaxAttempts
	}

	ctx, cancel := context.WithCancel(context.Background())

	var completeOnce sync.Once
	complete := func(completion Completion) {
		completeOnce.Do(func() { onComplete(completion) })
	}

	go func() {
		var lastStatus *CampaignStatus
		attempts := 0

		check := func() bool {
			attempts++
			status := c.GetCampaignStatus(ctx, campaignID)
			if status != nil {
				lastStatus = status
				if onStatus != nil {
					onStatus(status)
				}
				if status.IsTerminal() {
					complete(Completion{Reason: ReasonReported, Status: status})
					return true
				}
			}
			if attempts >= maxAttempts {
				c.logger.Printf("Polling ceiling reached for campaign %d after %d attempts", campaignID, attempts)
				complete(Completion{Reason: ReasonExhausted, Status: lastStatus})
				return true
			}
			return false
		}

		if check() {
			return
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if check() {
					return
				}
			}
		}
	}()

	var stopOnce sync.Once
	return func() {
		stopOnce.Do(cancel)
	}
}

// StartStatusTracking composes the two transports: it prefers the live
// stream and falls back to polling when the stream cannot be opened,
// translating polled snapshots into the same callback shapes.
func (c *Client) StartStatusTracking(
	campaignID uint,
	onProgress func(models.CampaignProgress),
	onComplete func(Completion),
) func() {
	stop, err := c.StartRealTimeUpdates(campaignID,
		onProgress,
		func(completion models.CampaignCompletion) {
			onComplete(Completion{
				Reason: ReasonReported,
				Status: &CampaignStatus{
					ID:           completion.CampaignID,
					Status:       completion.Status,
					SuccessCount: completion.SuccessCount,
					FailedCount:  completion.FailedCount,
					TotalLeads:   completion.TotalLeads,
					UpdatedAt:    completion.CompletedAt,
				},
			})
		},
	)
	if err == nil {
		return stop
	}

	c.logger.Printf("Live stream unavailable for campaign %d, falling back to polling: %v", campaignID, err)
	return c.StartFallbackPolling(campaignID,
		func(status *CampaignStatus) {
			onProgress(models.CampaignProgress{
				CampaignID:   status.ID,
				TotalLeads:   status.TotalLeads,
				SuccessCount: status.SuccessCount,
				FailedCount:  status.FailedCount,
				Percent:      status.Progress,
			})
		},
		onComplete,
		DefaultPollInterval,
		DefaultPollMaxAttempts,
	)
}

func (c *Client) authorize(req *http.Request) {
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
}
