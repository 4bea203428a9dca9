package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/tidwall/gjson"
)

const connectionStateTTL = 30 * time.Second

// GatewayClient is a thin wrapper over the WhatsApp gateway HTTP API
// (instance creation, QR retrieval, connection state). Connection state is
// cached briefly because the UI polls it aggressively while the QR is shown.
type GatewayClient struct {
	BaseURL string
	Logger  *log.Logger

	apiKey     string
	httpClient *http.Client
	states     *cache.Cache
}

func NewGatewayClient(baseURL, apiKey string, logger *log.Logger) *GatewayClient {
	return &GatewayClient{
		BaseURL:    baseURL,
		Logger:     logger,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		states:     cache.New(connectionStateTTL, time.Minute),
	}
}

// CreateInstance registers a new gateway instance and returns its id
func (g *GatewayClient) CreateInstance(ctx context.Context, instanceName string) (string, error) {
	body, err := json.Marshal(map[string]string{"instanceName": instanceName})
	if err != nil {
		return "", err
	}

	raw, err := g.do(ctx, http.MethodPost, "/instance/create", body)
	if err != nil {
		return "", err
	}

	instanceID := gjson.GetBytes(raw, "instance.instanceId").String()
	if instanceID == "" {
		return "", fmt.Errorf("gateway response missing instance id")
	}
	return instanceID, nil
}

// FetchQRCode returns the current pairing QR code for the instance
func (g *GatewayClient) FetchQRCode(ctx context.Context, instanceName string) (string, error) {
	raw, err := g.do(ctx, http.MethodGet, "/instance/connect/"+instanceName, nil)
	if err != nil {
		return "", err
	}

	qr := gjson.GetBytes(raw, "base64")
	if !qr.Exists() {
		qr = gjson.GetBytes(raw, "qrcode.base64")
	}
	if qr.String() == "" {
		return "", fmt.Errorf("gateway did not return a QR code")
	}
	return qr.String(), nil
}

// ConnectionState returns the instance state (open, connecting, close),
// served from a short-lived cache between gateway round trips.
func (g *GatewayClient) ConnectionState(ctx context.Context, instanceName string) (string, error) {
	if state, ok := g.states.Get(instanceName); ok {
		return state.(string), nil
	}

	raw, err := g.do(ctx, http.MethodGet, "/instance/connectionState/"+instanceName, nil)
	if err != nil {
		return "", err
	}

	state := gjson.GetBytes(raw, "instance.state").String()
	if state == "" {
		state = gjson.GetBytes(raw, "state").String()
	}
	if state == "" {
		return "", fmt.Errorf("gateway response missing connection state")
	}

	g.states.Set(instanceName, state, connectionStateTTL)
	return state, nil
}

func (g *GatewayClient) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", g.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		g.Logger.Printf("Gateway %s %s returned %d", method, path, resp.StatusCode)
		return nil, fmt.Errorf("gateway returned %d", resp.StatusCode)
	}
	return raw, nil
}
