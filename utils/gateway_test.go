package utils

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayCreateInstance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/create", r.URL.Path)
		assert.Equal(t, "secret-key", r.Header.Get("apikey"))
		fmt.Fprint(w, `{"instance":{"instanceId":"abc-123","instanceName":"leadbaze-1-1"}}`)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "secret-key", log.New(io.Discard, "", 0))
	id, err := g.CreateInstance(context.Background(), "leadbaze-1-1")

	require.NoError(t, err)
	assert.Equal(t, "abc-123", id)
}

func TestGatewayCreateInstanceMissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"instance":{}}`)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "k", log.New(io.Discard, "", 0))
	_, err := g.CreateInstance(context.Background(), "x")
	assert.Error(t, err)
}

func TestGatewayFetchQRCodeFallbackShape(t *testing.T) {
	// Some gateway versions nest the QR under "qrcode"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/instance/connect/leadbaze-1-1", r.URL.Path)
		fmt.Fprint(w, `{"qrcode":{"base64":"data:image/png;base64,AAA"}}`)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "k", log.New(io.Discard, "", 0))
	qr, err := g.FetchQRCode(context.Background(), "leadbaze-1-1")

	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AAA", qr)
}

func TestGatewayConnectionStateIsCached(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"instance":{"state":"open"}}`)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "k", log.New(io.Discard, "", 0))

	state, err := g.ConnectionState(context.Background(), "inst")
	require.NoError(t, err)
	assert.Equal(t, "open", state)

	state, err = g.ConnectionState(context.Background(), "inst")
	require.NoError(t, err)
	assert.Equal(t, "open", state)

	assert.Equal(t, int32(1), calls.Load(), "second lookup must hit the cache")
}

func TestGatewayErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	g := NewGatewayClient(server.URL, "wrong", log.New(io.Discard, "", 0))
	_, err := g.ConnectionState(context.Background(), "inst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
