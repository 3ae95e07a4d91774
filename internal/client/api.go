package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"

	"github.com/sekia-ai/edbridge/pkg/protocol"
)

// DaemonAPI reads the edbridged control API. Implemented by APIClient;
// tests provide fakes.
type DaemonAPI interface {
	GetStatus(ctx context.Context) (*protocol.StatusResponse, error)
	GetCommands(ctx context.Context) (*protocol.CommandsResponse, error)
	GetSnippets(ctx context.Context) (*protocol.SnippetsResponse, error)
	ReloadSnippets(ctx context.Context) error
}

// APIClient talks to edbridged over its Unix socket HTTP API.
type APIClient struct {
	client *http.Client
}

// NewAPIClient creates an APIClient for the daemon socket.
func NewAPIClient(socketPath string) *APIClient {
	return &APIClient{
		client: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return (&net.Dialer{}).DialContext(ctx, "unix", socketPath)
				},
			},
		},
	}
}

func (c *APIClient) GetStatus(ctx context.Context) (*protocol.StatusResponse, error) {
	var resp protocol.StatusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetCommands(ctx context.Context) (*protocol.CommandsResponse, error) {
	var resp protocol.CommandsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/commands", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) GetSnippets(ctx context.Context) (*protocol.SnippetsResponse, error) {
	var resp protocol.SnippetsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/snippets", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *APIClient) ReloadSnippets(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/v1/snippets/reload", nil)
}

func (c *APIClient) do(ctx context.Context, method, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, method, "http://edbridged"+path, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", path, resp.StatusCode)
	}
	if dst == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}
