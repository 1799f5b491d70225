package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to Ollama's native API.
type Client struct {
	baseURL string
	client  *http.Client
}

// New creates a client for the Ollama server at baseURL.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &Client{
		baseURL: baseURL,
		client: &http.Client{
			// Kept generous because Ollama may load the model on first
			// request, but bounded to avoid multi-minute hangs on
			// stalled connections.
			Timeout: 120 * time.Second,
		},
	}
}

// Generate sends a completion request and returns the response text.
// Streaming is always disabled so the response arrives as one object.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	req.Stream = false
	data, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama generate request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama generate error %d: %s", resp.StatusCode, string(respBody))
	}

	var genResp generateResponse
	if err := json.Unmarshal(respBody, &genResp); err != nil {
		return "", fmt.Errorf("decoding ollama response: %w", err)
	}
	return genResp.Response, nil
}

// Models lists the model names installed on the Ollama server.
func (c *Client) Models(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama tags request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading ollama response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama tags error %d: %s", resp.StatusCode, string(respBody))
	}

	var tags tagsResponse
	if err := json.Unmarshal(respBody, &tags); err != nil {
		return nil, fmt.Errorf("decoding ollama tags response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// ResolveModel checks that want is installed on the server. If it is
// missing but other models are installed, the first installed model is
// returned as a substitute. If the server cannot be reached, want is
// returned along with the probe error so callers can decide to proceed.
func (c *Client) ResolveModel(ctx context.Context, want string) (string, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return want, err
	}
	for _, m := range models {
		if m == want {
			return want, nil
		}
	}
	if len(models) > 0 {
		return models[0], nil
	}
	return want, nil
}
