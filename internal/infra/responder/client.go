package responder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client calls the generative responder service used for messages no
// deterministic rule matched. The router treats every failure here as
// recoverable and serves its static fallback instead.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type respondRequest struct {
	Message string `json:"message"`
}

type respondResponse struct {
	Reply string `json:"reply"`
	// Label is the responder's best-effort intent guess. It is
	// presentation-only and deliberately ignored by the router.
	Label string `json:"label,omitempty"`
}

// Respond asks the responder for a free-text answer.
func (c *Client) Respond(ctx context.Context, message string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("responder not configured")
	}

	payload, err := json.Marshal(respondRequest{Message: message})
	if err != nil {
		return "", fmt.Errorf("failed to encode responder request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/respond", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build responder request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("responder call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("responder returned status %d", resp.StatusCode)
	}

	var out respondResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode responder response: %w", err)
	}
	return out.Reply, nil
}
