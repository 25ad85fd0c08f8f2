package fulfillment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"filing_compliance_bot/internal/app"
)

// Client submits filing jobs to the external fulfillment backend. The
// backend acknowledges completion or failure later through the
// fulfillment webhook.
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

type enqueueRequest struct {
	TransactionID string `json:"transaction_id"`
	RegNumber     string `json:"reg_number"`
	Obligation    string `json:"obligation"`
	Period        string `json:"period"`
	Urgent        bool   `json:"urgent"`
}

// Enqueue hands a paid transaction to the backend. Bounded by the client
// timeout; any error here moves the transaction to FAILED upstream.
func (c *Client) Enqueue(ctx context.Context, req app.FulfillmentRequest) error {
	payload, err := json.Marshal(enqueueRequest{
		TransactionID: req.TransactionID,
		RegNumber:     req.RegNumber,
		Obligation:    req.Obligation,
		Period:        req.Period,
		Urgent:        req.Urgent,
	})
	if err != nil {
		return fmt.Errorf("failed to encode fulfillment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build fulfillment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("fulfillment call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fulfillment backend returned status %d", resp.StatusCode)
	}
	return nil
}
