// Package client is a Go client for the facilitator's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	x402x "github.com/x402x/facilitator"
	"github.com/x402x/facilitator/fees"
)

const (
	headerContentType   = "Content-Type"
	mimeApplicationJSON = "application/json"
)

// RejectionError is returned when the facilitator refuses a payment with a
// structured fee rejection (HTTP 402).
type RejectionError struct {
	Rejection fees.Rejection
}

func (e *RejectionError) Error() string {
	return "payment rejected: " + e.Rejection.Error
}

// Client talks to one facilitator instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
	headers    map[string]string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithHeader attaches a static header to every request, typically for auth.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// New creates a client for the facilitator at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify asks the facilitator to verify a payment without settling it.
func (c *Client) Verify(ctx context.Context, payload x402x.PaymentPayload, requirements x402x.PaymentRequirements) (*x402x.VerifyResponse, error) {
	var out x402x.VerifyResponse
	err := c.post(ctx, "/verify", x402x.VerifyRequest{
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Settle submits a payment for on-chain settlement and waits for the result.
func (c *Client) Settle(ctx context.Context, payload x402x.PaymentPayload, requirements x402x.PaymentRequirements) (*x402x.SettleResponse, error) {
	var out x402x.SettleResponse
	err := c.post(ctx, "/settle", x402x.SettleRequest{
		PaymentPayload:      payload,
		PaymentRequirements: requirements,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Supported lists the payment kinds the facilitator accepts.
func (c *Client) Supported(ctx context.Context) (*x402x.SupportedResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supported request: %w", err)
	}
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send supported request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to get supported payment kinds: %s", resp.Status)
	}

	var out x402x.SupportedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode supported response: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(headerContentType, mimeApplicationJSON)
	c.applyHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s request: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusPaymentRequired {
		var rejection fees.Rejection
		if err := json.NewDecoder(resp.Body).Decode(&rejection); err != nil {
			return fmt.Errorf("failed to decode rejection: %w", err)
		}
		return &RejectionError{Rejection: rejection}
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s failed: %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) applyHeaders(req *http.Request) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
}
