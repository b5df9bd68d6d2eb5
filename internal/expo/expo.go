package expo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://exp.host/--/api/v2"

	// Gateway batch limits: at most 100 messages per send and 300
	// receipt ids per lookup.
	maxMessagesPerChunk   = 100
	maxReceiptIDsPerChunk = 300
)

// Client talks to the Expo push HTTP API.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsExpoPushToken validates the token format without calling the
// gateway. Tokens look like "ExponentPushToken[xxxxxxxx]".
func IsExpoPushToken(token string) bool {
	if !strings.HasSuffix(token, "]") {
		return false
	}
	var rest string
	switch {
	case strings.HasPrefix(token, "ExponentPushToken["):
		rest = token[len("ExponentPushToken[") : len(token)-1]
	case strings.HasPrefix(token, "ExpoPushToken["):
		rest = token[len("ExpoPushToken[") : len(token)-1]
	default:
		return false
	}
	return rest != ""
}

// Chunk partitions messages into gateway-size-limited batches.
func (c *Client) Chunk(messages []Message) [][]Message {
	var chunks [][]Message
	for len(messages) > 0 {
		n := maxMessagesPerChunk
		if len(messages) < n {
			n = len(messages)
		}
		chunks = append(chunks, messages[:n])
		messages = messages[n:]
	}
	return chunks
}

// ChunkReceiptIDs partitions receipt ids into gateway-size-limited batches.
func (c *Client) ChunkReceiptIDs(ids []string) [][]string {
	var chunks [][]string
	for len(ids) > 0 {
		n := maxReceiptIDsPerChunk
		if len(ids) < n {
			n = len(ids)
		}
		chunks = append(chunks, ids[:n])
		ids = ids[n:]
	}
	return chunks
}

type sendResponse struct {
	Data   []Ticket       `json:"data"`
	Errors []gatewayError `json:"errors,omitempty"`
}

type receiptsRequest struct {
	IDs []string `json:"ids"`
}

type receiptsResponse struct {
	Data   map[string]Receipt `json:"data"`
	Errors []gatewayError     `json:"errors,omitempty"`
}

type gatewayError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Send delivers one chunk of messages and returns one ticket per
// message, in order.
func (c *Client) Send(ctx context.Context, messages []Message) ([]Ticket, error) {
	var resp sendResponse
	if err := c.post(ctx, "/push/send", messages, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("push gateway rejected request: %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}
	if len(resp.Data) != len(messages) {
		return nil, fmt.Errorf("push gateway returned %d tickets for %d messages", len(resp.Data), len(messages))
	}
	return resp.Data, nil
}

// GetReceipts fetches delivery receipts for previously returned ticket
// ids. Receipts not yet available are simply absent from the result.
func (c *Client) GetReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	var resp receiptsResponse
	if err := c.post(ctx, "/push/getReceipts", receiptsRequest{IDs: ids}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("push gateway rejected request: %s: %s", resp.Errors[0].Code, resp.Errors[0].Message)
	}
	return resp.Data, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("push gateway returned status %d: %s", res.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
