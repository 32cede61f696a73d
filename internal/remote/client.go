// Package remote implements the attestation service boundary over HTTP:
// work submission for the flush engine and record/approval reads for the
// merge view.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gardenlog/internal/config"
	"gardenlog/internal/queue"
	"gardenlog/internal/work"
)

const userAgent = "gardenlog/0.1.0"

// Client talks to the attestation submission and indexing service.
type Client struct {
	baseURL  string
	apiToken string
	client   *http.Client
}

// NewClient builds a client from configuration. A nil client is returned
// when no base URL is configured; callers treat that as fully offline.
func NewClient(cfg *config.Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.Remote.BaseURL), "/")
	if baseURL == "" {
		return nil
	}

	timeout := time.Duration(cfg.Remote.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL:  baseURL,
		apiToken: cfg.Remote.APIToken,
		client:   &http.Client{Timeout: timeout},
	}
}

type submitRequest struct {
	ClientWorkID string          `json:"client_work_id"`
	OwnerAddress string          `json:"owner_address"`
	Kind         string          `json:"kind"`
	Payload      json.RawMessage `json:"payload"`
	CapturedAt   time.Time       `json:"captured_at"`
}

type submitResponse struct {
	RemoteID string `json:"remote_id"`
}

// SubmitWork submits one queued job. The server deduplicates on
// client_work_id, so resubmitting after a crash is safe.
func (c *Client) SubmitWork(ctx context.Context, job *queue.Job) (string, error) {
	body := submitRequest{
		ClientWorkID: job.ClientWorkID,
		OwnerAddress: job.OwnerAddress,
		Kind:         string(job.Kind),
		Payload:      job.Payload,
		CapturedAt:   job.CreatedAt,
	}

	var response submitResponse
	if err := c.postJSON(ctx, "/v1/work", body, &response); err != nil {
		return "", err
	}
	return response.RemoteID, nil
}

type remoteRecordWire struct {
	ID            string            `json:"id"`
	OwnerAddress  string            `json:"owner_address"`
	GardenAddress string            `json:"garden_address"`
	ActionUID     int64             `json:"action_uid"`
	CreatedAt     time.Time         `json:"created_at"`
	Media         []string          `json:"media,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// FetchRemoteRecords lists attestations for one owner scope.
func (c *Client) FetchRemoteRecords(ctx context.Context, scopeID string) ([]work.RemoteRecord, error) {
	var wire []remoteRecordWire
	if err := c.getJSON(ctx, "/v1/work?owner="+url.QueryEscape(scopeID), &wire); err != nil {
		return nil, err
	}
	records := make([]work.RemoteRecord, 0, len(wire))
	for _, record := range wire {
		records = append(records, work.RemoteRecord{
			ID:            record.ID,
			OwnerAddress:  record.OwnerAddress,
			GardenAddress: record.GardenAddress,
			ActionUID:     record.ActionUID,
			CreatedAt:     record.CreatedAt,
			Media:         record.Media,
			Metadata:      record.Metadata,
		})
	}
	return records, nil
}

type approvalWire struct {
	RecordID string `json:"record_id"`
	Approved bool   `json:"approved"`
}

// FetchApprovals lists approval decisions for one owner scope.
func (c *Client) FetchApprovals(ctx context.Context, scopeID string) ([]work.Approval, error) {
	var wire []approvalWire
	if err := c.getJSON(ctx, "/v1/approvals?owner="+url.QueryEscape(scopeID), &wire); err != nil {
		return nil, err
	}
	approvals := make([]work.Approval, 0, len(wire))
	for _, approval := range wire {
		approvals = append(approvals, work.Approval{RecordID: approval.RecordID, Approved: approval.Approved})
	}
	return approvals, nil
}

func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.decorate(req)

	return c.do(req, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	c.decorate(req)

	return c.do(req, out)
}

func (c *Client) decorate(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("remote returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
