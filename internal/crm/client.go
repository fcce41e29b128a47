package crm

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
)

// Client issues one HTTP request per operation against the CRM. No retries
// here: pacing between rows is the import driver's job, and retrying a
// create could double-write a lead.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP injects a custom http.Client, used by tests to stub the
// transport.
func NewClientWithHTTP(baseURL, token string, httpClient *http.Client) *Client {
	c := NewClient(baseURL, token)
	c.httpClient = httpClient
	return c
}

// SearchLeadsByEmail lists the leads whose contact matches the email.
func (c *Client) SearchLeadsByEmail(ctx context.Context, email string) ([]Lead, error) {
	var leads []Lead
	err := c.do(ctx, http.MethodGet, "/leads?search="+url.QueryEscape(email), nil, &leads)
	return leads, err
}

// ListLeadsCreatedAfter pages leads created after the given instant. The
// marketing sync worker drives its cursor with it; the CRM caps the page
// size, so callers repeat the call until it comes back empty.
func (c *Client) ListLeadsCreatedAfter(ctx context.Context, after time.Time) ([]Lead, error) {
	var leads []Lead
	err := c.do(ctx, http.MethodGet, "/leads?created_after="+url.QueryEscape(after.UTC().Format(time.RFC3339)), nil, &leads)
	return leads, err
}

func (c *Client) CreateLead(ctx context.Context, input CreateLeadInput) (Lead, error) {
	var lead Lead
	err := c.do(ctx, http.MethodPost, "/leads", input, &lead)
	return lead, err
}

func (c *Client) PatchLead(ctx context.Context, id string, patch LeadPatch) (Lead, error) {
	var lead Lead
	err := c.do(ctx, http.MethodPatch, "/leads/"+url.PathEscape(id), patch, &lead)
	return lead, err
}

func (c *Client) SearchTagsByName(ctx context.Context, name string) ([]Tag, error) {
	var tags []Tag
	err := c.do(ctx, http.MethodGet, "/tags?search="+url.QueryEscape(name), nil, &tags)
	return tags, err
}

func (c *Client) ListLeadDeals(ctx context.Context, leadID string) ([]Deal, error) {
	var deals []Deal
	err := c.do(ctx, http.MethodGet, "/leads/"+url.PathEscape(leadID)+"/businesses", nil, &deals)
	return deals, err
}

func (c *Client) CreateDeal(ctx context.Context, input CreateDealInput) (Deal, error) {
	var deal Deal
	err := c.do(ctx, http.MethodPost, "/businesses", input, &deal)
	return deal, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("crm: failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("crm: failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("crm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("crm: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyError(resp.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("crm: failed to decode response: %w", err)
	}
	return nil
}
