// Package client is a Go client for the zkdrop node HTTP API.
package client

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

// DefaultTimeout bounds each request when no custom HTTP client is set.
const DefaultTimeout = 30 * time.Second

// Client talks to a zkdrop node.
type Client struct {
	baseURL string
	http    *http.Client
}

// Option configures client behavior.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.Timeout = d }
}

// New creates a client for the node at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Airdrop is an airdrop record as returned by the node.
type Airdrop struct {
	ID      uint64 `json:"id"`
	GroupID uint64 `json:"group_id"`
	Token   string `json:"token"`
	Manager string `json:"manager"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}

// CreateAirdropParams are the fields for a new airdrop.
type CreateAirdropParams struct {
	GroupID uint64 `json:"group_id"`
	Token   string `json:"token"`
	Manager string `json:"manager"`
	Holder  string `json:"holder"`
	Amount  string `json:"amount"`
}

// ClaimParams carry one claim attempt against an airdrop.
type ClaimParams struct {
	Root          string   `json:"root"`
	NullifierHash string   `json:"nullifier_hash"`
	Receiver      string   `json:"receiver"`
	Proof         []string `json:"proof"`
}

// ClaimReceipt is the settled outcome of a claim.
type ClaimReceipt struct {
	AirdropID     uint64 `json:"airdrop_id"`
	NullifierHash string `json:"nullifier_hash"`
	Receiver      string `json:"receiver"`
	Token         string `json:"token"`
	Amount        string `json:"amount"`
}

// Group describes a membership group and its current root.
type Group struct {
	GroupID uint64 `json:"group_id"`
	Root    string `json:"root"`
	Members uint64 `json:"members,omitempty"`
}

// APIError is a structured error response from the node.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Message)
}

// Health reports whether the node answers its health endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

// CreateAirdrop registers a new airdrop on the node.
func (c *Client) CreateAirdrop(ctx context.Context, params CreateAirdropParams) (*Airdrop, error) {
	var out Airdrop
	if err := c.do(ctx, http.MethodPost, "/v1/airdrops", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAirdrop fetches an airdrop record by id.
func (c *Client) GetAirdrop(ctx context.Context, id uint64) (*Airdrop, error) {
	var out Airdrop
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/airdrops/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Claim submits a claim against the airdrop and returns the receipt.
func (c *Client) Claim(ctx context.Context, airdropID uint64, params ClaimParams) (*ClaimReceipt, error) {
	var out ClaimReceipt
	path := fmt.Sprintf("/v1/airdrops/%d/claims", airdropID)
	if err := c.do(ctx, http.MethodPost, path, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateGroup creates a membership group with the given tree depth.
func (c *Client) CreateGroup(ctx context.Context, groupID uint64, depth int) (*Group, error) {
	var out Group
	body := map[string]any{"group_id": groupID, "depth": depth}
	if err := c.do(ctx, http.MethodPost, "/v1/groups", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetGroup fetches a group's current root and member count.
func (c *Client) GetGroup(ctx context.Context, groupID uint64) (*Group, error) {
	var out Group
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/groups/%d", groupID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddMember appends an identity commitment to the group and returns the
// new root.
func (c *Client) AddMember(ctx context.Context, groupID uint64, commitment string) (*Group, error) {
	var out Group
	path := fmt.Sprintf("/v1/groups/%d/members", groupID)
	body := map[string]string{"commitment": commitment}
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Code == "" {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    "unknown",
			Message: strings.TrimSpace(string(data)),
		}
	}
	return &APIError{
		Status:  resp.StatusCode,
		Code:    body.Error.Code,
		Message: body.Error.Message,
	}
}
