package prompts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyPatch = errors.New("updated fields are required for PATCH")
	ErrCoreDelete = errors.New("the core system prompt cannot be deleted")
	ErrInvalidID  = errors.New("prompt id must not be negative")
)

const errNetworkHint = "Network error: please check that the backend server is running"

// APIError is a non-2xx answer or transport failure from the prompts API.
type APIError struct {
	Status  int
	Detail  string
	Network bool
}

func (e *APIError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("prompts API error (status %d): %s", e.Status, e.Detail)
	}
	return "prompts API error: " + e.Detail
}

// Client talks to the backend's /prompts resource.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a new prompts API client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// List returns every prompt, the core system prompt included.
func (c *Client) List(ctx context.Context) ([]Prompt, error) {
	var out []Prompt
	if err := c.do(ctx, http.MethodGet, "/prompts", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create adds a prompt. The returned prompt is nil when the backend answers
// without a record.
func (c *Client) Create(ctx context.Context, p NewPrompt) (*Prompt, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, ErrNameRequired
	}
	return c.write(ctx, http.MethodPost, "/prompts", p)
}

// Update patches prompt id. Id 0 is allowed so the core prompt can be edited.
func (c *Client) Update(ctx context.Context, id int, patch Patch) (*Prompt, error) {
	if id < 0 {
		return nil, ErrInvalidID
	}
	if patch.Empty() {
		return nil, ErrEmptyPatch
	}
	return c.write(ctx, http.MethodPatch, "/prompts/"+strconv.Itoa(id), patch)
}

// Delete removes prompt id. The core prompt cannot be deleted.
func (c *Client) Delete(ctx context.Context, id int) error {
	if id == CoreID {
		return ErrCoreDelete
	}
	if id < 0 {
		return ErrInvalidID
	}
	return c.do(ctx, http.MethodDelete, "/prompts/"+strconv.Itoa(id), nil, nil)
}

// Health reports whether the backend answers GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	setHeaders(req)
	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Detail: errNetworkHint + " (" + err.Error() + ")", Network: true}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{Status: resp.StatusCode, Detail: http.StatusText(resp.StatusCode)}
	}
	return nil
}

func (c *Client) write(ctx context.Context, method, endpoint string, body any) (*Prompt, error) {
	var raw json.RawMessage
	if err := c.do(ctx, method, endpoint, body, &raw); err != nil {
		return nil, err
	}
	return decodePrompt(raw)
}

// do sends one JSON request. A 204 or empty body leaves out untouched.
func (c *Client) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &APIError{Detail: errNetworkHint + " (" + err.Error() + ")", Network: true}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Status: resp.StatusCode, Detail: "read response: " + err.Error(), Network: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromBody(resp.StatusCode, data)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("ngrok-skip-browser-warning", "true")
}

func errorFromBody(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if d := detailText(payload.Detail); d != "" {
			e.Detail = d
			return e
		}
		if payload.Message != "" {
			e.Detail = payload.Message
			return e
		}
	}
	e.Detail = http.StatusText(status)
	if e.Detail == "" {
		e.Detail = fmt.Sprintf("API request failed with status: %d", status)
	}
	return e
}

// detailText accepts a plain string or a FastAPI validation list.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(items))
	for _, it := range items {
		if it.Msg != "" {
			msgs = append(msgs, it.Msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// decodePrompt returns nil for bodies that are not a prompt record, such as
// {"message": "Success"}.
func decodePrompt(raw json.RawMessage) (*Prompt, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}
	if _, ok := probe["prompt_id"]; !ok {
		return nil, nil
	}
	var p Prompt
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode prompt: %w", err)
	}
	return &p, nil
}
