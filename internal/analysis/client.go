package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/snarg/contentgen/internal/transcript"
)

// Client calls the content-generation backend's /analyze endpoint.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// Request is one generation call.
type Request struct {
	Input transcript.Input
	Keys  []Key
}

// NewClient creates a new analysis HTTP client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Analyze uploads the transcript and requested output keys and returns the
// backend's output object. Every failure is returned as *APIError.
func (c *Client) Analyze(ctx context.Context, req Request) (*Output, error) {
	body, contentType, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &APIError{
			Detail:  "Network error. Please check your connection and try again. (" + err.Error() + ")",
			Network: true,
		}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{Detail: "read response: " + err.Error(), Status: resp.StatusCode, Network: true}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errorFromResponse(resp, data)
	}

	var envelope struct {
		Output json.RawMessage `json:"output"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil || isNullJSON(envelope.Output) {
		return nil, &APIError{Detail: "Invalid response format from server", Status: resp.StatusCode}
	}

	out, err := DecodeOutput(envelope.Output)
	if err != nil {
		return nil, &APIError{Detail: "Invalid response format from server", Status: resp.StatusCode}
	}
	return out, nil
}

// Health reports whether the backend answers GET /health with a 2xx.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}
	return nil
}

func encodeRequest(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, p := range req.Input.Parts() {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="transcript_file"; filename="%s"`, escapeQuotes(p.FileName)))
		h.Set("Content-Type", p.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(p.Data); err != nil {
			return nil, "", fmt.Errorf("copy transcript data: %w", err)
		}
	}

	keys := req.Keys
	if keys == nil {
		keys = []Key{}
	}
	selected, err := json.Marshal(keys)
	if err != nil {
		return nil, "", fmt.Errorf("encode selected outputs: %w", err)
	}
	if err := w.WriteField("selected_outputs", string(selected)); err != nil {
		return nil, "", fmt.Errorf("write selected outputs: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// errorFromResponse prefers the JSON detail, then message, then the status line.
func errorFromResponse(resp *http.Response, body []byte) *APIError {
	statusText := http.StatusText(resp.StatusCode)
	apiErr := &APIError{Status: resp.StatusCode, StatusText: statusText}

	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if d := detailString(payload.Detail); d != "" {
			apiErr.Detail = d
			return apiErr
		}
		if payload.Message != "" {
			apiErr.Detail = payload.Message
			return apiErr
		}
	}

	if statusText == "" {
		statusText = "Unknown error"
	}
	apiErr.Detail = fmt.Sprintf("HTTP %d: %s", resp.StatusCode, statusText)
	return apiErr
}

// detailString flattens FastAPI-style detail values, which may be a string or
// a list of validation errors.
func detailString(raw json.RawMessage) string {
	if isNullJSON(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		var msgs []string
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(raw)
}

func isNullJSON(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }
