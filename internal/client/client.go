// Package client talks to the celltrack HTTP API: loading the records of
// a site and phase, and writing status fields back.
package client

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

	"github.com/ETAnderson/celltrack/internal/domain"
)

type Client struct {
	BaseURL string
	Token   string
	Actor   string // sent as X-Engineer; honoured by dev servers only
	HTTP    *http.Client
}

func New(baseURL string, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

// GetBySite loads every record of site and phase.
func (c *Client) GetBySite(ctx context.Context, site string, phase string) ([]domain.TestCaseRecord, error) {
	q := url.Values{"site": {site}, "phase": {phase}}

	var resp struct {
		Items []domain.TestCaseRecord `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/test-cases/by-site?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Items {
		resp.Items[i].ResolveKind()
	}
	return resp.Items, nil
}

// UpdateStatus writes a partial set of fields for one record.
func (c *Client) UpdateStatus(ctx context.Context, uniqueTestID string, upd domain.FieldUpdate) error {
	return c.statusWrite(ctx, http.MethodPatch, "/api/test-status/"+url.PathEscape(uniqueTestID), upd)
}

func (c *Client) UpdateNote(ctx context.Context, uniqueTestID string, note string) error {
	return c.statusWrite(ctx, http.MethodPut, "/api/test-status/"+url.PathEscape(uniqueTestID)+"/note",
		map[string]string{"note": note})
}

// Summary fetches the server-side hierarchy as raw JSON groups.
func (c *Client) Summary(ctx context.Context, site string, phase string, out any) error {
	q := url.Values{"site": {site}, "phase": {phase}}
	return c.do(ctx, http.MethodGet, "/api/summary?"+q.Encode(), nil, out)
}

func (c *Client) statusWrite(ctx context.Context, method string, path string, body any) error {
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{StatusCode: http.StatusOK, Message: resp.Message}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.Actor != "" {
		req.Header.Set("X-Engineer", c.Actor)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}

	res, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res.StatusCode, raw)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || (body.Error == "" && body.Message == "") {
		return &APIError{StatusCode: status, Message: strings.TrimSpace(string(raw))}
	}
	return &APIError{StatusCode: status, Code: body.Error, Message: body.Message}
}
