// Package remote implements [dataops.Agent] against the HTTP agent API
// served by package chi, so a UI can run apart from the agent backend.
package remote

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/fwojciec/dataops"
	dataopsjson "github.com/fwojciec/dataops/json"
)

var _ dataops.Agent = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client. The default has no timeout since
// query streams stay open while consent is pending.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// Client talks to a remote agent backend.
type Client struct {
	baseURL string
	hc      *http.Client
}

// New creates a Client for the backend at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("remote: invalid agent url %q: %w", baseURL, dataops.ErrConfig)
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateSession implements [dataops.Agent].
func (c *Client) CreateSession(ctx context.Context, userID string) (dataops.Session, error) {
	resp, err := c.post(ctx, "/api/sessions", map[string]any{"user_id": userID})
	if err != nil {
		return dataops.Session{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return dataops.Session{}, statusError("create session", resp)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return dataops.Session{}, fmt.Errorf("remote: create session: %w", err)
	}
	sess, err := dataopsjson.UnmarshalSession(data)
	if err != nil {
		return dataops.Session{}, fmt.Errorf("remote: create session: %w", err)
	}
	return sess, nil
}

// StreamQuery implements [dataops.Agent]. It reads the server-sent event
// stream until "done" or "error".
func (c *Client) StreamQuery(ctx context.Context, req dataops.QueryRequest, onEvent func(dataops.Event)) error {
	if err := req.Validate(); err != nil {
		return err
	}
	path := "/api/sessions/" + url.PathEscape(req.SessionID) + "/query"
	resp, err := c.post(ctx, path, map[string]any{"user_id": req.UserID, "message": req.Message})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return statusError("query", resp)
	}

	done := false
	err = readEvents(resp.Body, func(name string, data []byte) error {
		switch name {
		case "event":
			e, err := dataopsjson.UnmarshalEvent(data)
			if err != nil {
				return err
			}
			onEvent(e)
		case "error":
			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(data, &body); err != nil || body.Error == "" {
				return errors.New("agent reported an error")
			}
			return errors.New(body.Error)
		case "done":
			done = true
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("remote: query: %w", err)
	}
	if !done {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("remote: query: stream ended before completion: %w", io.ErrUnexpectedEOF)
	}
	return nil
}

// Consent implements [dataops.Agent].
func (c *Client) Consent(ctx context.Context, sessionID, invocationID string, approve bool) error {
	path := "/api/sessions/" + url.PathEscape(sessionID) + "/consent"
	resp, err := c.post(ctx, path, map[string]any{"invocation_id": invocationID, "approve": approve})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("consent", resp)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("remote: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("remote: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s: %w", path, err)
	}
	return resp, nil
}

// statusError maps an unexpected response to an error, keeping the
// sentinel for statuses the API documents.
func statusError(op string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &body) == nil && body.Error != "" {
		msg = body.Error
	}
	var sentinel error
	switch resp.StatusCode {
	case http.StatusBadRequest:
		sentinel = dataops.ErrValidation
	case http.StatusNotFound:
		sentinel = dataops.ErrSessionNotFound
	case http.StatusConflict:
		sentinel = dataops.ErrNoPendingConsent
	}
	if sentinel != nil {
		return fmt.Errorf("remote: %s: %s: %w", op, msg, sentinel)
	}
	return fmt.Errorf("remote: %s failed: status=%d body=%s", op, resp.StatusCode, msg)
}

// readEvents parses a server-sent event stream, calling fn once per
// dispatched event. Returning an error from fn stops reading.
func readEvents(r io.Reader, fn func(name string, data []byte) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	name := ""
	var data [][]byte
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			if len(data) > 0 {
				if name == "" {
					name = "message"
				}
				if err := fn(name, bytes.Join(data, []byte("\n"))); err != nil {
					return err
				}
			}
			name, data = "", nil
			continue
		}
		if line[0] == ':' {
			continue
		}
		field, value, _ := bytes.Cut(line, []byte(":"))
		value = bytes.TrimPrefix(value, []byte(" "))
		switch string(field) {
		case "event":
			name = string(value)
		case "data":
			data = append(data, bytes.Clone(value))
		}
	}
	return sc.Err()
}
