package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"Sahayak/internal/session"
)

// DefaultTimeout bounds one round trip; processing endpoints sit behind
// OCR and LLM calls and are slow.
const DefaultTimeout = 120 * time.Second

const maxBodyBytes = 32 << 20

// Response is a successful (2xx) backend answer.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type requestOptions struct {
	rawBody     []byte
	contentType string
	raw         bool
	noAuth      bool
	header      http.Header
}

// RequestOption tweaks a single Send call.
type RequestOption func(*requestOptions)

// WithRawBody sends data verbatim instead of JSON-encoding the body argument.
func WithRawBody(contentType string, data []byte) RequestOption {
	return func(o *requestOptions) {
		o.raw = true
		o.rawBody = data
		o.contentType = contentType
	}
}

// WithoutAuth suppresses the bearer header, e.g. for pre-signed URLs.
func WithoutAuth() RequestOption {
	return func(o *requestOptions) {
		o.noAuth = true
	}
}

// WithHeader adds a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		if o.header == nil {
			o.header = http.Header{}
		}
		o.header.Set(key, value)
	}
}

// Client talks to one named backend.
type Client struct {
	name    string
	baseURL string
	timeout time.Duration
	session *session.Session
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client for baseURL. A nil httpClient gets one with the
// given timeout; timeout <= 0 means DefaultTimeout.
func NewClient(name, baseURL string, timeout time.Duration, sess *session.Session, httpClient *http.Client, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		session: sess,
		http:    httpClient,
		logger:  logger,
	}
}

// Name identifies the backend inside the registry.
func (c *Client) Name() string {
	return c.name
}

// Send performs one request. body is JSON-encoded unless WithRawBody is given;
// nil means no body. Non-2xx answers come back as errors, never as Response.
func (c *Client) Send(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	target := c.resolve(path)
	reqID := uuid.NewString()
	start := time.Now()

	var (
		reader      io.Reader
		contentType string
		size        int
	)
	switch {
	case o.raw:
		reader = bytes.NewReader(o.rawBody)
		contentType = o.contentType
		size = len(o.rawBody)
	case body != nil:
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
		size = len(encoded)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	for k, vs := range o.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if !o.noAuth {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	c.logger.Debug("transport.request",
		"req_id", reqID,
		"backend", c.name,
		"method", method,
		"url", target,
		"content_length", size,
	)

	resp, err := c.http.Do(req)
	if err != nil {
		elapsed := time.Since(start)
		terr := &TransportError{Method: method, URL: target, Err: err}
		if isTimeout(err) {
			terr.Kind = ErrTimeout
		}
		c.logger.Warn("transport.send_error",
			"req_id", reqID,
			"backend", c.name,
			"error", err,
			"timeout", terr.Kind != nil,
			"elapsed_ms", elapsed.Milliseconds(),
		)
		return nil, terr
	}
	defer func(b io.ReadCloser) {
		if cErr := b.Close(); cErr != nil {
			c.logger.Warn("transport.body_close_error", "req_id", reqID, "error", cErr)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		terr := &TransportError{Method: method, URL: target, Err: fmt.Errorf("read body: %w", err)}
		if isTimeout(err) {
			terr.Kind = ErrTimeout
		}
		return nil, terr
	}

	c.logger.Debug("transport.response",
		"req_id", reqID,
		"backend", c.name,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.session.Clear() {
			c.logger.Warn("transport.session_cleared", "req_id", reqID, "backend", c.name)
		}
		return nil, &TransportError{Method: method, URL: target, Kind: ErrAuthExpired}
	case resp.StatusCode/100 != 2:
		return nil, &BackendError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, resp.Header.Get("Content-Type"), raw),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: raw}, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
