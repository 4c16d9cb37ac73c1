package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/mailtmpl/cli/internal/logging"
	"github.com/rs/zerolog"
)

// maxBodyInError bounds how much of a response body is echoed into error messages.
const maxBodyInError = 2048

// Response is a completed HTTP exchange with a 2xx status.
type Response struct {
	Status int
	Body   []byte
}

// HTTPError is returned for any response with status >= 400.
type HTTPError struct {
	Method string
	URL    string
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Status, truncate(e.Body))
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	return 0
}

// TransportError wraps a request that never produced an HTTP response.
type TransportError struct {
	Method string
	URL    string
	Hint   string
	Err    error
}

func (e *TransportError) Error() string {
	msg := fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
	if e.Hint != "" {
		msg += " (" + e.Hint + ")"
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Requester is the authenticated request surface the gateway needs.
type Requester interface {
	Get(ctx context.Context, path string) (*Response, error)
	Put(ctx context.Context, path string, body any) (*Response, error)
	Patch(ctx context.Context, path string, body any) (*Response, error)
	URL(path string) string
}

// Client issues JSON requests against the management API of one tenant.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a client rooted at baseURL. httpClient is expected to
// carry authentication, see auth.NewHTTPClient.
func NewClient(baseURL string, httpClient *http.Client, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// URL resolves path against the client's base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + path
}

// Get issues a GET request.
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Response, error) {
	url := c.URL(path)

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str(logging.KeyMethod, method).Str(logging.KeyURL, url).Msg("request")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Method: method, URL: url, Hint: connectivityHint(err, c.baseURL), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response of %s %s: %w", method, url, err)
	}

	c.logger.Debug().
		Str(logging.KeyMethod, method).
		Str(logging.KeyURL, url).
		Int(logging.KeyStatus, resp.StatusCode).
		Int("bytes", len(respBody)).
		Msg("response")

	if resp.StatusCode >= 400 {
		return nil, &HTTPError{Method: method, URL: url, Status: resp.StatusCode, Body: string(respBody)}
	}

	return &Response{Status: resp.StatusCode, Body: respBody}, nil
}

// connectivityHint returns operator guidance when err looks like the host
// could not be reached at all.
func connectivityHint(err error, baseURL string) string {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Sprintf("could not resolve host; check ENDPOINT (%s)", baseURL)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("request timed out; check network access to %s or raise TIMEOUT", baseURL)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Sprintf("could not connect; check that %s is reachable", baseURL)
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxBodyInError {
		return s
	}
	return s[:maxBodyInError] + "...(truncated)"
}
