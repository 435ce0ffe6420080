package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/five82/songbook/internal/docstore"
)

const (
	// DefaultAddr matches the server's default bind.
	DefaultAddr      = "127.0.0.1:7488"
	defaultUserAgent = "songbook/0.1"
	requestTimeout   = 5 * time.Second
	defaultWait      = 25 * time.Second
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Path    string
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api %s returned status %d: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("api %s returned status %d", e.Path, e.Code)
}

// Client talks to the songbook HTTP API.
type Client struct {
	baseURL      *url.URL
	http         *http.Client
	userAgent    string
	wait         time.Duration
	pollInterval time.Duration
	maxFailures  int
}

var _ docstore.Store = (*Client)(nil)

// NewClient builds a Client for addr, a host:port or URL. pollInterval is
// the base retry delay for watches; zero selects the default.
func NewClient(addr string, pollInterval time.Duration) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &Client{
		baseURL:      base,
		http:         &http.Client{},
		userAgent:    defaultUserAgent,
		wait:         defaultWait,
		pollInterval: pollInterval,
		maxFailures:  defaultMaxFailures,
	}, nil
}

// Health checks that the server is reachable.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var payload HealthResponse
	if err := c.do(ctx, http.MethodGet, &url.URL{Path: "/api/health"}, nil, &payload); err != nil {
		return HealthResponse{}, err
	}
	return payload, nil
}

// FetchDocuments returns the current snapshot. When after is non-zero and
// wait positive, the server may hold the request until the version moves past
// after.
func (c *Client) FetchDocuments(ctx context.Context, collection string, after uint64, wait time.Duration) (DocumentsResponse, error) {
	values := url.Values{}
	if after > 0 {
		values.Set("after", strconv.FormatUint(after, 10))
	}
	if wait > 0 {
		values.Set("wait_ms", strconv.FormatInt(wait.Milliseconds(), 10))
	}
	rel := &url.URL{Path: documentsPath(collection), RawQuery: values.Encode()}

	var payload DocumentsResponse
	if err := c.do(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return DocumentsResponse{}, err
	}
	if payload.Documents == nil {
		payload.Documents = []docstore.Document{}
	}
	return payload, nil
}

// Add creates a document.
func (c *Client) Add(ctx context.Context, collection string, fields map[string]string) (string, error) {
	var payload AddResponse
	rel := &url.URL{Path: documentsPath(collection)}
	if err := c.do(ctx, http.MethodPost, rel, FieldsRequest{Fields: fields}, &payload); err != nil {
		return "", err
	}
	if payload.Key == "" {
		return "", errors.New("server returned empty key")
	}
	return payload.Key, nil
}

// Update merges fields into a document.
func (c *Client) Update(ctx context.Context, collection, key string, fields map[string]string) error {
	rel := &url.URL{Path: documentPath(collection, key)}
	err := c.do(ctx, http.MethodPut, rel, FieldsRequest{Fields: fields}, nil)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return docstore.ErrNotFound
	}
	return err
}

// Delete removes a document.
func (c *Client) Delete(ctx context.Context, collection, key string) error {
	rel := &url.URL{Path: documentPath(collection, key)}
	return c.do(ctx, http.MethodDelete, rel, nil, nil)
}

func documentsPath(collection string) string {
	return "/api/collections/" + url.PathEscape(collection) + "/documents"
}

func documentPath(collection, key string) string {
	return documentsPath(collection) + "/" + url.PathEscape(key)
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	timeout := requestTimeout
	if ms := rel.Query().Get("wait_ms"); ms != "" {
		if n, err := strconv.Atoi(ms); err == nil {
			timeout += time.Duration(n) * time.Millisecond
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		se := &StatusError{Path: rel.Path, Code: resp.StatusCode}
		var payload ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&payload) == nil {
			se.Message = payload.Error
		}
		return se
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func parseBaseURL(addr string) (*url.URL, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		trimmed = DefaultAddr
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", addr, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
