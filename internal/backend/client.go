package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"diuacm-web/config"
	"diuacm-web/internal/metrics"
)

// ErrNotFound is returned when the backend answers 404 for a detail read.
var ErrNotFound = errors.New("backend: not found")

// HTTPError is a non-2xx answer from the backend.
type HTTPError struct {
	Status  int
	Message string
	Errors  map[string][]string
	Body    []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend request failed: %s", e.Text())
}

// ServerMessage is the "message" field of the response body, if any.
func (e *HTTPError) ServerMessage() string {
	return e.Message
}

// Text is the message to show a user: the server's own words when it sent
// some, otherwise the status line.
func (e *HTTPError) Text() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// FieldError returns the first validation message for field.
func (e *HTTPError) FieldError(field string) string {
	if msgs := e.Errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func newHTTPError(status int, body []byte) *HTTPError {
	herr := &HTTPError{Status: status, Body: body}
	var payload struct {
		Message string              `json:"message"`
		Errors  map[string][]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		herr.Message = payload.Message
		herr.Errors = payload.Errors
	}
	return herr
}

// Client talks to the community platform's REST backend. GET responses are
// kept in a tagged cache until their TTL runs out or a tag is revalidated.
type Client struct {
	baseURL *url.URL
	client  *http.Client
	cache   *cache.Cache
	ttl     time.Duration

	mu   sync.Mutex
	tags map[string]map[string]struct{}
	// gens counts revalidations per tag. A read started before a
	// revalidation of one of its tags must not be cached.
	gens map[string]uint64
}

// NewClient creates a backend client from configuration.
func NewClient(cfg *config.BackendConfig) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend base url %q: %w", cfg.BaseURL, err)
	}

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Backend client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	c := &Client{
		baseURL: base,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		ttl:  cfg.Revalidate,
		tags: make(map[string]map[string]struct{}),
		gens: make(map[string]uint64),
	}
	if c.ttl > 0 {
		c.cache = cache.New(c.ttl, 2*c.ttl)
		c.cache.OnEvicted(func(key string, _ interface{}) { c.untag(key) })
	}
	return c, nil
}

// URL resolves path against the backend base URL, skipping empty params.
func (c *Client) URL(path string, params map[string]string) string {
	u := c.baseURL.ResolveReference(&url.URL{Path: path})
	if len(params) > 0 {
		q := u.Query()
		for k, v := range params {
			if v != "" {
				q.Set(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Revalidate drops every cached response carrying one of tags.
func (c *Client) Revalidate(tags ...string) {
	if c.cache == nil {
		return
	}
	var keys []string
	c.mu.Lock()
	for _, tag := range tags {
		c.gens[tag]++
		for key := range c.tags[tag] {
			keys = append(keys, key)
		}
		delete(c.tags, tag)
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.cache.Delete(key)
	}
}

func (c *Client) generation(tags []string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n uint64
	for _, tag := range tags {
		n += c.gens[tag]
	}
	return n
}

// store caches body under key unless one of tags was revalidated after gen
// was read. It reports whether the body was cached.
func (c *Client) store(key string, body []byte, tags []string, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	var n uint64
	for _, tag := range tags {
		n += c.gens[tag]
	}
	if n != gen {
		return false
	}
	c.cache.Set(key, body, c.ttl)
	for _, tag := range tags {
		set, ok := c.tags[tag]
		if !ok {
			set = make(map[string]struct{})
			c.tags[tag] = set
		}
		set[key] = struct{}{}
	}
	return true
}

func (c *Client) untag(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for tag, set := range c.tags {
		delete(set, key)
		if len(set) == 0 {
			delete(c.tags, tag)
		}
	}
}

// request describes a single call to the backend.
type request struct {
	endpoint    string
	method      string
	url         string
	token       string
	body        io.Reader
	contentType string
}

// send performs the request and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, r.body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(r.endpoint, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", r.method, r.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.BackendRequests.WithLabelValues(r.endpoint, "error").Inc()
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.BackendRequests.WithLabelValues(r.endpoint, fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
		return nil, newHTTPError(resp.StatusCode, body)
	}
	metrics.BackendRequests.WithLabelValues(r.endpoint, "ok").Inc()
	return body, nil
}

// getJSON reads u through the cache and decodes it into out.
func (c *Client) getJSON(ctx context.Context, endpoint, u string, tags []string, out any) error {
	var gen uint64
	if c.cache != nil {
		if raw, found := c.cache.Get(u); found {
			metrics.BackendCacheHits.Inc()
			return json.Unmarshal(raw.([]byte), out)
		}
		gen = c.generation(tags)
	}

	body, err := c.send(ctx, request{endpoint: endpoint, method: http.MethodGet, url: u})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", endpoint, err)
	}

	if c.cache != nil && !c.store(u, body, tags, gen) {
		log.Printf("Not caching %s: revalidated while in flight", endpoint)
	}
	return nil
}

// sendJSON posts a JSON body and decodes the answer into out when out is non-nil.
func (c *Client) sendJSON(ctx context.Context, endpoint, method, u, token string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request payload: %w", err)
		}
		body = bytes.NewReader(payload)
		contentType = "application/json"
	}

	raw, err := c.send(ctx, request{
		endpoint:    endpoint,
		method:      method,
		url:         u,
		token:       token,
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return err
	}
	if out == nil || len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", endpoint, err)
	}
	return nil
}
