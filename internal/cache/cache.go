// Package cache provides a stale-while-revalidate http.RoundTripper for
// GET requests to the prediction API.
package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Header is set on responses served from the cache
const Header = "X-Cache"

type entry struct {
	status     int
	statusText string
	header     http.Header
	body       []byte
	stored     time.Time
}

func (e *entry) response(req *http.Request) *http.Response {
	header := e.header.Clone()
	header.Set(Header, "HIT")
	return &http.Response{
		Status:        e.statusText,
		StatusCode:    e.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(e.body)),
		ContentLength: int64(len(e.body)),
		Request:       req,
	}
}

// Stats counts cache activity since creation
type Stats struct {
	Hits          int64
	Misses        int64
	Revalidations int64
	Entries       int
}

// Transport serves cached GET responses for one origin immediately and
// refreshes them in the background. Entries older than the TTL are dropped.
type Transport struct {
	next   http.RoundTripper
	origin string
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time

	// revalidations outlive the caller's request but not this
	timeout time.Duration

	mu      sync.Mutex
	entries map[string]*entry
	closed  bool
	// gen bumps on Purge; fetches started before it are not stored
	gen uint64

	group singleflight.Group
	wg    sync.WaitGroup

	hits          atomic.Int64
	misses        atomic.Int64
	revalidations atomic.Int64
}

// Option configures a Transport
type Option func(*Transport)

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(t *Transport) { t.now = now }
}

// WithRevalidateTimeout bounds each background refresh
func WithRevalidateTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

// New wraps next. Only GET requests whose scheme and host match baseURL
// are cached.
func New(next http.RoundTripper, baseURL string, ttl time.Duration, opts ...Option) (*Transport, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", baseURL)
	}
	if next == nil {
		next = http.DefaultTransport
	}

	t := &Transport{
		next:    next,
		origin:  u.Scheme + "://" + u.Host,
		ttl:     ttl,
		logger:  zap.NewNop(),
		now:     time.Now,
		timeout: 30 * time.Second,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !t.cacheable(req) {
		resp, err := t.next.RoundTrip(req)
		if err == nil && t.invalidates(req, resp) {
			t.Purge()
		}
		return resp, err
	}

	key := cacheKey(req)
	if e, ok := t.lookup(key); ok {
		t.hits.Add(1)
		t.logger.Debug("cache hit", zap.String("url", req.URL.String()))
		t.revalidate(key, req)
		return e.response(req), nil
	}

	t.misses.Add(1)
	gen := t.generation()
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	return t.store(key, gen, resp)
}

// Purge drops every entry. Successful POST, PUT, PATCH and DELETE requests
// to the origin purge too.
func (t *Transport) Purge() {
	t.mu.Lock()
	t.entries = make(map[string]*entry)
	t.gen++
	t.mu.Unlock()
	t.logger.Debug("cache purged")
}

// Stats returns a snapshot of the counters
func (t *Transport) Stats() Stats {
	t.mu.Lock()
	n := len(t.entries)
	t.mu.Unlock()
	return Stats{
		Hits:          t.hits.Load(),
		Misses:        t.misses.Load(),
		Revalidations: t.revalidations.Load(),
		Entries:       n,
	}
}

// Close stops new revalidations and waits for running ones
func (t *Transport) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Transport) cacheable(req *http.Request) bool {
	if t.ttl <= 0 || req.Method != http.MethodGet || req.URL == nil {
		return false
	}
	return req.URL.Scheme+"://"+req.URL.Host == t.origin
}

// invalidates reports whether a successful unsafe request to the origin
// makes the stored responses stale (RFC 9111 section 4.4)
func (t *Transport) invalidates(req *http.Request, resp *http.Response) bool {
	if t.ttl <= 0 || req.URL == nil {
		return false
	}
	switch req.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return false
	}
	return req.URL.Scheme+"://"+req.URL.Host == t.origin
}

func (t *Transport) lookup(key string) (*entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return nil, false
	}
	if t.now().Sub(e.stored) > t.ttl {
		delete(t.entries, key)
		return nil, false
	}
	return e, true
}

// store buffers resp and keeps it when it is 2xx. The returned response
// has a fresh body the caller can read.
func (t *Transport) store(key string, gen uint64, resp *http.Response) (*http.Response, error) {
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, nil
	}

	e := &entry{
		status:     resp.StatusCode,
		statusText: resp.Status,
		header:     resp.Header.Clone(),
		body:       body,
		stored:     t.now(),
	}
	// closed only stops new revalidations; admitted ones still land
	t.mu.Lock()
	if t.gen == gen {
		t.entries[key] = e
	}
	t.mu.Unlock()
	return resp, nil
}

// revalidate refetches key in the background. Concurrent revalidations
// of one key share a single request.
func (t *Transport) revalidate(key string, req *http.Request) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.wg.Add(1)
	gen := t.gen
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(req.Context()), t.timeout)
	bg := req.Clone(ctx)
	go func() {
		defer t.wg.Done()
		defer cancel()
		_, err, shared := t.group.Do(key, func() (any, error) {
			t.revalidations.Add(1)
			resp, err := t.next.RoundTrip(bg)
			if err != nil {
				return nil, err
			}
			resp, err = t.store(key, gen, resp)
			if err != nil {
				return nil, err
			}
			resp.Body.Close()
			return nil, nil
		})
		if err != nil {
			t.logger.Debug("revalidation failed",
				zap.String("url", bg.URL.String()),
				zap.Bool("shared", shared),
				zap.Error(err))
		}
	}()
}

func (t *Transport) generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// cacheKey separates users by their Authorization header
func cacheKey(req *http.Request) string {
	return req.Method + " " + req.URL.String() + "\x00" + req.Header.Get("Authorization")
}
