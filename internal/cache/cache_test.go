package cache

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type countingServer struct {
	*httptest.Server
	calls atomic.Int64
	body  atomic.Value
}

func newCountingServer(t *testing.T) *countingServer {
	t.Helper()
	cs := &countingServer{}
	cs.body.Store("v1")
	cs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cs.calls.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(cs.body.Load().(string) + "|" + r.Header.Get("Authorization")))
	}))
	t.Cleanup(cs.Close)
	return cs
}

func get(t *testing.T, client *http.Client, url, auth string) (string, *http.Response) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b), resp
}

func TestStaleWhileRevalidate(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := newCountingServer(t)
	defer srv.Close()
	base := &http.Transport{}
	defer base.CloseIdleConnections()

	tr, err := New(base, srv.URL, time.Minute)
	require.NoError(t, err)
	client := &http.Client{Transport: tr}

	body, resp := get(t, client, srv.URL+"/history", "Bearer a")
	assert.Equal(t, "v1|Bearer a", body)
	assert.Empty(t, resp.Header.Get(Header))

	srv.body.Store("v2")

	// Served stale, refreshed in the background
	body, resp = get(t, client, srv.URL+"/history", "Bearer a")
	assert.Equal(t, "v1|Bearer a", body)
	assert.Equal(t, "HIT", resp.Header.Get(Header))

	tr.Close()
	assert.Equal(t, int64(2), srv.calls.Load())

	// the stored entry now holds the revalidated copy
	tr.mu.Lock()
	e := tr.entries[cacheKey(mustReq(t, srv.URL+"/history", "Bearer a"))]
	tr.mu.Unlock()
	require.NotNil(t, e)
	assert.Equal(t, "v2|Bearer a", string(e.body))

	st := tr.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, int64(1), st.Revalidations)
	assert.Equal(t, 1, st.Entries)
}

func TestKeyedByAuthorization(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	srv := newCountingServer(t)
	defer srv.Close()
	base := &http.Transport{}
	defer base.CloseIdleConnections()

	tr, err := New(base, srv.URL, time.Minute)
	require.NoError(t, err)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	a, _ := get(t, client, srv.URL+"/history", "Bearer a")
	b, resp := get(t, client, srv.URL+"/history", "Bearer b")

	assert.Equal(t, "v1|Bearer a", a)
	assert.Equal(t, "v1|Bearer b", b)
	assert.Empty(t, resp.Header.Get(Header), "different users must not share entries")
	assert.Equal(t, int64(2), tr.Stats().Misses)
}

func TestNotCached(t *testing.T) {
	srv := newCountingServer(t)
	other := newCountingServer(t)

	tr, err := New(http.DefaultTransport, srv.URL, time.Minute)
	require.NoError(t, err)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	// POST always hits the network
	for i := 0; i < 2; i++ {
		resp, err := client.Post(srv.URL+"/predict", "application/json", nil)
		require.NoError(t, err)
		resp.Body.Close()
	}
	assert.Equal(t, int64(2), srv.calls.Load())

	// Other origins pass through
	get(t, client, other.URL+"/history", "")
	get(t, client, other.URL+"/history", "")
	assert.Equal(t, int64(2), other.calls.Load())

	// Non-2xx is never stored
	_, resp := get(t, client, srv.URL+"/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	get(t, client, srv.URL+"/missing", "")
	assert.Equal(t, 0, tr.Stats().Entries)
}

func TestExpiredEntryIsRefetched(t *testing.T) {
	srv := newCountingServer(t)

	now := time.Now()
	tr, err := New(http.DefaultTransport, srv.URL, time.Minute, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	get(t, client, srv.URL+"/history", "")
	srv.body.Store("v2")
	now = now.Add(2 * time.Minute)

	body, resp := get(t, client, srv.URL+"/history", "")
	assert.Equal(t, "v2|", body)
	assert.Empty(t, resp.Header.Get(Header))
	assert.Equal(t, int64(2), tr.Stats().Misses)
}

func TestPurge(t *testing.T) {
	srv := newCountingServer(t)
	tr, err := New(http.DefaultTransport, srv.URL, time.Minute)
	require.NoError(t, err)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	get(t, client, srv.URL+"/history", "Bearer a")
	require.Equal(t, 1, tr.Stats().Entries)

	tr.Purge()
	assert.Equal(t, 0, tr.Stats().Entries)

	_, resp := get(t, client, srv.URL+"/history", "Bearer a")
	assert.Empty(t, resp.Header.Get(Header))
}

func TestPurgeDropsInFlightRevalidation(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			<-release
		}
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	tr, err := New(http.DefaultTransport, srv.URL, time.Minute)
	require.NoError(t, err)
	client := &http.Client{Transport: tr}

	get(t, client, srv.URL+"/history", "Bearer a")
	get(t, client, srv.URL+"/history", "Bearer a") // hit, revalidation blocks

	tr.Purge()
	close(release)
	tr.Close()

	assert.Equal(t, 0, tr.Stats().Entries)
}

func TestUnsafeRequestPurges(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		otherHost  bool
		wantPurged bool
	}{
		{"successful post", "/predict", false, true},
		{"failed post", "/missing", false, false},
		{"other origin", "/predict", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newCountingServer(t)
			other := newCountingServer(t)
			tr, err := New(http.DefaultTransport, srv.URL, time.Minute)
			require.NoError(t, err)
			defer tr.Close()
			client := &http.Client{Transport: tr}

			get(t, client, srv.URL+"/history", "Bearer a")
			require.Equal(t, 1, tr.Stats().Entries)

			target := srv.URL
			if tt.otherHost {
				target = other.URL
			}
			resp, err := client.Post(target+tt.path, "application/json", nil)
			require.NoError(t, err)
			resp.Body.Close()

			if tt.wantPurged {
				assert.Equal(t, 0, tr.Stats().Entries)
			} else {
				assert.Equal(t, 1, tr.Stats().Entries)
			}
		})
	}
}

func TestHistoryAfterPostIsFresh(t *testing.T) {
	srv := newCountingServer(t)
	tr, err := New(http.DefaultTransport, srv.URL, time.Minute)
	require.NoError(t, err)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	get(t, client, srv.URL+"/history", "Bearer a")
	srv.body.Store("v2")

	resp, err := client.Post(srv.URL+"/predict", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	body, resp := get(t, client, srv.URL+"/history", "Bearer a")
	assert.Equal(t, "v2|Bearer a", body)
	assert.Empty(t, resp.Header.Get(Header))
}

func TestZeroTTLDisables(t *testing.T) {
	srv := newCountingServer(t)
	tr, err := New(http.DefaultTransport, srv.URL, 0)
	require.NoError(t, err)
	defer tr.Close()
	client := &http.Client{Transport: tr}

	get(t, client, srv.URL+"/history", "")
	get(t, client, srv.URL+"/history", "")
	assert.Equal(t, int64(2), srv.calls.Load())
	assert.Equal(t, Stats{}, tr.Stats())
}

func TestNewRejectsRelativeURL(t *testing.T) {
	_, err := New(nil, "/relative", time.Minute)
	assert.Error(t, err)
}

func mustReq(t *testing.T, url, auth string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", auth)
	return req
}
