// Package analytics aggregates the local submission log: outcome counts,
// latency and predicted labels per API origin and input kind.
package analytics

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// DefaultTTL is how long computed stats are reused
const DefaultTTL = 30 * time.Second

// Stats summarizes the submissions sent to one origin with one input kind
type Stats struct {
	BaseURL       string         `json:"baseUrl" yaml:"baseUrl"`
	Kind          string         `json:"kind" yaml:"kind"`
	Total         int            `json:"total" yaml:"total"`
	Succeeded     int            `json:"succeeded" yaml:"succeeded"`
	Failed        int            `json:"failed" yaml:"failed"`
	AvgDurationMs float64        `json:"avgDurationMs" yaml:"avgDurationMs"`
	MinDurationMs int64          `json:"minDurationMs" yaml:"minDurationMs"`
	MaxDurationMs int64          `json:"maxDurationMs" yaml:"maxDurationMs"`
	Labels        map[string]int `json:"labels" yaml:"labels"` // primary predicted label → count
	LastSubmitted time.Time      `json:"lastSubmitted" yaml:"lastSubmitted"`
}

// SuccessRate is Succeeded/Total, 0 when empty
func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

// SortedLabels returns the label names by descending count
func (s Stats) SortedLabels() []string {
	labels := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		if s.Labels[labels[i]] != s.Labels[labels[j]] {
			return s.Labels[labels[i]] > s.Labels[labels[j]]
		}
		return labels[i] < labels[j]
	})
	return labels
}

type cacheEntry struct {
	stats       []Stats
	lastRefresh time.Time
}

// Manager computes stats from the submissions table
type Manager struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	cache map[string]*cacheEntry // key: base URL filter
}

// NewManager reads from db, which must hold the migrated submissions table
func NewManager(db *sql.DB, ttl time.Duration) *Manager {
	return &Manager{
		db:    db,
		ttl:   ttl,
		now:   time.Now,
		cache: make(map[string]*cacheEntry),
	}
}

// statsQuery groups by origin and kind. The label is the classic random
// forest label or the deep-learning label, whichever the result holds.
const statsQuery = `
	WITH label_agg AS (
		SELECT base_url, kind, json_group_object(label, count) AS labels_json
		FROM (
			SELECT
				base_url,
				kind,
				COALESCE(
					json_extract(result_json, '$.RandomForestPrediction'),
					json_extract(result_json, '$.DeepLearningPrediction')
				) AS label,
				COUNT(*) AS count
			FROM submissions
			WHERE status = 'success' AND (? = '' OR base_url = ?)
			GROUP BY base_url, kind, label
		)
		WHERE label IS NOT NULL
		GROUP BY base_url, kind
	)
	SELECT
		s.base_url,
		s.kind,
		COUNT(*) AS total,
		SUM(CASE WHEN s.status = 'success' THEN 1 ELSE 0 END) AS succeeded,
		SUM(CASE WHEN s.status = 'failed' THEN 1 ELSE 0 END) AS failed,
		AVG(s.duration_ms) AS avg_duration,
		MIN(s.duration_ms) AS min_duration,
		MAX(s.duration_ms) AS max_duration,
		MAX(s.timestamp) AS last_submitted,
		COALESCE(l.labels_json, '{}') AS labels_json
	FROM submissions s
	LEFT JOIN label_agg l ON s.base_url = l.base_url AND s.kind = l.kind
	WHERE (? = '' OR s.base_url = ?)
	GROUP BY s.base_url, s.kind
	ORDER BY last_submitted DESC
`

// Stats returns one row per origin and input kind, most recent first.
// An empty baseURL covers every origin.
func (m *Manager) Stats(baseURL string) ([]Stats, error) {
	if cached, ok := m.cached(baseURL); ok {
		return cached, nil
	}

	rows, err := m.db.Query(statsQuery, baseURL, baseURL, baseURL, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to query submission stats: %w", err)
	}
	defer rows.Close()

	var out []Stats
	for rows.Next() {
		var s Stats
		var last sql.NullString
		var labelsJSON string
		if err := rows.Scan(
			&s.BaseURL,
			&s.Kind,
			&s.Total,
			&s.Succeeded,
			&s.Failed,
			&s.AvgDurationMs,
			&s.MinDurationMs,
			&s.MaxDurationMs,
			&last,
			&labelsJSON,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stats: %w", err)
		}

		if last.Valid {
			s.LastSubmitted = parseTimestamp(last.String)
		}
		s.Labels = make(map[string]int)
		if err := json.Unmarshal([]byte(labelsJSON), &s.Labels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal label counts: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	m.store(baseURL, out)
	return out, nil
}

// Invalidate drops cached stats, e.g. after the log is cleared
func (m *Manager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]*cacheEntry)
}

func (m *Manager) cached(key string) ([]Stats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.cache[key]
	if !ok || m.now().Sub(e.lastRefresh) > m.ttl {
		return nil, false
	}
	return e.stats, true
}

func (m *Manager) store(key string, stats []Stats) {
	if m.ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = &cacheEntry{stats: stats, lastRefresh: m.now()}
}

// parseTimestamp reads the UTC layout the log writes, with RFC 3339 as
// a fallback for rows written by other tools
func parseTimestamp(s string) time.Time {
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	return time.Time{}
}
