package history

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dig-vijay-a/gene-expression-analysis/internal/session"
	"github.com/dig-vijay-a/gene-expression-analysis/internal/types"
)

// Source returns the caller's remote prediction history
type Source interface {
	History(ctx context.Context) ([]types.HistoryEntry, error)
}

// Subscriber delivers session transitions
type Subscriber interface {
	Subscribe(fn func(session.Event)) func()
}

// Fetcher holds the remote history list. Every successful fetch replaces
// the list wholesale; failures keep the previous list and are only logged.
type Fetcher struct {
	src    Source
	logger *zap.Logger

	mu        sync.RWMutex
	entries   []types.HistoryEntry
	fetchedAt time.Time
	// gen is bumped by Reset so a fetch that started before a logout
	// cannot repopulate the list
	gen uint64
	// started numbers each fetch; applied is the newest one committed
	started  uint64
	applied  uint64
	onChange func()

	wg sync.WaitGroup
}

// NewFetcher creates a fetcher reading from src
func NewFetcher(src Source, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{src: src, logger: logger}
}

// OnChange registers a callback run after the list changes
func (f *Fetcher) OnChange(fn func()) {
	f.mu.Lock()
	f.onChange = fn
	f.mu.Unlock()
}

// Refresh fetches the history once. It reports whether the list was replaced.
// A fetch that finishes after a later one has committed is dropped.
func (f *Fetcher) Refresh(ctx context.Context) bool {
	f.mu.Lock()
	gen := f.gen
	f.started++
	seq := f.started
	f.mu.Unlock()

	entries, err := f.src.History(ctx)
	if err != nil {
		f.logger.Warn("history fetch failed", zap.Error(err))
		return false
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}

	f.mu.Lock()
	if f.gen != gen {
		f.mu.Unlock()
		f.logger.Debug("discarding history fetched before reset")
		return false
	}
	if seq < f.applied {
		f.mu.Unlock()
		f.logger.Debug("discarding history older than the current list")
		return false
	}
	f.applied = seq
	f.entries = entries
	f.fetchedAt = time.Now()
	fn := f.onChange
	f.mu.Unlock()

	f.logger.Debug("history refreshed", zap.Int("entries", len(entries)))
	if fn != nil {
		fn()
	}
	return true
}

// Entries returns a copy of the current list
func (f *Fetcher) Entries() []types.HistoryEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]types.HistoryEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// FetchedAt is the time of the last successful fetch, zero if none
func (f *Fetcher) FetchedAt() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.fetchedAt
}

// Reset empties the list
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.gen++
	f.entries = nil
	f.fetchedAt = time.Time{}
	fn := f.onChange
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Attach refreshes in the background on every login and resets on logout.
// The returned function detaches.
func (f *Fetcher) Attach(ctx context.Context, sub Subscriber) func() {
	return sub.Subscribe(func(e session.Event) {
		switch e {
		case session.EventLogin:
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				f.Refresh(ctx)
			}()
		case session.EventLogout:
			f.Reset()
		}
	})
}

// Wait blocks until background refreshes started by Attach finish
func (f *Fetcher) Wait() {
	f.wg.Wait()
}
