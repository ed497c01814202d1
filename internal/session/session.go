// Package session holds the per-browser dashboard state: the current dataset
// and the configuration controls.
package session

import (
	"context"
	"sync"
	"time"

	"kpidash/internal/core"
)

// Session is one visitor's state. The dataset is swapped as a whole; the
// summaries derived from it live in the store's version-keyed cache.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	dataset  core.Dataset
	settings core.Settings
	defaults core.Settings
	runs     int
	store    *Store
}

// Dataset returns the current dataset.
func (s *Session) Dataset() core.Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dataset
}

// Settings returns the current configuration controls.
func (s *Session) Settings() core.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// ReplaceDataset swaps in ds. Summaries of the previous dataset are no longer
// reachable from this session.
func (s *Session) ReplaceDataset(ds core.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.dataset = ds
	s.mu.Unlock()
	return nil
}

// UpdateSettings validates and stores new control values.
func (s *Session) UpdateSettings(st core.Settings) error {
	if err := st.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.settings = st
	s.mu.Unlock()
	return nil
}

// ResetSettings restores the defaults the session started with.
func (s *Session) ResetSettings() core.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = s.defaults
	return s.settings
}

// Summaries returns the KPIs of the current dataset, computing them at most
// once per dataset version.
func (s *Session) Summaries(ctx context.Context) ([]core.MetricSummary, error) {
	return s.Summarize(ctx, s.Dataset())
}

// Summarize computes the KPIs of ds as seen by this session. Results are
// cached per session so other sessions holding the same dataset version keep
// their own baselines.
func (s *Session) Summarize(ctx context.Context, ds core.Dataset) ([]core.MetricSummary, error) {
	return s.store.summaries(ctx, s.cacheKey(ds), ds)
}

func (s *Session) cacheKey(ds core.Dataset) string {
	if ds.Version == "" {
		return ""
	}
	return s.ID + "/" + ds.Version
}

// Invalidate drops this session's cached summaries of the current dataset so
// the next call recomputes them, drawing fresh baselines. It returns how many
// analyses this session has run.
func (s *Session) Invalidate() int {
	if key := s.cacheKey(s.Dataset()); key != "" {
		s.store.summaryCache.Delete(key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	return s.runs
}

// Runs reports how many explicit analyses were requested.
func (s *Session) Runs() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.runs
}
