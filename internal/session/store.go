package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"kpidash/internal/cache"
	"kpidash/internal/core"
	"kpidash/internal/log"
	"kpidash/internal/sources"
)

var ErrNotFound = errors.New("session not found")

// Config sizes the store.
type Config struct {
	TTL              time.Duration
	MaxSessions      int
	SummaryCacheSize int
	// Defaults are the settings every new session starts with.
	Defaults core.Settings
}

// Store creates sessions and shares the summary cache between them.
type Store struct {
	source       sources.DatasetSource
	calc         *core.Calculator
	defaults     core.Settings
	sessions     *cache.LRUCache[*Session]
	summaryCache *cache.LRUCache[[]core.MetricSummary]
	group        singleflight.Group
	logger       *log.Logger
	now          func() time.Time
}

// NewStore wires a store. The summary cache keeps entries for the session
// TTL so a dataset shared by idle sessions is not recomputed.
func NewStore(cfg Config, source sources.DatasetSource, calc *core.Calculator, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	defaults := cfg.Defaults
	if defaults.Validate() != nil {
		defaults = core.DefaultSettings()
	}
	st := &Store{
		source:       source,
		calc:         calc,
		defaults:     defaults,
		sessions:     cache.NewSlidingLRUCache[*Session](cfg.MaxSessions, cfg.TTL),
		summaryCache: cache.NewLRUCache[[]core.MetricSummary](cfg.SummaryCacheSize, cfg.TTL),
		logger:       logger.WithComponent(log.ComponentSession),
		now:          time.Now,
	}
	st.sessions.OnEvict(func(id string, s *Session) {
		st.logger.Debug("Session expired",
			log.FieldSessionID, id,
			"age", st.now().Sub(s.CreatedAt).Round(time.Second).String())
	})
	return st
}

// Register adds the store's caches to the cleanup loop.
func (st *Store) Register(m *cache.Manager) {
	m.Register("sessions", st.sessions)
	m.Register("summaries", st.summaryCache)
}

// Create starts a session with a dataset from the configured source.
func (st *Store) Create(ctx context.Context) (*Session, error) {
	ds, err := st.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load initial dataset from %s: %w", st.source.Name(), err)
	}
	s := &Session{
		ID:        uuid.NewString(),
		CreatedAt: st.now(),
		dataset:   ds,
		settings:  st.defaults,
		defaults:  st.defaults,
		store:     st,
	}
	st.sessions.Set(s.ID, s)
	st.logger.DebugContext(ctx, "Session created",
		log.FieldSessionID, s.ID,
		log.FieldDatasetSource, ds.Source,
		log.FieldDatasetVersion, ds.Version)
	return s, nil
}

// Get returns a live session.
func (st *Store) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	s, ok := st.sessions.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetOrCreate returns the session for id, or a new one when id is unknown or
// expired. The bool reports whether a session was created.
func (st *Store) GetOrCreate(ctx context.Context, id string) (*Session, bool, error) {
	if s, err := st.Get(id); err == nil {
		return s, false, nil
	}
	s, err := st.Create(ctx)
	if err != nil {
		return nil, false, err
	}
	return s, true, nil
}

// Delete forgets a session.
func (st *Store) Delete(id string) {
	st.sessions.Delete(id)
}

// Len reports the number of live sessions.
func (st *Store) Len() int {
	return st.sessions.Size()
}

// SummaryStats reports the shared summary cache counters.
func (st *Store) SummaryStats() cache.Stats {
	return st.summaryCache.Stats()
}

// Defaults returns the settings new sessions start with.
func (st *Store) Defaults() core.Settings {
	return st.defaults
}

// Summarize computes summaries for a dataset outside any session, cached by
// dataset version.
func (st *Store) Summarize(ctx context.Context, ds core.Dataset) ([]core.MetricSummary, error) {
	return st.summaries(ctx, ds.Version, ds)
}

func (st *Store) summaries(ctx context.Context, key string, ds core.Dataset) ([]core.MetricSummary, error) {
	if key == "" {
		// Unversioned tables cannot be keyed.
		return st.calc.Summarize(ctx, ds)
	}
	if cached, ok := st.summaryCache.Get(key); ok {
		return cached, nil
	}

	v, err, shared := st.group.Do(key, func() (interface{}, error) {
		if cached, ok := st.summaryCache.Get(key); ok {
			return cached, nil
		}
		start := time.Now()
		out, err := st.calc.Summarize(ctx, ds)
		if err != nil {
			return nil, err
		}
		st.summaryCache.Set(key, out)
		st.logger.DebugContext(ctx, "Summaries computed",
			log.FieldDatasetVersion, ds.Version,
			log.FieldMetrics, len(out),
			log.FieldDuration, time.Since(start).Milliseconds())
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		st.logger.DebugContext(ctx, "Summary computation shared", log.FieldDatasetVersion, ds.Version)
	}
	return v.([]core.MetricSummary), nil
}
