package viewer

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const storeTimeout = 5 * time.Second

// Store keeps viewer snapshots for the lifetime of a session.
type Store interface {
	Load(ctx context.Context, id string) ([]byte, bool, error)
	Save(ctx context.Context, id string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
	Close() error
}

type entry struct {
	viewer   *Viewer
	lastSeen time.Time

	saveMu sync.Mutex
	saved  uint64
	purged bool
}

// Registry owns the live viewers of all sessions.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*entry
	store     Store
	retriever Retriever
	ttl       time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewRegistry(retriever Retriever, store Store, ttl time.Duration, log zerolog.Logger) *Registry {
	return &Registry{
		entries:   make(map[string]*entry),
		store:     store,
		retriever: retriever,
		ttl:       ttl,
		log:       log,
		now:       time.Now,
	}
}

// Get returns the viewer for the session id, restoring it from the store
// or creating an empty one when none is live.
func (r *Registry) Get(ctx context.Context, id string) *Viewer {
	r.mu.Lock()
	if e, ok := r.entries[id]; ok {
		e.lastSeen = r.now()
		r.mu.Unlock()
		return e.viewer
	}
	r.mu.Unlock()

	snap, found := r.load(ctx, id)

	r.mu.Lock()
	defer r.mu.Unlock()

	// Lost a race with a concurrent Get for the same id.
	if e, ok := r.entries[id]; ok {
		e.lastSeen = r.now()
		return e.viewer
	}

	e := &entry{lastSeen: r.now()}
	opts := []Option{WithOnChange(func(s Snapshot) { r.persist(id, e, s) })}
	if found {
		opts = append(opts, WithSnapshot(snap))
		e.saved = snap.Version
	}
	e.viewer = New(r.retriever, opts...)
	r.entries[id] = e

	r.log.Debug().
		Str("session", id).
		Bool("restored", found).
		Msg("Viewer attached")

	return e.viewer
}

// Len returns the number of live viewers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep tears down viewers idle for longer than the session TTL. Viewers
// with a request in flight are kept.
func (r *Registry) Sweep() int {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		if e.lastSeen.After(cutoff) || e.viewer.State().IsLoading {
			continue
		}
		delete(r.entries, id)
		removed++
	}
	return removed
}

// Run sweeps every interval until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info().
					Int("removed", n).
					Int("live", r.Len()).
					Msg("Swept idle viewers")
			}
		}
	}
}

// Purge drops every live viewer and all stored state. Fetches still in
// flight on a dropped viewer settle without writing to the store.
func (r *Registry) Purge(ctx context.Context) error {
	r.mu.Lock()
	dropped := r.entries
	r.entries = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range dropped {
		e.saveMu.Lock()
		e.purged = true
		e.saveMu.Unlock()
	}

	if err := r.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing viewer store: %w", err)
	}
	return nil
}

func (r *Registry) load(ctx context.Context, id string) (Snapshot, bool) {
	var snap Snapshot

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	data, found, err := r.store.Load(ctx, id)
	if err != nil {
		r.log.Error().Err(err).Str("session", id).Msg("Error loading viewer state")
		return snap, false
	}
	if !found {
		return snap, false
	}

	if err := json.Unmarshal(data, &snap); err != nil {
		r.log.Warn().Err(err).Str("session", id).Msg("Discarding unreadable viewer state")
		return snap, false
	}
	return snap, true
}

// persist writes s unless a newer version was already written.
func (r *Registry) persist(id string, e *entry, s Snapshot) {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	if e.purged || s.Version <= e.saved {
		return
	}

	data, err := json.Marshal(s)
	if err != nil {
		r.log.Error().Err(err).Str("session", id).Msg("Error encoding viewer state")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := r.store.Save(ctx, id, data, r.ttl); err != nil {
		r.log.Error().Err(err).Str("session", id).Msg("Error saving viewer state")
		return
	}
	e.saved = s.Version
}
