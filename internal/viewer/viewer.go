package viewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/bilgisen/feedviewer/internal/feed"
	"github.com/bilgisen/feedviewer/internal/models"
)

// ErrStale is delivered to a fetch whose result arrived after a newer
// fetch had been started. Its result is discarded.
var ErrStale = errors.New("viewer: result superseded by a newer request")

// Retriever resolves a feed URL into items.
type Retriever interface {
	Retrieve(ctx context.Context, feedURL string) ([]models.FeedItem, error)
}

// Option configures a Viewer.
type Option func(*Viewer)

// WithOnChange registers fn to receive a snapshot after every transition.
// fn runs outside the viewer lock and may be called concurrently.
func WithOnChange(fn func(Snapshot)) Option {
	return func(v *Viewer) {
		v.onChange = fn
	}
}

// WithSnapshot restores a previously saved viewer. A restored viewer is
// never loading since its request died with the process that issued it.
func WithSnapshot(s Snapshot) Option {
	return func(v *Viewer) {
		v.state = s.State.clone()
		v.state.IsLoading = false
		v.seq = s.Seq
		v.version = s.Version
	}
}

// Viewer is one feed viewer: a URL field, the fetch action and the
// resulting state.
type Viewer struct {
	mu        sync.Mutex
	state     ViewState
	seq       uint64
	version   uint64
	lastErr   error
	retriever Retriever
	onChange  func(Snapshot)
}

func New(retriever Retriever, opts ...Option) *Viewer {
	v := &Viewer{retriever: retriever}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// SetURL replaces the URL field.
func (v *Viewer) SetURL(url string) {
	v.mu.Lock()
	v.state.URL = url
	snap := v.commitLocked()
	v.mu.Unlock()

	v.notify(snap)
}

// State returns a copy of the current state.
func (v *Viewer) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.clone()
}

// Snapshot returns the serialisable form of the viewer.
func (v *Viewer) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return Snapshot{State: v.state.clone(), Seq: v.seq, Version: v.version}
}

// LastError is the cause behind the current error message, if any.
func (v *Viewer) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Start triggers a fetch of the current URL. An empty URL fails at once
// with feed.ErrMissingURL. Otherwise the viewer enters the loading state
// and the returned channel receives the outcome once the retrieval settles.
func (v *Viewer) Start(ctx context.Context) (<-chan error, error) {
	v.mu.Lock()
	v.seq++
	id := v.seq
	url := strings.TrimSpace(v.state.URL)

	if url == "" {
		// Supersedes anything in flight.
		v.state.Items = nil
		v.state.IsLoading = false
		v.state.ErrorMessage = feed.UserMessage(feed.ErrMissingURL)
		v.lastErr = feed.ErrMissingURL
		snap := v.commitLocked()
		v.mu.Unlock()

		v.notify(snap)
		return nil, feed.ErrMissingURL
	}

	v.state.ErrorMessage = ""
	v.state.IsLoading = true
	v.lastErr = nil
	snap := v.commitLocked()
	v.mu.Unlock()

	v.notify(snap)

	done := make(chan error, 1)
	go func() {
		items, err := v.retrieve(ctx, url)
		done <- v.settle(id, items, err)
	}()
	return done, nil
}

// FetchFeed is Start followed by waiting for the outcome.
func (v *Viewer) FetchFeed(ctx context.Context) error {
	done, err := v.Start(ctx)
	if err != nil {
		return err
	}
	return <-done
}

func (v *Viewer) retrieve(ctx context.Context, url string) (items []models.FeedItem, err error) {
	defer func() {
		if r := recover(); r != nil {
			items = nil
			err = fmt.Errorf("%w: retriever panic: %v", feed.ErrNetworkFailure, r)
		}
	}()
	return v.retriever.Retrieve(ctx, url)
}

func (v *Viewer) settle(id uint64, items []models.FeedItem, err error) error {
	v.mu.Lock()
	if id != v.seq {
		v.mu.Unlock()
		if err != nil {
			return fmt.Errorf("%w: %w", ErrStale, err)
		}
		return ErrStale
	}

	v.state.IsLoading = false
	if err != nil {
		v.state.Items = nil
		v.state.ErrorMessage = feed.UserMessage(err)
	} else {
		if items == nil {
			items = []models.FeedItem{}
		}
		v.state.Items = items
		v.state.ErrorMessage = ""
	}
	v.lastErr = err
	snap := v.commitLocked()
	v.mu.Unlock()

	v.notify(snap)
	return err
}

func (v *Viewer) commitLocked() Snapshot {
	v.version++
	return Snapshot{State: v.state.clone(), Seq: v.seq, Version: v.version}
}

func (v *Viewer) notify(snap Snapshot) {
	if v.onChange != nil {
		v.onChange(snap)
	}
}
