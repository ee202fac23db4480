package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/wuwenbin0122/finbot/internal/auth"
	"github.com/wuwenbin0122/finbot/internal/llm"
	"github.com/wuwenbin0122/finbot/internal/models"
)

// ProfileSource loads the profile a new session is built from.
type ProfileSource interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

// Registry holds one Manager per signed-in user, standing in for the single
// chat screen each user has open.
type Registry struct {
	backend  llm.Backend
	profiles ProfileSource
	opts     Options

	mu      sync.Mutex
	entries map[string]*entry
}

// entry is a user's manager plus a channel closed once its first start and
// resume have finished.
type entry struct {
	m     *Manager
	ready chan struct{}
}

func NewRegistry(backend llm.Backend, profiles ProfileSource, opts Options) *Registry {
	return &Registry{
		backend:  backend,
		profiles: profiles,
		opts:     opts,
		entries:  make(map[string]*entry),
	}
}

// Manager returns the user's manager, starting it and resuming the latest
// chat on first use. Concurrent first requests share that start: later
// callers wait for it unless ctx ends first. A session that fails to start is
// still returned, in StateFailed.
func (r *Registry) Manager(ctx context.Context, id auth.Identity) *Manager {
	r.mu.Lock()
	e, ok := r.entries[id.UserID]
	if !ok {
		e = &entry{m: NewManager(r.backend, r.opts), ready: make(chan struct{})}
		r.entries[id.UserID] = e
	}
	r.mu.Unlock()

	if ok {
		select {
		case <-e.ready:
		case <-ctx.Done():
		}
		return e.m
	}

	defer close(e.ready)
	startCtx := context.WithoutCancel(ctx)
	if err := e.m.Start(startCtx, id, r.profile(startCtx, id)); err != nil && !errors.Is(err, ErrSuperseded) {
		return e.m
	}
	e.m.Resume(startCtx)
	return e.m
}

// ProfileChanged records profile for the user's manager and restarts the
// session when the persona changed. It reports whether a restart happened.
func (r *Registry) ProfileChanged(ctx context.Context, id auth.Identity, profile models.UserProfile) (bool, error) {
	r.mu.Lock()
	e, ok := r.entries[id.UserID]
	r.mu.Unlock()

	if !ok {
		return false, nil
	}
	select {
	case <-e.ready:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	if !e.m.SetProfile(profile) {
		return false, nil
	}
	return true, e.m.Start(ctx, id, profile)
}

// Wait drains background persistence of every manager.
func (r *Registry) Wait() {
	r.mu.Lock()
	managers := make([]*Manager, 0, len(r.entries))
	for _, e := range r.entries {
		managers = append(managers, e.m)
	}
	r.mu.Unlock()

	for _, m := range managers {
		m.Wait()
	}
}

func (r *Registry) profile(ctx context.Context, id auth.Identity) models.UserProfile {
	if r.profiles == nil || !id.Authenticated() {
		return models.DefaultProfile()
	}
	p, err := r.profiles.GetProfile(ctx, id.UserID)
	if err != nil || p == nil {
		if err != nil && r.opts.Logger != nil {
			r.opts.Logger.Infow("load profile for chat", "user_id", id.UserID, "error", err)
		}
		return models.DefaultProfile()
	}
	return *p
}
