// Package session keeps one live workspace per owner for the HTTP surface.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	mstream "github.com/haowjy/meridian-stream-go"
	"golang.org/x/sync/singleflight"

	"canvasdesk/internal/config"
	repo "canvasdesk/internal/domain/repositories/workspace"
	"canvasdesk/internal/editor"
	"canvasdesk/internal/service/dragdrop"
	"canvasdesk/internal/service/eventstream"
	"canvasdesk/internal/service/workspace"
)

// AnonymousOwner owns the workspace of requests without an identity. It is
// served from the Local backend only.
const AnonymousOwner = "local"

// Session is everything one owner's editor talks to.
type Session struct {
	OwnerID    string
	Workspace  *workspace.Workspace
	Reconciler *dragdrop.Reconciler
	Surface    *editor.MemorySurface
	Store      *workspace.FallbackStore
	Validator  *workspace.ContentValidator
	// Events carries workspace events to every connected client and keeps
	// the recent ones for resume.
	Events *mstream.Stream
}

// Registry creates sessions on first use and keeps them until Close.
type Registry struct {
	remote    repo.Store // nil without a database
	local     repo.Store
	cfg       config.WorkspaceConfig
	validator *workspace.ContentValidator
	logger    *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
	group    singleflight.Group
	streams  *mstream.Registry
}

// NewRegistry creates a registry. remote may be nil.
func NewRegistry(remote, local repo.Store, cfg config.WorkspaceConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		remote:    remote,
		local:     local,
		cfg:       cfg,
		validator: workspace.MustContentValidator(),
		logger:    logger,
		sessions:  make(map[string]*Session),
		streams:   mstream.NewRegistry(),
	}
}

// Get returns ownerID's session, loading the workspace the first time.
// An empty ownerID means the anonymous owner.
func (r *Registry) Get(ctx context.Context, ownerID string) (*Session, error) {
	if ownerID == "" {
		ownerID = AnonymousOwner
	}

	r.mu.Lock()
	s, ok := r.sessions[ownerID]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.group.Do(ownerID, func() (interface{}, error) {
		r.mu.Lock()
		existing, ok := r.sessions[ownerID]
		r.mu.Unlock()
		if ok {
			return existing, nil
		}

		s, err := r.open(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[ownerID] = s
		r.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

func (r *Registry) open(ctx context.Context, ownerID string) (*Session, error) {
	logger := r.logger.With("owner_id", ownerID)

	var remote repo.Store
	if ownerID != AnonymousOwner {
		remote = r.remote
	}
	store := workspace.NewFallbackStore(remote, r.local, r.cfg.DivergencePolicy, r.validator, logger)
	surface := editor.NewMemorySurface()
	ws := workspace.New(ownerID, store, surface, r.cfg, logger)

	if err := ws.Load(ctx); err != nil {
		ws.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}

	events := eventstream.New(ws, r.cfg.EventReplay, logger)
	if err := r.streams.Register(events); err != nil {
		ws.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	events.Start()

	logger.Info("session opened", "remote", store.RemoteCapable(), "degraded", store.Degraded())
	return &Session{
		OwnerID:    ownerID,
		Workspace:  ws,
		Reconciler: dragdrop.NewReconciler(ws, r.cfg, logger),
		Surface:    surface,
		Store:      store,
		Validator:  r.validator,
		Events:     events,
	}, nil
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Streams returns the number of live event streams.
func (r *Registry) Streams() int {
	return r.streams.Count()
}

// Close flushes unsaved edits of every session and releases them.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for owner, s := range sessions {
		if err := s.Workspace.FlushCurrent(ctx); err != nil {
			r.logger.Error("failed to flush session on shutdown", "owner_id", owner, "error", err)
		}
		s.Events.Cancel()
		r.streams.Remove(owner)
		s.Workspace.Close()
	}
}
