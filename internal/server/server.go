// Package server exposes the content hub over HTTP (JSON API, SSE event
// stream, Prometheus metrics) and gRPC (health and reflection).
package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/kuhandran/Content-Hub-sub001/internal/cache"
	"github.com/kuhandran/Content-Hub-sub001/internal/content"
	"github.com/kuhandran/Content-Hub-sub001/internal/resolve"
	"github.com/kuhandran/Content-Hub-sub001/internal/store"
	contentsync "github.com/kuhandran/Content-Hub-sub001/internal/sync"
)

// pingTimeout bounds each dependency check of the health endpoints.
const pingTimeout = 2 * time.Second

// Deps are the components a Server routes to. Hub may be nil, in which case
// the server creates its own; pass the hub that the content service and
// pipeline publish to so their events reach SSE clients.
type Deps struct {
	Store      store.Store
	Cache      cache.Cache
	Resolver   *resolve.Resolver
	Content    *content.Service
	Pipeline   *contentsync.Pipeline
	Hub        *Hub
	SourceRoot string
	Logger     *slog.Logger
}

// Server holds the HTTP and gRPC handlers' dependencies.
type Server struct {
	store      store.Store
	cache      cache.Cache
	resolver   *resolve.Resolver
	content    *content.Service
	pipeline   *contentsync.Pipeline
	hub        *Hub
	sourceRoot string
	logger     *slog.Logger
}

func New(d Deps) *Server {
	s := &Server{
		store:      d.Store,
		cache:      d.Cache,
		resolver:   d.Resolver,
		content:    d.Content,
		pipeline:   d.Pipeline,
		hub:        d.Hub,
		sourceRoot: d.SourceRoot,
		logger:     d.Logger,
	}
	if s.cache == nil {
		s.cache = cache.Noop{}
	}
	if s.hub == nil {
		s.hub = NewHub()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Hub returns the SSE hub.
func (s *Server) Hub() *Hub { return s.hub }

// checkDeps pings the store and the cache. Only the store decides health;
// a failing cache degrades reads to the database tier.
func (s *Server) checkDeps(ctx context.Context) (map[string]string, bool) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	out := map[string]string{"store": "ok", "cache": "ok"}
	ok := true
	if err := s.store.Ping(ctx); err != nil {
		out["store"] = err.Error()
		ok = false
	}
	if err := s.cache.Ping(ctx); err != nil {
		out["cache"] = err.Error()
	}
	return out, ok
}
