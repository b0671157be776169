package websocket

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
)

var _ protocol.Transport = (*Server)(nil)

// Server is the authority side. Every accepted socket becomes a peer with a
// fresh uuid.
type Server struct {
	cfg      Config
	codec    protocol.JSONCodec
	handler  protocol.Handler
	logger   log.Log
	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[protocol.PeerID]*connection
	closed atomic.Bool
}

func NewServer(cfg Config, handler protocol.Handler, logger log.Log) *Server {
	cfg = cfg.withDefaults()
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger.With(log.String("transport", "websocket")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[protocol.PeerID]*connection),
	}
}

// ServeHTTP upgrades the request and serves the peer until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.closed.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrade failed", log.Error(err))
		return
	}

	c := newConnection(protocol.PeerID(uuid.NewString()), ws, s.cfg, s.logger)
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.logger.Info("peer connected", log.String("peer", string(c.id)), log.String("remote", ws.RemoteAddr().String()))

	go c.writeLoop()
	err = c.readLoop(s.codec, c.id, s.handler)

	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("peer read failed", log.String("peer", string(c.id)), log.Error(err))
	}
	s.logger.Info("peer disconnected", log.String("peer", string(c.id)))
}

// ListenAndServe serves cfg.Addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(s.cfg.Path, s)
	srv := &http.Server{Addr: s.cfg.Addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("listening", log.String("address", s.cfg.Addr), log.String("path", s.cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "websocket server failed")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		_ = s.Close()
		return srv.Shutdown(context.Background())
	})
	return g.Wait()
}

// Peers returns the connected peer ids, sorted.
func (s *Server) Peers() []protocol.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.PeerID, 0, len(s.conns))
	for id := range s.conns {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Send queues env for env.Peer, or for every peer when it is empty.
func (s *Server) Send(env protocol.Envelope) error {
	if s.closed.Load() {
		return protocol.ErrTransportClosed
	}
	frame, err := s.codec.Encode(env)
	if err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if env.Peer != "" {
		c, ok := s.conns[env.Peer]
		if !ok {
			return protocol.ErrPeerNotFound
		}
		return c.enqueue(frame)
	}
	var all error
	for id, c := range s.conns {
		if err = c.enqueue(frame); err != nil {
			s.logger.Warn("dropping broadcast", log.String("peer", string(id)), log.Error(err))
			all = err
		}
	}
	return all
}

// Close disconnects every peer.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.RLock()
	conns := make([]*connection, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	var g errgroup.Group
	for _, c := range conns {
		g.Go(func() error {
			c.close()
			return nil
		})
	}
	return g.Wait()
}
