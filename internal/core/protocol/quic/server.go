package quic

import (
	"context"
	"crypto/tls"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"
	"golang.org/x/sync/errgroup"

	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
)

var _ protocol.Transport = (*Server)(nil)

// Server is the authority side of the quic transport.
type Server struct {
	cfg      Config
	tls      *tls.Config
	codec    protocol.JSONCodec
	handler  protocol.Handler
	logger   log.Log
	listener *quic.Listener

	mu     sync.RWMutex
	peers  map[protocol.PeerID]*peerStream
	closed atomic.Bool
}

// Listen binds cfg.Addr. A nil tlsConf generates a self-signed certificate.
func Listen(cfg Config, tlsConf *tls.Config, handler protocol.Handler, logger log.Log) (*Server, error) {
	cfg = cfg.withDefaults()
	if tlsConf == nil {
		var err error
		if tlsConf, err = SelfSignedTLS(); err != nil {
			return nil, err
		}
	}
	listener, err := quic.ListenAddr(cfg.Addr, tlsConf, cfg.quic())
	if err != nil {
		return nil, errors.Wrap(err, "failed to start QUIC listener")
	}

	s := &Server{
		cfg:      cfg,
		tls:      tlsConf,
		handler:  handler,
		logger:   logger.With(log.String("transport", "quic"), log.String("listener_addr", listener.Addr().String())),
		listener: listener,
		peers:    make(map[protocol.PeerID]*peerStream),
	}
	s.logger.Info("listening")
	return s, nil
}

// Addr is the bound UDP address.
func (s *Server) Addr() string { return s.listener.Addr().String() }

// Serve accepts connections until ctx is done or the server is closed.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	for {
		conn, err := s.listener.Accept(ctx)
		if err != nil {
			if s.closed.Load() || ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to accept QUIC connection")
		}
		go s.serveConn(ctx, conn)
	}
}

func (s *Server) serveConn(ctx context.Context, conn *quic.Conn) {
	stream, err := conn.AcceptStream(ctx)
	if err != nil {
		s.logger.Warn("peer opened no stream", log.Error(err))
		_ = conn.CloseWithError(0, "no stream")
		return
	}

	p := newPeerStream(protocol.PeerID(uuid.NewString()), conn, stream, s.cfg, s.logger)
	s.mu.Lock()
	s.peers[p.id] = p
	s.mu.Unlock()
	s.logger.Info("peer connected", log.String("peer", string(p.id)), log.String("remote_addr", conn.RemoteAddr().String()))

	go p.writeLoop()
	err = p.readLoop(s.codec, p.id, s.handler)

	s.mu.Lock()
	delete(s.peers, p.id)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("peer read failed", log.String("peer", string(p.id)), log.Error(err))
	}
	s.logger.Info("peer disconnected", log.String("peer", string(p.id)))
}

// Peers returns the connected peer ids, sorted.
func (s *Server) Peers() []protocol.PeerID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]protocol.PeerID, 0, len(s.peers))
	for id := range s.peers {
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
	frame = append(frame, '\n')

	s.mu.RLock()
	defer s.mu.RUnlock()
	if env.Peer != "" {
		p, ok := s.peers[env.Peer]
		if !ok {
			return protocol.ErrPeerNotFound
		}
		return p.enqueue(frame)
	}
	var last error
	for id, p := range s.peers {
		if err = p.enqueue(frame); err != nil {
			s.logger.Warn("dropping broadcast", log.String("peer", string(id)), log.Error(err))
			last = err
		}
	}
	return last
}

// Close stops accepting and disconnects every peer.
func (s *Server) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.RLock()
	peers := make([]*peerStream, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	var g errgroup.Group
	for _, p := range peers {
		g.Go(func() error {
			p.close()
			return nil
		})
	}
	g.Go(func() error {
		s.logger.Info("closing listener")
		return s.listener.Close()
	})
	return g.Wait()
}
