package quic

import (
	"bufio"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
)

// Config holds transport settings. Zero values fall back to defaults.
type Config struct {
	Addr           string
	QueueSize      int
	MaxIdleTimeout time.Duration
	KeepAlive      time.Duration
	MaxFrameSize   int
}

func (c Config) withDefaults() Config {
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxIdleTimeout <= 0 {
		c.MaxIdleTimeout = 30 * time.Second
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = 10 * time.Second
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = 64 * 1024
	}
	return c
}

func (c Config) quic() *quic.Config {
	return &quic.Config{
		MaxIdleTimeout:  c.MaxIdleTimeout,
		KeepAlivePeriod: c.KeepAlive,
	}
}

// peerStream owns the envelope stream of one connection.
type peerStream struct {
	id     protocol.PeerID
	conn   *quic.Conn
	stream *quic.Stream
	cfg    Config
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	logger log.Log
}

func newPeerStream(id protocol.PeerID, conn *quic.Conn, stream *quic.Stream, cfg Config, logger log.Log) *peerStream {
	return &peerStream{
		id:     id,
		conn:   conn,
		stream: stream,
		cfg:    cfg,
		out:    make(chan []byte, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger.With(log.String("peer", string(id))),
	}
}

// enqueue takes a newline-terminated frame.
func (p *peerStream) enqueue(frame []byte) error {
	select {
	case <-p.done:
		return protocol.ErrTransportClosed
	default:
	}
	select {
	case p.out <- frame:
		return nil
	case <-p.done:
		return protocol.ErrTransportClosed
	default:
		return protocol.ErrQueueFull
	}
}

func (p *peerStream) writeLoop() {
	defer p.close()
	for {
		select {
		case frame := <-p.out:
			if _, err := p.stream.Write(frame); err != nil {
				p.logger.Debug("write failed", log.Error(errors.Wrap(err, "failed to write frame")))
				return
			}
		case <-p.done:
			return
		}
	}
}

// readLoop decodes frames until the stream ends. Blank lines are skipped;
// the client opens the stream with one.
func (p *peerStream) readLoop(codec protocol.Codec, origin protocol.PeerID, handler protocol.Handler) error {
	defer p.close()
	scanner := bufio.NewScanner(p.stream)
	scanner.Buffer(make([]byte, 0, 4096), p.cfg.MaxFrameSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		env, err := codec.Decode(line)
		if err != nil {
			p.logger.Warn("dropping malformed frame", log.Error(err))
			continue
		}
		env.Peer = origin
		handler(env)
	}
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read frame")
	}
	return nil
}

func (p *peerStream) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.stream.Close()
		_ = p.conn.CloseWithError(0, "connection closed")
	})
}
