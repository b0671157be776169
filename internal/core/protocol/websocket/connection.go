// Package websocket carries replication envelopes over gorilla/websocket.
// The authority runs a Server; predictive peers Dial it.
package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
)

// Config holds transport settings. Zero values fall back to defaults.
type Config struct {
	Addr           string
	Path           string
	QueueSize      int
	WriteTimeout   time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = "/ws"
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 64 * 1024
	}
	return c
}

// connection owns one websocket. Frames are queued by enqueue and written by
// writeLoop, so callers never block on the network.
type connection struct {
	id     protocol.PeerID
	ws     *websocket.Conn
	cfg    Config
	out    chan []byte
	done   chan struct{}
	once   sync.Once
	logger log.Log
}

func newConnection(id protocol.PeerID, ws *websocket.Conn, cfg Config, logger log.Log) *connection {
	ws.SetReadLimit(cfg.MaxMessageSize)
	return &connection{
		id:     id,
		ws:     ws,
		cfg:    cfg,
		out:    make(chan []byte, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger.With(log.String("peer", string(id))),
	}
}

func (c *connection) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return protocol.ErrTransportClosed
	default:
	}
	select {
	case c.out <- frame:
		return nil
	case <-c.done:
		return protocol.ErrTransportClosed
	default:
		return protocol.ErrQueueFull
	}
}

func (c *connection) writeLoop() {
	ping := time.NewTicker(c.cfg.PingInterval)
	defer ping.Stop()
	defer c.close()

	for {
		select {
		case frame := <-c.out:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Debug("write failed", log.Error(errors.Wrap(err, "failed to write message")))
				return
			}
		case <-ping.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.logger.Debug("ping failed", log.Error(err))
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop decodes inbound frames until the socket fails. origin replaces
// the envelope's peer field.
func (c *connection) readLoop(codec protocol.Codec, origin protocol.PeerID, handler protocol.Handler) error {
	defer c.close()
	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return errors.Wrap(err, "failed to read message")
			}
			return nil
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}
		env, err := codec.Decode(data)
		if err != nil {
			c.logger.Warn("dropping malformed frame", log.Error(err))
			continue
		}
		env.Peer = origin
		handler(env)
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = c.ws.Close()
	})
}
