package websocket

import (
	"context"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
)

var _ protocol.Transport = (*Client)(nil)

// Client is the predictive peer side of a websocket session.
type Client struct {
	conn  *connection
	codec protocol.JSONCodec
	done  chan error
}

// Dial connects to url (ws:// or wss://). Inbound envelopes are stamped with
// protocol.AuthorityPeer.
func Dial(ctx context.Context, url string, cfg Config, handler protocol.Handler, logger log.Log) (*Client, error) {
	cfg = cfg.withDefaults()
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", url)
	}

	c := &Client{
		conn: newConnection(protocol.AuthorityPeer, ws, cfg, logger.With(log.String("transport", "websocket"))),
		done: make(chan error, 1),
	}
	go c.conn.writeLoop()
	go func() {
		c.done <- c.conn.readLoop(c.codec, protocol.AuthorityPeer, handler)
		close(c.done)
	}()
	return c, nil
}

// Send queues env for the authority.
func (c *Client) Send(env protocol.Envelope) error {
	env.Peer = ""
	frame, err := c.codec.Encode(env)
	if err != nil {
		return err
	}
	return c.conn.enqueue(frame)
}

// Done yields the read error, if any, once the connection is gone.
func (c *Client) Done() <-chan error { return c.done }

func (c *Client) Close() error {
	c.conn.close()
	return nil
}
