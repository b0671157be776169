package quic

import (
	"context"
	"crypto/tls"

	"github.com/pkg/errors"
	"github.com/quic-go/quic-go"

	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
)

var _ protocol.Transport = (*Client)(nil)

// Client is the predictive peer side of the quic transport.
type Client struct {
	peer  *peerStream
	codec protocol.JSONCodec
	done  chan error
}

// Dial connects to addr and opens the envelope stream. A nil tlsConf uses
// ClientTLS.
func Dial(ctx context.Context, addr string, cfg Config, tlsConf *tls.Config, handler protocol.Handler, logger log.Log) (*Client, error) {
	cfg = cfg.withDefaults()
	if tlsConf == nil {
		tlsConf = ClientTLS()
	}
	conn, err := quic.DialAddr(ctx, addr, tlsConf, cfg.quic())
	if err != nil {
		return nil, errors.Wrapf(err, "failed to dial %s", addr)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		_ = conn.CloseWithError(0, "stream failed")
		return nil, errors.Wrap(err, "failed to open stream")
	}
	// The server only sees the stream once it carries data.
	if _, err = stream.Write([]byte{'\n'}); err != nil {
		_ = conn.CloseWithError(0, "hello failed")
		return nil, errors.Wrap(err, "failed to write hello")
	}

	c := &Client{
		peer: newPeerStream(protocol.AuthorityPeer, conn, stream, cfg, logger.With(log.String("transport", "quic"))),
		done: make(chan error, 1),
	}
	go c.peer.writeLoop()
	go func() {
		c.done <- c.peer.readLoop(c.codec, protocol.AuthorityPeer, handler)
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
	frame = append(frame, '\n')
	return c.peer.enqueue(frame)
}

// Done yields the read error, if any, once the connection is gone.
func (c *Client) Done() <-chan error { return c.done }

func (c *Client) Close() error {
	c.peer.close()
	return nil
}
