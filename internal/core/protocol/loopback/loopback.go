// Package loopback connects an authority and its peers inside one process
// through the event bus. It is used by local sessions and tests.
package loopback

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/zeusync/holdable/internal/core/events/bus"
	"github.com/zeusync/holdable/internal/core/protocol"
)

const (
	eventType      = "protocol.frame"
	authorityTopic = "loopback/authority"
)

func peerTopic(id protocol.PeerID) string { return "loopback/peer/" + string(id) }

// Network is the shared medium. Frames are encoded with the wire codec so
// endpoints never share payload memory.
type Network struct {
	bus   bus.EventBus
	codec protocol.JSONCodec

	mu    sync.RWMutex
	peers map[protocol.PeerID]*Endpoint
	auth  *Endpoint
}

func NewNetwork(b bus.EventBus) *Network {
	if b == nil {
		b = bus.New()
	}
	return &Network{bus: b, peers: make(map[protocol.PeerID]*Endpoint)}
}

// Endpoint is one side of the network and implements protocol.Transport.
type Endpoint struct {
	net       *Network
	id        protocol.PeerID
	authority bool
	sub       bus.Subscription
	closed    atomic.Bool
}

var _ protocol.Transport = (*Endpoint)(nil)

// Authority registers the authoritative endpoint. Inbound envelopes carry
// the sending peer's id.
func (n *Network) Authority(handler protocol.Handler) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.auth != nil {
		return nil, fmt.Errorf("loopback: authority already registered")
	}
	e := &Endpoint{net: n, id: protocol.AuthorityPeer, authority: true}
	sub, err := n.subscribe(authorityTopic, handler, nil)
	if err != nil {
		return nil, err
	}
	e.sub = sub
	n.auth = e
	return e, nil
}

// Peer registers a predictive endpoint. Inbound envelopes carry
// protocol.AuthorityPeer as their origin.
func (n *Network) Peer(id protocol.PeerID, handler protocol.Handler) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.peers[id]; ok || id == "" || id == protocol.AuthorityPeer {
		return nil, fmt.Errorf("loopback: invalid or duplicate peer %q", id)
	}
	e := &Endpoint{net: n, id: id}
	origin := protocol.AuthorityPeer
	sub, err := n.subscribe(peerTopic(id), handler, &origin)
	if err != nil {
		return nil, err
	}
	e.sub = sub
	n.peers[id] = e
	return e, nil
}

// Peers returns the registered peer ids, sorted.
func (n *Network) Peers() []protocol.PeerID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]protocol.PeerID, 0, len(n.peers))
	for id := range n.peers {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (n *Network) subscribe(topic string, handler protocol.Handler, origin *protocol.PeerID) (bus.Subscription, error) {
	return n.bus.SubscribeTopic(topic, eventType, func(ev bus.Event) error {
		frame, ok := ev.Data().([]byte)
		if !ok {
			return protocol.ErrInvalidMessage
		}
		env, err := n.codec.Decode(frame)
		if err != nil {
			return err
		}
		if origin != nil {
			env.Peer = *origin
		}
		handler(env)
		return nil
	})
}

func (e *Endpoint) ID() protocol.PeerID { return e.id }

// Send publishes env. The authority addresses env.Peer, or every peer when
// it is empty; a peer always addresses the authority.
func (e *Endpoint) Send(env protocol.Envelope) error {
	if e.closed.Load() {
		return protocol.ErrTransportClosed
	}
	n := e.net

	var topics []string
	if e.authority {
		n.mu.RLock()
		if env.Peer == "" {
			for id := range n.peers {
				topics = append(topics, peerTopic(id))
			}
			sort.Strings(topics)
		} else if _, ok := n.peers[env.Peer]; ok {
			topics = append(topics, peerTopic(env.Peer))
		}
		n.mu.RUnlock()
		if env.Peer != "" && len(topics) == 0 {
			return protocol.ErrPeerNotFound
		}
	} else {
		env.Peer = e.id
		topics = append(topics, authorityTopic)
	}

	frame, err := n.codec.Encode(env)
	if err != nil {
		return err
	}
	var all error
	for _, topic := range topics {
		if err = n.bus.PublishToTopic(topic, bus.NewEvent(eventType, string(e.id), frame)); err != nil {
			all = err
		}
	}
	return all
}

func (e *Endpoint) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	n := e.net
	n.mu.Lock()
	if e.authority {
		n.auth = nil
	} else {
		delete(n.peers, e.id)
	}
	n.mu.Unlock()
	return e.sub.Cancel()
}
