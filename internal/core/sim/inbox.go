package sim

import (
	"sync/atomic"

	"github.com/zeusync/holdable/internal/core/protocol"
)

// Inbox hands inbound envelopes from transport goroutines to the simulation
// thread. Push never blocks; a full inbox drops the envelope.
type Inbox struct {
	ch      chan protocol.Envelope
	dropped atomic.Uint64
}

func NewInbox(size int) *Inbox {
	if size <= 0 {
		size = 1024
	}
	return &Inbox{ch: make(chan protocol.Envelope, size)}
}

// Push has the protocol.Handler signature.
func (i *Inbox) Push(env protocol.Envelope) {
	select {
	case i.ch <- env:
	default:
		i.dropped.Add(1)
	}
}

// Drain calls fn for every queued envelope without waiting for more.
func (i *Inbox) Drain(fn func(protocol.Envelope)) int {
	n := 0
	for {
		select {
		case env := <-i.ch:
			fn(env)
			n++
		default:
			return n
		}
	}
}

func (i *Inbox) Dropped() uint64 { return i.dropped.Load() }
