package protocol

// Handler receives inbound envelopes. Transports call it from their own
// goroutines, so implementations must only enqueue.
type Handler func(env Envelope)

// Transport moves envelopes between the authority and its peers. Send never
// blocks the simulation: implementations queue the frame and return.
type Transport interface {
	Send(env Envelope) error
	Close() error
}

// AuthorityPeer is the PeerID a peer-side transport stamps on envelopes it
// receives from the authority.
const AuthorityPeer PeerID = "authority"
