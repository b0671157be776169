// Package authority splits placement changes between the authoritative side
// of a session, which commits them, and predictive peers, which forward them
// and wait for a confirmation.
package authority

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

var (
	// ErrAuthorityMismatch is returned for a confirmation that does not answer
	// the pending request of its item.
	ErrAuthorityMismatch = errors.New("authority: confirmation does not match pending request")
	ErrNoTransport       = errors.New("authority: predictive role requires a transport")
	ErrWrongRole         = errors.New("authority: operation not valid for role")
)

type Role uint8

const (
	// RoleLocal runs a non-networked session: every change applies at once.
	RoleLocal Role = iota
	RoleAuthoritative
	RolePredictive
)

func (r Role) String() string {
	switch r {
	case RoleLocal:
		return "local"
	case RoleAuthoritative:
		return "authoritative"
	case RolePredictive:
		return "predictive"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "local":
		return RoleLocal, nil
	case "authoritative", "server":
		return RoleAuthoritative, nil
	case "predictive", "client":
		return RolePredictive, nil
	}
	return RoleLocal, fmt.Errorf("unknown authority role %q", s)
}

// Request is a user-initiated placement change.
type Request struct {
	ID        uuid.UUID
	Item      models.EntityID
	Actor     models.EntityID
	Placement models.Placement
	Position  physics.Vec2
	// Peer is the origin of a request received by the authority.
	Peer protocol.PeerID
}

// Change describes a committed placement change.
type Change struct {
	Item      models.EntityID
	Placement models.Placement
	Position  physics.Vec2
	Holder    models.EntityID
	// Request is the request the change answers, nil for engine-driven changes.
	Request *Request
}

// Decision tells the caller what to do with a routed request.
type Decision uint8

const (
	// Apply means the caller commits the change now.
	Apply Decision = iota
	// Forwarded means the request is waiting for the authority.
	Forwarded
)

// Gate routes requests according to the session role. The simulation thread
// is its only caller; the mutex guards Pending lookups from diagnostics.
type Gate struct {
	role      Role
	transport protocol.Transport
	logger    log.Log

	mu      sync.Mutex
	pending map[models.EntityID]Request
}

func NewGate(role Role, transport protocol.Transport, logger log.Log) *Gate {
	if logger == nil {
		logger = log.Nop()
	}
	return &Gate{
		role:      role,
		transport: transport,
		logger:    logger.With(log.String("component", "authority"), log.Stringer("role", role)),
		pending:   make(map[models.EntityID]Request),
	}
}

func (g *Gate) Role() Role { return g.role }

// Route decides whether req is applied locally. On a predictive peer the
// request gets an id, replaces any older pending request of the same item and
// is sent to the authority.
func (g *Gate) Route(req Request) (Decision, Request, error) {
	if g.role != RolePredictive {
		return Apply, req, nil
	}
	if g.transport == nil {
		return Forwarded, req, ErrNoTransport
	}
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}

	env, err := protocol.NewEnvelope(protocol.KindEquipRequest, "", protocol.EquipRequest{
		RequestID: req.ID,
		ItemID:    req.Item,
		Actor:     req.Actor,
		Placement: req.Placement,
		Position:  req.Position,
	})
	if err != nil {
		return Forwarded, req, err
	}
	if err = g.transport.Send(env); err != nil {
		g.logger.Warn("failed to forward request", log.Uint64("item_id", uint64(req.Item)), log.Error(err))
		return Forwarded, req, err
	}

	g.mu.Lock()
	g.pending[req.Item] = req
	g.mu.Unlock()
	return Forwarded, req, nil
}

// Committed announces a committed change. Only the authoritative role sends
// anything: a Confirm to the peer whose request was answered, then an
// AttachmentChanged to everyone.
func (g *Gate) Committed(change Change) {
	if g.role != RoleAuthoritative || g.transport == nil {
		return
	}

	if req := change.Request; req != nil && req.Peer != "" && req.ID != uuid.Nil {
		g.send(protocol.KindConfirm, req.Peer, protocol.Confirm{
			RequestID: req.ID,
			ItemID:    change.Item,
			Placement: change.Placement,
			Position:  change.Position,
		})
	}
	g.send(protocol.KindAttachmentChanged, "", protocol.AttachmentChanged{
		ItemID:    change.Item,
		Placement: change.Placement,
		Position:  change.Position,
		Holder:    change.Holder,
	})
}

func (g *Gate) send(kind protocol.Kind, peer protocol.PeerID, payload any) {
	env, err := protocol.NewEnvelope(kind, peer, payload)
	if err == nil {
		err = g.transport.Send(env)
	}
	if err != nil {
		g.logger.Warn("failed to send", log.String("kind", string(kind)), log.String("peer", string(peer)), log.Error(err))
	}
}

// Confirm matches an authority confirmation with the pending request of its
// item. A match clears the pending request and returns it. Anything else is
// ErrAuthorityMismatch and leaves the pending request in place.
func (g *Gate) Confirm(c protocol.Confirm) (Request, error) {
	if g.role != RolePredictive {
		return Request{}, ErrWrongRole
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	req, ok := g.pending[c.ItemID]
	if !ok || req.ID != c.RequestID || req.Placement != c.Placement {
		g.logger.Debug("discarding confirmation",
			log.Uint64("item_id", uint64(c.ItemID)),
			log.String("request_id", c.RequestID.String()),
			log.Stringer("placement", c.Placement),
		)
		return Request{}, ErrAuthorityMismatch
	}
	delete(g.pending, c.ItemID)
	return req, nil
}

func (g *Gate) Pending(item models.EntityID) (Request, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	req, ok := g.pending[item]
	return req, ok
}

// Forget voids the pending request of a removed item.
func (g *Gate) Forget(item models.EntityID) {
	g.mu.Lock()
	delete(g.pending, item)
	g.mu.Unlock()
}
