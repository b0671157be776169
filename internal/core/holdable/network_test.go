package holdable

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/protocol"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

type outbox struct {
	sent []protocol.Envelope
}

func (o *outbox) Send(env protocol.Envelope) error {
	o.sent = append(o.sent, env)
	return nil
}

func (o *outbox) Close() error { return nil }

func (o *outbox) kinds() []protocol.Kind {
	out := make([]protocol.Kind, 0, len(o.sent))
	for _, env := range o.sent {
		out = append(out, env.Kind)
	}
	return out
}

func lastRequest(t *testing.T, o *outbox) protocol.EquipRequest {
	t.Helper()
	require.NotEmpty(t, o.sent)
	env := o.sent[len(o.sent)-1]
	require.Equal(t, protocol.KindEquipRequest, env.Kind)
	var req protocol.EquipRequest
	require.NoError(t, env.Decode(&req))
	return req
}

func TestPredictiveAttachWaitsForConfirm(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RolePredictive, out, log.Nop())
	h, item := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)
	pointAtWall(actor)

	assert.ErrorIs(t, h.Attach(actor.id), ErrPendingAuthority)
	assert.Equal(t, models.PlacementFree, h.Placement())
	assert.True(t, item.body.Enabled())

	req := lastRequest(t, out)
	assert.Equal(t, models.EntityID(1), req.ItemID)
	assert.Equal(t, models.PlacementAttached, req.Placement)
	assert.Equal(t, physics.Vec2{96, 48}, req.Position)

	wrong := protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementEquipped}
	assert.ErrorIs(t, h.ApplyConfirm(wrong), ErrAuthorityMismatch)
	assert.Equal(t, models.PlacementFree, h.Placement())

	stale := protocol.Confirm{RequestID: uuid.New(), ItemID: 1, Placement: models.PlacementAttached}
	assert.ErrorIs(t, h.ApplyConfirm(stale), ErrAuthorityMismatch)

	ok := protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementAttached, Position: req.Position}
	require.NoError(t, h.ApplyConfirm(ok))
	assert.Equal(t, models.PlacementAttached, h.Placement())
	assert.Equal(t, physics.Vec2{96, 48}, item.Position())
	assert.False(t, item.body.Enabled())

	assert.ErrorIs(t, h.ApplyConfirm(ok), ErrAuthorityMismatch, "a confirmation is consumed once")
	assert.Equal(t, []protocol.Kind{protocol.KindEquipRequest}, out.kinds())
}

func TestPredictiveGuardsStillApply(t *testing.T) {
	hs := newHarness(t)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RolePredictive, out, log.Nop())
	h, _ := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)
	pointAtWall(actor)

	assert.ErrorIs(t, h.Attach(actor.id), ErrIllegalTarget)
	assert.Empty(t, out.sent)
}

func TestPredictivePickAndDetach(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RolePredictive, out, log.Nop())
	def := wallDefinition()
	item := hs.newBareItem(1, def)
	require.NoError(t, item.SetTransform(physics.Vec2{96, 48}, 0))
	h := hs.add(item, item, def, Options{Spawn: SpawnLoading, Attached: true})
	actor := hs.newActor(10)

	assert.ErrorIs(t, h.Pick(actor.id), ErrPendingAuthority)
	req := lastRequest(t, out)
	require.NoError(t, h.ApplyConfirm(protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementEquipped}))
	assert.Equal(t, models.PlacementEquipped, h.Placement())
	assert.Equal(t, actor.id, h.Holder())

	actor.keys[models.KeyAim] = true
	pointAtWall(actor)
	assert.ErrorIs(t, h.Attach(actor.id), ErrPendingAuthority)
	req = lastRequest(t, out)
	require.NoError(t, h.ApplyConfirm(protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementAttached, Position: req.Position}))

	assert.ErrorIs(t, h.Detach(actor.id), ErrPendingAuthority)
	req = lastRequest(t, out)
	require.NoError(t, h.ApplyConfirm(protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementFree}))
	assert.Equal(t, models.PlacementFree, h.Placement())
}

func TestRemovedItemVoidsPendingRequest(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RolePredictive, out, log.Nop())
	h, _ := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)
	pointAtWall(actor)

	require.ErrorIs(t, h.Attach(actor.id), ErrPendingAuthority)
	req := lastRequest(t, out)
	h.Remove()

	err := h.ApplyConfirm(protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementAttached})
	assert.ErrorIs(t, err, ErrAuthorityMismatch)
	_, pending := hs.env.Gate.Pending(1)
	assert.False(t, pending)
}

func TestAuthoritativeCommitBroadcasts(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RoleAuthoritative, out, log.Nop())
	h, _ := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)
	pointAtWall(actor)

	require.NoError(t, h.Attach(actor.id))
	assert.Equal(t, []protocol.Kind{protocol.KindAttachmentChanged}, out.kinds())

	var change protocol.AttachmentChanged
	require.NoError(t, out.sent[0].Decode(&change))
	assert.Equal(t, models.EntityID(1), change.ItemID)
	assert.Equal(t, models.PlacementAttached, change.Placement)
	assert.Equal(t, physics.Vec2{96, 48}, change.Position)
}

func TestAuthoritativeHandlesRemoteRequest(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RoleAuthoritative, out, log.Nop())
	h, _ := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)

	req := authority.Request{
		ID:        uuid.New(),
		Item:      1,
		Actor:     actor.id,
		Placement: models.PlacementAttached,
		Position:  physics.Vec2{96, 48},
		Peer:      "peer-a",
	}
	require.NoError(t, h.HandleRequest(req))
	assert.Equal(t, models.PlacementAttached, h.Placement())
	require.Equal(t, []protocol.Kind{protocol.KindConfirm, protocol.KindAttachmentChanged}, out.kinds())
	assert.Equal(t, protocol.PeerID("peer-a"), out.sent[0].Peer)

	var confirm protocol.Confirm
	require.NoError(t, out.sent[0].Decode(&confirm))
	assert.Equal(t, req.ID, confirm.RequestID)
	assert.Equal(t, models.PlacementAttached, confirm.Placement)

	out.sent = nil
	pick := req
	pick.ID = uuid.New()
	pick.Placement = models.PlacementEquipped
	require.NoError(t, h.HandleRequest(pick))
	assert.Equal(t, models.PlacementEquipped, h.Placement())
	require.Equal(t, []protocol.Kind{protocol.KindConfirm, protocol.KindAttachmentChanged}, out.kinds())
	require.NoError(t, out.sent[0].Decode(&confirm))
	assert.Equal(t, pick.ID, confirm.RequestID)
	assert.Equal(t, models.PlacementEquipped, confirm.Placement)
}

func TestAuthoritativeDeniesIllegalRequest(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RoleAuthoritative, out, log.Nop())
	h, _ := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)

	req := authority.Request{ID: uuid.New(), Item: 1, Actor: actor.id, Placement: models.PlacementAttached, Position: physics.Vec2{-900, -900}, Peer: "peer-a"}
	assert.ErrorIs(t, h.HandleRequest(req), ErrIllegalTarget)

	req.Placement = models.PlacementFree
	assert.ErrorIs(t, h.HandleRequest(req), ErrIllegalTarget)

	req.Actor = 99
	assert.ErrorIs(t, h.HandleRequest(req), ErrIllegalTarget)

	assert.Equal(t, models.PlacementFree, h.Placement())
	assert.Empty(t, out.sent)
}

func TestApplyRemoteResyncs(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RolePredictive, out, log.Nop())
	h, item := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)

	require.NoError(t, h.ApplyRemote(protocol.AttachmentChanged{ItemID: 1, Placement: models.PlacementAttached, Position: physics.Vec2{32, 32}}))
	assert.Equal(t, models.PlacementAttached, h.Placement())
	assert.Equal(t, physics.Vec2{32, 32}, item.Position())

	require.NoError(t, h.ApplyRemote(protocol.AttachmentChanged{ItemID: 1, Placement: models.PlacementEquipped, Holder: actor.id}))
	assert.Equal(t, models.PlacementEquipped, h.Placement())
	assert.Equal(t, actor.id, h.Holder())

	assert.ErrorIs(t, h.ApplyRemote(protocol.AttachmentChanged{ItemID: 1, Placement: models.PlacementEquipped}), ErrIllegalTarget)

	require.NoError(t, h.ApplyRemote(protocol.AttachmentChanged{ItemID: 1, Placement: models.PlacementFree, Position: physics.Vec2{5, 6}}))
	assert.Equal(t, models.PlacementFree, h.Placement())
	assert.Equal(t, physics.Vec2{5, 6}, item.Position())
	assert.True(t, item.body.PhysEnabled())
	assert.Empty(t, out.sent, "a predictive peer never echoes a resync")
}

func TestConfirmAfterResyncIsNoop(t *testing.T) {
	hs := newHarness(t, wall)
	out := &outbox{}
	hs.env.Gate = authority.NewGate(authority.RolePredictive, out, log.Nop())
	h, _ := hs.newItem(1, wallDefinition(), Options{})
	actor := hs.newActor(10)
	pointAtWall(actor)

	require.ErrorIs(t, h.Attach(actor.id), ErrPendingAuthority)
	req := lastRequest(t, out)
	require.NoError(t, h.ApplyRemote(protocol.AttachmentChanged{ItemID: 1, Placement: models.PlacementAttached, Position: req.Position}))
	transitions := len(hs.observer.transitions)

	require.NoError(t, h.ApplyConfirm(protocol.Confirm{RequestID: req.RequestID, ItemID: 1, Placement: models.PlacementAttached}))
	assert.Len(t, hs.observer.transitions, transitions)
	_, pending := hs.env.Gate.Pending(1)
	assert.False(t, pending)
}
