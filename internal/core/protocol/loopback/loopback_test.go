package loopback

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeusync/holdable/internal/core/events/bus"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/protocol"
)

type inbox struct {
	got []protocol.Envelope
}

func (i *inbox) handle(env protocol.Envelope) { i.got = append(i.got, env) }

func TestRequestReachesAuthorityWithOrigin(t *testing.T) {
	n := NewNetwork(bus.New())
	auth := &inbox{}
	_, err := n.Authority(auth.handle)
	require.NoError(t, err)
	peer, err := n.Peer("alice", (&inbox{}).handle)
	require.NoError(t, err)

	env, err := protocol.NewEnvelope(protocol.KindEquipRequest, "", protocol.EquipRequest{
		RequestID: uuid.New(),
		ItemID:    3,
		Placement: models.PlacementAttached,
	})
	require.NoError(t, err)
	require.NoError(t, peer.Send(env))

	require.Len(t, auth.got, 1)
	assert.Equal(t, protocol.PeerID("alice"), auth.got[0].Peer)
	assert.Equal(t, protocol.KindEquipRequest, auth.got[0].Kind)
}

func TestAuthorityUnicastAndBroadcast(t *testing.T) {
	n := NewNetwork(nil)
	authority, err := n.Authority(func(protocol.Envelope) {})
	require.NoError(t, err)
	alice, bob := &inbox{}, &inbox{}
	_, err = n.Peer("alice", alice.handle)
	require.NoError(t, err)
	_, err = n.Peer("bob", bob.handle)
	require.NoError(t, err)
	assert.Equal(t, []protocol.PeerID{"alice", "bob"}, n.Peers())

	confirm, _ := protocol.NewEnvelope(protocol.KindConfirm, "bob", protocol.Confirm{ItemID: 3})
	require.NoError(t, authority.Send(confirm))
	assert.Empty(t, alice.got)
	require.Len(t, bob.got, 1)
	assert.Equal(t, protocol.AuthorityPeer, bob.got[0].Peer)

	changed, _ := protocol.NewEnvelope(protocol.KindAttachmentChanged, "", protocol.AttachmentChanged{ItemID: 3})
	require.NoError(t, authority.Send(changed))
	assert.Len(t, alice.got, 1)
	assert.Len(t, bob.got, 2)

	missing, _ := protocol.NewEnvelope(protocol.KindConfirm, "carol", protocol.Confirm{})
	assert.ErrorIs(t, authority.Send(missing), protocol.ErrPeerNotFound)
}

func TestClosedEndpoint(t *testing.T) {
	n := NewNetwork(nil)
	authority, err := n.Authority(func(protocol.Envelope) {})
	require.NoError(t, err)
	alice := &inbox{}
	peer, err := n.Peer("alice", alice.handle)
	require.NoError(t, err)

	require.NoError(t, peer.Close())
	require.NoError(t, peer.Close())
	env, _ := protocol.NewEnvelope(protocol.KindAttachmentChanged, "", protocol.AttachmentChanged{})
	assert.ErrorIs(t, peer.Send(env), protocol.ErrTransportClosed)

	require.NoError(t, authority.Send(env))
	assert.Empty(t, alice.got)
	assert.Empty(t, n.Peers())

	_, err = n.Peer("alice", alice.handle)
	assert.NoError(t, err, "a closed peer id can be reused")
}

func TestDuplicateRegistration(t *testing.T) {
	n := NewNetwork(nil)
	_, err := n.Authority(func(protocol.Envelope) {})
	require.NoError(t, err)
	_, err = n.Authority(func(protocol.Envelope) {})
	assert.Error(t, err)

	_, err = n.Peer("alice", func(protocol.Envelope) {})
	require.NoError(t, err)
	_, err = n.Peer("alice", func(protocol.Envelope) {})
	assert.Error(t, err)
	_, err = n.Peer(protocol.AuthorityPeer, func(protocol.Envelope) {})
	assert.Error(t, err)
}
