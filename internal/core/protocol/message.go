package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// Kind is the routing key of an envelope.
type Kind string

const (
	KindAttachmentChanged Kind = "holdable.attachment_changed"
	KindEquipRequest      Kind = "holdable.equip_request"
	KindConfirm           Kind = "holdable.confirm"
)

// PeerID names a connection. On outbound envelopes it is the destination
// (empty broadcasts from the authority or targets the authority from a peer);
// on inbound envelopes it is the origin.
type PeerID string

// Envelope is the unit every transport carries.
type Envelope struct {
	Kind    Kind            `json:"type"`
	Peer    PeerID          `json:"peer,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// AttachmentChanged is broadcast by the authority after every committed
// placement change.
type AttachmentChanged struct {
	ItemID    models.EntityID  `json:"item_id"`
	Placement models.Placement `json:"placement"`
	Position  physics.Vec2     `json:"position"`
	Holder    models.EntityID  `json:"holder,omitempty"`
}

// EquipRequest carries a predictive peer's attach/detach/pick intent.
type EquipRequest struct {
	RequestID uuid.UUID        `json:"request_id"`
	ItemID    models.EntityID  `json:"item_id"`
	Actor     models.EntityID  `json:"actor"`
	Placement models.Placement `json:"placement"`
	Position  physics.Vec2     `json:"position"`
}

// Confirm answers an EquipRequest once the authority committed it.
type Confirm struct {
	RequestID uuid.UUID        `json:"request_id"`
	ItemID    models.EntityID  `json:"item_id"`
	Placement models.Placement `json:"placement"`
	Position  physics.Vec2     `json:"position"`
}

// NewEnvelope encodes payload into an envelope of the given kind.
func NewEnvelope(kind Kind, peer PeerID, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return Envelope{Kind: kind, Peer: peer, Payload: raw}, nil
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDeserializationFailed, e.Kind, err)
	}
	return nil
}

// Codec turns envelopes into frames and back.
type Codec interface {
	Encode(env Envelope) ([]byte, error)
	Decode(data []byte) (Envelope, error)
}

// JSONCodec frames envelopes as JSON documents.
type JSONCodec struct{}

func (JSONCodec) Encode(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return data, nil
}

func (JSONCodec) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrDeserializationFailed, err)
	}
	switch env.Kind {
	case KindAttachmentChanged, KindEquipRequest, KindConfirm:
	default:
		return Envelope{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidMessage, env.Kind)
	}
	return env, nil
}
