package holdable

import (
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/protocol"
)

// HandleRequest commits a request forwarded by a predictive peer. The guards
// are evaluated again, at the requested position. A denied request gets no
// reply.
func (h *Holdable) HandleRequest(req authority.Request) error {
	if h.removed {
		return ErrRemoved
	}
	actor, ok := h.env.actor(req.Actor)
	if !ok {
		return ErrIllegalTarget
	}

	switch req.Placement {
	case models.PlacementAttached:
		if h.placement == models.PlacementAttached ||
			(h.placement == models.PlacementEquipped && h.holder != req.Actor) {
			return ErrIllegalTarget
		}
		if !h.canAttachAt(req.Position) || !h.underLimit(actor, h.attachContainer(actor, req.Position)) {
			return ErrIllegalTarget
		}
		return h.applyAttach(req.Position, &req)

	case models.PlacementFree:
		if h.placement != models.PlacementAttached || !h.CanBeDetached() {
			return ErrIllegalTarget
		}
		return h.applyDetach(&req)

	case models.PlacementEquipped:
		if h.placement == models.PlacementEquipped ||
			(h.placement == models.PlacementAttached && !h.CanBeDetached()) {
			return ErrIllegalTarget
		}
		return h.applyPick(actor, &req)
	}
	return ErrIllegalTarget
}

// ApplyConfirm applies the change the authority confirmed for this item's
// pending request. Confirmations that do not match are discarded with
// ErrAuthorityMismatch.
func (h *Holdable) ApplyConfirm(c protocol.Confirm) error {
	if h.env.Gate == nil {
		return ErrAuthorityMismatch
	}
	req, err := h.env.Gate.Confirm(c)
	if err != nil {
		return err
	}
	if h.removed {
		return ErrRemoved
	}
	if h.placement == c.Placement {
		return nil
	}

	switch c.Placement {
	case models.PlacementAttached:
		return h.applyAttach(c.Position, nil)
	case models.PlacementFree:
		return h.applyDetach(nil)
	case models.PlacementEquipped:
		actor, ok := h.env.actor(req.Actor)
		if !ok {
			return ErrIllegalTarget
		}
		return h.applyPick(actor, nil)
	}
	return ErrAuthorityMismatch
}

// ApplyRemote applies an authoritative AttachmentChanged unconditionally.
func (h *Holdable) ApplyRemote(change protocol.AttachmentChanged) error {
	if h.removed {
		return ErrRemoved
	}
	if h.placement == change.Placement && h.holder == change.Holder {
		return nil
	}

	switch change.Placement {
	case models.PlacementAttached:
		return h.commit(models.PlacementAttached, edge{position: change.Position})
	case models.PlacementFree:
		return h.commit(models.PlacementFree, edge{
			release:    true,
			releasePos: change.Position,
			releaseRot: h.item.Rotation(),
		})
	case models.PlacementEquipped:
		if change.Holder == 0 {
			return ErrIllegalTarget
		}
		return h.commit(models.PlacementEquipped, edge{holder: change.Holder})
	}
	return ErrIllegalTarget
}
