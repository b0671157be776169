package holdable

import (
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// route asks the gate what to do with a user request. It returns true when
// the caller must apply the change now.
func (h *Holdable) route(req authority.Request) (bool, error) {
	if h.env.Gate == nil {
		return true, nil
	}
	decision, _, err := h.env.Gate.Route(req)
	if err != nil {
		return false, err
	}
	if decision == authority.Forwarded {
		return false, ErrPendingAuthority
	}
	return true, nil
}

// Attach mounts the item where actor points. A held item is mounted by its
// holder while aiming.
func (h *Holdable) Attach(actorID models.EntityID) error {
	if h.removed {
		return ErrRemoved
	}
	actor, ok := h.env.actor(actorID)
	if !ok {
		return ErrIllegalTarget
	}
	switch h.placement {
	case models.PlacementAttached:
		return ErrIllegalTarget
	case models.PlacementEquipped:
		if h.holder != actorID || !actor.IsKeyDown(models.KeyAim) {
			return ErrIllegalTarget
		}
	}

	pos := h.attachPosition(actor)
	if !h.canAttachAt(pos) || !h.underLimit(actor, h.attachContainer(actor, pos)) {
		return ErrIllegalTarget
	}
	apply, err := h.route(authority.Request{
		Item:      h.item.ID(),
		Actor:     actorID,
		Placement: models.PlacementAttached,
		Position:  pos,
	})
	if !apply {
		return err
	}
	return h.applyAttach(pos, nil)
}

func (h *Holdable) applyAttach(pos physics.Vec2, req *authority.Request) error {
	prev := h.holder
	if err := h.commit(models.PlacementAttached, edge{position: pos, request: req}); err != nil {
		return err
	}
	if prev != 0 {
		if a, ok := h.env.actor(prev); ok && a.Inventory() != nil {
			a.Inventory().RemoveFromInventory(h.item.ID())
		}
		h.logUnequipped(prev)
	}
	return nil
}

// Detach frees an attached item where it is, subject to the detach guards.
func (h *Holdable) Detach(actorID models.EntityID) error {
	if h.removed {
		return ErrRemoved
	}
	if h.placement != models.PlacementAttached || !h.CanBeDetached() {
		return ErrIllegalTarget
	}
	apply, err := h.route(authority.Request{
		Item:      h.item.ID(),
		Actor:     actorID,
		Placement: models.PlacementFree,
		Position:  h.item.Position(),
	})
	if !apply {
		return err
	}
	return h.applyDetach(nil)
}

func (h *Holdable) applyDetach(req *authority.Request) error {
	if err := h.commit(models.PlacementFree, edge{request: req}); err != nil {
		return err
	}
	if h.audits() {
		h.logger.Info("detached from a wall")
	}
	return nil
}

// Pick hands the item to actor's inventory. An attached item goes straight
// to the holder's hand when the inventory equips it.
func (h *Holdable) Pick(actorID models.EntityID) error {
	if h.removed {
		return ErrRemoved
	}
	actor, ok := h.env.actor(actorID)
	if !ok {
		return ErrIllegalTarget
	}
	switch h.placement {
	case models.PlacementEquipped:
		return ErrIllegalTarget
	case models.PlacementAttached:
		if !h.CanBeDetached() {
			return ErrIllegalTarget
		}
	}
	apply, err := h.route(authority.Request{
		Item:      h.item.ID(),
		Actor:     actorID,
		Placement: models.PlacementEquipped,
		Position:  h.item.Position(),
	})
	if !apply {
		return err
	}
	return h.applyPick(actor, nil)
}

func (h *Holdable) applyPick(actor Actor, req *authority.Request) error {
	inv := actor.Inventory()
	if inv == nil {
		return ErrIllegalTarget
	}

	h.picking, h.pickRequest = actor.ID(), req
	stored := inv.TryPut(h.item.ID())
	h.picking, h.pickRequest = 0, nil
	if !stored {
		return ErrIllegalTarget
	}

	if h.placement == models.PlacementEquipped && h.holder == actor.ID() {
		return nil
	}
	if h.placement == models.PlacementAttached || !h.stowed {
		return h.commit(models.PlacementFree, edge{stow: true, request: req})
	}
	return nil
}

// Equip is called by the inventory when a slot that equips the item
// receives it.
func (h *Holdable) Equip(holderID models.EntityID) error {
	if h.removed {
		return ErrRemoved
	}
	holder, ok := h.env.actor(holderID)
	if !ok {
		return ErrIllegalTarget
	}
	switch h.placement {
	case models.PlacementEquipped:
		if h.holder == holderID {
			return nil
		}
		return ErrIllegalTarget
	case models.PlacementAttached:
		if h.picking != holderID {
			return ErrIllegalTarget
		}
	}
	if inv := holder.Inventory(); inv != nil {
		if slot, ok := inv.SlotOf(h.item.ID()); ok && !h.def.SlotAllowed(slot) {
			return ErrIllegalTarget
		}
	}
	if w, ok := h.item.(Wearable); ok {
		w.UnequipWearable(holderID)
	}

	primary := h.bodies.Primary()
	wasDisabled := primary == nil || !primary.Enabled()

	var req *authority.Request
	if h.picking == holderID {
		req = h.pickRequest
	}
	if err := h.commit(models.PlacementEquipped, edge{holder: holderID, request: req}); err != nil {
		return err
	}

	if wasDisabled {
		pos := holder.Position()
		if hand, ok := holder.Limb(models.LimbRightHand); ok {
			pos = hand.Position
		} else if hand, ok := holder.Limb(models.LimbLeftHand); ok {
			pos = hand.Position
		}
		if err := h.item.SetTransform(pos, h.item.Rotation()); err != nil {
			h.logger.Warn("failed to move item to hand", log.Error(err))
		}
	}
	h.logEquipped(holderID)
	return nil
}

// Unequip is called by the inventory when the item leaves an equipping slot
// but stays in the inventory.
func (h *Holdable) Unequip(holderID models.EntityID) error {
	if h.removed {
		return ErrRemoved
	}
	if h.placement != models.PlacementEquipped || h.holder != holderID {
		return ErrIllegalTarget
	}
	if err := h.commit(models.PlacementFree, edge{stow: true}); err != nil {
		return err
	}
	h.logUnequipped(holderID)
	return nil
}

// Drop puts the item back into the world. An attached item is dropped by
// the engine without the detach guards.
func (h *Holdable) Drop(dropperID models.EntityID) error {
	if h.removed {
		return ErrRemoved
	}
	if t, ok := h.tether(); ok {
		t.Snap()
	}
	if w, ok := h.item.(WireOwner); ok {
		w.DropConnectedWires(dropperID)
	}

	switch h.placement {
	case models.PlacementAttached:
		h.forceDrop()
		return nil
	case models.PlacementEquipped:
		holder, _ := h.env.actor(h.holder)
		return h.release(holder)
	}
	if h.stowed {
		dropper, _ := h.env.actor(dropperID)
		return h.release(dropper)
	}
	return nil
}
