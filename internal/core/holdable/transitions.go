package holdable

import (
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/holdable/geometry"
	"github.com/zeusync/holdable/internal/core/holdable/pose"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// edge carries the inputs of one transition.
type edge struct {
	holder   models.EntityID
	position physics.Vec2
	// release moves a dropped item to releasePos with zero rotation.
	release    bool
	releasePos physics.Vec2
	releaseRot float64
	// stow leaves a free item without an enabled body.
	stow    bool
	request *authority.Request
}

// commit runs the exit effects of the current placement and the enter effects
// of to as one step. Every body operation it performs is checked up front, so
// a destroyed body aborts with the item untouched.
func (h *Holdable) commit(to models.Placement, e edge) error {
	if h.removed {
		return ErrRemoved
	}
	if err := h.bodies.Check(); err != nil {
		h.logger.Debug("transition aborted",
			log.Stringer("from", h.placement), log.Stringer("to", to), log.Error(err))
		return err
	}

	from := h.placement
	switch from {
	case models.PlacementAttached:
		h.exitAttached()
	case models.PlacementEquipped:
		h.exitEquipped()
	}

	switch to {
	case models.PlacementFree:
		h.enterFree(e)
	case models.PlacementAttached:
		h.enterAttached(e)
	case models.PlacementEquipped:
		h.enterEquipped(e)
	}
	h.placement = to

	if from != to && h.env.Observer != nil {
		h.env.Observer.PlacementChanged(h, from, to)
	}
	if h.env.Gate != nil && (from != to || e.request != nil) {
		h.env.Gate.Committed(authority.Change{
			Item:      h.item.ID(),
			Placement: to,
			Position:  h.item.Position(),
			Holder:    h.holder,
			Request:   e.request,
		})
	}
	return nil
}

func (h *Holdable) exitAttached() {
	h.pickRules = h.savedPickRules
	h.savedPickRules = PickRules{}
	h.attachCell = 0
	h.bodies.SyncPusher(false)
}

func (h *Holdable) exitEquipped() {
	h.holder = 0
	h.bodies.SetHolder(0)
	h.bodies.SyncPusher(false)
	h.bodies.SetActive(false)
	h.preview = false
}

func (h *Holdable) enterFree(e edge) {
	if e.stow {
		_ = h.bodies.DeactivatePrimary()
		h.stowed = true
		return
	}
	h.stowed = false
	_ = h.bodies.ActivatePrimary(false)
	if e.release {
		h.bodies.Primary().ResetDynamics()
		if err := h.item.SetTransform(e.releasePos, e.releaseRot); err != nil {
			h.logger.Warn("failed to apply release transform", log.Error(err))
		}
	}
}

func (h *Holdable) enterAttached(e edge) {
	h.savedPickRules = h.pickRules.Clone()
	h.stowed = false

	if err := h.item.SetTransform(e.position, h.item.Rotation()); err != nil {
		h.logger.Warn("failed to move item to anchor", log.Error(err))
	}
	h.bind(e.position)

	if c, ok := h.item.(Container); ok {
		for _, contained := range c.ContainedItems() {
			if err := contained.SetTransform(e.position, contained.Rotation()); err != nil {
				h.logger.Warn("failed to move contained item",
					log.Uint64("contained_id", uint64(contained.ID())), log.Error(err))
			}
		}
	}

	_ = h.bodies.DeactivatePrimary()
	h.bodies.SyncPusher(false)
	h.bodies.SetActive(false)
	h.pickRules = SimplifiedPickRules()
}

// bind attaches the item to whatever holds it at pos. Items in a sealed region
// or a container need no binding; in open space a structure rebinds the item
// to the structure's container and terrain pins it to a cell.
func (h *Holdable) bind(pos physics.Vec2) {
	geo := h.env.Geometry
	if geo == nil {
		return
	}
	if _, sealed := h.item.SealedRegion(); sealed || h.item.Container() != 0 {
		return
	}
	if surface, ok := geo.FindSurfaceAttachTarget(pos); ok {
		if surface.Container != 0 {
			h.item.SetContainer(surface.Container)
		}
		return
	}
	if cell, ok := geo.FindTerrainCell(pos, geometry.BindDistance, geometry.CellSearchDepth); ok {
		h.attachCell = cell.ID()
	}
}

func (h *Holdable) enterEquipped(e edge) {
	_ = h.bodies.ActivatePrimary(true)
	h.stowed = false
	h.holder = e.holder
	h.bodies.SetHolder(e.holder)
	if holder, ok := h.env.actor(e.holder); ok {
		h.item.SetContainer(holder.Container())
	}
	h.bodies.SyncPusher(h.def.BlocksPlayers)
	h.bodies.SetActive(true)
}

// forceDrop is the engine-driven Attached to Free edge. It ignores the
// detach guards.
func (h *Holdable) forceDrop() {
	if err := h.commit(models.PlacementFree, edge{}); err != nil {
		return
	}
	h.logger.Info("detached from a wall")
}

// release drops an equipped item. With the holder's hand and arm available
// the item is placed just past the wrist; otherwise at the holder.
func (h *Holdable) release(holder Actor) error {
	e := edge{release: true, releasePos: h.item.Position(), releaseRot: h.item.Rotation()}
	if holder != nil {
		e.releasePos = holder.Position()
		if hand, arm, ok := h.releaseLimbs(holder); ok {
			e.releasePos = pose.ReleasePosition(hand.Position, arm.Position)
			e.releaseRot = 0
		}
	}

	prev := h.holder
	if err := h.commit(models.PlacementFree, e); err != nil {
		return err
	}
	if holder != nil {
		if inv := holder.Inventory(); inv != nil {
			inv.RemoveFromInventory(h.item.ID())
		}
		h.item.SetContainer(holder.Container())
	}
	h.logUnequipped(prev)
	return nil
}

func (h *Holdable) releaseLimbs(holder Actor) (pose.Limb, pose.Limb, bool) {
	handKind, armKind := models.LimbRightHand, models.LimbRightArm
	if inv := holder.Inventory(); inv != nil {
		id := h.item.ID()
		if inv.IsInSlot(id, models.SlotLeftHand) && !inv.IsInSlot(id, models.SlotRightHand) {
			handKind, armKind = models.LimbLeftHand, models.LimbLeftArm
		}
	}
	hand, okHand := holder.Limb(handKind)
	arm, okArm := holder.Limb(armKind)
	return hand, arm, okHand && okArm
}

func (h *Holdable) logEquipped(holder models.EntityID) {
	if h.lastHolder == holder || !h.audits() {
		h.lastHolder = holder
		return
	}
	h.lastHolder = holder
	h.logger.Info("equipped", log.Uint64("actor_id", uint64(holder)))
}

func (h *Holdable) logUnequipped(holder models.EntityID) {
	if holder == 0 || h.lastHolder != holder {
		return
	}
	h.lastHolder = 0
	if h.audits() {
		h.logger.Info("unequipped", log.Uint64("actor_id", uint64(holder)))
	}
}

// audits reports whether this side keeps the equip audit log.
func (h *Holdable) audits() bool {
	return h.env.Gate == nil || h.env.Gate.Role() != authority.RolePredictive
}

// canAttachAt evaluates the attach guard for a target position. Limits that
// depend on the requesting actor are checked separately.
func (h *Holdable) canAttachAt(pos physics.Vec2) bool {
	if !h.def.Attachable || !h.def.Reattachable {
		return false
	}
	if h.env.Editor {
		return true
	}
	if region, sealed := h.item.SealedRegion(); sealed && region.Contains(pos) {
		return true
	}
	geo := h.env.Geometry
	if geo == nil {
		return false
	}
	if _, ok := geo.FindSurfaceAttachTarget(pos); ok {
		return true
	}
	_, ok := geo.FindTerrainCell(pos, geometry.ProbeDistance, geometry.CellSearchDepth)
	return ok
}

// underLimit applies the limited-attachable rule for actor mounting the item
// into container.
func (h *Holdable) underLimit(actor Actor, container models.ContainerID) bool {
	if !h.def.LimitedAttachable || h.env.Editor {
		return true
	}
	profile, ok := actor.Profile()
	if !ok || h.env.Rules == nil {
		return false
	}
	limit := h.env.Rules.MaxAttachedCount(profile, h.def.ID)
	count := 0
	if h.env.Counter != nil {
		count = h.env.Counter.CountAttached(container, h.def.ID)
	}
	return count < limit
}

// attachContainer is the container an attach at pos lands in.
func (h *Holdable) attachContainer(actor Actor, pos physics.Vec2) models.ContainerID {
	if h.env.Geometry != nil {
		if surface, ok := h.env.Geometry.FindSurfaceAttachTarget(pos); ok && surface.Container != 0 {
			return surface.Container
		}
	}
	if h.item.Container() != 0 {
		return h.item.Container()
	}
	return actor.Container()
}

// attachPosition is where actor would mount the item right now.
func (h *Holdable) attachPosition(actor Actor) physics.Vec2 {
	if h.env.Geometry == nil {
		return actor.Cursor()
	}
	_, sealed := h.item.SealedRegion()
	openSpace := !sealed && actor.Container() == 0
	return h.env.Geometry.AttachPosition(actor.Position(), actor.Cursor(), openSpace)
}

func (h *Holdable) canAttachFor(actor Actor) bool {
	pos := h.attachPosition(actor)
	return h.canAttachAt(pos) && h.underLimit(actor, h.attachContainer(actor, pos))
}

// CanBeAttached reports whether actor could mount the item where it points.
func (h *Holdable) CanBeAttached(actor models.EntityID) bool {
	a, ok := h.env.actor(actor)
	if !ok || h.removed {
		return false
	}
	return h.canAttachFor(a)
}

// CanBeDetached evaluates the deattach-prevention guard.
func (h *Holdable) CanBeDetached() bool {
	if h.removed {
		return false
	}
	if h.placement != models.PlacementAttached || h.env.Editor {
		return true
	}
	if r, ok := h.item.(LevelResource); ok && r.IsLevelResource() {
		return true
	}
	if p, ok := h.item.(Planter); ok && p.HasLiveSeedlings() {
		return false
	}
	if w, ok := h.item.(Wired); ok {
		if panel, ok := w.ConnectionPanel(); ok && !panel.AlwaysAllowRewiring {
			if panel.Locked || (h.env.Rules != nil && !h.env.Rules.AllowRewiring()) {
				return false
			}
		}
	}
	return h.hasLegalPosition()
}

// hasLegalPosition reports whether the item still sits somewhere it can be
// attached: a sealed region, a structure or a resolvable solid cell.
func (h *Holdable) hasLegalPosition() bool {
	pos := h.item.Position()
	if region, sealed := h.item.SealedRegion(); sealed && region.Contains(pos) {
		return true
	}
	geo := h.env.Geometry
	if geo == nil {
		return false
	}
	if _, ok := geo.FindSurfaceAttachTarget(pos); ok {
		return true
	}
	if h.attachCell != 0 {
		return h.cellSolid()
	}
	_, ok := geo.FindTerrainCell(pos, geometry.ProbeDistance, geometry.CellSearchDepth)
	return ok
}
