// Package holdable is the placement state machine of items that can lie free
// in the world, be mounted on a wall or terrain, or be held by an actor.
package holdable

import (
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/holdable/body"
	"github.com/zeusync/holdable/internal/core/holdable/pose"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// SpawnMode tells New how the item came into the world.
type SpawnMode uint8

const (
	// SpawnMidRound items always start free.
	SpawnMidRound SpawnMode = iota
	// SpawnLoading items restore their persisted attached flag.
	SpawnLoading
	// SpawnEditor items start attached when their definition says so.
	SpawnEditor
)

type Options struct {
	Spawn SpawnMode
	// Attached is the persisted placement bit, read for SpawnLoading.
	Attached bool
	// PickRules overrides the definition's rules, e.g. with persisted ones.
	PickRules *PickRules
}

// Holdable is the placement state of one item. All methods must be called
// from the simulation thread.
type Holdable struct {
	def    Definition
	item   Item
	env    *Env
	bodies *body.Controller
	pose   *pose.Evaluator
	logger log.Log

	placement  models.Placement
	attachCell models.CellID
	holder     models.EntityID
	// lastHolder is the holder the last equip was logged for.
	lastHolder models.EntityID
	stowed     bool
	removed    bool
	preview    bool
	// picking is the actor whose pick is inside Inventory.TryPut.
	picking     models.EntityID
	pickRequest *authority.Request

	pickRules      PickRules
	savedPickRules PickRules
}

// New creates the placement state of item and applies its initial placement.
func New(def Definition, item Item, bodies *body.Controller, env *Env, opts Options) (*Holdable, error) {
	if env == nil {
		env = &Env{}
	}
	logger := env.Logger
	if logger == nil {
		logger = log.Nop()
	}

	handles := def.Handles
	if handles[1] == (physics.Vec2{}) {
		handles[1] = handles[0]
	}

	h := &Holdable{
		def:       def,
		item:      item,
		env:       env,
		bodies:    bodies,
		pose:      pose.NewEvaluator(def.Pose, handles),
		logger:    logger.With(log.String("component", "holdable"), log.Uint64("item_id", uint64(item.ID()))),
		placement: models.PlacementFree,
		pickRules: def.PickRules.Clone(),
	}
	if opts.PickRules != nil {
		h.pickRules = opts.PickRules.Clone()
	}
	bodies.SetCanPush(def.CanPush)

	attach := false
	switch opts.Spawn {
	case SpawnLoading:
		attach = opts.Attached && def.Attachable
	case SpawnEditor:
		attach = def.AttachedByDefault && def.Attachable
	}

	var err error
	if attach {
		err = h.commit(models.PlacementAttached, edge{position: item.Position()})
	} else {
		err = h.bodies.ActivatePrimary(false)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (h *Holdable) Definition() Definition      { return h.def }
func (h *Holdable) Item() Item                  { return h.item }
func (h *Holdable) Bodies() *body.Controller    { return h.bodies }
func (h *Holdable) Placement() models.Placement { return h.placement }
func (h *Holdable) Holder() models.EntityID     { return h.holder }
func (h *Holdable) AttachCell() models.CellID   { return h.attachCell }
func (h *Holdable) Handles() [2]physics.Vec2    { return h.pose.Handles() }
func (h *Holdable) SwingPhase() float64         { return h.pose.Phase() }
func (h *Holdable) PickRules() PickRules        { return h.pickRules.Clone() }
func (h *Holdable) Removed() bool               { return h.removed }

// Stowed reports a free item that sits in a non-equipping inventory slot.
func (h *Holdable) Stowed() bool { return h.stowed }

// PreviewVisible reports whether the renderer should draw the attach preview.
func (h *Holdable) PreviewVisible() bool { return h.preview }

// State is the persisted part of a holdable.
type State struct {
	Attached  bool
	Position  physics.Vec2
	Rotation  float64
	PickRules PickRules
}

// State returns what is saved for the item. An attached item is saved with
// its pre-attachment rules; loading replays the attach and derives the
// mounted rules again.
func (h *Holdable) State() State {
	s := State{
		Attached:  h.placement == models.PlacementAttached,
		Position:  h.item.Position(),
		Rotation:  h.item.Rotation(),
		PickRules: h.pickRules.Clone(),
	}
	if s.Attached {
		s.PickRules = h.savedPickRules.Clone()
	}
	return s
}

// Update runs the per-tick pass. It must be called before the physics step.
func (h *Holdable) Update(dt float64) {
	if h.removed {
		return
	}

	if h.placement == models.PlacementAttached && h.attachCell != 0 && !h.cellSolid() {
		h.logger.Debug("attach cell no longer solid, dropping", log.Error(ErrStaleBinding))
		h.forceDrop()
	}

	if h.placement != models.PlacementEquipped {
		h.bodies.SyncPusher(false)
		h.bodies.SetActive(false)
		h.preview = false
		return
	}

	holder, ok := h.env.actor(h.holder)
	if !ok {
		h.release(nil)
		return
	}
	inv := holder.Inventory()
	if inv == nil || !inv.HasEquipped(h.item.ID()) {
		h.bodies.SetActive(false)
		h.preview = false
		return
	}
	h.bodies.SetActive(true)
	h.bodies.SyncPusher(h.def.BlocksPlayers)

	h.preview = holder.Controlled() && holder.IsKeyDown(models.KeyAim) && h.canAttachFor(holder)

	primary := h.bodies.Primary()
	if primary.Dir() != holder.Dir() {
		h.pose.Mirror()
		primary.SetDir(holder.Dir())
	}
	h.item.SetContainer(holder.Container())

	tether, hasTether := h.tether()
	if inv.IsHeld(h.item.ID()) {
		in := pose.Input{
			Aiming:        holder.IsKeyDown(models.KeyAim),
			Shooting:      holder.IsKeyDown(models.KeyShoot),
			CanAim:        holder.CanAim(),
			Incapacitated: holder.Incapacitated(),
		}
		target := h.pose.Step(dt, in, h.item.Scale())
		if h.env.Animator != nil {
			h.env.Animator.HoldItem(dt, holder.ID(), h.item.ID(), target)
		}
		if hasTether && !target.Aiming && tether.SnapWhenNotAimed() {
			tether.Snap()
		}
	} else {
		if hasTether {
			tether.Snap()
		}
		h.pinToBody(holder, inv)
	}

	if err := h.bodies.TrackPusher(); err != nil {
		h.logger.Warn("failed to move pusher", log.Error(err))
	}
}

// pinToBody holds a worn item rigidly on the head or torso. Items in any
// other slot are left alone.
func (h *Holdable) pinToBody(holder Actor, inv Inventory) {
	var kind models.LimbKind
	id := h.item.ID()
	switch {
	case inv.IsInSlot(id, models.SlotHead) || inv.IsInSlot(id, models.SlotHeadset):
		kind = models.LimbHead
	case inv.IsInSlot(id, models.SlotInnerClothes) || inv.IsInSlot(id, models.SlotOuterClothes):
		kind = models.LimbTorso
	default:
		return
	}
	limb, ok := holder.Limb(kind)
	if !ok {
		return
	}
	pos, rot := pose.PinToLimb(limb, h.pose.Handles()[0], h.item.Scale(), h.def.Pose.HoldAngle, holder.Dir())
	h.bodies.Primary().ResetDynamics()
	if err := h.item.SetTransform(pos, rot); err != nil {
		h.logger.Warn("failed to pin worn item", log.Error(err))
	}
}

// cellSolid reports whether the bound cell is still solid. Without loaded
// terrain the binding is left as it is.
func (h *Holdable) cellSolid() bool {
	if h.env.Geometry == nil || !h.env.Geometry.LevelLoaded() {
		return true
	}
	cell, ok := h.env.Geometry.ResolveCell(h.attachCell)
	return ok && cell.Solid()
}

func (h *Holdable) tether() (Tether, bool) {
	t, ok := h.item.(Tethered)
	if !ok {
		return nil, false
	}
	return t.Tether()
}

// Remove detaches the item from the simulation for good: the cell binding is
// cleared, the pusher destroyed and any pending request voided.
func (h *Holdable) Remove() {
	if h.removed {
		return
	}
	h.removed = true
	h.attachCell = 0
	h.holder = 0
	h.preview = false
	h.bodies.Remove()
	if h.env.Gate != nil {
		h.env.Gate.Forget(h.item.ID())
	}
}
