package holdable

import (
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/holdable/geometry"
	"github.com/zeusync/holdable/internal/core/holdable/pose"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// Item is the world object a Holdable belongs to. Its transform lives in its
// primary body; SetTransform fails once that body is removed.
type Item interface {
	ID() models.EntityID
	Definition() models.DefinitionID
	Removed() bool

	Position() physics.Vec2
	Rotation() float64
	SetTransform(pos physics.Vec2, rotation float64) error
	Scale() float64

	Container() models.ContainerID
	SetContainer(models.ContainerID)
	// SealedRegion returns the bounds of the sealed region (hull) the item is
	// currently inside.
	SealedRegion() (geometry.Rect, bool)
}

// Optional item capabilities, discovered with type assertions.
type (
	// LevelResource items are always detachable.
	LevelResource interface{ IsLevelResource() bool }
	// Planter items cannot be detached while seedlings grow in them.
	Planter interface{ HasLiveSeedlings() bool }
	// Wired items expose a connection panel.
	Wired interface {
		ConnectionPanel() (ConnectionPanel, bool)
	}
	// Tethered items can have a rope attached to their last projectile.
	Tethered interface{ Tether() (Tether, bool) }
	// Container items carry other items that follow them when mounted.
	Container interface{ ContainedItems() []Item }
	// WireOwner items drop their wires when dropped.
	WireOwner interface{ DropConnectedWires(dropper models.EntityID) }
	// Wearable items cannot be held and worn at the same time.
	Wearable interface{ UnequipWearable(actor models.EntityID) }
)

// ConnectionPanel is the wiring state relevant to detaching.
type ConnectionPanel struct {
	Locked              bool
	AlwaysAllowRewiring bool
}

// Tether is a rope linking the item to something else.
type Tether interface {
	SnapWhenNotAimed() bool
	Snap()
}

// Actor is a character that can hold items.
type Actor interface {
	ID() models.EntityID
	Removed() bool
	Position() physics.Vec2
	Cursor() physics.Vec2
	Dir() float64
	Container() models.ContainerID
	// Profile is false for actors without persistent info.
	Profile() (models.ProfileID, bool)

	IsKeyDown(key models.InputKey) bool
	CanAim() bool
	Incapacitated() bool
	// Controlled reports whether this actor is driven by the local player.
	Controlled() bool

	Limb(kind models.LimbKind) (pose.Limb, bool)
	Inventory() Inventory
}

// Inventory is the slot container that owns item-to-actor association.
type Inventory interface {
	// TryPut stores the item in a free slot. The inventory calls Equip on the
	// holdable when the chosen slot equips it.
	TryPut(item models.EntityID) bool
	RemoveFromInventory(item models.EntityID)
	HasEquipped(item models.EntityID) bool
	// IsHeld reports whether the item sits in a hand slot.
	IsHeld(item models.EntityID) bool
	IsInSlot(item models.EntityID, slot models.SlotKind) bool
	SlotOf(item models.EntityID) (models.SlotKind, bool)
}

// Actors resolves weak actor references.
type Actors interface {
	Actor(id models.EntityID) (Actor, bool)
}

// Animator resolves limb transforms for a held item.
type Animator interface {
	HoldItem(dt float64, actor, item models.EntityID, target pose.Target)
}

// Rules is the read-only session ruleset.
type Rules interface {
	AllowRewiring() bool
	// MaxAttachedCount returns the saved per-profile limit for a definition.
	MaxAttachedCount(profile models.ProfileID, def models.DefinitionID) int
}

// AttachedCounter counts attached items of a definition in a container.
type AttachedCounter interface {
	CountAttached(container models.ContainerID, def models.DefinitionID) int
}

// PlacementObserver is notified after every committed transition.
type PlacementObserver interface {
	PlacementChanged(h *Holdable, from, to models.Placement)
}

// Env is the explicit, read-only context a Holdable runs in.
type Env struct {
	Geometry *geometry.Adapter
	Gate     *authority.Gate
	Rules    Rules
	Counter  AttachedCounter
	Actors   Actors
	Animator Animator
	Observer PlacementObserver
	// Editor enables the authoring rules: attach and detach anywhere.
	Editor bool
	Logger log.Log
}

func (e *Env) actor(id models.EntityID) (Actor, bool) {
	if id == 0 || e.Actors == nil {
		return nil, false
	}
	a, ok := e.Actors.Actor(id)
	if !ok || a == nil || a.Removed() {
		return nil, false
	}
	return a, true
}
