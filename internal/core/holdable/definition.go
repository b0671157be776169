package holdable

import (
	"slices"

	"github.com/zeusync/holdable/internal/core/holdable/pose"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// Definition is the immutable, per-prefab description of a holdable item.
type Definition struct {
	ID models.DefinitionID

	Attachable        bool
	Reattachable      bool
	LimitedAttachable bool
	AttachedByDefault bool

	// BlocksPlayers gives the item a pusher body while it is held.
	BlocksPlayers bool
	CanPush       bool

	Handles      [2]physics.Vec2
	Pose         pose.Config
	AllowedSlots []models.SlotKind

	PickRules PickRules
}

// SlotAllowed reports whether slot is one of the definition's allowed slots.
// The generic Any slot never qualifies; an empty list allows either hand.
func (d Definition) SlotAllowed(slot models.SlotKind) bool {
	if slot == models.SlotAny {
		return false
	}
	if len(d.AllowedSlots) == 0 {
		return models.Hands&slot != 0
	}
	for _, allowed := range d.AllowedSlots {
		if allowed&slot != 0 {
			return true
		}
	}
	return false
}

// PickRules is the "how to pick this up" rule set of an item.
type PickRules struct {
	RequiredItems []string
	Key           models.InputKey
	Message       string
}

// SimplifiedPickRules is the rule set of a wall-mounted item: no tools and the
// default interaction key.
func SimplifiedPickRules() PickRules {
	return PickRules{Key: models.KeySelect}
}

func (r PickRules) Clone() PickRules {
	r.RequiredItems = slices.Clone(r.RequiredItems)
	return r
}

func (r PickRules) Equal(other PickRules) bool {
	return r.Key == other.Key && r.Message == other.Message && slices.Equal(r.RequiredItems, other.RequiredItems)
}
