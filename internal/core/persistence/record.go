// Package persistence stores holdable placement records between rounds.
// Equipped placement is never persisted; a saved item is either attached or
// free.
package persistence

import (
	"errors"

	"github.com/zeusync/holdable/internal/core/holdable"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

var ErrEmptyPath = errors.New("persistence: empty path")

// Record is the saved state of one holdable item.
type Record struct {
	ItemID     models.EntityID     `json:"item_id"`
	Definition models.DefinitionID `json:"definition"`
	Container  models.ContainerID  `json:"container,omitempty"`
	Attached   bool                `json:"attached"`
	Position   physics.Vec2        `json:"position"`
	Rotation   float64             `json:"rotation"`
	PickRules  holdable.PickRules  `json:"pick_rules"`
}

// RecordOf captures the persisted state of h.
func RecordOf(h *holdable.Holdable) Record {
	s := h.State()
	return Record{
		ItemID:     h.Item().ID(),
		Definition: h.Definition().ID,
		Container:  h.Item().Container(),
		Attached:   s.Attached,
		Position:   s.Position,
		Rotation:   s.Rotation,
		PickRules:  s.PickRules,
	}
}
