package models

import "fmt"

// EntityID identifies items, actors and structures. Zero means "none".
type EntityID uint64

// CellID identifies a procedural terrain cell. Zero means "none".
type CellID uint64

// ContainerID identifies a vessel-like container (a submarine, an outpost).
// Zero is open space.
type ContainerID uint64

// DefinitionID is the identifier of an item definition (prefab).
type DefinitionID string

// ProfileID identifies the persistent player profile an actor belongs to.
type ProfileID string

// Placement is the tri-state location mode of a holdable item.
type Placement uint8

const (
	PlacementFree Placement = iota
	PlacementAttached
	PlacementEquipped
)

func (p Placement) String() string {
	switch p {
	case PlacementFree:
		return "free"
	case PlacementAttached:
		return "attached"
	case PlacementEquipped:
		return "equipped"
	default:
		return fmt.Sprintf("placement(%d)", uint8(p))
	}
}

// Valid reports whether p is one of the three known placements.
func (p Placement) Valid() bool {
	return p <= PlacementEquipped
}

// SlotKind is the kind of inventory slot an item can occupy on an actor.
type SlotKind uint16

const (
	SlotAny SlotKind = 1 << iota
	SlotRightHand
	SlotLeftHand
	SlotHead
	SlotHeadset
	SlotInnerClothes
	SlotOuterClothes
	SlotBag
)

// Hands is the combined mask of both hand slots.
const Hands = SlotRightHand | SlotLeftHand

func (s SlotKind) Has(other SlotKind) bool { return s&other == other }

var slotNames = map[SlotKind]string{
	SlotAny:          "any",
	SlotRightHand:    "right_hand",
	SlotLeftHand:     "left_hand",
	SlotHead:         "head",
	SlotHeadset:      "headset",
	SlotInnerClothes: "inner_clothes",
	SlotOuterClothes: "outer_clothes",
	SlotBag:          "bag",
}

func (s SlotKind) String() string {
	if name, ok := slotNames[s]; ok {
		return name
	}
	return fmt.Sprintf("slot(%d)", uint16(s))
}

// ParseSlotKind maps a single slot name to its kind.
func ParseSlotKind(name string) (SlotKind, error) {
	for kind, n := range slotNames {
		if n == name {
			return kind, nil
		}
	}
	return 0, fmt.Errorf("unknown slot %q", name)
}

// LimbKind names the limbs the pose code needs from the animation collaborator.
type LimbKind uint8

const (
	LimbRightHand LimbKind = iota
	LimbLeftHand
	LimbRightArm
	LimbLeftArm
	LimbHead
	LimbTorso
)

// InputKey is an actor input that drives holdable behaviour.
type InputKey uint8

const (
	KeySelect InputKey = iota
	KeyUse
	KeyAim
	KeyShoot
)

func (k InputKey) String() string {
	switch k {
	case KeySelect:
		return "select"
	case KeyUse:
		return "use"
	case KeyAim:
		return "aim"
	case KeyShoot:
		return "shoot"
	default:
		return fmt.Sprintf("key(%d)", uint8(k))
	}
}

// ParseInputKey is the inverse of InputKey.String.
func ParseInputKey(s string) (InputKey, error) {
	switch s {
	case "", "select":
		return KeySelect, nil
	case "use":
		return KeyUse, nil
	case "aim":
		return KeyAim, nil
	case "shoot":
		return KeyShoot, nil
	default:
		return KeySelect, fmt.Errorf("unknown input key %q", s)
	}
}
