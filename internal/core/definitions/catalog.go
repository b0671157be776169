// Package definitions loads holdable item definitions from yaml documents
// validated against an embedded JSON schema.
package definitions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/zeusync/holdable/internal/core/holdable"
	"github.com/zeusync/holdable/internal/core/holdable/pose"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

//go:embed schema.json
var schemaSource string

const schemaURL = "holdable://definitions.schema.json"

var schema = jsonschema.MustCompileString(schemaURL, schemaSource)

type file struct {
	Definitions []entry `yaml:"definitions"`
}

type entry struct {
	ID                string       `yaml:"id"`
	Attachable        bool         `yaml:"attachable"`
	Reattachable      bool         `yaml:"reattachable"`
	LimitedAttachable bool         `yaml:"limited_attachable"`
	AttachedByDefault bool         `yaml:"attached_by_default"`
	BlocksPlayers     bool         `yaml:"blocks_players"`
	CanPush           bool         `yaml:"can_push"`
	Handles           [][2]float64 `yaml:"handles"`
	AllowedSlots      []string     `yaml:"allowed_slots"`
	Pose              poseEntry    `yaml:"pose"`
	Pick              pickEntry    `yaml:"pick"`
}

type poseEntry struct {
	HoldPos          [2]float64 `yaml:"hold_pos"`
	AimPos           [2]float64 `yaml:"aim_pos"`
	HoldAngle        float64    `yaml:"hold_angle"` // degrees
	SwingAmount      [2]float64 `yaml:"swing_amount"`
	SwingSpeed       float64    `yaml:"swing_speed"`
	SwingWhenHolding bool       `yaml:"swing_when_holding"`
	SwingWhenAiming  bool       `yaml:"swing_when_aiming"`
	SwingWhenUsing   bool       `yaml:"swing_when_using"`
}

type pickEntry struct {
	RequiredItems []string `yaml:"required_items"`
	Key           string   `yaml:"key"`
	Message       string   `yaml:"message"`
}

// Catalog is an immutable set of definitions keyed by id.
type Catalog struct {
	defs map[models.DefinitionID]holdable.Definition
}

// Empty returns a catalog without definitions.
func Empty() *Catalog {
	return &Catalog{defs: make(map[models.DefinitionID]holdable.Definition)}
}

// Load reads and parses a definitions file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse validates a yaml document against the schema and decodes it.
func Parse(raw []byte) (*Catalog, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("definitions: %w", err)
	}

	c := &Catalog{defs: make(map[models.DefinitionID]holdable.Definition, len(f.Definitions))}
	for _, e := range f.Definitions {
		def, err := e.definition()
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", e.ID, err)
		}
		if _, dup := c.defs[def.ID]; dup {
			return nil, fmt.Errorf("definition %q: duplicate id", e.ID)
		}
		c.defs[def.ID] = def
	}
	return c, nil
}

// validate round-trips the yaml tree through JSON so the validator sees
// JSON-native types.
func validate(raw []byte) error {
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	data, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	var doc any
	if err = json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	if err = schema.Validate(doc); err != nil {
		return fmt.Errorf("definitions: %w", err)
	}
	return nil
}

func (e entry) definition() (holdable.Definition, error) {
	key, err := models.ParseInputKey(e.Pick.Key)
	if err != nil {
		return holdable.Definition{}, err
	}

	def := holdable.Definition{
		ID:                models.DefinitionID(e.ID),
		Attachable:        e.Attachable,
		Reattachable:      e.Reattachable,
		LimitedAttachable: e.LimitedAttachable,
		AttachedByDefault: e.AttachedByDefault,
		BlocksPlayers:     e.BlocksPlayers,
		CanPush:           e.CanPush,
		Pose: pose.Config{
			HoldPos:          vec(e.Pose.HoldPos),
			AimPos:           vec(e.Pose.AimPos),
			HoldAngle:        mgl64.DegToRad(e.Pose.HoldAngle),
			SwingAmount:      vec(e.Pose.SwingAmount),
			SwingSpeed:       e.Pose.SwingSpeed,
			SwingWhenHolding: e.Pose.SwingWhenHolding,
			SwingWhenAiming:  e.Pose.SwingWhenAiming,
			SwingWhenUsing:   e.Pose.SwingWhenUsing,
		},
		PickRules: holdable.PickRules{
			RequiredItems: e.Pick.RequiredItems,
			Key:           key,
			Message:       e.Pick.Message,
		},
	}
	for i, h := range e.Handles {
		def.Handles[i] = vec(h)
	}
	for _, name := range e.AllowedSlots {
		slot, err := models.ParseSlotKind(name)
		if err != nil {
			return holdable.Definition{}, err
		}
		def.AllowedSlots = append(def.AllowedSlots, slot)
	}
	return def, nil
}

func vec(v [2]float64) physics.Vec2 { return physics.Vec2{v[0], v[1]} }

// Get returns the definition with the given id.
func (c *Catalog) Get(id models.DefinitionID) (holdable.Definition, bool) {
	def, ok := c.defs[id]
	return def, ok
}

// IDs returns every definition id, sorted.
func (c *Catalog) IDs() []models.DefinitionID {
	ids := make([]models.DefinitionID, 0, len(c.defs))
	for id := range c.defs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (c *Catalog) Len() int { return len(c.defs) }
