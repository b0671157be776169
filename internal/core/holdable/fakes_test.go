package holdable

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeusync/holdable/internal/core/holdable/body"
	"github.com/zeusync/holdable/internal/core/holdable/geometry"
	"github.com/zeusync/holdable/internal/core/holdable/pose"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

type fakeItem struct {
	id        models.EntityID
	def       models.DefinitionID
	body      *physics.SimBody
	container models.ContainerID
	sealed    *geometry.Rect
	removed   bool
}

func (i *fakeItem) ID() models.EntityID             { return i.id }
func (i *fakeItem) Definition() models.DefinitionID { return i.def }
func (i *fakeItem) Removed() bool                   { return i.removed }
func (i *fakeItem) Position() physics.Vec2          { return i.body.Position() }
func (i *fakeItem) Rotation() float64               { return i.body.Rotation() }
func (i *fakeItem) Scale() float64                  { return 1 }
func (i *fakeItem) Container() models.ContainerID   { return i.container }
func (i *fakeItem) SetContainer(c models.ContainerID) {
	i.container = c
}

func (i *fakeItem) SetTransform(pos physics.Vec2, rotation float64) error {
	return i.body.SetTransform(pos, rotation)
}

func (i *fakeItem) SealedRegion() (geometry.Rect, bool) {
	if i.sealed == nil {
		return geometry.Rect{}, false
	}
	return *i.sealed, true
}

type wiredItem struct {
	*fakeItem
	panel ConnectionPanel
}

func (i *wiredItem) ConnectionPanel() (ConnectionPanel, bool) { return i.panel, true }

type planterItem struct {
	*fakeItem
	seedlings     bool
	levelResource bool
}

func (i *planterItem) HasLiveSeedlings() bool { return i.seedlings }
func (i *planterItem) IsLevelResource() bool  { return i.levelResource }

type fakeTether struct {
	snapWhenNotAimed bool
	snapped          int
}

func (t *fakeTether) SnapWhenNotAimed() bool { return t.snapWhenNotAimed }
func (t *fakeTether) Snap()                  { t.snapped++ }

type tetheredItem struct {
	*fakeItem
	tether *fakeTether
}

func (i *tetheredItem) Tether() (Tether, bool) { return i.tether, true }

type crateItem struct {
	*fakeItem
	contents []Item
}

func (i *crateItem) ContainedItems() []Item { return i.contents }

type fakeActor struct {
	id            models.EntityID
	pos           physics.Vec2
	cursor        physics.Vec2
	dir           float64
	container     models.ContainerID
	profile       models.ProfileID
	keys          map[models.InputKey]bool
	canAim        bool
	incapacitated bool
	controlled    bool
	removed       bool
	limbs         map[models.LimbKind]pose.Limb
	inv           *fakeInventory
}

func (a *fakeActor) ID() models.EntityID           { return a.id }
func (a *fakeActor) Removed() bool                 { return a.removed }
func (a *fakeActor) Position() physics.Vec2        { return a.pos }
func (a *fakeActor) Cursor() physics.Vec2          { return a.cursor }
func (a *fakeActor) Dir() float64                  { return a.dir }
func (a *fakeActor) Container() models.ContainerID { return a.container }
func (a *fakeActor) CanAim() bool                  { return a.canAim }
func (a *fakeActor) Incapacitated() bool           { return a.incapacitated }
func (a *fakeActor) Controlled() bool              { return a.controlled }
func (a *fakeActor) Inventory() Inventory          { return a.inv }

func (a *fakeActor) Profile() (models.ProfileID, bool) {
	return a.profile, a.profile != ""
}

func (a *fakeActor) IsKeyDown(key models.InputKey) bool { return a.keys[key] }

func (a *fakeActor) Limb(kind models.LimbKind) (pose.Limb, bool) {
	l, ok := a.limbs[kind]
	return l, ok
}

// fakeInventory equips items put into hand and head slots by calling back
// into their holdable, like a character inventory does.
type fakeInventory struct {
	owner    models.EntityID
	world    *fakeWorld
	nextSlot models.SlotKind
	slots    map[models.EntityID]models.SlotKind
	removed  []models.EntityID
	// alsoEquips marks extra slots that equip what they receive.
	alsoEquips models.SlotKind
}

const equippingSlots = models.Hands | models.SlotHead | models.SlotHeadset |
	models.SlotInnerClothes | models.SlotOuterClothes

func (inv *fakeInventory) equips(slot models.SlotKind) bool {
	return slot&(equippingSlots|inv.alsoEquips) != 0
}

func (inv *fakeInventory) TryPut(item models.EntityID) bool {
	if inv.nextSlot == 0 {
		return false
	}
	inv.slots[item] = inv.nextSlot
	if inv.equips(inv.nextSlot) {
		if err := inv.world.holdables[item].Equip(inv.owner); err != nil {
			delete(inv.slots, item)
			return false
		}
	}
	return true
}

func (inv *fakeInventory) RemoveFromInventory(item models.EntityID) {
	delete(inv.slots, item)
	inv.removed = append(inv.removed, item)
}

func (inv *fakeInventory) HasEquipped(item models.EntityID) bool {
	return inv.equips(inv.slots[item])
}

func (inv *fakeInventory) IsHeld(item models.EntityID) bool {
	return inv.slots[item]&models.Hands != 0
}

func (inv *fakeInventory) IsInSlot(item models.EntityID, slot models.SlotKind) bool {
	return inv.slots[item]&slot != 0
}

func (inv *fakeInventory) SlotOf(item models.EntityID) (models.SlotKind, bool) {
	s, ok := inv.slots[item]
	return s, ok
}

type fakeWorld struct {
	actors    map[models.EntityID]*fakeActor
	holdables map[models.EntityID]*Holdable
}

func (w *fakeWorld) Actor(id models.EntityID) (Actor, bool) {
	a, ok := w.actors[id]
	if !ok {
		return nil, false
	}
	return a, true
}

type fakeRules struct {
	allowRewiring bool
	max           map[models.ProfileID]int
}

func (r *fakeRules) AllowRewiring() bool { return r.allowRewiring }

func (r *fakeRules) MaxAttachedCount(profile models.ProfileID, _ models.DefinitionID) int {
	return r.max[profile]
}

type transition struct {
	item     models.EntityID
	from, to models.Placement
}

// countingObserver mirrors the attached-count index kept by the world.
type countingObserver struct {
	counts      map[models.ContainerID]int
	attachedIn  map[models.EntityID]models.ContainerID
	transitions []transition
}

func (o *countingObserver) PlacementChanged(h *Holdable, from, to models.Placement) {
	id := h.Item().ID()
	o.transitions = append(o.transitions, transition{item: id, from: from, to: to})
	if from == models.PlacementAttached {
		o.counts[o.attachedIn[id]]--
		delete(o.attachedIn, id)
	}
	if to == models.PlacementAttached {
		o.attachedIn[id] = h.Item().Container()
		o.counts[h.Item().Container()]++
	}
}

func (o *countingObserver) CountAttached(container models.ContainerID, _ models.DefinitionID) int {
	return o.counts[container]
}

type heldTarget struct {
	actor, item models.EntityID
	target      pose.Target
}

type fakeAnimator struct {
	calls []heldTarget
}

func (a *fakeAnimator) HoldItem(_ float64, actor, item models.EntityID, target pose.Target) {
	a.calls = append(a.calls, heldTarget{actor: actor, item: item, target: target})
}

type harness struct {
	t        *testing.T
	space    *physics.Space
	world    *fakeWorld
	observer *countingObserver
	rules    *fakeRules
	animator *fakeAnimator
	terrain  *geometry.TerrainGrid
	env      *Env
}

// wall is a structure surface covering the area around the origin.
var wall = geometry.Surface{
	ID:     900,
	Bounds: geometry.Rect{Min: physics.Vec2{0, 0}, Max: physics.Vec2{200, 200}},
}

func newHarness(t *testing.T, surfaces ...geometry.Surface) *harness {
	hs := &harness{
		t:     t,
		space: physics.NewSpace(physics.Vec2{0, -9.8}),
		world: &fakeWorld{
			actors:    make(map[models.EntityID]*fakeActor),
			holdables: make(map[models.EntityID]*Holdable),
		},
		observer: &countingObserver{
			counts:     make(map[models.ContainerID]int),
			attachedIn: make(map[models.EntityID]models.ContainerID),
		},
		rules:    &fakeRules{allowRewiring: true, max: make(map[models.ProfileID]int)},
		animator: &fakeAnimator{},
		terrain:  geometry.NewTerrainGrid(0),
	}
	hs.env = &Env{
		Geometry: geometry.NewAdapter(geometry.SurfaceSet(surfaces), hs.terrain, physics.Vec2{16, 16}),
		Rules:    hs.rules,
		Counter:  hs.observer,
		Actors:   hs.world,
		Animator: hs.animator,
		Observer: hs.observer,
		Logger:   log.Nop(),
	}
	return hs
}

func (hs *harness) newBareItem(id models.EntityID, def Definition) *fakeItem {
	return &fakeItem{
		id:  id,
		def: def.ID,
		body: hs.space.NewBody(physics.BodyOptions{
			Shape:        physics.Shape{Width: 20, Height: 10, Density: 1},
			Type:         physics.BodyDynamic,
			Categories:   physics.CollisionItem,
			CollidesWith: physics.CollisionWall | physics.CollisionLevel,
		}),
	}
}

// add wraps item (which must embed bare) into a holdable and registers it.
func (hs *harness) add(item Item, bare *fakeItem, def Definition, opts Options) *Holdable {
	var pusher physics.Body
	if def.BlocksPlayers {
		pusher = body.NewPusher(hs.space, bare.body.Shape())
	}
	bodies := body.NewController(bare.body, pusher, def.CanPush, log.Nop())
	h, err := New(def, item, bodies, hs.env, opts)
	require.NoError(hs.t, err)
	hs.world.holdables[item.ID()] = h
	return h
}

func (hs *harness) newItem(id models.EntityID, def Definition, opts Options) (*Holdable, *fakeItem) {
	item := hs.newBareItem(id, def)
	return hs.add(item, item, def, opts), item
}

func (hs *harness) newActor(id models.EntityID) *fakeActor {
	a := &fakeActor{
		id:     id,
		dir:    1,
		keys:   make(map[models.InputKey]bool),
		canAim: true,
		limbs:  make(map[models.LimbKind]pose.Limb),
	}
	a.inv = &fakeInventory{
		owner:    id,
		world:    hs.world,
		nextSlot: models.SlotRightHand,
		slots:    make(map[models.EntityID]models.SlotKind),
	}
	hs.world.actors[id] = a
	return a
}

func (hs *harness) actorBody(owner models.EntityID) *physics.SimBody {
	return hs.space.NewBody(physics.BodyOptions{
		Shape:        physics.Shape{Radius: 10},
		Type:         physics.BodyDynamic,
		Categories:   physics.CollisionCharacter,
		CollidesWith: physics.CollisionItemBlocking | physics.CollisionWall,
		Enabled:      true,
		Owner:        owner,
	})
}

func wallDefinition() Definition {
	return Definition{
		ID:           "fuse_box",
		Attachable:   true,
		Reattachable: true,
		Handles:      [2]physics.Vec2{{10, 2}, {-4, 2}},
		PickRules: PickRules{
			RequiredItems: []string{"screwdriver"},
			Key:           models.KeyUse,
			Message:       "Detach",
		},
	}
}
