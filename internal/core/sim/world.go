// Package sim runs holdable items inside a simulation world: it owns the
// item registry and the physics space, feeds network envelopes to the
// items once per tick and persists their placement.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/zeusync/holdable/internal/core/holdable"
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/holdable/body"
	"github.com/zeusync/holdable/internal/core/holdable/geometry"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/persistence"
	"github.com/zeusync/holdable/internal/core/protocol"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

var (
	ErrUnknownDefinition = errors.New("sim: unknown definition")
	ErrDuplicateItem     = errors.New("sim: item id already in use")
	ErrUnknownItem       = errors.New("sim: unknown item")
)

// DefaultItemShape is the footprint of item bodies when none is given.
var DefaultItemShape = physics.Shape{Width: 20, Height: 10, Density: 1}

// Definitions resolves item definitions by id.
type Definitions interface {
	Get(id models.DefinitionID) (holdable.Definition, bool)
}

// Store persists placement records.
type Store interface {
	SaveRecords(ctx context.Context, records []persistence.Record) error
	LoadRecords(ctx context.Context) ([]persistence.Record, error)
}

type Options struct {
	Gravity    physics.Vec2
	GridSize   physics.Vec2
	Structures geometry.Structures
	Level      geometry.Level
	Hulls      []Hull
	Editor     bool
	ItemShape  physics.Shape
}

// SpawnSpec describes a new item. A zero ID picks the next free one.
type SpawnSpec struct {
	ID         models.EntityID
	Definition models.DefinitionID
	Position   physics.Vec2
	Rotation   float64
	Container  models.ContainerID
	Mode       holdable.SpawnMode
	Attached   bool
	PickRules  *holdable.PickRules
}

type entry struct {
	item     *Item
	holdable *holdable.Holdable
}

// World is driven by a single simulation goroutine. Other goroutines only
// talk to it through the Inbox.
type World struct {
	opts    Options
	space   *physics.Space
	geom    *geometry.Adapter
	defs    Definitions
	gate    *authority.Gate
	inbox   *Inbox
	index   *attachedIndex
	env     *holdable.Env
	hulls   []Hull
	logger  log.Log
	items   map[models.EntityID]*entry
	actors  map[models.EntityID]holdable.Actor
	nextID  models.EntityID
	tick    uint64
	ordered []models.EntityID
	dirty   bool
}

var _ holdable.Actors = (*World)(nil)

func NewWorld(opts Options, defs Definitions, rules holdable.Rules, gate *authority.Gate, inbox *Inbox, logger log.Log) *World {
	if logger == nil {
		logger = log.Nop()
	}
	if opts.ItemShape == (physics.Shape{}) {
		opts.ItemShape = DefaultItemShape
	}
	if inbox == nil {
		inbox = NewInbox(0)
	}

	w := &World{
		opts:   opts,
		space:  physics.NewSpace(opts.Gravity),
		geom:   geometry.NewAdapter(opts.Structures, opts.Level, opts.GridSize),
		defs:   defs,
		gate:   gate,
		inbox:  inbox,
		index:  newAttachedIndex(),
		hulls:  append([]Hull(nil), opts.Hulls...),
		logger: logger.With(log.String("component", "world")),
		items:  make(map[models.EntityID]*entry),
		actors: make(map[models.EntityID]holdable.Actor),
	}
	w.env = &holdable.Env{
		Geometry: w.geom,
		Gate:     gate,
		Rules:    rules,
		Counter:  w.index,
		Actors:   w,
		Observer: w.index,
		Editor:   opts.Editor,
		Logger:   logger,
	}
	return w
}

func (w *World) Space() *physics.Space       { return w.space }
func (w *World) Geometry() *geometry.Adapter { return w.geom }
func (w *World) Inbox() *Inbox               { return w.inbox }
func (w *World) Gate() *authority.Gate       { return w.gate }
func (w *World) Tick() uint64                { return w.tick }
func (w *World) Len() int                    { return len(w.items) }

// SetAnimator installs the limb resolver used for held items.
func (w *World) SetAnimator(a holdable.Animator) { w.env.Animator = a }

// SetObserver chains an observer after the attached-count index.
func (w *World) SetObserver(o holdable.PlacementObserver) { w.index.next = o }

func (w *World) CountAttached(container models.ContainerID, def models.DefinitionID) int {
	return w.index.CountAttached(container, def)
}

func (w *World) AddActor(a holdable.Actor) { w.actors[a.ID()] = a }

func (w *World) RemoveActor(id models.EntityID) { delete(w.actors, id) }

func (w *World) Actor(id models.EntityID) (holdable.Actor, bool) {
	a, ok := w.actors[id]
	return a, ok
}

func (w *World) Holdable(id models.EntityID) (*holdable.Holdable, bool) {
	e, ok := w.items[id]
	if !ok {
		return nil, false
	}
	return e.holdable, true
}

// Spawn creates an item with its bodies and applies its initial placement.
func (w *World) Spawn(spec SpawnSpec) (*holdable.Holdable, error) {
	def, ok := w.defs.Get(spec.Definition)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefinition, spec.Definition)
	}
	id := spec.ID
	if id == 0 {
		id = w.nextID + 1
	}
	if _, dup := w.items[id]; dup {
		return nil, fmt.Errorf("%w: %d", ErrDuplicateItem, id)
	}

	primary := w.space.NewBody(physics.BodyOptions{
		Shape:        w.opts.ItemShape,
		Type:         physics.BodyDynamic,
		Categories:   physics.CollisionItem,
		CollidesWith: physics.CollisionWall | physics.CollisionLevel,
		Enabled:      true,
	})
	if err := primary.SetTransform(spec.Position, spec.Rotation); err != nil {
		primary.Remove()
		return nil, err
	}
	var pusher physics.Body
	if def.BlocksPlayers {
		pusher = body.NewPusher(w.space, w.opts.ItemShape)
	}

	item := &Item{id: id, def: def.ID, body: primary, container: spec.Container, scale: 1, world: w}
	bodies := body.NewController(primary, pusher, def.CanPush, w.env.Logger)
	h, err := holdable.New(def, item, bodies, w.env, holdable.Options{
		Spawn:     spec.Mode,
		Attached:  spec.Attached,
		PickRules: spec.PickRules,
	})
	if err != nil {
		bodies.Remove()
		primary.Remove()
		return nil, err
	}

	w.items[id] = &entry{item: item, holdable: h}
	if id > w.nextID {
		w.nextID = id
	}
	w.dirty = true
	return h, nil
}

// Remove destroys an item and its bodies.
func (w *World) Remove(id models.EntityID) error {
	e, ok := w.items[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownItem, id)
	}
	e.holdable.Remove()
	e.item.removed = true
	e.item.body.Remove()
	w.index.forget(id)
	delete(w.items, id)
	w.dirty = true
	return nil
}

func (w *World) ids() []models.EntityID {
	if w.dirty {
		w.ordered = w.ordered[:0]
		for id := range w.items {
			w.ordered = append(w.ordered, id)
		}
		sort.Slice(w.ordered, func(i, j int) bool { return w.ordered[i] < w.ordered[j] })
		w.dirty = false
	}
	return w.ordered
}

// Step runs one simulation tick: queued envelopes, holdable updates in id
// order, then physics.
func (w *World) Step(dt float64) {
	w.inbox.Drain(w.dispatch)
	for _, id := range w.ids() {
		if e, ok := w.items[id]; ok {
			e.holdable.Update(dt)
		}
	}
	w.space.Step(dt)
	w.tick++
}

func (w *World) dispatch(env protocol.Envelope) {
	role := authority.RoleLocal
	if w.gate != nil {
		role = w.gate.Role()
	}

	switch env.Kind {
	case protocol.KindEquipRequest:
		if role != authority.RoleAuthoritative {
			w.logger.Debug("ignoring request on non-authoritative world", log.String("peer", string(env.Peer)))
			return
		}
		var msg protocol.EquipRequest
		if err := env.Decode(&msg); err != nil {
			w.logger.Warn("bad request", log.String("peer", string(env.Peer)), log.Error(err))
			return
		}
		if h, ok := w.holdableFor(msg.ItemID); ok {
			w.report(msg.ItemID, env.Kind, h.HandleRequest(authority.Request{
				ID:        msg.RequestID,
				Item:      msg.ItemID,
				Actor:     msg.Actor,
				Placement: msg.Placement,
				Position:  msg.Position,
				Peer:      env.Peer,
			}))
		}

	case protocol.KindConfirm:
		if role != authority.RolePredictive {
			return
		}
		var msg protocol.Confirm
		if err := env.Decode(&msg); err != nil {
			w.logger.Warn("bad confirmation", log.Error(err))
			return
		}
		if h, ok := w.holdableFor(msg.ItemID); ok {
			w.report(msg.ItemID, env.Kind, h.ApplyConfirm(msg))
		}

	case protocol.KindAttachmentChanged:
		if role != authority.RolePredictive {
			return
		}
		var msg protocol.AttachmentChanged
		if err := env.Decode(&msg); err != nil {
			w.logger.Warn("bad attachment change", log.Error(err))
			return
		}
		if h, ok := w.holdableFor(msg.ItemID); ok {
			w.report(msg.ItemID, env.Kind, h.ApplyRemote(msg))
		}
	}
}

func (w *World) holdableFor(id models.EntityID) (*holdable.Holdable, bool) {
	h, ok := w.Holdable(id)
	if !ok {
		w.logger.Debug("message for unknown item", log.Uint64("item_id", uint64(id)))
	}
	return h, ok
}

func (w *World) report(id models.EntityID, kind protocol.Kind, err error) {
	switch {
	case err == nil, errors.Is(err, holdable.ErrIllegalTarget):
	case errors.Is(err, holdable.ErrAuthorityMismatch):
		w.logger.Debug("stale confirmation", log.Uint64("item_id", uint64(id)))
	default:
		w.logger.Warn("failed to apply message",
			log.Uint64("item_id", uint64(id)),
			log.String("kind", string(kind)),
			log.Error(err),
		)
	}
}

// Records returns the persisted state of every item, ordered by id.
func (w *World) Records() []persistence.Record {
	ids := w.ids()
	out := make([]persistence.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, persistence.RecordOf(w.items[id].holdable))
	}
	return out
}

// Restore spawns every record as a loading item. Records of unknown
// definitions are skipped and reported.
func (w *World) Restore(records []persistence.Record) error {
	var errs []error
	for _, r := range records {
		rules := r.PickRules
		if _, err := w.Spawn(SpawnSpec{
			ID:         r.ItemID,
			Definition: r.Definition,
			Position:   r.Position,
			Rotation:   r.Rotation,
			Container:  r.Container,
			Mode:       holdable.SpawnLoading,
			Attached:   r.Attached,
			PickRules:  &rules,
		}); err != nil {
			errs = append(errs, fmt.Errorf("item %d: %w", r.ItemID, err))
		}
	}
	return errors.Join(errs...)
}

func (w *World) Save(ctx context.Context, store Store) error {
	return store.SaveRecords(ctx, w.Records())
}

func (w *World) Load(ctx context.Context, store Store) error {
	records, err := store.LoadRecords(ctx)
	if err != nil {
		return err
	}
	return w.Restore(records)
}

// SaveSnapshot writes a compressed snapshot tagged with the current tick.
func (w *World) SaveSnapshot(path string) error {
	return persistence.WriteSnapshot(path, w.tick, w.Records())
}

// LoadSnapshot restores the items of a snapshot and resumes its tick count.
func (w *World) LoadSnapshot(path string) error {
	header, records, err := persistence.ReadSnapshot(path)
	if err != nil {
		return err
	}
	w.tick = header.Tick
	return w.Restore(records)
}
