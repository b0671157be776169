package sim

import (
	"github.com/zeusync/holdable/internal/core/holdable"
	"github.com/zeusync/holdable/internal/core/holdable/geometry"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

var _ holdable.Item = (*Item)(nil)

// Hull is a sealed region owned by a container.
type Hull struct {
	Container models.ContainerID
	Bounds    geometry.Rect
}

// Item is a world item whose transform lives in its primary body.
type Item struct {
	id        models.EntityID
	def       models.DefinitionID
	body      *physics.SimBody
	container models.ContainerID
	scale     float64
	removed   bool
	world     *World
}

func (i *Item) ID() models.EntityID             { return i.id }
func (i *Item) Definition() models.DefinitionID { return i.def }
func (i *Item) Removed() bool                   { return i.removed }
func (i *Item) Position() physics.Vec2          { return i.body.Position() }
func (i *Item) Rotation() float64               { return i.body.Rotation() }
func (i *Item) Scale() float64                  { return i.scale }
func (i *Item) Container() models.ContainerID   { return i.container }
func (i *Item) Body() *physics.SimBody          { return i.body }

func (i *Item) SetContainer(c models.ContainerID) { i.container = c }

func (i *Item) SetTransform(pos physics.Vec2, rotation float64) error {
	return i.body.SetTransform(pos, rotation)
}

// SealedRegion returns the hull of the item's container when the item is
// inside it.
func (i *Item) SealedRegion() (geometry.Rect, bool) {
	if i.container == 0 || i.world == nil {
		return geometry.Rect{}, false
	}
	for _, hull := range i.world.hulls {
		if hull.Container == i.container && hull.Bounds.Contains(i.Position()) {
			return hull.Bounds, true
		}
	}
	return geometry.Rect{}, false
}
