package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/zeusync/holdable/internal/core/models"
)

// Vec2 is the 2D vector used by every simulation package.
type Vec2 = mgl64.Vec2

var (
	ErrBodyRemoved = errors.New("physics body has been removed")
	ErrIntegrating = errors.New("body transform mutated during integration")
)

// BodyType selects how the engine integrates a body.
type BodyType uint8

const (
	BodyStatic BodyType = iota
	BodyDynamic
	BodyKinematic
)

// Category is a collision category bitmask.
type Category uint16

const (
	CollisionWall Category = 1 << iota
	CollisionCharacter
	CollisionItem
	CollisionItemBlocking
	CollisionLevel

	CollisionNone Category = 0
)

// Contact describes the other side of a prospective collision.
// Actor is non-zero when the other body belongs to an actor.
type Contact struct {
	Body  Body
	Actor models.EntityID
}

// ContactFilter decides whether a prospective collision produces a response.
type ContactFilter func(other Contact) bool

// Body is the slice of a rigid body the holdable core drives. The engine owns
// integration; callers only toggle flags and set transforms outside of it.
type Body interface {
	Removed() bool

	Enabled() bool
	SetEnabled(enabled bool)
	// PhysEnabled is false for kinematic-follow bodies that ignore collision response.
	PhysEnabled() bool
	SetPhysEnabled(enabled bool)

	Position() Vec2
	Rotation() float64
	Velocity() Vec2
	SetTransform(pos Vec2, rotation float64) error
	ResetDynamics()

	// Dir is +1 when facing right and -1 when mirrored.
	Dir() float64
	SetDir(dir float64)

	Filter() (categories, collidesWith Category)
	SetFilter(categories, collidesWith Category)
	SetContactFilter(filter ContactFilter)
}

// Shape holds the dimensions a body was created from, so that a secondary
// body can be cloned with the same footprint.
type Shape struct {
	Width   float64
	Height  float64
	Radius  float64
	Density float64
}
