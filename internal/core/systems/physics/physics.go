package physics

import (
	"github.com/zeusync/holdable/internal/core/models"
)

var _ Body = (*SimBody)(nil)

// Space is a minimal engine: it owns a set of bodies, integrates the enabled
// dynamic ones and tracks the integration window.
type Space struct {
	gravity     Vec2
	bodies      []*SimBody
	integrating bool
}

func NewSpace(gravity Vec2) *Space {
	return &Space{gravity: gravity}
}

// BodyOptions configures a new body.
type BodyOptions struct {
	Shape         Shape
	Type          BodyType
	Categories    Category
	CollidesWith  Category
	Enabled       bool
	IgnoreGravity bool
	// Owner is the actor this body belongs to, zero for item bodies.
	Owner    models.EntityID
	UserData string
}

func (s *Space) NewBody(opts BodyOptions) *SimBody {
	b := &SimBody{
		space:         s,
		shape:         opts.Shape,
		bodyType:      opts.Type,
		categories:    opts.Categories,
		collidesWith:  opts.CollidesWith,
		enabled:       opts.Enabled,
		physEnabled:   true,
		ignoreGravity: opts.IgnoreGravity,
		owner:         opts.Owner,
		userData:      opts.UserData,
		dir:           1,
	}
	s.bodies = append(s.bodies, b)
	return b
}

// Integrating reports whether Step is currently running.
func (s *Space) Integrating() bool { return s.integrating }

// Bodies returns the live bodies in creation order.
func (s *Space) Bodies() []*SimBody {
	out := make([]*SimBody, len(s.bodies))
	copy(out, s.bodies)
	return out
}

// Step advances every enabled dynamic body by dt. Kinematic-follow bodies
// (PhysEnabled false) are left where the caller put them.
func (s *Space) Step(dt float64) {
	s.integrating = true
	defer func() { s.integrating = false }()

	for _, b := range s.bodies {
		if !b.enabled || !b.physEnabled || b.bodyType != BodyDynamic {
			continue
		}
		if !b.ignoreGravity {
			b.vel = b.vel.Add(s.gravity.Mul(dt))
		}
		b.pos = b.pos.Add(b.vel.Mul(dt))
	}
}

// Collide reports whether a and b would produce a collision response, applying
// category masks and both contact filters.
func (s *Space) Collide(a, b *SimBody) bool {
	if !a.enabled || !b.enabled || a.removed || b.removed {
		return false
	}
	if a.categories&b.collidesWith == 0 || b.categories&a.collidesWith == 0 {
		return false
	}
	if a.filter != nil && !a.filter(Contact{Body: b, Actor: b.owner}) {
		return false
	}
	if b.filter != nil && !b.filter(Contact{Body: a, Actor: a.owner}) {
		return false
	}
	return true
}

func (s *Space) remove(body *SimBody) {
	for i, b := range s.bodies {
		if b == body {
			s.bodies = append(s.bodies[:i], s.bodies[i+1:]...)
			return
		}
	}
}

// SimBody is the in-memory Body used by Space.
type SimBody struct {
	space *Space

	shape         Shape
	bodyType      BodyType
	categories    Category
	collidesWith  Category
	filter        ContactFilter
	ignoreGravity bool
	owner         models.EntityID
	userData      string

	pos Vec2
	rot float64
	vel Vec2
	dir float64

	enabled     bool
	physEnabled bool
	removed     bool
}

func (b *SimBody) Shape() Shape           { return b.shape }
func (b *SimBody) Type() BodyType         { return b.bodyType }
func (b *SimBody) Owner() models.EntityID { return b.owner }
func (b *SimBody) UserData() string       { return b.userData }
func (b *SimBody) Removed() bool          { return b.removed }
func (b *SimBody) Enabled() bool          { return b.enabled }
func (b *SimBody) PhysEnabled() bool      { return b.physEnabled }
func (b *SimBody) Position() Vec2         { return b.pos }
func (b *SimBody) Rotation() float64      { return b.rot }
func (b *SimBody) Velocity() Vec2         { return b.vel }
func (b *SimBody) Dir() float64           { return b.dir }

func (b *SimBody) SetEnabled(enabled bool) {
	if b.removed {
		return
	}
	b.enabled = enabled
}

func (b *SimBody) SetPhysEnabled(enabled bool) { b.physEnabled = enabled }
func (b *SimBody) SetDir(dir float64)          { b.dir = dir }

func (b *SimBody) SetVelocity(v Vec2) { b.vel = v }

func (b *SimBody) SetTransform(pos Vec2, rotation float64) error {
	if b.removed {
		return ErrBodyRemoved
	}
	if b.space != nil && b.space.integrating {
		return ErrIntegrating
	}
	b.pos = pos
	b.rot = rotation
	return nil
}

func (b *SimBody) ResetDynamics() { b.vel = Vec2{} }

func (b *SimBody) Filter() (Category, Category) { return b.categories, b.collidesWith }

func (b *SimBody) SetFilter(categories, collidesWith Category) {
	b.categories = categories
	b.collidesWith = collidesWith
}

func (b *SimBody) SetContactFilter(filter ContactFilter) { b.filter = filter }

// Remove permanently destroys the body. Further SetTransform calls fail with
// ErrBodyRemoved and the body can never be enabled again.
func (b *SimBody) Remove() {
	if b.removed {
		return
	}
	b.removed = true
	b.enabled = false
	if b.space != nil {
		b.space.remove(b)
	}
}
