// Package body keeps the physics representation of a holdable item in step
// with its placement: one primary body that is switched between dynamic,
// kinematic-follow and disabled, and an optional pusher body that shoves
// actors out of the way.
package body

import (
	"errors"

	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// ErrInvalidBodyState is returned when the primary body is missing or has been
// permanently removed. The caller must abort the transition it was performing.
var ErrInvalidBodyState = errors.New("invalid body state")

// PusherUserData tags pusher bodies for debugging tools.
const PusherUserData = "Holdable.Pusher"

type remover interface {
	Remove()
}

// Controller owns the bodies of one item.
type Controller struct {
	primary physics.Body
	pusher  physics.Body

	canPush bool
	active  bool
	holder  models.EntityID

	logger log.Log
}

// NewController wires the primary body and an optional pusher. The pusher is
// restricted to actor collisions and starts disabled.
func NewController(primary, pusher physics.Body, canPush bool, logger log.Log) *Controller {
	if logger == nil {
		logger = log.Nop()
	}
	c := &Controller{
		primary: primary,
		pusher:  pusher,
		canPush: canPush,
		logger:  logger.With(log.String("component", "body")),
	}
	if pusher != nil {
		pusher.SetFilter(physics.CollisionItemBlocking, physics.CollisionCharacter)
		pusher.SetEnabled(false)
		pusher.SetContactFilter(c.AcceptContact)
	}
	return c
}

// NewPusher creates a pusher body in space with the footprint of shape.
func NewPusher(space *physics.Space, shape physics.Shape) *physics.SimBody {
	return space.NewBody(physics.BodyOptions{
		Shape:         shape,
		Type:          physics.BodyDynamic,
		Categories:    physics.CollisionItemBlocking,
		CollidesWith:  physics.CollisionCharacter,
		IgnoreGravity: true,
		UserData:      PusherUserData,
	})
}

func (c *Controller) Primary() physics.Body { return c.primary }
func (c *Controller) Pusher() physics.Body  { return c.pusher }

// Check reports and logs ErrInvalidBodyState when the primary body can no
// longer be used.
func (c *Controller) Check() error {
	if c.primary == nil || c.primary.Removed() {
		c.logger.Error("primary body unavailable",
			log.Bool("missing", c.primary == nil), log.Error(ErrInvalidBodyState))
		return ErrInvalidBodyState
	}
	return nil
}

// ActivatePrimary enables the primary body. Kinematic bodies follow their
// holder and ignore collision response; otherwise full dynamics resume.
func (c *Controller) ActivatePrimary(kinematic bool) error {
	if err := c.Check(); err != nil {
		return err
	}
	c.primary.SetEnabled(true)
	c.primary.SetPhysEnabled(!kinematic)
	return nil
}

// DeactivatePrimary disables the primary body; attached and stowed items have
// no live body.
func (c *Controller) DeactivatePrimary() error {
	if err := c.Check(); err != nil {
		return err
	}
	c.primary.SetEnabled(false)
	c.primary.SetPhysEnabled(true)
	return nil
}

// SyncPusher toggles the pusher. A controller without a pusher ignores it.
func (c *Controller) SyncPusher(enabled bool) {
	if c.pusher == nil || c.pusher.Removed() {
		return
	}
	c.pusher.SetEnabled(enabled)
	if !enabled {
		c.pusher.ResetDynamics()
	}
}

// TrackPusher moves an enabled pusher onto the primary body.
func (c *Controller) TrackPusher() error {
	if c.pusher == nil || !c.pusher.Enabled() || c.primary == nil {
		return nil
	}
	return c.pusher.SetTransform(c.primary.Position(), c.primary.Rotation())
}

func (c *Controller) SetActive(active bool)            { c.active = active }
func (c *Controller) Active() bool                     { return c.active }
func (c *Controller) SetHolder(holder models.EntityID) { c.holder = holder }
func (c *Controller) SetCanPush(canPush bool)          { c.canPush = canPush }
func (c *Controller) CanPush() bool                    { return c.canPush }

// AcceptContact is the pusher's contact filter. Actors are pushed only while
// the item is active and pushing is enabled, and never the holder itself.
func (c *Controller) AcceptContact(other physics.Contact) bool {
	if other.Actor == 0 {
		return true
	}
	if !c.active || !c.canPush {
		return false
	}
	return other.Actor != c.holder
}

// EnabledPrimaryBodies counts the enabled primary bodies (0 or 1).
func (c *Controller) EnabledPrimaryBodies() int {
	if c.primary != nil && c.primary.Enabled() {
		return 1
	}
	return 0
}

// Remove permanently removes the pusher and forgets the primary body.
func (c *Controller) Remove() {
	if c.pusher != nil {
		if r, ok := c.pusher.(remover); ok {
			r.Remove()
		} else {
			c.pusher.SetEnabled(false)
		}
		c.pusher = nil
	}
	c.primary = nil
	c.active = false
	c.holder = 0
}
