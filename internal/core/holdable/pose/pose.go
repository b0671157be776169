// Package pose computes where a held item should sit relative to its holder
// every tick: hold and aim offsets, the oscillating swing and the rigid pin
// used when the item is worn on the head or torso.
package pose

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

// swingFrequency scales phase*speed into noise space.
const swingFrequency = 0.1

// Config is the per-definition pose description. It never changes at runtime.
type Config struct {
	HoldPos     physics.Vec2
	AimPos      physics.Vec2
	HoldAngle   float64 // radians
	SwingAmount physics.Vec2
	SwingSpeed  float64

	SwingWhenHolding bool
	SwingWhenAiming  bool
	SwingWhenUsing   bool
}

// Input is the holder state the evaluator reads each tick. Shooting while
// Aiming is what SwingWhenUsing reacts to.
type Input struct {
	Aiming        bool
	Shooting      bool
	CanAim        bool
	Incapacitated bool
}

// Target is handed to the animation collaborator, which resolves the limbs.
type Target struct {
	Handles    [2]physics.Vec2
	HoldOffset physics.Vec2
	AimOffset  physics.Vec2
	Aiming     bool
	HoldAngle  float64
}

// Limb is the world transform of a body part.
type Limb struct {
	Position physics.Vec2
	Rotation float64
}

type Evaluator struct {
	cfg     Config
	phase   float64
	handles [2]physics.Vec2
}

func NewEvaluator(cfg Config, handles [2]physics.Vec2) *Evaluator {
	return &Evaluator{cfg: cfg, handles: handles}
}

func (e *Evaluator) Config() Config           { return e.cfg }
func (e *Evaluator) Phase() float64           { return e.phase }
func (e *Evaluator) Handles() [2]physics.Vec2 { return e.handles }

// Advance moves the swing phase forward by dt, wrapping into [0, 1).
// Non-finite or negative deltas are ignored.
func (e *Evaluator) Advance(dt float64) {
	if dt <= 0 || math.IsNaN(dt) || math.IsInf(dt, 0) {
		return
	}
	p := math.Mod(e.phase+math.Mod(dt, 1), 1)
	if p < 0 || p >= 1 {
		p = 0
	}
	e.phase = p
}

// Triggered reports whether any configured swing trigger is active.
func (e *Evaluator) Triggered(in Input) bool {
	return e.cfg.SwingWhenHolding ||
		(e.cfg.SwingWhenAiming && in.Aiming) ||
		(e.cfg.SwingWhenUsing && in.Aiming && in.Shooting)
}

// Swing returns the swing offset for the current phase, or zero when no
// trigger is active.
func (e *Evaluator) Swing(in Input) physics.Vec2 {
	if !e.Triggered(in) || e.cfg.SwingAmount == (physics.Vec2{}) {
		return physics.Vec2{}
	}
	t := e.phase * e.cfg.SwingSpeed * swingFrequency
	return physics.Vec2{
		e.cfg.SwingAmount.X() * (Perlin(t, t) - 0.5),
		e.cfg.SwingAmount.Y() * (Perlin(t+0.5, t+0.5) - 0.5),
	}
}

// Step runs one tick for a hand-held item.
func (e *Evaluator) Step(dt float64, in Input, scale float64) Target {
	var swing physics.Vec2
	if e.cfg.SwingAmount != (physics.Vec2{}) && !in.Incapacitated {
		e.Advance(dt)
		swing = e.Swing(in)
	}
	return Target{
		Handles:    [2]physics.Vec2{e.handles[0].Mul(scale), e.handles[1].Mul(scale)},
		HoldOffset: e.cfg.HoldPos.Add(swing),
		AimOffset:  e.cfg.AimPos.Add(swing),
		Aiming:     in.Aiming && in.CanAim && e.cfg.AimPos != (physics.Vec2{}),
		HoldAngle:  e.cfg.HoldAngle,
	}
}

// Mirror flips both handle offsets across the vertical axis.
func (e *Evaluator) Mirror() {
	for i := range e.handles {
		e.handles[i] = physics.Vec2{-e.handles[i].X(), e.handles[i].Y()}
	}
}

// PinToLimb returns the transform of an item worn on limb, gripped at handle.
func PinToLimb(limb Limb, handle physics.Vec2, scale, holdAngle, dir float64) (physics.Vec2, float64) {
	angle := limb.Rotation + holdAngle*dir
	offset := mgl64.Rotate2D(limb.Rotation).Mul2x1(handle.Mul(scale))
	return limb.Position.Sub(offset), angle
}

// ReleasePosition places a dropped item just past the wrist, since the hand
// position sits in the wrist.
func ReleasePosition(hand, arm physics.Vec2) physics.Vec2 {
	return hand.Add(physics.Vec2{
		(hand.X() - arm.X()) / 2,
		(hand.Y() - arm.Y()) / 2.5,
	})
}
