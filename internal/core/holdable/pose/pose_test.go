package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

func swingingConfig() Config {
	return Config{
		HoldPos:         physics.Vec2{0.3, -0.2},
		AimPos:          physics.Vec2{0.5, 0.1},
		HoldAngle:       0.4,
		SwingAmount:     physics.Vec2{0.2, 0.1},
		SwingSpeed:      5,
		SwingWhenAiming: true,
		SwingWhenUsing:  true,
	}
}

func TestPerlinRange(t *testing.T) {
	for x := -20.0; x < 20; x += 0.37 {
		v := Perlin(x, x*0.5)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 1.0)
	}
	assert.Equal(t, Perlin(1.3, 2.7), Perlin(1.3, 2.7))
}

func TestAdvanceWrapsPhase(t *testing.T) {
	e := NewEvaluator(swingingConfig(), [2]physics.Vec2{})
	e.Advance(0.75)
	e.Advance(0.5)
	assert.InDelta(t, 0.25, e.Phase(), 1e-12)

	e.Advance(1e9 + 0.125)
	assert.GreaterOrEqual(t, e.Phase(), 0.0)
	assert.Less(t, e.Phase(), 1.0)

	before := e.Phase()
	e.Advance(math.NaN())
	e.Advance(math.Inf(1))
	e.Advance(-3)
	assert.Equal(t, before, e.Phase())
}

func TestSwingZeroWithoutTrigger(t *testing.T) {
	e := NewEvaluator(swingingConfig(), [2]physics.Vec2{})
	idle := Input{CanAim: true}
	for i := 0; i < 200; i++ {
		e.Advance(0.013)
		assert.Equal(t, physics.Vec2{}, e.Swing(idle))
	}
	// using without aiming does not trigger SwingWhenUsing
	assert.Equal(t, physics.Vec2{}, e.Swing(Input{Shooting: true}))
}

func TestSwingWhenUsingNeedsAimAndShoot(t *testing.T) {
	e := NewEvaluator(Config{
		SwingAmount:    physics.Vec2{50, 50},
		SwingSpeed:     20,
		SwingWhenUsing: true,
	}, [2]physics.Vec2{})
	e.Advance(0.2)

	assert.NotEqual(t, physics.Vec2{}, e.Swing(Input{Aiming: true, Shooting: true}))
	assert.Equal(t, physics.Vec2{}, e.Swing(Input{Aiming: true}))
	assert.Equal(t, physics.Vec2{}, e.Swing(Input{Shooting: true}))

	target := e.Step(0.1, Input{Aiming: true, Shooting: true, CanAim: true}, 1)
	assert.NotEqual(t, physics.Vec2{}, target.HoldOffset)
}

func TestSwingBoundedWhenAiming(t *testing.T) {
	cfg := swingingConfig()
	e := NewEvaluator(cfg, [2]physics.Vec2{})
	nonZero := false
	for i := 0; i < 100; i++ {
		e.Advance(0.031)
		s := e.Swing(Input{Aiming: true})
		assert.LessOrEqual(t, math.Abs(s.X()), cfg.SwingAmount.X()/2+1e-12)
		assert.LessOrEqual(t, math.Abs(s.Y()), cfg.SwingAmount.Y()/2+1e-12)
		if s != (physics.Vec2{}) {
			nonZero = true
		}
	}
	assert.True(t, nonZero)
}

func TestStepSelectsAimPose(t *testing.T) {
	cfg := swingingConfig()
	cfg.SwingAmount = physics.Vec2{}
	e := NewEvaluator(cfg, [2]physics.Vec2{{1, 2}, {3, 4}})

	held := e.Step(0.016, Input{CanAim: true}, 2)
	assert.False(t, held.Aiming)
	assert.Equal(t, cfg.HoldPos, held.HoldOffset)
	assert.Equal(t, [2]physics.Vec2{{2, 4}, {6, 8}}, held.Handles)
	assert.Equal(t, cfg.HoldAngle, held.HoldAngle)

	aimed := e.Step(0.016, Input{Aiming: true, CanAim: true}, 1)
	assert.True(t, aimed.Aiming)
	assert.Equal(t, cfg.AimPos, aimed.AimOffset)

	cannot := e.Step(0.016, Input{Aiming: true}, 1)
	assert.False(t, cannot.Aiming)

	cfg.AimPos = physics.Vec2{}
	noAimPose := NewEvaluator(cfg, [2]physics.Vec2{})
	assert.False(t, noAimPose.Step(0.016, Input{Aiming: true, CanAim: true}, 1).Aiming)
}

func TestStepFreezesPhaseWhenIncapacitated(t *testing.T) {
	e := NewEvaluator(swingingConfig(), [2]physics.Vec2{})
	target := e.Step(0.2, Input{Aiming: true, Incapacitated: true}, 1)
	assert.Equal(t, 0.0, e.Phase())
	assert.Equal(t, swingingConfig().HoldPos, target.HoldOffset)
}

func TestMirrorHandles(t *testing.T) {
	e := NewEvaluator(Config{}, [2]physics.Vec2{{1, 2}, {-3, 4}})
	e.Mirror()
	assert.Equal(t, [2]physics.Vec2{{-1, 2}, {3, 4}}, e.Handles())
	e.Mirror()
	assert.Equal(t, [2]physics.Vec2{{1, 2}, {-3, 4}}, e.Handles())
}

func TestPinToLimb(t *testing.T) {
	limb := Limb{Position: physics.Vec2{10, 10}, Rotation: math.Pi / 2}
	pos, angle := PinToLimb(limb, physics.Vec2{1, 0}, 2, 0.5, -1)
	assert.InDelta(t, 10, pos.X(), 1e-9)
	assert.InDelta(t, 8, pos.Y(), 1e-9)
	assert.InDelta(t, math.Pi/2-0.5, angle, 1e-12)
}

func TestReleasePosition(t *testing.T) {
	got := ReleasePosition(physics.Vec2{4, 5}, physics.Vec2{2, 0})
	assert.Equal(t, physics.Vec2{5, 7}, got)
}
