package sim

import (
	"context"
	"time"

	"github.com/zeusync/holdable/internal/core/observability/log"
)

// Runtime drives a World at a fixed tick rate and persists it around the
// loop.
type Runtime struct {
	world        *World
	tickRate     int
	store        Store
	snapshotPath string
	logger       log.Log
}

// NewRuntime builds a runtime. store and snapshotPath are optional.
func NewRuntime(world *World, tickRate int, store Store, snapshotPath string, logger log.Log) *Runtime {
	if tickRate <= 0 {
		tickRate = 30
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Runtime{
		world:        world,
		tickRate:     tickRate,
		store:        store,
		snapshotPath: snapshotPath,
		logger:       logger.With(log.String("component", "runtime")),
	}
}

func (r *Runtime) World() *World { return r.world }

// Run loads persisted items, ticks until ctx is done, then saves.
func (r *Runtime) Run(ctx context.Context) error {
	if r.store != nil {
		if err := r.world.Load(ctx, r.store); err != nil {
			r.logger.Warn("some items could not be restored", log.Error(err))
		}
		r.logger.Info("restored items", log.Int("count", r.world.Len()))
	}

	interval := time.Second / time.Duration(r.tickRate)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("simulation started", log.Int("tick_rate", r.tickRate))
	for {
		select {
		case <-ctx.Done():
			return r.shutdown()
		case <-ticker.C:
			r.world.Step(dt)
		}
	}
}

func (r *Runtime) shutdown() error {
	r.logger.Info("simulation stopped",
		log.Uint64("tick", r.world.Tick()),
		log.Uint64("dropped_envelopes", r.world.Inbox().Dropped()),
	)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.store != nil {
		if err := r.world.Save(ctx, r.store); err != nil {
			return err
		}
	}
	if r.snapshotPath != "" {
		if err := r.world.SaveSnapshot(r.snapshotPath); err != nil {
			return err
		}
	}
	return nil
}
