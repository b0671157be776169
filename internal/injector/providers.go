// Package injector assembles the server from its configuration.
package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/holdable/internal/config"
	"github.com/zeusync/holdable/internal/core/definitions"
	"github.com/zeusync/holdable/internal/core/holdable/authority"
	"github.com/zeusync/holdable/internal/core/models"
	"github.com/zeusync/holdable/internal/core/observability/log"
	"github.com/zeusync/holdable/internal/core/persistence"
	"github.com/zeusync/holdable/internal/core/protocol"
	"github.com/zeusync/holdable/internal/core/protocol/quic"
	"github.com/zeusync/holdable/internal/core/protocol/websocket"
	"github.com/zeusync/holdable/internal/core/session"
	"github.com/zeusync/holdable/internal/core/sim"
	"github.com/zeusync/holdable/internal/core/systems/physics"
)

var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideCatalog,
	ProvideRuleset,
	ProvideInbox,
	ProvideNetwork,
	ProvideGate,
	ProvideStore,
	ProvideWorld,
	ProvideRuntime,
	NewApp,
)

// Network is the configured transport. Serve is nil when the transport has
// nothing to serve, e.g. on a predictive peer.
type Network struct {
	Transport protocol.Transport
	Serve     func(ctx context.Context) error
}

// App is the assembled server.
type App struct {
	Config  config.Config
	Logger  *log.Logger
	Network Network
	Runtime *sim.Runtime
}

func NewApp(cfg config.Config, logger *log.Logger, network Network, runtime *sim.Runtime) *App {
	return &App{Config: cfg, Logger: logger, Network: network, Runtime: runtime}
}

func ProvideLogger(cfg config.Config) *log.Logger {
	return log.New(cfg.LogLevel())
}

func ProvideCatalog(cfg config.Config) (*definitions.Catalog, error) {
	if cfg.World.Definitions == "" {
		return definitions.Empty(), nil
	}
	return definitions.Load(cfg.World.Definitions)
}

func ProvideRuleset(cfg config.Config) *session.Ruleset {
	r := session.NewRuleset(cfg.Session.AllowRewiring)
	for profile, limits := range cfg.Session.MaxAttached {
		for def, n := range limits {
			r.SetMaxAttached(models.ProfileID(profile), models.DefinitionID(def), n)
		}
	}
	return r
}

func ProvideInbox(cfg config.Config) *sim.Inbox {
	return sim.NewInbox(cfg.Server.InboxSize)
}

// ProvideNetwork opens the transport for the configured role: the authority
// listens, a predictive peer dials.
func ProvideNetwork(ctx context.Context, cfg config.Config, inbox *sim.Inbox, logger *log.Logger) (Network, func(), error) {
	role := cfg.Role()
	var network Network

	switch cfg.Server.Transport {
	case config.TransportWebSocket:
		wsCfg := websocket.Config{
			Addr:         cfg.Server.Address,
			Path:         cfg.Server.Path,
			QueueSize:    cfg.Server.QueueSize,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		if role == authority.RolePredictive {
			client, err := websocket.Dial(ctx, "ws://"+cfg.Server.Address+cfg.Server.Path, wsCfg, inbox.Push, logger)
			if err != nil {
				return Network{}, nil, err
			}
			network.Transport = client
		} else {
			srv := websocket.NewServer(wsCfg, inbox.Push, logger)
			network = Network{Transport: srv, Serve: srv.ListenAndServe}
		}

	case config.TransportQUIC:
		qCfg := quic.Config{Addr: cfg.Server.Address, QueueSize: cfg.Server.QueueSize}
		if role == authority.RolePredictive {
			client, err := quic.Dial(ctx, cfg.Server.Address, qCfg, nil, inbox.Push, logger)
			if err != nil {
				return Network{}, nil, err
			}
			network.Transport = client
		} else {
			srv, err := quic.Listen(qCfg, nil, inbox.Push, logger)
			if err != nil {
				return Network{}, nil, err
			}
			network = Network{Transport: srv, Serve: srv.Serve}
		}

	default:
		return Network{}, func() {}, nil
	}

	cleanup := func() {
		if err := network.Transport.Close(); err != nil {
			logger.Warn("failed to close transport", log.Error(err))
		}
	}
	return network, cleanup, nil
}

func ProvideGate(cfg config.Config, network Network, logger *log.Logger) *authority.Gate {
	return authority.NewGate(cfg.Role(), network.Transport, logger)
}

// ProvideStore opens the sqlite store, or returns nil when none is configured.
func ProvideStore(cfg config.Config) (*persistence.SQLiteStore, func(), error) {
	if cfg.Storage.SQLitePath == "" {
		return nil, func() {}, nil
	}
	store, err := persistence.Open(cfg.Storage.SQLitePath)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

func ProvideWorld(cfg config.Config, catalog *definitions.Catalog, rules *session.Ruleset, gate *authority.Gate, inbox *sim.Inbox, logger *log.Logger) *sim.World {
	return sim.NewWorld(sim.Options{
		Gravity:  physics.Vec2(cfg.World.Gravity),
		GridSize: physics.Vec2(cfg.World.GridSize),
		Editor:   cfg.World.Editor,
	}, catalog, rules, gate, inbox, logger)
}

func ProvideRuntime(cfg config.Config, world *sim.World, store *persistence.SQLiteStore, logger *log.Logger) *sim.Runtime {
	var s sim.Store
	if store != nil {
		s = store
	}
	return sim.NewRuntime(world, cfg.Server.TickRate, s, cfg.Storage.SnapshotPath, logger)
}
