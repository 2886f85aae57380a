package app

import (
	"context"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/aisleplan/aisle/internal/bus"
	"github.com/aisleplan/aisle/internal/chat"
	"github.com/aisleplan/aisle/internal/config"
	"github.com/aisleplan/aisle/internal/lock"
	"github.com/aisleplan/aisle/internal/logging"
	"github.com/aisleplan/aisle/internal/outbox"
	"github.com/aisleplan/aisle/internal/planner"
	"github.com/aisleplan/aisle/internal/profile"
	"github.com/aisleplan/aisle/internal/pull"
	"github.com/aisleplan/aisle/internal/remote"
	"github.com/aisleplan/aisle/internal/status"
	"github.com/aisleplan/aisle/internal/store"
)

const probeInterval = 10 * time.Second

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	ProfileName string
}

// Module composes all providers and lifecycle hooks for the daemon.
func Module(p Params) fx.Option {
	return fx.Module("aisle",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideTracker,
			provideWatcher,
			provideLock,
			provideStore,
			provideRemoteClient,
			provideRealtime,
			provideQueue,
			providePuller,
			providePlanner,
			provideChat,
		),
		fx.Invoke(registerLifecycle),
	)
}

// provideConfig loads ~/.aisle/config.toml. A missing file is the normal
// first run: everything stays local-only until a remote is configured.
func provideConfig() (*config.Config, error) {
	cfg, err := config.Load(profile.ConfigPath())
	if os.IsNotExist(err) {
		return &config.Config{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.ProfileName), p.ProfileName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideTracker(cfg *config.Config, b *bus.Bus) *status.Tracker {
	return status.NewTracker(status.DialProbe(cfg.RemoteURL, 5*time.Second), b)
}

func provideWatcher(t *status.Tracker, b *bus.Bus, logger *zap.Logger) *status.Watcher {
	return status.NewWatcher(t, b, logger, probeInterval)
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	if err := profile.EnsureDir(p.ProfileName); err != nil {
		return nil, err
	}
	logger.Info("acquiring profile lock", zap.String("profile", p.ProfileName))
	l, err := lock.Acquire(profile.Dir(p.ProfileName))
	if err != nil {
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func provideStore(p Params, logger *zap.Logger) (*store.DB, error) {
	dbPath := profile.DBPath(p.ProfileName)
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideRemoteClient(cfg *config.Config, logger *zap.Logger) *remote.Client {
	return remote.NewClient(cfg, logger)
}

func provideRealtime(cfg *config.Config, logger *zap.Logger) *remote.Realtime {
	return remote.NewRealtime(cfg, logger)
}

func provideQueue(db *store.DB, client *remote.Client, t *status.Tracker, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Queue {
	return outbox.NewQueue(db, client, t, b, logger, cfg.SyncTimeout())
}

func providePuller(db *store.DB, client *remote.Client, t *status.Tracker, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *pull.Puller {
	return pull.NewPuller(db, client, t, b, logger, cfg.SyncTimeout())
}

func providePlanner(db *store.DB, q *outbox.Queue, cfg *config.Config, logger *zap.Logger) *planner.Service {
	svc := planner.NewService(db, q, logger)
	svc.SetActor(cfg.UserID, cfg.UserName)
	return svc
}

func provideChat(db *store.DB, client *remote.Client, q *outbox.Queue, t *status.Tracker, rt *remote.Realtime, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *chat.Service {
	return chat.NewService(db, client, q, t, realtimeAdapter{rt}, b, logger, cfg.ChatWindowSize())
}

func registerLifecycle(lc fx.Lifecycle, p Params, cfg *config.Config, watcher *status.Watcher, queue *outbox.Queue, puller *pull.Puller, chatSvc *chat.Service, lk *lock.Lock, db *store.DB, logger *zap.Logger) {
	var chatTeardown func()

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			watcher.Start(context.Background())
			queue.Start(context.Background())

			// Flush whatever the last run left behind, then reconcile.
			go queue.Drain(context.Background())

			if cfg.WeddingID != "" {
				go puller.Pull(context.Background(), cfg.WeddingID)

				if err := chatSvc.Load(context.Background(), cfg.WeddingID); err != nil {
					logger.Warn("chat load failed", zap.Error(err))
				}
				td, err := chatSvc.Subscribe(context.Background(), cfg.WeddingID, cfg.UserID)
				if err != nil {
					logger.Warn("realtime subscribe failed", zap.Error(err))
				} else {
					chatTeardown = td
				}
			}

			logger.Info("daemon started", zap.String("profile", p.ProfileName))
			return nil
		},
		OnStop: func(_ context.Context) error {
			if chatTeardown != nil {
				chatTeardown()
			}
			queue.Stop()
			watcher.Stop()
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
