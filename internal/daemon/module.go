package daemon

import (
	"context"

	"github.com/hivechat/wafleet/internal/binding"
	"github.com/hivechat/wafleet/internal/bus"
	"github.com/hivechat/wafleet/internal/config"
	"github.com/hivechat/wafleet/internal/convo"
	"github.com/hivechat/wafleet/internal/executor"
	"github.com/hivechat/wafleet/internal/lock"
	"github.com/hivechat/wafleet/internal/logging"
	"github.com/hivechat/wafleet/internal/session"
	"github.com/hivechat/wafleet/internal/store"
	"github.com/hivechat/wafleet/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(cfg *config.Config) fx.Option {
	return fx.Module("daemon",
		fx.Supply(cfg),
		fx.Provide(
			provideLogger,
			provideBus,
			provideLock,
			provideStore,
			provideBindingCache,
			provideResolver,
			provideRecorder,
			provideExecutor,
			provideFactory,
			provideManager,
			provideAuditor,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.LogPath(), cfg.LogLevel)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(cfg *config.Config, logger *zap.Logger) (*lock.Guard, error) {
	logger.Info("acquiring data dir lock", zap.String("data_dir", cfg.DataDir))
	g, err := lock.Acquire(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("data dir lock acquired")
	return g, nil
}

func provideStore(cfg *config.Config, logger *zap.Logger) (*store.DB, error) {
	db, err := store.Open(cfg.DBPath)
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
	logger.Info("store initialized", zap.String("path", cfg.DBPath))
	return db, nil
}

func provideBindingCache(cfg *config.Config, db *store.DB, logger *zap.Logger) *binding.Cache {
	return binding.NewCache(db, cfg.BindingCacheTTL(), logger)
}

func provideResolver(db *store.DB, cache *binding.Cache, logger *zap.Logger) *convo.Resolver {
	return convo.NewResolver(db, cache, logger)
}

func provideRecorder(db *store.DB, b *bus.Bus, logger *zap.Logger) *convo.Recorder {
	return convo.NewRecorder(db, b, logger)
}

func provideExecutor() executor.Executor {
	return executor.NewEcho()
}

func provideFactory(cfg *config.Config, logger *zap.Logger) wa.Factory {
	return wa.NewFactory(cfg.DataDir, logger)
}

func provideManager(
	cfg *config.Config,
	db *store.DB,
	b *bus.Bus,
	resolver *convo.Resolver,
	recorder *convo.Recorder,
	exec executor.Executor,
	factory wa.Factory,
	logger *zap.Logger,
) *session.Manager {
	return session.NewManager(session.Config{
		DataDir:              cfg.DataDir,
		QRExpiry:             cfg.QRExpiry(),
		PollInterval:         cfg.PollInterval(),
		ReconnectBackoff:     cfg.ReconnectBackoff(),
		ReconnectMaxAttempts: cfg.ReconnectMaxAttempts,
		ReplyQueueSize:       cfg.ReplyQueueSize,
	}, db, b, resolver, recorder, exec, factory, logger)
}

func provideAuditor(db *store.DB, b *bus.Bus, logger *zap.Logger) *session.Auditor {
	return session.NewAuditor(db, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, mgr *session.Manager, auditor *session.Auditor, g *lock.Guard, db *store.DB, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			// The auditor subscribes before the manager publishes its
			// first lifecycle event.
			auditor.Start(context.Background())
			mgr.Start(context.Background())
			logger.Info("daemon started")
			return nil
		},
		OnStop: func(_ context.Context) error {
			mgr.Shutdown()
			auditor.Stop()
			if err := g.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			if err := db.Close(); err != nil {
				logger.Warn("error closing store", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
