package notifier

import (
	"context"

	"github.com/ledgerline/dunning/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notifier",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
)

func ProvideConfig(cfg config.Config) Config {
	c := DefaultConfig()
	c.RunInterval = cfg.RunInterval
	return c.withDefaults()
}

// Register wires the notifier into the fx lifecycle: a single run when
// RUN_ONCE is set, otherwise the interval loop.
func Register(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, log *zap.Logger, n *Notifier) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			runCtx, cancel := context.WithCancel(context.Background())

			go func() {
				if cfg.RunOnce {
					if err := n.RunOnce(runCtx); err != nil {
						log.Error("notifier run failed", zap.Error(err))
					}
					_ = shutdowner.Shutdown()
					return
				}
				n.RunForever(runCtx)
			}()

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
