package reaper

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("session.reaper",
	fx.Provide(FromAppConfig),
	fx.Provide(NewOracleRegistry),
	fx.Provide(NewWorker),
	fx.Invoke(runWorker),
)

func runWorker(lc fx.Lifecycle, worker *Worker) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go worker.RunForever(context.WithoutCancel(ctx))
			return nil
		},
	})
}
