package admission

import (
	"go.uber.org/fx"

	"github.com/voxora/voxora/internal/cache"
)

var Module = fx.Module("admission.service",
	fx.Provide(cache.NewBalanceCache),
	fx.Provide(NewService),
)
