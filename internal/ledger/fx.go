package ledger

import (
	"go.uber.org/fx"

	"github.com/voxora/voxora/internal/ledger/service"
)

var Module = fx.Module("ledger.service",
	fx.Provide(service.NewService),
)
