package session

import (
	"go.uber.org/fx"

	"github.com/voxora/voxora/internal/session/service"
)

var Module = fx.Module("session.service",
	fx.Provide(service.NewService),
)
