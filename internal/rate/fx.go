package rate

import (
	"go.uber.org/fx"

	"github.com/voxora/voxora/internal/config"
)

var Module = fx.Module("rate",
	fx.Provide(func(cfg config.Config) (Table, error) {
		return NewTable(map[ServiceType]int64{
			ServiceConversationalAI: cfg.Tokens.ConversationalRatePerSecond,
			ServicePicaEndpoint:     cfg.Tokens.PicaRatePerSecond,
		})
	}),
)
