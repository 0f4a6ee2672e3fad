package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/voxora/voxora/internal/admission"
	"github.com/voxora/voxora/internal/clock"
	"github.com/voxora/voxora/internal/config"
	"github.com/voxora/voxora/internal/events"
	"github.com/voxora/voxora/internal/ledger"
	"github.com/voxora/voxora/internal/migration"
	"github.com/voxora/voxora/internal/observability/logger"
	"github.com/voxora/voxora/internal/observability/metrics"
	"github.com/voxora/voxora/internal/observability/tracing"
	"github.com/voxora/voxora/internal/rate"
	"github.com/voxora/voxora/internal/reaper"
	"github.com/voxora/voxora/internal/seed"
	"github.com/voxora/voxora/internal/server"
	"github.com/voxora/voxora/internal/session"
	"github.com/voxora/voxora/pkg/db"
)

var version = "dev"

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		tracing.Module,
		metrics.Module,
		clock.Module,
		fx.Provide(func() *snowflake.Node {
			node, err := snowflake.NewNode(1)
			if err != nil {
				panic(err)
			}
			return node
		}),
		db.Module,
		fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := migration.RunMigrations(sqlDB); err != nil {
				return err
			}
			if !cfg.IsProduction() {
				return seed.EnsureDevAccount(conn, cfg.Tokens.SignupBonus)
			}
			return nil
		}),
		events.Module,
		rate.Module,
		ledger.Module,
		admission.Module,
		session.Module,
		reaper.Module,
		server.Module,
	)
	app.Run()
}
