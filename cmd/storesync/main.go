package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storesync/internal/clock"
	"github.com/smallbiznis/storesync/internal/config"
	"github.com/smallbiznis/storesync/internal/customer"
	"github.com/smallbiznis/storesync/internal/ingestion"
	"github.com/smallbiznis/storesync/internal/migration"
	"github.com/smallbiznis/storesync/internal/observability"
	"github.com/smallbiznis/storesync/internal/order"
	"github.com/smallbiznis/storesync/internal/product"
	"github.com/smallbiznis/storesync/internal/ratelimit"
	"github.com/smallbiznis/storesync/internal/scheduler"
	"github.com/smallbiznis/storesync/internal/server"
	"github.com/smallbiznis/storesync/internal/source"
	"github.com/smallbiznis/storesync/internal/tenant"
	"github.com/smallbiznis/storesync/internal/webhook"
	"github.com/smallbiznis/storesync/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		ratelimit.Module,

		// Functional Domains
		source.Module,
		tenant.Module,
		customer.Module,
		product.Module,
		order.Module,
		ingestion.Module,
		webhook.Module,
		migration.Module,
		scheduler.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
