package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/config"
	"github.com/smallbiznis/referral/internal/consumer"
	"github.com/smallbiznis/referral/internal/migration"
	"github.com/smallbiznis/referral/internal/observability"
	"github.com/smallbiznis/referral/internal/referral"
	"github.com/smallbiznis/referral/internal/server"
	"github.com/smallbiznis/referral/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,

		referral.Module,
		consumer.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
