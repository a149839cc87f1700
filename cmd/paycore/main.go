package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/hireloop/paycore/internal/clock"
	"github.com/hireloop/paycore/internal/config"
	"github.com/hireloop/paycore/internal/migration"
	"github.com/hireloop/paycore/internal/observability"
	"github.com/hireloop/paycore/internal/server"
	"github.com/hireloop/paycore/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
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
