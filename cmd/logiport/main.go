package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/logiport/logiport/internal/clock"
	"github.com/logiport/logiport/internal/config"
	"github.com/logiport/logiport/internal/migration"
	"github.com/logiport/logiport/internal/observability"
	"github.com/logiport/logiport/internal/server"
	"github.com/logiport/logiport/pkg/db"
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
