package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dealshark/internal/clock"
	"github.com/smallbiznis/dealshark/internal/config"
	"github.com/smallbiznis/dealshark/internal/migration"
	"github.com/smallbiznis/dealshark/internal/observability"
	"github.com/smallbiznis/dealshark/internal/server"
	"github.com/smallbiznis/dealshark/pkg/db"
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
