package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ledgerline/dunning/internal/clock"
	"github.com/ledgerline/dunning/internal/config"
	"github.com/ledgerline/dunning/internal/customer"
	"github.com/ledgerline/dunning/internal/employee"
	"github.com/ledgerline/dunning/internal/filestore"
	"github.com/ledgerline/dunning/internal/invoice"
	"github.com/ledgerline/dunning/internal/migration"
	"github.com/ledgerline/dunning/internal/notifier"
	"github.com/ledgerline/dunning/internal/observability"
	"github.com/ledgerline/dunning/internal/ops"
	"github.com/ledgerline/dunning/internal/providers/email"
	"github.com/ledgerline/dunning/internal/providers/pdf"
	"github.com/ledgerline/dunning/internal/ratelimit"
	"github.com/ledgerline/dunning/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Domain repositories
		invoice.Module,
		customer.Module,
		employee.Module,

		// Delivery and storage
		email.Module,
		pdf.Module,
		filestore.Module,
		ratelimit.Module,

		// Operational surface (health, metrics)
		ops.Module,

		notifier.Module,
		fx.Invoke(notifier.Register),
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
