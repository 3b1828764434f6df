// Package migrations holds the gateway's Postgres schema, applied with bun/migrate.
package migrations

import "github.com/uptrace/bun/migrate"

var Migrations = migrate.NewMigrations()
