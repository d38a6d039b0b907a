package db

import "embed"

// MigrationFS embeds the SQL migrations for the kv_entries table.
// Applied by cmd/migrate and by the postgres store at startup.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
