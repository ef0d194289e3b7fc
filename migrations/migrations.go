// Package migrations embeds the SQL schema files applied by database.Migrate.
package migrations

import "embed"

// FS holds the numbered *.sql migration files.
//
//go:embed *.sql
var FS embed.FS
