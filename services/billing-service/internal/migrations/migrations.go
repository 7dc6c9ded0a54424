// Package migrations embeds the billing service schema, applied on
// startup via libs/db.Migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
