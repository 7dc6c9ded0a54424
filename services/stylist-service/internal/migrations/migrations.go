// Package migrations embeds the stylist service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
