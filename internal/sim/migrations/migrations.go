// Package migrations embeds the package store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
