// Package migrations carries the schema as embedded SQL files.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
