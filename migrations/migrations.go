// Package migrations embeds the postgres schema of each service.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed ledger/*.sql catalog/*.sql
var files embed.FS

// For returns the migrations of one service (ledger or catalog)
func For(service string) (fs.FS, error) {
	return fs.Sub(files, service)
}
