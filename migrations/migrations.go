// Package migrations embeds the PostgreSQL schema files so binaries can apply
// them without a checkout of the repository.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
