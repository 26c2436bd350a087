package migrations

import "embed"

// FS contains the schema migrations of the listing database, one file per
// schema version.
//
//go:embed *.sql
var FS embed.FS
