// Package migrations holds the goose migrations of the service. SQL files are
// embedded; Go migrations register themselves from init.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS

// Dir is the directory goose reads from FS.
const Dir = "."

// TableName is the goose version table.
const TableName = "schema_migrations"
