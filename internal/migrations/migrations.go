// Package migrations holds the goose migration set: embedded SQL for
// the base accounts table plus registered Go migrations for schema
// changes that need transactional scripts.
package migrations

import "embed"

//go:embed *.sql
var Embed embed.FS
