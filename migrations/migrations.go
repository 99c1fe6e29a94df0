// Package migrations embeds the SQL schema for the mutation journal and
// the access audit.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
