// Package migrations embeds the checkout ledger schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
