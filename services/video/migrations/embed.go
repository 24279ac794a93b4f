// Package migrations embeds the video service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
