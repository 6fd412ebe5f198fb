// Package migrations embeds the SQL schema applied by golang-migrate at startup.
// Statements are written in the dialect shared by postgres and sqlite.
package migrations

import "embed"

// FS holds the numbered *.up.sql / *.down.sql files.
//
//go:embed *.sql
var FS embed.FS
