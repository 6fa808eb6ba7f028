// Package migrations embeds the SQL migrations of the drive catalog.
// They create only the tables and columns the gateway touches, so a
// development database can be brought up without the main platform.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
