// Package migrations embeds the SQL migration files applied by cmd/migrate
// and by storage.NewMigrator at bootstrap. Files are discovered by
// bun/migrate's naming convention (<version>_<name>.up.sql / .down.sql).
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
