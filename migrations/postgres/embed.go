// Package migrations embebe los archivos SQL del schema.
package migrations

import "embed"

// FS contiene las migraciones postgres, formato {version}_{nombre}.sql.
//
//go:embed *.sql
var FS embed.FS
