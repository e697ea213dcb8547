// Package all registers every snapshot store backend. Binaries blank-import
// it so the configured kind is always available:
//
//	import _ "github.com/louisbat101/agtegra-tractors-hours/internal/store/all"
package all

import (
	// Backend registrations.
	_ "github.com/louisbat101/agtegra-tractors-hours/internal/store/mssql"
	_ "github.com/louisbat101/agtegra-tractors-hours/internal/store/postgres"
	_ "github.com/louisbat101/agtegra-tractors-hours/internal/store/sqlite"

	// The mssql backend expects the "sqlserver" driver to be registered by
	// the application.
	_ "github.com/microsoft/go-mssqldb"
)
