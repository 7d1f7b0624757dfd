// Package all registers every storage backend with the storage factory.
// Config picks which one to use, but binaries need support for all of them.
package all

import (
	// "sqlserver" database/sql driver used by the mssql backend.
	_ "github.com/microsoft/go-mssqldb"

	_ "statusboard/internal/storage/file"
	_ "statusboard/internal/storage/memory"
	_ "statusboard/internal/storage/mssql"
	_ "statusboard/internal/storage/postgres"
	_ "statusboard/internal/storage/sqlite"
)
