package db

import "database/sql"

// DB wraps the raw handle so packages depend on one local type rather
// than database/sql directly.
type DB struct {
	*sql.DB
}
