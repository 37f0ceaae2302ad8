package audit

import (
	_ "github.com/lib/pq"           // registers the "postgres" database/sql driver
	_ "github.com/mattn/go-sqlite3" // registers the "sqlite3" database/sql driver
)
