package db

import (
	_ "embed"
)

//go:embed schema.sql
var Schema string

//go:embed schema_pg.sql
var PgSchema string
