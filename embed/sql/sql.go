package sql

import _ "embed"

// Schema is the database schema applied on Init.
//
//go:embed schema.sql
var Schema string
