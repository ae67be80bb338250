// Package migrations embeds the database schema. Integration tests apply it
// to fresh containers; deploy tooling applies it to real databases.
package migrations

import _ "embed"

//go:embed 0001_init.sql
var Schema string
