// Package migrations embeds the SQL schema migrations into the binary.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed *.sql
var files embed.FS

// FS returns the embedded migration files, rooted at the directory that
// holds them.
func FS() fs.FS {
	return files
}
