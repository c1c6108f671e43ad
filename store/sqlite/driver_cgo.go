//go:build cgo

package sqlite

import _ "github.com/mattn/go-sqlite3"

const driverName = "sqlite3"

func dsn(path string) string {
	return path + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}
