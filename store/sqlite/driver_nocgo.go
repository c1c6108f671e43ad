//go:build !cgo

package sqlite

import _ "modernc.org/sqlite"

// Pure-Go driver for CGO_ENABLED=0 builds (static binaries, scratch images).
const driverName = "sqlite"

func dsn(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}
