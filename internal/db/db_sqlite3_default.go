//go:build !sqlite3_cgo

package db

import (
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// DriverID names the sqlite implementation compiled in.
const DriverID = "ncruces/go-sqlite3"
const driverName = "sqlite3"
