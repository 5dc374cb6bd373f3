// Package store provides the in-memory SQLite record store holding the
// knowledge, links, and access-log tables. The store is the query/write
// surface; durability is owned by the persist package.
package store

import (
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto() // registers vec_* SQL functions with go-sqlite3
}

// DB wraps a sql.DB with record-store operations.
type DB struct {
	conn   *sql.DB
	vecOK  bool
	hasFTS bool
}

// Open creates a fresh in-memory store and applies the schema.
//
// The connection pool is capped at one connection: each database/sql
// connection to ":memory:" would otherwise get its own private database,
// and the single connection also guarantees statements never interleave.
func Open() (*DB, error) {
	conn, err := sql.Open("sqlite3", "file::memory:?_loc=UTC")
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	conn.SetMaxOpenConns(1)
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	db := &DB{conn: conn}

	var vecVersion string
	if err := conn.QueryRow(`SELECT vec_version()`).Scan(&vecVersion); err == nil {
		db.vecOK = true
	}

	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	db.hasFTS = ftsEnabled

	return db, nil
}

// Conn exposes the underlying connection for raw read-only queries and for
// the persistence manager's legacy ATTACH migration.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close releases the in-memory database. All data not flushed to the
// durable snapshot is lost.
func (db *DB) Close() error {
	return db.conn.Close()
}
