// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package conddb holds types to describe the acquisition presets and the
// run log of the XPAD detector.
package conddb // import "github.com/go-lpc/xpad/conddb"

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

const (
	host = "localhost"
)

var (
	usr = "username"
	pwd = "s3cr3t"

	drvName = "mysql"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("conddb: not found")

// DB exposes convenience methods to easily retrieve acquisition presets
// from the XPAD database and to record acquisition runs.
type DB struct {
	db   *sql.DB
	name string // name of the XPAD database
}

// Open opens a connection to the XPAD database dbname.
func Open(dbname string) (*DB, error) {
	db, err := sql.Open(drvName, dsn(dbname))
	if err != nil {
		return nil, fmt.Errorf("conddb: could not open %q db: %w", dbname, err)
	}

	err = ping(db, dbname)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return &DB{db: db, name: dbname}, nil
}

func dsn(db string) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true", usr, pwd, host, db)
}

func ping(db *sql.DB, dbname string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("conddb: could not ping %q db: %w", dbname, err)
	}

	return nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return db.db.QueryContext(ctx, query, args...)
}

// LastRunNumber returns the number of the last recorded run, or zero.
func (db *DB) LastRunNumber(ctx context.Context) (uint32, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var run sql.NullInt64
	rows, err := db.db.QueryContext(ctx, "SELECT MAX(number) FROM runs")
	if err != nil {
		return 0, fmt.Errorf("conddb: could not query last run number: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		err = rows.Scan(&run)
		if err != nil {
			return 0, fmt.Errorf("conddb: could not get last run number value: %w", err)
		}
	}

	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("conddb: could not scan db for last run number: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("conddb: context error while retrieving last run number: %w", err)
	}

	return uint32(run.Int64), nil
}
