// Package pqstore implements kvstore.Store on top of PostgreSQL via
// lib/pq, for deployments that want the operational tooling of a
// conventional RDBMS instead of an embedded engine. Each kvstore.Column
// maps onto its own table with a binary key/value schema; there is no
// native prefix-drop, so DeletePrefix emulates it with a DELETE over the
// BYTEA key range the prefix covers (SPEC_FULL.md §4.4, "typed-column
// engine emulating prefix delete").
package pqstore

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/farcloud-labs/subsmt/internal/kvstore"
)

var tableNames = [...]string{
	kvstore.ColumnBranch: "smt_branches",
	kvstore.ColumnLeaf:   "smt_leaves",
	kvstore.ColumnMeta:   "smt_meta",
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS smt_branches (k BYTEA PRIMARY KEY, v BYTEA NOT NULL);
CREATE TABLE IF NOT EXISTS smt_leaves  (k BYTEA PRIMARY KEY, v BYTEA NOT NULL);
CREATE TABLE IF NOT EXISTS smt_meta    (k BYTEA PRIMARY KEY, v BYTEA NOT NULL);
`

// Store is a Postgres-backed kvstore.Store.
type Store struct {
	db *sql.DB
}

// Open connects to connStr (a libpq connection string/URL) and ensures the
// column tables exist.
func Open(connStr string) (*Store, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("pqstore: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("pqstore: ping: %w", err)
	}
	if _, err := db.Exec(schemaDDL); err != nil {
		return nil, fmt.Errorf("pqstore: migrate schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(col kvstore.Column, key []byte) ([]byte, bool, error) {
	if !col.Valid() {
		return nil, false, kvstore.ErrInvalidColumn()
	}
	table := tableNames[col]
	var value []byte
	err := s.db.QueryRow(fmt.Sprintf("SELECT v FROM %s WHERE k = $1", table), key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("pqstore: get: %w", err)
	}
	return value, true, nil
}

func (s *Store) Write(ops []kvstore.WriteOp) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("pqstore: begin: %w", err)
	}
	defer tx.Rollback()

	for _, op := range ops {
		if !op.Column.Valid() {
			return kvstore.ErrInvalidColumn()
		}
		table := tableNames[op.Column]
		if op.Value == nil {
			if _, err := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE k = $1", table), op.Key); err != nil {
				return fmt.Errorf("pqstore: delete: %w", err)
			}
			continue
		}
		upsert := fmt.Sprintf(
			"INSERT INTO %s (k, v) VALUES ($1, $2) ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v",
			table,
		)
		if _, err := tx.Exec(upsert, op.Key, op.Value); err != nil {
			return fmt.Errorf("pqstore: upsert: %w", err)
		}
	}

	return tx.Commit()
}

// DeletePrefix emulates badger's DropPrefix with a BYTEA range scan: rows
// whose key lies in [prefix, upperBound(prefix)) all start with prefix.
// When prefix is all 0xff bytes (or empty), there is no finite upper
// bound, so every row from prefix onward is deleted instead.
func (s *Store) DeletePrefix(col kvstore.Column, prefix []byte) error {
	if !col.Valid() {
		return kvstore.ErrInvalidColumn()
	}
	table := tableNames[col]

	upper, bounded := incrementBytes(prefix)
	if !bounded {
		_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE k >= $1", table), prefix)
		if err != nil {
			return fmt.Errorf("pqstore: delete prefix: %w", err)
		}
		return nil
	}

	_, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s WHERE k >= $1 AND k < $2", table), prefix, upper)
	if err != nil {
		return fmt.Errorf("pqstore: delete prefix: %w", err)
	}
	return nil
}

// incrementBytes returns the lexicographically smallest byte string
// greater than every string with prefix `b` as a prefix, by incrementing
// the last byte that isn't already 0xff (and dropping every 0xff byte
// after it). bounded is false when b is empty or all 0xff, in which case
// no finite upper bound exists.
func incrementBytes(b []byte) (out []byte, bounded bool) {
	out = append([]byte{}, b...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] != 0xff {
			out[i]++
			return out[:i+1], true
		}
	}
	return nil, false
}

func (s *Store) Iterate(col kvstore.Column, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	if !col.Valid() {
		return kvstore.ErrInvalidColumn()
	}
	table := tableNames[col]
	rows, err := s.db.Query(fmt.Sprintf("SELECT k, v FROM %s WHERE k >= $1 ORDER BY k", table), prefix)
	if err != nil {
		return fmt.Errorf("pqstore: iterate: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("pqstore: scan: %w", err)
		}
		if !hasPrefix(k, prefix) {
			break
		}
		cont, err := fn(k, v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return rows.Err()
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (s *Store) Close() error {
	return s.db.Close()
}
