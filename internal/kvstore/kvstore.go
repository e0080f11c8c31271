// Package kvstore defines the pluggable key/value store contract (C4) that
// every tree namespace is ultimately persisted through, plus the error
// taxonomy shared by all backends. Concrete engines live in the badgerstore,
// pqstore and memstore subpackages; internal/treestore adapts a Store into
// the per-namespace branch/leaf views the tree algorithm needs.
package kvstore

import "github.com/farcloud-labs/subsmt/internal/smterrors"

// Column selects a logical keyspace within a Store. Backends that store
// everything in one physical table (badger) fold Column into the key
// prefix; backends with native typed tables (Postgres) map Column onto a
// table name. A Store rejects any Column value outside the range it was
// configured for with smterrors.ErrInvalidColumn.
type Column uint8

const (
	// ColumnBranch holds inner-node (BranchKey -> BranchNode) rows.
	ColumnBranch Column = iota
	// ColumnLeaf holds leaf (path -> value) rows.
	ColumnLeaf
	// ColumnMeta holds registry bookkeeping (namespace list, roots).
	ColumnMeta

	numColumns
)

// Valid reports whether c is a column this package knows about.
func (c Column) Valid() bool { return c < numColumns }

// WriteOp is one entry in a batch passed to Store.Write: either an upsert
// (Value non-nil) or a delete (Value nil).
type WriteOp struct {
	Column Column
	Key    []byte
	Value  []byte // nil means delete
}

// Store is the storage-engine contract every backend (badger, Postgres,
// in-memory) implements. All key/value bytes are opaque to the store;
// namespacing, column layout and prefix scoping are the store's concern,
// encoding is the caller's (codec package / treestore adapters).
type Store interface {
	Get(col Column, key []byte) ([]byte, bool, error)
	Write(ops []WriteOp) error

	// DeletePrefix removes every row in col whose key starts with prefix.
	// Used by the registry to drop an entire namespace in one call
	// (SPEC_FULL.md §4.6 Clear).
	DeletePrefix(col Column, prefix []byte) error

	// Iterate calls fn for every row in col whose key starts with prefix,
	// in key order, until fn returns false or an error. Used for snapshot
	// export and for the in-memory/test backends' verification helpers.
	Iterate(col Column, prefix []byte, fn func(key, value []byte) (bool, error)) error

	Close() error
}

// ErrInvalidColumn wraps smterrors.ErrInvalidColumn in the store-error
// envelope, for backends to return whenever a caller passes an out-of-range
// Column.
func ErrInvalidColumn() error {
	return smterrors.NewStoreError("column check", smterrors.ErrInvalidColumn)
}
