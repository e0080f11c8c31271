// Package badgerstore implements kvstore.Store on top of Badger v3, the
// production-default engine: a log-structured store whose native prefix
// iteration and DropPrefix give the registry an O(1)-ish namespace Clear
// without scanning every row.
package badgerstore

import (
	"fmt"
	"path/filepath"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/farcloud-labs/subsmt/internal/kvstore"
)

// columnPrefixes maps each logical column onto a one-byte key prefix, since
// Badger keeps everything in a single flat keyspace.
var columnPrefixes = [...]byte{
	kvstore.ColumnBranch: 'b',
	kvstore.ColumnLeaf:   'l',
	kvstore.ColumnMeta:   'm',
}

func physicalKey(col kvstore.Column, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = columnPrefixes[col]
	copy(out[1:], key)
	return out
}

// Store is a Badger-backed kvstore.Store.
type Store struct {
	db     *badgerdb.DB
	logger *zap.Logger
}

// Open opens (creating if absent) a Badger database at dataPath. SyncWrites
// is enabled so every InsertBranch/InsertLeaf call is fsynced before it
// returns, matching the registry's crash-safety requirement that the leaf
// row always lands before the branch chain above it.
func Open(dataPath string, logger *zap.Logger) (*Store, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: resolve path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &loggerAdapter{logger: logger}
	opts.SyncWrites = true

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", absPath, err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Get(col kvstore.Column, key []byte) ([]byte, bool, error) {
	if !col.Valid() {
		return nil, false, kvstore.ErrInvalidColumn()
	}

	var out []byte
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(physicalKey(col, key))
		if err == badgerdb.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte{}, val...)
			return nil
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("badgerstore: get: %w", err)
	}
	return out, out != nil, nil
}

func (s *Store) Write(ops []kvstore.WriteOp) error {
	return s.db.Update(func(txn *badgerdb.Txn) error {
		for _, op := range ops {
			if !op.Column.Valid() {
				return kvstore.ErrInvalidColumn()
			}
			k := physicalKey(op.Column, op.Key)
			if op.Value == nil {
				if err := txn.Delete(k); err != nil && err != badgerdb.ErrKeyNotFound {
					return err
				}
				continue
			}
			if err := txn.Set(k, op.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) DeletePrefix(col kvstore.Column, prefix []byte) error {
	if !col.Valid() {
		return kvstore.ErrInvalidColumn()
	}
	return s.db.DropPrefix(physicalKey(col, prefix))
}

func (s *Store) Iterate(col kvstore.Column, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	if !col.Valid() {
		return kvstore.ErrInvalidColumn()
	}
	physPrefix := physicalKey(col, prefix)

	return s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = physPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(physPrefix); it.ValidForPrefix(physPrefix); it.Next() {
			item := it.Item()
			logicalKey := append([]byte{}, item.KeyCopy(nil)[1:]...)
			var value []byte
			if err := item.Value(func(val []byte) error {
				value = append([]byte{}, val...)
				return nil
			}); err != nil {
				return err
			}
			cont, err := fn(logicalKey, value)
			if err != nil {
				return err
			}
			if !cont {
				break
			}
		}
		return nil
	})
}

func (s *Store) Close() error {
	return s.db.Close()
}

// loggerAdapter routes Badger's internal logging through zap, matching the
// rest of the daemon's structured log output.
type loggerAdapter struct {
	logger *zap.Logger
}

var _ badgerdb.Logger = (*loggerAdapter)(nil)

func (l *loggerAdapter) Errorf(format string, args ...interface{})   { l.logger.Sugar().Errorf(format, args...) }
func (l *loggerAdapter) Warningf(format string, args ...interface{}) { l.logger.Sugar().Warnf(format, args...) }
func (l *loggerAdapter) Infof(format string, args ...interface{})    { l.logger.Sugar().Infof(format, args...) }
func (l *loggerAdapter) Debugf(format string, args ...interface{})   { l.logger.Sugar().Debugf(format, args...) }
