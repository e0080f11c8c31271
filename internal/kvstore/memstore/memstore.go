// Package memstore is an in-memory kvstore.Store, used by unit tests and by
// the daemon's --engine=memory mode for local experimentation. It has no
// durability: all data is lost on process exit.
package memstore

import (
	"sort"
	"strings"
	"sync"

	"github.com/farcloud-labs/subsmt/internal/kvstore"
)

type Store struct {
	mu   sync.RWMutex
	rows map[kvstore.Column]map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	s := &Store{rows: make(map[kvstore.Column]map[string][]byte)}
	return s
}

func (s *Store) columnMap(col kvstore.Column) map[string][]byte {
	m, ok := s.rows[col]
	if !ok {
		m = make(map[string][]byte)
		s.rows[col] = m
	}
	return m
}

func (s *Store) Get(col kvstore.Column, key []byte) ([]byte, bool, error) {
	if !col.Valid() {
		return nil, false, kvstore.ErrInvalidColumn()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rows[col][string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *Store) Write(ops []kvstore.WriteOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, op := range ops {
		if !op.Column.Valid() {
			return kvstore.ErrInvalidColumn()
		}
		m := s.columnMap(op.Column)
		if op.Value == nil {
			delete(m, string(op.Key))
			continue
		}
		v := make([]byte, len(op.Value))
		copy(v, op.Value)
		m[string(op.Key)] = v
	}
	return nil
}

func (s *Store) DeletePrefix(col kvstore.Column, prefix []byte) error {
	if !col.Valid() {
		return kvstore.ErrInvalidColumn()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.columnMap(col)
	p := string(prefix)
	for k := range m {
		if strings.HasPrefix(k, p) {
			delete(m, k)
		}
	}
	return nil
}

func (s *Store) Iterate(col kvstore.Column, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	if !col.Valid() {
		return kvstore.ErrInvalidColumn()
	}
	s.mu.RLock()
	m := s.columnMap(col)
	keys := make([]string, 0, len(m))
	p := string(prefix)
	for k := range m {
		if strings.HasPrefix(k, p) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	type kv struct{ k, v []byte }
	snapshot := make([]kv, 0, len(keys))
	for _, k := range keys {
		snapshot = append(snapshot, kv{k: []byte(k), v: m[k]})
	}
	s.mu.RUnlock()

	for _, row := range snapshot {
		cont, err := fn(row.k, row.v)
		if err != nil {
			return err
		}
		if !cont {
			break
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }
