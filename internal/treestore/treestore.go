// Package treestore adapts a kvstore.Store into the per-namespace
// smt.Store[V] view the tree algorithm needs, in the two addressing
// schemes SPEC_FULL.md §4.5 describes: Prefixed concatenates a namespace
// prefix onto every physical key in one shared keyspace (mirrors the
// original SMTStore over a single RocksDB column), while Columnar instead
// relies on the underlying kvstore.Store dedicating a whole column (table,
// in the Postgres backend) per namespace (mirrors SMTParityStore).
package treestore

import (
	"github.com/farcloud-labs/subsmt/internal/codec"
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/kvstore"
	"github.com/farcloud-labs/subsmt/internal/smt"
)

// Prefixed is an smt.Store[V] that concatenates namespace onto every key
// before delegating to a single shared kvstore.Store. Dropping a namespace
// is a DeletePrefix over that namespace's prefix in each column.
type Prefixed[V any] struct {
	kv        kvstore.Store
	namespace []byte
	valueCo   smt.ValueCodec[V]
}

// NewPrefixed returns a Prefixed store scoped to namespace.
func NewPrefixed[V any](kv kvstore.Store, namespace string, valueCodec smt.ValueCodec[V]) *Prefixed[V] {
	return &Prefixed[V]{kv: kv, namespace: []byte(namespace), valueCo: valueCodec}
}

func (p *Prefixed[V]) branchKey(key smt.BranchKey) []byte {
	out := make([]byte, 0, len(p.namespace)+33)
	out = append(out, p.namespace...)
	out = append(out, codec.EncodeBranchKey(key)...)
	return out
}

func (p *Prefixed[V]) leafKey(path h256.H256) []byte {
	out := make([]byte, 0, len(p.namespace)+h256.Size)
	out = append(out, p.namespace...)
	out = append(out, path.Bytes()...)
	return out
}

func (p *Prefixed[V]) GetBranch(key smt.BranchKey) (smt.BranchNode, bool, error) {
	raw, found, err := p.kv.Get(kvstore.ColumnBranch, p.branchKey(key))
	if err != nil || !found {
		return smt.BranchNode{}, false, err
	}
	node, err := codec.DecodeBranchNode(raw)
	if err != nil {
		return smt.BranchNode{}, false, err
	}
	return node, true, nil
}

func (p *Prefixed[V]) InsertBranch(key smt.BranchKey, node smt.BranchNode) error {
	return p.kv.Write([]kvstore.WriteOp{{
		Column: kvstore.ColumnBranch,
		Key:    p.branchKey(key),
		Value:  codec.EncodeBranchNode(node),
	}})
}

func (p *Prefixed[V]) RemoveBranch(key smt.BranchKey) error {
	return p.kv.Write([]kvstore.WriteOp{{Column: kvstore.ColumnBranch, Key: p.branchKey(key), Value: nil}})
}

func (p *Prefixed[V]) GetLeaf(path h256.H256) (V, bool, error) {
	raw, found, err := p.kv.Get(kvstore.ColumnLeaf, p.leafKey(path))
	if err != nil || !found {
		return p.valueCo.Zero(), false, err
	}
	v, err := p.valueCo.Decode(raw)
	if err != nil {
		return p.valueCo.Zero(), false, err
	}
	return v, true, nil
}

func (p *Prefixed[V]) InsertLeaf(path h256.H256, value V) error {
	raw, err := p.valueCo.Encode(value)
	if err != nil {
		return err
	}
	return p.kv.Write([]kvstore.WriteOp{{Column: kvstore.ColumnLeaf, Key: p.leafKey(path), Value: raw}})
}

func (p *Prefixed[V]) RemoveLeaf(path h256.H256) error {
	return p.kv.Write([]kvstore.WriteOp{{Column: kvstore.ColumnLeaf, Key: p.leafKey(path), Value: nil}})
}

// Clear drops every branch and leaf row under this namespace.
func (p *Prefixed[V]) Clear() error {
	if err := p.kv.DeletePrefix(kvstore.ColumnBranch, p.namespace); err != nil {
		return err
	}
	return p.kv.DeletePrefix(kvstore.ColumnLeaf, p.namespace)
}

// Columnar is an smt.Store[V] that relies on the underlying kvstore.Store
// already dedicating one column per namespace; no namespace prefix is
// needed, so keys are a one-byte kind tag followed by the raw
// BranchKey/path encoding. Use this scheme
// with a backend (e.g. a per-namespace Postgres schema, or a
// column-per-tree engine) that can itself drop a whole column cheaply.
type Columnar[V any] struct {
	kv      kvstore.Store
	col     kvstore.Column
	valueCo smt.ValueCodec[V]
}

// NewColumnar returns a Columnar store using column col for both branch
// and leaf rows, disambiguated by a one-byte kind tag (branches and leaves
// still share physical key space within the column).
func NewColumnar[V any](kv kvstore.Store, col kvstore.Column, valueCodec smt.ValueCodec[V]) *Columnar[V] {
	return &Columnar[V]{kv: kv, col: col, valueCo: valueCodec}
}

const (
	kindBranch = 0
	kindLeaf   = 1
)

func columnarBranchKey(key smt.BranchKey) []byte {
	return append([]byte{kindBranch}, codec.EncodeBranchKey(key)...)
}

func columnarLeafKey(path h256.H256) []byte {
	return append([]byte{kindLeaf}, path.Bytes()...)
}

func (c *Columnar[V]) GetBranch(key smt.BranchKey) (smt.BranchNode, bool, error) {
	raw, found, err := c.kv.Get(c.col, columnarBranchKey(key))
	if err != nil || !found {
		return smt.BranchNode{}, false, err
	}
	node, err := codec.DecodeBranchNode(raw)
	if err != nil {
		return smt.BranchNode{}, false, err
	}
	return node, true, nil
}

func (c *Columnar[V]) InsertBranch(key smt.BranchKey, node smt.BranchNode) error {
	return c.kv.Write([]kvstore.WriteOp{{Column: c.col, Key: columnarBranchKey(key), Value: codec.EncodeBranchNode(node)}})
}

func (c *Columnar[V]) RemoveBranch(key smt.BranchKey) error {
	return c.kv.Write([]kvstore.WriteOp{{Column: c.col, Key: columnarBranchKey(key), Value: nil}})
}

func (c *Columnar[V]) GetLeaf(path h256.H256) (V, bool, error) {
	raw, found, err := c.kv.Get(c.col, columnarLeafKey(path))
	if err != nil || !found {
		return c.valueCo.Zero(), false, err
	}
	v, err := c.valueCo.Decode(raw)
	if err != nil {
		return c.valueCo.Zero(), false, err
	}
	return v, true, nil
}

func (c *Columnar[V]) InsertLeaf(path h256.H256, value V) error {
	raw, err := c.valueCo.Encode(value)
	if err != nil {
		return err
	}
	return c.kv.Write([]kvstore.WriteOp{{Column: c.col, Key: columnarLeafKey(path), Value: raw}})
}

func (c *Columnar[V]) RemoveLeaf(path h256.H256) error {
	return c.kv.Write([]kvstore.WriteOp{{Column: c.col, Key: columnarLeafKey(path), Value: nil}})
}

// Clear drops every row in this namespace's dedicated column.
func (c *Columnar[V]) Clear() error {
	return c.kv.DeletePrefix(c.col, nil)
}
