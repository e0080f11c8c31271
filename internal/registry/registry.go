// Package registry implements the multi-tree registry (C6): the single
// entry point the transport layer talks to, owning one mutex for every
// tree it hosts. SPEC_FULL.md §5 inherits the original's global
// single-writer model — Arc<Mutex<MultiSMTStore<...>>> in the system this
// was distilled from — so every exported method here takes the same
// registry-wide lock, not a per-namespace one.
package registry

import (
	"sync"

	"github.com/farcloud-labs/subsmt/internal/account"
	"github.com/farcloud-labs/subsmt/internal/codec"
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/kvstore"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
	"github.com/farcloud-labs/subsmt/internal/smt"
	"github.com/farcloud-labs/subsmt/internal/smterrors"
	"github.com/farcloud-labs/subsmt/internal/treestore"
	"github.com/farcloud-labs/subsmt/internal/verifier"
)

var metaRootKeyPrefix = []byte("root:")

// Registry hosts any number of independently-addressed trees over one
// underlying kvstore.Store, all guarded by a single mutex (SPEC_FULL.md §5:
// correctness over intra-process write concurrency; cross-process mutual
// exclusion, if ever needed, is left to the store engine).
type Registry struct {
	mu sync.Mutex
	kv kvstore.Store
}

// Open wraps an already-opened kvstore.Store as a Registry. Namespaces are
// created lazily on first write; there is no separate "create tree" call.
func Open(kv kvstore.Store) *Registry {
	return &Registry{kv: kv}
}

func (r *Registry) tree(namespace string) *smt.Tree[account.Value] {
	store := treestore.NewPrefixed[account.Value](r.kv, namespace, account.Codec())
	return smt.New[account.Value](store, account.Codec())
}

func metaKey(namespace string) []byte {
	return append(append([]byte{}, metaRootKeyPrefix...), namespace...)
}

func (r *Registry) setRoot(namespace string, root h256.H256) error {
	return r.kv.Write([]kvstore.WriteOp{{
		Column: kvstore.ColumnMeta,
		Key:    metaKey(namespace),
		Value:  root.Bytes(),
	}})
}

// Update writes value at key in namespace and returns the new root.
func (r *Registry) Update(namespace string, key account.Key, value account.Value) (h256.H256, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	root, err := r.tree(namespace).Update(key.ToH256(), value)
	if err != nil {
		return h256.Zero, err
	}
	if err := r.setRoot(namespace, root); err != nil {
		return h256.Zero, err
	}
	return root, nil
}

// UpdateAll applies every (key, value) pair in order and returns the final
// root, matching Update's sequential-application semantics.
func (r *Registry) UpdateAll(namespace string, keys []account.Key, values []account.Value) (h256.H256, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]h256.H256, len(keys))
	for i, k := range keys {
		paths[i] = k.ToH256()
	}

	root, err := r.tree(namespace).UpdateAll(paths, values)
	if err != nil {
		return h256.Zero, err
	}
	if err := r.setRoot(namespace, root); err != nil {
		return h256.Zero, err
	}
	return root, nil
}

// GetValue returns the value stored at key in namespace, or the zero value
// if absent.
func (r *Registry) GetValue(namespace string, key account.Key) (account.Value, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.tree(namespace).Get(key.ToH256())
}

// GetRoot returns the current root of namespace (the zero digest for an
// empty or never-created namespace).
func (r *Registry) GetRoot(namespace string) (h256.H256, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, found, err := r.kv.Get(kvstore.ColumnMeta, metaKey(namespace))
	if err != nil {
		return h256.Zero, smterrors.NewStoreError("get root", err)
	}
	if !found {
		return h256.Zero, nil
	}
	return h256.FromBytes(raw)
}

// Proof is the fat, developer-friendly proof shape SPEC_FULL.md §4.6
// favors over the raw compiled-bytes form: everything needed to both
// display and independently re-verify a single key's membership.
type Proof struct {
	Key          account.Key
	Value        account.Value
	Path         h256.H256
	ValueHash    h256.H256
	Root         h256.H256
	LeavesBitmap h256.H256
	Siblings     []mergevalue.MergeValue
}

// MerkleProof returns a fat Proof for key in namespace.
func (r *Registry) MerkleProof(namespace string, key account.Key) (Proof, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tree := r.tree(namespace)
	path := key.ToH256()

	value, err := tree.Get(path)
	if err != nil {
		return Proof{}, err
	}

	mp, err := tree.MerkleProof(path)
	if err != nil {
		return Proof{}, err
	}

	root, found, err := r.kv.Get(kvstore.ColumnMeta, metaKey(namespace))
	if err != nil {
		return Proof{}, smterrors.NewStoreError("get root", err)
	}
	var rootHash h256.H256
	if found {
		rootHash, err = h256.FromBytes(root)
		if err != nil {
			return Proof{}, err
		}
	}

	return Proof{
		Key:          key,
		Value:        value,
		Path:         path,
		ValueHash:    account.ToH256(value),
		Root:         rootHash,
		LeavesBitmap: mp.LeavesBitmap,
		Siblings:     mp.Siblings,
	}, nil
}

// CompileProof serializes the evidence needed to later recompute
// namespace's root after updating every given key, without touching the
// store again.
func (r *Registry) CompileProof(namespace string, keys []account.Key) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]h256.H256, len(keys))
	for i, k := range keys {
		paths[i] = k.ToH256()
	}

	compiled, err := r.tree(namespace).CompileProof(paths)
	if err != nil {
		return nil, err
	}
	return codec.EncodeCompiledProof(compiled), nil
}

// ComputeNextRoot recomputes the root that applying (keys[i], values[i])
// in order would produce, using a previously compiled proof and no store
// access.
func (r *Registry) ComputeNextRoot(compiledProof []byte, keys []account.Key, values []account.Value) (h256.H256, error) {
	proof, err := codec.DecodeCompiledProof(compiledProof)
	if err != nil {
		return h256.Zero, err
	}

	paths := make([]h256.H256, len(keys))
	valueHashes := make([]h256.H256, len(values))
	for i, k := range keys {
		paths[i] = k.ToH256()
		valueHashes[i] = account.ToH256(values[i])
	}

	return smt.ComputeNextRoot(proof, paths, valueHashes)
}

// Verify re-checks a fat Proof against the tree algorithm's stateless
// verifier, short-circuiting to false for an absent (zero-value) account —
// mirroring the original implementation's "never claim membership for the
// default value" guard.
func Verify(p Proof) bool {
	if p.Value.IsZero() {
		return false
	}
	return verifier.Verify(p.Path, p.ValueHash, p.LeavesBitmap, p.Siblings, p.Root)
}

// Clear removes every row belonging to namespace and resets its root to
// zero.
func (r *Registry) Clear(namespace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	store := treestore.NewPrefixed[account.Value](r.kv, namespace, account.Codec())
	if err := store.Clear(); err != nil {
		return err
	}
	return r.setRoot(namespace, h256.Zero)
}
