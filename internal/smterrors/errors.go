// Package smterrors defines the error kinds surfaced by the tree, store and
// registry layers, per the error handling design in SPEC_FULL.md §7.
package smterrors

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// ErrInvalidColumn is returned by a KV store when asked to operate on a
// column id outside its configured range.
var ErrInvalidColumn = errors.New("smterrors: invalid column")

// ErrProofMalformed is returned by smt.ComputeNextRoot when a compiled
// proof does not line up with the requested paths, or its sibling list is
// shorter than its leaves bitmap calls for. The stateless verifier does not
// return it; it reports such proofs as not verifying.
var ErrProofMalformed = errors.New("smterrors: proof malformed: sibling count does not match bitmap")

// CodecError wraps a failure decoding a canonical-encoded value: a branch
// key, branch node, merge value, or leaf.
type CodecError struct {
	What string
	Err  error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf("smterrors: codec error decoding %s: %v", e.What, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// NewCodecError wraps err with the context of what was being decoded.
func NewCodecError(what string, err error) error {
	return &CodecError{What: what, Err: pkgerrors.WithStack(err)}
}

// StoreError wraps an I/O failure from the underlying KV engine.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("smterrors: store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NewStoreError wraps err with the operation that failed.
func NewStoreError(op string, err error) error {
	return &StoreError{Op: op, Err: pkgerrors.WithMessage(err, op)}
}

// InvariantViolation indicates on-disk corruption: a branch fetched from
// the store decoded cleanly but is inconsistent with the walk in progress
// (e.g. its hash doesn't match the parent's recorded child summary). This
// is always fatal — the caller should not retry.
type InvariantViolation struct {
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("smterrors: invariant violation: %s", e.Detail)
}

// NewInvariantViolation constructs an InvariantViolation with context.
func NewInvariantViolation(detail string) error {
	return &InvariantViolation{Detail: detail}
}
