package service

import (
	"errors"
	"fmt"
)

// ErrContentNotFound reports a fingerprint with no registry row.
var ErrContentNotFound = errors.New("content not found")

// ErrBindingNotFound reports an unknown binding id.
var ErrBindingNotFound = errors.New("binding not found")

// RegistryCorruptionError reports a decrement observed on a fingerprint
// whose count is already zero. The count is never clamped: this state
// means an external invariant violation and the operation fails.
type RegistryCorruptionError struct {
	Fingerprint string
}

func (e *RegistryCorruptionError) Error() string {
	return fmt.Sprintf("registry corruption: reference count for %s already zero", e.Fingerprint)
}

// StorageError reports a content-store I/O failure.
type StorageError struct {
	Op     string
	Bucket string
	Object string
	Err    error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Bucket, e.Object, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
