package storage

import (
	"context"
	"fmt"
	"io"
	"time"
)

// PutOptions describes upload options for object storage.
type PutOptions struct {
	ContentType string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	ObjectName   string
	Size         int64
	LastModified time.Time
}

// Store abstracts object storage operations. Object names are derived
// from content fingerprints, so concurrent writers to the same name are
// writing identical bytes and puts are safe to race. RemoveObject on an
// absent object is not an error: the object counts as already reclaimed.
type Store interface {
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts PutOptions) error
	GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, ObjectInfo, error)
	RemoveObject(ctx context.Context, bucket, object string) error
	ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}

// ContentPrefix is the namespace all content objects live under.
const ContentPrefix = "content/"

// ObjectNameFor builds the sharded object path for a fingerprint. The
// two-character prefix bounds directory fan-out.
func ObjectNameFor(fingerprint string) string {
	if len(fingerprint) < 2 {
		return ContentPrefix + fingerprint
	}
	return fmt.Sprintf("%s%s/%s", ContentPrefix, fingerprint[:2], fingerprint)
}

// FingerprintFromObjectName recovers the fingerprint from a sharded
// object path. Returns "" for names outside the content namespace.
func FingerprintFromObjectName(object string) string {
	if len(object) <= len(ContentPrefix) {
		return ""
	}
	if object[:len(ContentPrefix)] != ContentPrefix {
		return ""
	}
	rest := object[len(ContentPrefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[i+1:]
		}
	}
	return rest
}

// Default is the main object store instance.
var Default Store
