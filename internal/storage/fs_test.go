package storage

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func newTestStore() *FSStore {
	return NewFSStore(afero.NewMemMapFs(), "data")
}

func TestObjectNameFor(t *testing.T) {
	fp := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	want := "content/2c/" + fp
	if got := ObjectNameFor(fp); got != want {
		t.Fatalf("expect %s, got %s", want, got)
	}
	if got := FingerprintFromObjectName(want); got != fp {
		t.Fatalf("expect fingerprint %s, got %s", fp, got)
	}
	if got := FingerprintFromObjectName("uploads/other"); got != "" {
		t.Fatalf("expect empty fingerprint outside content namespace, got %s", got)
	}
}

func TestFSStorePutGetRoundTrip(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	object := ObjectNameFor("aabbcc")
	data := []byte("hello dedup")

	err := store.PutObject(ctx, "vault", object, bytes.NewReader(data), int64(len(data)), PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put failed: %v", err)
	}

	reader, info, err := store.GetObject(ctx, "vault", object)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	defer reader.Close()
	if info.Size != int64(len(data)) {
		t.Fatalf("expect size %d, got %d", len(data), info.Size)
	}
	got, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("expect %q, got %q", data, got)
	}
}

func TestFSStorePutTwiceSameObject(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	object := ObjectNameFor("ddeeff")
	data := []byte("same content twice")

	for i := 0; i < 2; i++ {
		err := store.PutObject(ctx, "vault", object, bytes.NewReader(data), int64(len(data)), PutOptions{})
		if err != nil {
			t.Fatalf("put %d failed: %v", i, err)
		}
	}

	infos, err := store.ListObjects(ctx, "vault", ContentPrefix)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(infos) != 1 {
		t.Fatalf("expect 1 object after duplicate puts, got %d", len(infos))
	}
}

func TestFSStoreRemoveAbsent(t *testing.T) {
	store := newTestStore()
	if err := store.RemoveObject(context.Background(), "vault", ObjectNameFor("aabbcc")); err != nil {
		t.Fatalf("expect remove of absent object to succeed, got %v", err)
	}
}

func TestFSStoreRemoveThenGet(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()
	object := ObjectNameFor("aabbcc")
	data := []byte("gone soon")

	if err := store.PutObject(ctx, "vault", object, bytes.NewReader(data), int64(len(data)), PutOptions{}); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := store.RemoveObject(ctx, "vault", object); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if _, _, err := store.GetObject(ctx, "vault", object); err == nil {
		t.Fatal("expect get of removed object to fail")
	}
}

func TestFSStoreListFiltersPrefixAndTemps(t *testing.T) {
	store := newTestStore()
	ctx := context.Background()

	objects := []string{
		ObjectNameFor("aa11"),
		ObjectNameFor("bb22"),
		"uploads/unrelated",
	}
	for _, object := range objects {
		data := []byte(object)
		if err := store.PutObject(ctx, "vault", object, bytes.NewReader(data), int64(len(data)), PutOptions{}); err != nil {
			t.Fatalf("put %s failed: %v", object, err)
		}
	}
	// A leftover temp file from an interrupted put must not be listed.
	if err := afero.WriteFile(store.fs, "data/vault/content/aa/.put-123", []byte("partial"), 0o644); err != nil {
		t.Fatalf("write temp failed: %v", err)
	}

	infos, err := store.ListObjects(ctx, "vault", ContentPrefix)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("expect 2 content objects, got %d", len(infos))
	}
	for _, info := range infos {
		if !strings.HasPrefix(info.ObjectName, ContentPrefix) {
			t.Fatalf("unexpected object %s in content listing", info.ObjectName)
		}
	}
}

func TestFSStoreListMissingBucket(t *testing.T) {
	store := newTestStore()
	infos, err := store.ListObjects(context.Background(), "vault", ContentPrefix)
	if err != nil {
		t.Fatalf("list missing bucket failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("expect empty listing, got %d objects", len(infos))
	}
}
