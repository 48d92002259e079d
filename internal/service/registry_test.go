package service

import (
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/model"
	"DedupVault/utils"
	"bytes"
	"context"
	"errors"
	"testing"
)

// testWriter returns a StorageWriter that stores data and counts calls.
func testWriter(data []byte, calls *int) StorageWriter {
	return func(bucket, object string) error {
		*calls++
		return storage.Default.PutObject(context.Background(), bucket, object,
			bytes.NewReader(data), int64(len(data)), storage.PutOptions{})
	}
}

func TestGetOrCreateContent(t *testing.T) {
	resetState(t)
	data := []byte("registry payload")
	fp := utils.BufferFingerprint(data)

	calls := 0
	obj, created, err := GetOrCreateContent(repo.Db, fp, int64(len(data)), testWriter(data, &calls))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !created {
		t.Fatal("expect first call to create the row")
	}
	if obj.RefCount != 0 {
		t.Fatalf("expect new row with count 0, got %d", obj.RefCount)
	}
	if obj.Size != int64(len(data)) {
		t.Fatalf("expect size %d, got %d", len(data), obj.Size)
	}
	if calls != 1 {
		t.Fatalf("expect one storage write, got %d", calls)
	}

	again, created, err := GetOrCreateContent(repo.Db, fp, int64(len(data)), testWriter(data, &calls))
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if created {
		t.Fatal("expect second call to reuse the row")
	}
	if again.Fingerprint != fp {
		t.Fatalf("expect fingerprint %s, got %s", fp, again.Fingerprint)
	}
	if calls != 1 {
		t.Fatalf("expect no storage write on reuse, got %d calls", calls)
	}
}

func TestIncreaseRefCount(t *testing.T) {
	resetState(t)
	data := []byte("counted")
	fp := utils.BufferFingerprint(data)
	calls := 0
	if _, _, err := GetOrCreateContent(repo.Db, fp, int64(len(data)), testWriter(data, &calls)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := IncreaseRefCount(repo.Db, fp); err != nil {
			t.Fatalf("increment %d failed: %v", i, err)
		}
	}

	var obj model.ContentObject
	if err := repo.Db.Where("fingerprint = ?", fp).First(&obj).Error; err != nil {
		t.Fatalf("reload failed: %v", err)
	}
	if obj.RefCount != 2 {
		t.Fatalf("expect count 2, got %d", obj.RefCount)
	}
}

func TestIncreaseRefCountMissing(t *testing.T) {
	resetState(t)
	err := IncreaseRefCount(repo.Db, "0000000000000000000000000000000000000000000000000000000000000000")
	if !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expect ErrContentNotFound, got %v", err)
	}
}

func TestDecreaseRefCountTransitions(t *testing.T) {
	resetState(t)
	data := []byte("two refs")
	fp := utils.BufferFingerprint(data)
	calls := 0
	if _, _, err := GetOrCreateContent(repo.Db, fp, int64(len(data)), testWriter(data, &calls)); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := IncreaseRefCount(repo.Db, fp); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}

	remaining, removed, err := DecreaseRefCount(repo.Db, fp)
	if err != nil {
		t.Fatalf("first decrement failed: %v", err)
	}
	if remaining != 1 || removed != nil {
		t.Fatalf("expect remaining 1 and no removal, got %d, %v", remaining, removed)
	}

	remaining, removed, err = DecreaseRefCount(repo.Db, fp)
	if err != nil {
		t.Fatalf("second decrement failed: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expect remaining 0, got %d", remaining)
	}
	if removed == nil || removed.Fingerprint != fp {
		t.Fatalf("expect removed object for %s, got %v", fp, removed)
	}
	if n := countRows(t, "content_object"); n != 0 {
		t.Fatalf("expect row deleted at count zero, %d rows remain", n)
	}

	_, _, err = DecreaseRefCount(repo.Db, fp)
	if !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expect ErrContentNotFound after deletion, got %v", err)
	}
}

func TestDecreaseRefCountAtZeroIsCorruption(t *testing.T) {
	resetState(t)
	data := []byte("never referenced")
	fp := utils.BufferFingerprint(data)
	calls := 0
	if _, _, err := GetOrCreateContent(repo.Db, fp, int64(len(data)), testWriter(data, &calls)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	_, _, err := DecreaseRefCount(repo.Db, fp)
	var corruption *RegistryCorruptionError
	if !errors.As(err, &corruption) {
		t.Fatalf("expect RegistryCorruptionError, got %v", err)
	}
	if corruption.Fingerprint != fp {
		t.Fatalf("expect corruption for %s, got %s", fp, corruption.Fingerprint)
	}
	// The row must survive for inspection.
	if n := countRows(t, "content_object"); n != 1 {
		t.Fatalf("expect row to survive corruption, got %d rows", n)
	}
}

func TestGetContentByFingerprintMissing(t *testing.T) {
	resetState(t)
	_, err := GetContentByFingerprint(context.Background(), "1111111111111111111111111111111111111111111111111111111111111111")
	if !errors.Is(err, ErrContentNotFound) {
		t.Fatalf("expect ErrContentNotFound, got %v", err)
	}
}
