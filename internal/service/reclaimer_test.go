package service

import (
	"DedupVault/config"
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/model"
	"DedupVault/utils"
	"bytes"
	"context"
	"testing"
	"time"
)

func putStray(t *testing.T, fingerprint string, data []byte) string {
	t.Helper()
	object := storage.ObjectNameFor(fingerprint)
	err := storage.Default.PutObject(context.Background(), config.AppConfig.BucketName,
		object, bytes.NewReader(data), int64(len(data)), storage.PutOptions{})
	if err != nil {
		t.Fatalf("put stray object failed: %v", err)
	}
	return object
}

func TestSweepPurgesZeroCountRow(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	// A row stuck at count zero models a crash between create and bind.
	data := []byte("crashed mid-bind")
	fp := utils.BufferFingerprint(data)
	calls := 0
	if _, _, err := GetOrCreateContent(repo.Db, fp, int64(len(data)), testWriter(data, &calls)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	purged, err := SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expect 1 purged orphan, got %d", purged)
	}
	if n := countRows(t, "content_object"); n != 0 {
		t.Fatalf("expect row purged, got %d rows", n)
	}
	object := storage.ObjectNameFor(fp)
	if _, _, err := storage.Default.GetObject(ctx, config.AppConfig.BucketName, object); err == nil {
		t.Fatal("expect stored object removed with the row")
	}

	// A second sweep finds nothing.
	purged, err = SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("second sweep failed: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expect idle sweep to purge nothing, got %d", purged)
	}
}

func TestSweepPurgesRowWithoutBindings(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	// Reference drift: a positive count with no binding rows at all.
	data := []byte("drifted")
	fp := utils.BufferFingerprint(data)
	object := putStray(t, fp, data)
	row := &model.ContentObject{
		Fingerprint: fp,
		BucketName:  config.AppConfig.BucketName,
		ObjectName:  object,
		Size:        int64(len(data)),
		RefCount:    2,
	}
	if err := repo.Db.Create(row).Error; err != nil {
		t.Fatalf("seed row failed: %v", err)
	}

	purged, err := SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expect 1 purged orphan, got %d", purged)
	}
	if n := countRows(t, "content_object"); n != 0 {
		t.Fatalf("expect drifted row purged, got %d rows", n)
	}
}

func TestSweepLeavesLiveContent(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	res, err := BindBytes(ctx, []byte("still referenced"), "live.txt", "text/plain")
	if err != nil {
		t.Fatalf("bind failed: %v", err)
	}

	purged, err := SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expect live content untouched, purged %d", purged)
	}
	if _, _, err := FetchContent(ctx, res.Fingerprint); err != nil {
		t.Fatalf("expect content still fetchable: %v", err)
	}
}

func TestSweepRemovesAgedStrayObject(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	fp := utils.BufferFingerprint([]byte("bytes without a row"))
	object := putStray(t, fp, []byte("bytes without a row"))

	prevGrace := config.AppConfig.OrphanGracePeriod
	config.AppConfig.OrphanGracePeriod = 0
	defer func() { config.AppConfig.OrphanGracePeriod = prevGrace }()
	time.Sleep(10 * time.Millisecond)

	removed, err := SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expect 1 stray object removed, got %d", removed)
	}
	if _, _, err := storage.Default.GetObject(ctx, config.AppConfig.BucketName, object); err == nil {
		t.Fatal("expect stray object removed")
	}
}

func TestSweepKeepsStrayObjectInsideGracePeriod(t *testing.T) {
	resetState(t)
	ctx := context.Background()

	fp := utils.BufferFingerprint([]byte("freshly written"))
	object := putStray(t, fp, []byte("freshly written"))

	// Default grace period: a fresh object may belong to an uncommitted
	// bind and must not be touched.
	removed, err := SweepOrphans(ctx)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if removed != 0 {
		t.Fatalf("expect fresh object kept, removed %d", removed)
	}
	if _, _, err := storage.Default.GetObject(ctx, config.AppConfig.BucketName, object); err != nil {
		t.Fatalf("expect fresh object still present: %v", err)
	}
}
