package service

import (
	"DedupVault/config"
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/model"
	"DedupVault/utils"
	"context"
	"errors"
	"log"
	"time"
)

const sweepLockKey = "reclaim:sweep"
const sweepLockTTL = 5 * time.Minute

// SweepOrphans purges registry rows with zero references or no bindings
// at all, then removes aged physical objects that no row references.
// It is a safety net for crash windows and reference drift; under
// correct operation it finds nothing. Safe to run concurrently with
// traffic and with itself (a redis lock serializes overlapping sweeps
// when redis is configured).
func SweepOrphans(ctx context.Context) (int, error) {
	if repo.Redis != nil {
		lock := repo.NewRedisLock(repo.Redis, sweepLockKey, sweepLockTTL)
		if err := lock.Lock(ctx); err != nil {
			if errors.Is(err, repo.ErrLockBusy) {
				return 0, nil
			}
			return 0, err
		}
		defer lock.Unlock(ctx)
	}

	purged, err := sweepRegistryOrphans(ctx)
	if err != nil {
		return purged, err
	}
	removed, err := sweepPhysicalOrphans(ctx)
	if err != nil {
		return purged + removed, err
	}
	return purged + removed, nil
}

const orphanPredicate = "reference_count = 0 OR NOT EXISTS (SELECT 1 FROM file_binding WHERE file_binding.fingerprint = content_object.fingerprint)"

// sweepRegistryOrphans deletes orphaned registry rows. The orphan
// predicate is re-evaluated inside the deleting statement, so a
// fingerprint that picked up a fresh reference between scan and delete
// is left alone.
func sweepRegistryOrphans(ctx context.Context) (int, error) {
	var candidates []model.ContentObject
	if err := repo.Db.Where(orphanPredicate).Find(&candidates).Error; err != nil {
		return 0, err
	}

	purged := 0
	for _, obj := range candidates {
		res := repo.Db.
			Where("fingerprint = ?", obj.Fingerprint).
			Where(orphanPredicate).
			Delete(&model.ContentObject{})
		if res.Error != nil {
			return purged, res.Error
		}
		if res.RowsAffected == 0 {
			continue
		}
		_ = utils.InvalidateContentObjectCache(ctx, obj.Fingerprint)
		// The row delete is durable here; the physical remove follows and
		// tolerates an object that is already gone.
		if storage.Default != nil {
			if err := storage.Default.RemoveObject(ctx, obj.BucketName, obj.ObjectName); err != nil {
				log.Printf("sweep: remove %s/%s failed: %v", obj.BucketName, obj.ObjectName, err)
			}
		}
		purged++
		log.Printf("sweep: purged orphan %s (%d bytes)", obj.Fingerprint, obj.Size)
	}
	return purged, nil
}

// sweepPhysicalOrphans removes stored objects that no registry row
// references. Only objects older than the grace period are touched: a
// concurrent bind may have written bytes whose registry row has not
// committed yet.
func sweepPhysicalOrphans(ctx context.Context) (int, error) {
	if storage.Default == nil {
		return 0, nil
	}
	bucket := config.AppConfig.BucketName
	cutoff := time.Now().Add(-config.AppConfig.OrphanGracePeriod)

	infos, err := storage.Default.ListObjects(ctx, bucket, storage.ContentPrefix)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, info := range infos {
		if info.LastModified.After(cutoff) {
			continue
		}
		fingerprint := storage.FingerprintFromObjectName(info.ObjectName)
		if fingerprint == "" {
			continue
		}
		var n int64
		if err := repo.Db.Model(&model.ContentObject{}).
			Where("fingerprint = ?", fingerprint).
			Count(&n).Error; err != nil {
			return removed, err
		}
		if n > 0 {
			continue
		}
		if err := storage.Default.RemoveObject(ctx, bucket, info.ObjectName); err != nil {
			log.Printf("sweep: remove stray object %s failed: %v", info.ObjectName, err)
			continue
		}
		removed++
		log.Printf("sweep: removed stray object %s (%d bytes)", info.ObjectName, info.Size)
	}
	return removed, nil
}
