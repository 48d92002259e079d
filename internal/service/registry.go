package service

import (
	"DedupVault/config"
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/model"
	"DedupVault/utils"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const contentObjectCacheTTL = 5 * time.Minute

// StorageWriter persists the bytes for a new content object. It is only
// invoked on the create path, before the registry row commits; a failure
// rolls back the whole create.
type StorageWriter func(bucket, object string) error

// GetOrCreateContent finds the registry row for a fingerprint or creates
// it with count zero, persisting the bytes first. Two callers racing to
// create the same fingerprint both write identical content-keyed bytes;
// exactly one insert lands (unique fingerprint plus ON CONFLICT DO
// NOTHING) and the loser re-reads the winner's row.
func GetOrCreateContent(tx *gorm.DB, fingerprint string, size int64, write StorageWriter) (*model.ContentObject, bool, error) {
	var existing model.ContentObject
	err := tx.Where("fingerprint = ?", fingerprint).First(&existing).Error
	if err == nil {
		return &existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	bucket := config.AppConfig.BucketName
	object := storage.ObjectNameFor(fingerprint)
	if err := write(bucket, object); err != nil {
		return nil, false, &StorageError{Op: "put", Bucket: bucket, Object: object, Err: err}
	}

	obj := &model.ContentObject{
		Fingerprint: fingerprint,
		BucketName:  bucket,
		ObjectName:  object,
		Size:        size,
		RefCount:    0,
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "fingerprint"}},
		DoNothing: true,
	}).Create(obj)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		// Lost the create race; the bytes we wrote are identical to the
		// winner's. Re-read with a locking read so the winner's committed
		// row is visible inside this transaction.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("fingerprint = ?", fingerprint).
			First(&existing).Error; err != nil {
			return nil, false, err
		}
		return &existing, false, nil
	}
	return obj, true, nil
}

// IncreaseRefCount increments the reference count in a single statement
// so concurrent increments never lose updates.
func IncreaseRefCount(tx *gorm.DB, fingerprint string) error {
	res := tx.Model(&model.ContentObject{}).
		Where("fingerprint = ?", fingerprint).
		UpdateColumn("reference_count", gorm.Expr("reference_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrContentNotFound
	}
	return nil
}

// DecreaseRefCount decrements the reference count. The decrement is a
// conditional single statement guarded by reference_count > 0, so a
// count at zero is reported as corruption instead of going negative.
// When the count reaches zero the row is deleted in the same
// transaction and the removed object is returned so the caller can
// schedule physical deletion after the transaction commits.
func DecreaseRefCount(tx *gorm.DB, fingerprint string) (int, *model.ContentObject, error) {
	res := tx.Model(&model.ContentObject{}).
		Where("fingerprint = ? AND reference_count > 0", fingerprint).
		UpdateColumn("reference_count", gorm.Expr("reference_count - 1"))
	if res.Error != nil {
		return 0, nil, res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&model.ContentObject{}).
			Where("fingerprint = ?", fingerprint).
			Count(&n).Error; err != nil {
			return 0, nil, err
		}
		if n == 0 {
			return 0, nil, ErrContentNotFound
		}
		return 0, nil, &RegistryCorruptionError{Fingerprint: fingerprint}
	}

	var obj model.ContentObject
	if err := tx.Where("fingerprint = ?", fingerprint).First(&obj).Error; err != nil {
		return 0, nil, err
	}
	if obj.RefCount > 0 {
		return obj.RefCount, nil, nil
	}
	if err := tx.Where("fingerprint = ? AND reference_count = 0", fingerprint).
		Delete(&model.ContentObject{}).Error; err != nil {
		return 0, nil, err
	}
	return 0, &obj, nil
}

// GetContentByFingerprint loads a registry row, reading through the
// cache when one is configured.
func GetContentByFingerprint(ctx context.Context, fingerprint string) (*model.ContentObject, error) {
	if cached, ok := utils.GetContentObjectFromCache(ctx, fingerprint); ok {
		return cached, nil
	}
	var obj model.ContentObject
	if err := repo.Db.Where("fingerprint = ?", fingerprint).First(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	_ = utils.SetContentObjectToCache(ctx, fingerprint, &obj, contentObjectCacheTTL)
	return &obj, nil
}
