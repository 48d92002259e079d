package service

import (
	"DedupVault/config"
	"DedupVault/internal/dto"
	"DedupVault/internal/repo"
	"DedupVault/internal/storage"
	"DedupVault/internal/task"
	"DedupVault/model"
	"DedupVault/utils"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/net/context"
	"gorm.io/gorm"
)

const defaultMediaType = "application/octet-stream"

// errBindConflict marks a bind transaction that saw its registry row
// deleted by a concurrent last unbind between the existing-row read and
// the increment. The bind is re-run and takes the create path.
var errBindConflict = errors.New("bind lost row to concurrent unbind")

const bindMaxAttempts = 3

type putFunc func(ctx context.Context, bucket, object string) error

// BindBytes binds pre-assembled content to the store.
func BindBytes(ctx context.Context, data []byte, displayName, mediaType string) (*dto.BindingResult, error) {
	fingerprint := utils.BufferFingerprint(data)
	size := int64(len(data))
	return bindContent(ctx, fingerprint, size, displayName, mediaType, func(ctx context.Context, bucket, object string) error {
		return storage.Default.PutObject(ctx, bucket, object, bytes.NewReader(data), size, storage.PutOptions{
			ContentType: mediaType,
		})
	})
}

// BindStream binds streamed content to the store. The stream is hashed
// incrementally, then rewound for the physical write when the content
// turns out to be new. Both entry points yield identical fingerprints
// for identical bytes.
func BindStream(ctx context.Context, content io.ReadSeeker, displayName, mediaType string) (*dto.BindingResult, error) {
	fingerprint, size, err := utils.StreamFingerprint(content)
	if err != nil {
		return nil, err
	}
	return bindContent(ctx, fingerprint, size, displayName, mediaType, func(ctx context.Context, bucket, object string) error {
		if _, err := content.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return storage.Default.PutObject(ctx, bucket, object, content, size, storage.PutOptions{
			ContentType: mediaType,
		})
	})
}

// bindContent runs the four bind steps as one transaction: get or
// create the registry row, increment the count, insert the binding, and
// record a dedup event when the row pre-existed. An observer sees all
// of them or none. A row read without a lock can be deleted by a
// concurrent last unbind before the increment lands; that conflict
// re-runs the transaction, which then recreates the row.
func bindContent(ctx context.Context, fingerprint string, size int64, displayName, mediaType string, put putFunc) (*dto.BindingResult, error) {
	if storage.Default == nil {
		return nil, fmt.Errorf("storage not initialized")
	}
	if mediaType == "" {
		mediaType = defaultMediaType
	}

	var result *dto.BindingResult
	var err error
	for attempt := 0; attempt < bindMaxAttempts; attempt++ {
		err = repo.Db.Transaction(func(tx *gorm.DB) error {
			obj, created, err := GetOrCreateContent(tx, fingerprint, size, func(bucket, object string) error {
				return put(ctx, bucket, object)
			})
			if err != nil {
				return err
			}
			if err := IncreaseRefCount(tx, fingerprint); err != nil {
				if !created && errors.Is(err, ErrContentNotFound) {
					return errBindConflict
				}
				return err
			}
			binding := &model.FileBinding{
				ID:          utils.GetToken(),
				Fingerprint: fingerprint,
				DisplayName: displayName,
				MediaType:   mediaType,
			}
			if err := tx.Create(binding).Error; err != nil {
				return err
			}
			if !created {
				event := &model.DedupEvent{
					Fingerprint: fingerprint,
					BindingID:   binding.ID,
					DisplayName: displayName,
					MediaType:   mediaType,
					SizeSaved:   size,
				}
				if err := tx.Create(event).Error; err != nil {
					return err
				}
			}
			result = &dto.BindingResult{
				BindingID:   binding.ID,
				Fingerprint: fingerprint,
				DisplayName: displayName,
				MediaType:   mediaType,
				Size:        obj.Size,
				IsDuplicate: !created,
				CreatedAt:   binding.CreatedAt,
			}
			return nil
		})
		if !errors.Is(err, errBindConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	_ = utils.InvalidateContentObjectCache(ctx, fingerprint)
	return result, nil
}

// Unbind removes one logical file. The binding delete and the count
// decrement commit together; when the count reaches zero the physical
// delete is scheduled only after the transaction is durable. Unbinding
// an id that is already gone is a no-op so retries are safe.
func Unbind(ctx context.Context, bindingID string) error {
	var (
		fingerprint string
		removed     *model.ContentObject
	)
	err := repo.Db.Transaction(func(tx *gorm.DB) error {
		var binding model.FileBinding
		if err := tx.Where("id = ?", bindingID).First(&binding).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBindingNotFound
			}
			return err
		}
		fingerprint = binding.Fingerprint
		if err := tx.Delete(&model.FileBinding{}, "id = ?", bindingID).Error; err != nil {
			return err
		}
		_, rm, err := DecreaseRefCount(tx, binding.Fingerprint)
		if err != nil {
			return err
		}
		removed = rm
		return nil
	})
	if errors.Is(err, ErrBindingNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	_ = utils.InvalidateContentObjectCache(ctx, fingerprint)
	if removed != nil {
		scheduleReclaim(ctx, removed)
	}
	return nil
}

// scheduleReclaim runs after the decrementing transaction committed.
// The remove is idempotent, so any failure here just leaves the object
// for the sweep.
func scheduleReclaim(ctx context.Context, obj *model.ContentObject) {
	if config.AppConfig.ReclaimAsync {
		err := task.EnqueueReclaim(ctx, obj.Fingerprint, obj.BucketName, obj.ObjectName)
		if err == nil {
			return
		}
		log.Printf("reclaim enqueue failed for %s, removing directly: %v", obj.Fingerprint, err)
	}
	if storage.Default == nil {
		return
	}
	if err := storage.Default.RemoveObject(ctx, obj.BucketName, obj.ObjectName); err != nil {
		log.Printf("reclaim remove %s/%s failed, leaving for sweep: %v", obj.BucketName, obj.ObjectName, err)
	}
}

// ListBindings enumerates logical files newest first, with the size and
// sharing state of the content each one points at.
func ListBindings(limit, offset int) ([]dto.BindingInfo, error) {
	q := repo.Db.Preload("Content").Order("created_at desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var bindings []model.FileBinding
	if err := q.Find(&bindings).Error; err != nil {
		return nil, err
	}

	infos := make([]dto.BindingInfo, 0, len(bindings))
	for _, binding := range bindings {
		info := dto.BindingInfo{
			BindingID:   binding.ID,
			Fingerprint: binding.Fingerprint,
			DisplayName: binding.DisplayName,
			MediaType:   binding.MediaType,
			CreatedAt:   binding.CreatedAt,
		}
		if binding.Content != nil {
			info.Size = binding.Content.Size
			info.Shared = binding.Content.RefCount > 1
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// GetBindingByID loads a binding row.
func GetBindingByID(bindingID string) (*model.FileBinding, error) {
	var binding model.FileBinding
	if err := repo.Db.Where("id = ?", bindingID).First(&binding).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBindingNotFound
		}
		return nil, err
	}
	return &binding, nil
}

// FetchContent opens the stored bytes for a fingerprint.
func FetchContent(ctx context.Context, fingerprint string) (io.ReadCloser, *model.ContentObject, error) {
	obj, err := GetContentByFingerprint(ctx, fingerprint)
	if err != nil {
		return nil, nil, err
	}
	if storage.Default == nil {
		return nil, nil, fmt.Errorf("storage not initialized")
	}
	reader, _, err := storage.Default.GetObject(ctx, obj.BucketName, obj.ObjectName)
	if err != nil {
		return nil, nil, fetchObjectError(ctx, obj, err)
	}
	return reader, obj, nil
}

// fetchObjectError decides what a failed object read means. A cached
// registry row can briefly outlive its unbind (a Set racing the
// invalidate re-installs it until the TTL), so the database is
// re-checked before the failure is reported: row gone means the content
// was unbound, row present means a real storage failure.
func fetchObjectError(ctx context.Context, obj *model.ContentObject, err error) error {
	_ = utils.InvalidateContentObjectCache(ctx, obj.Fingerprint)
	var n int64
	dbErr := repo.Db.Model(&model.ContentObject{}).
		Where("fingerprint = ?", obj.Fingerprint).
		Count(&n).Error
	if dbErr == nil && n == 0 {
		return ErrContentNotFound
	}
	return &StorageError{Op: "get", Bucket: obj.BucketName, Object: obj.ObjectName, Err: err}
}
