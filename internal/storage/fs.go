package storage

import (
	"DedupVault/config"
	"context"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// FSStore implements Store on a local filesystem tree. Puts go through
// a temp file and a rename, so a crash mid-write never leaves a partial
// object under its final name and concurrent puts of the same content
// are harmless whichever rename lands.
type FSStore struct {
	fs   afero.Fs
	root string
}

// NewFSStore builds a filesystem store rooted at root.
func NewFSStore(fs afero.Fs, root string) *FSStore {
	return &FSStore{fs: fs, root: root}
}

func (s *FSStore) objectPath(bucket, object string) string {
	return filepath.Join(s.root, bucket, filepath.FromSlash(object))
}

// PutObject writes an object to disk.
func (s *FSStore) PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts PutOptions) error {
	target := s.objectPath(bucket, object)
	dir := filepath.Dir(target)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := afero.TempFile(s.fs, dir, ".put-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.Remove(tmpName)
		return err
	}
	if err := s.fs.Rename(tmpName, target); err != nil {
		// Another writer already landed the same content.
		if exists, _ := afero.Exists(s.fs, target); exists {
			_ = s.fs.Remove(tmpName)
			return nil
		}
		_ = s.fs.Remove(tmpName)
		return err
	}
	return nil
}

// GetObject opens an object for reading.
func (s *FSStore) GetObject(ctx context.Context, bucket, object string) (io.ReadCloser, ObjectInfo, error) {
	target := s.objectPath(bucket, object)
	file, err := s.fs.Open(target)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, ObjectInfo{}, err
	}
	info := ObjectInfo{
		ObjectName:   object,
		Size:         stat.Size(),
		LastModified: stat.ModTime(),
	}
	return file, info, nil
}

// RemoveObject deletes an object. An absent object is treated as
// already reclaimed.
func (s *FSStore) RemoveObject(ctx context.Context, bucket, object string) error {
	err := s.fs.Remove(s.objectPath(bucket, object))
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}

// ListObjects walks objects under a prefix.
func (s *FSStore) ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error) {
	bucketRoot := filepath.Join(s.root, bucket)
	if exists, err := afero.DirExists(s.fs, bucketRoot); err != nil || !exists {
		return nil, err
	}
	var infos []ObjectInfo
	err := afero.Walk(s.fs, bucketRoot, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasPrefix(filepath.Base(p), ".put-") {
			return nil
		}
		rel, err := filepath.Rel(bucketRoot, p)
		if err != nil {
			return err
		}
		object := path.Clean(filepath.ToSlash(rel))
		if prefix != "" && !strings.HasPrefix(object, prefix) {
			return nil
		}
		infos = append(infos, ObjectInfo{
			ObjectName:   object,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return infos, nil
}

// InitFSStore installs a disk-backed store rooted at FS_ROOT as the
// default store.
func InitFSStore() {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(config.AppConfig.FSRoot, 0o755); err != nil {
		log.Fatalln("init fs store fail:", err)
	}
	Default = NewFSStore(fs, config.AppConfig.FSRoot)
	log.Println("init fs store success, root =", config.AppConfig.FSRoot)
}
