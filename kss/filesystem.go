package kss

import (
	"io"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/acme-health/labor/core/logger"
)

// LocalFilesystem is the file system implementation of the KSS driver.
// Every key becomes a directory holding the content and a metadata file.
type LocalFilesystem struct {
	basePath string
}

// NewLocalFilesystem returns a new LocalFilesystem
func NewLocalFilesystem(basePath string) (*LocalFilesystem, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}
	logger.Default().Debugln("KSS local filesystem enabled at", basePath)
	return &LocalFilesystem{basePath: basePath}, nil
}

func (l *LocalFilesystem) contentPath(key string) string {
	return filepath.Join(l.basePath, key, "content")
}

func (l *LocalFilesystem) metaPath(key string) string {
	return filepath.Join(l.basePath, key, "meta.json")
}

// Exists reports whether a file is stored under the key.
func (l *LocalFilesystem) Exists(key string) (bool, error) {
	_, err := os.Stat(l.contentPath(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Store writes the content and its metadata, overwriting any previous file.
func (l *LocalFilesystem) Store(key string, contentType string, r io.Reader) error {
	dir := filepath.Join(l.basePath, key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	file, err := os.Create(l.contentPath(key))
	if err != nil {
		return err
	}
	size, err := io.Copy(file, r)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return err
	}

	meta, err := json.Marshal(Meta{ContentType: contentType, Size: size})
	if err != nil {
		return err
	}
	return os.WriteFile(l.metaPath(key), meta, 0644)
}

// Fetch returns the file content and its metadata.
func (l *LocalFilesystem) Fetch(key string) (io.ReadCloser, Meta, error) {
	var meta Meta
	metaData, err := os.ReadFile(l.metaPath(key))
	if os.IsNotExist(err) {
		return nil, meta, ErrNotFound
	}
	if err != nil {
		return nil, meta, err
	}
	if err := json.Unmarshal(metaData, &meta); err != nil {
		return nil, meta, err
	}

	file, err := os.Open(l.contentPath(key))
	if os.IsNotExist(err) {
		return nil, meta, ErrNotFound
	}
	if err != nil {
		return nil, meta, err
	}
	return file, meta, nil
}

// DeleteAll removes everything stored under the key.
func (l *LocalFilesystem) DeleteAll(key string) error {
	return os.RemoveAll(filepath.Join(l.basePath, key))
}
