package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DiskStore пишет файлы в каталог, который раздаётся HTTP-сервером по urlPrefix.
// Возвращает путь относительно origin.
type DiskStore struct {
	dir       string
	urlPrefix string
}

func NewDiskStore(dir, urlPrefix string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, urlPrefix: urlPrefix}, nil
}

func (d *DiskStore) Dir() string { return d.dir }

func (d *DiskStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	if filepath.Base(name) != name {
		return "", fmt.Errorf("invalid object name %q", name)
	}
	if err := os.WriteFile(filepath.Join(d.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	return d.urlPrefix + "/" + name, nil
}
