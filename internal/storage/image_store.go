package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ImageStore saves uploaded cover images and returns the public path under
// which the image is served. The returned path is what gets persisted on the
// Book record.
type ImageStore interface {
	Save(filename string, r io.Reader, size int64) (string, error)
}

// DiskImageStore writes images to the local uploads directory.
type DiskImageStore struct {
	basePath string
	now      func() time.Time
}

// NewDiskImageStore creates the uploads directory if missing.
func NewDiskImageStore(basePath string) (*DiskImageStore, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("upload base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskImageStore{basePath: basePath, now: time.Now}, nil
}

// Save writes the image as image-<timestamp><ext> and returns its public
// /uploads path.
func (d *DiskImageStore) Save(filename string, r io.Reader, size int64) (string, error) {
	_ = size
	name := fmt.Sprintf("image-%d%s", d.now().UnixNano(), safeExt(filename))
	target := filepath.Join(d.basePath, name)

	out, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, r); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return "/uploads/" + name, nil
}

func safeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
