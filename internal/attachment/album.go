package attachment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Album is the photo-library sink for auto-saved images. Files are named by
// content hash so saving the same image twice is harmless.
type Album struct {
	dir string
}

func NewAlbum(dir string) *Album {
	return &Album{dir: dir}
}

func (a *Album) Save(ctx context.Context, src string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if a.dir == "" {
		return fmt.Errorf("album directory not configured")
	}
	sum, err := HashFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("create album dir: %w", err)
	}
	dst := filepath.Join(a.dir, sum+filepath.Ext(src))
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	return copyFile(src, dst)
}

// HashFile returns the hex SHA-256 of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
