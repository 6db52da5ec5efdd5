package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"mythweaver/api/internal/media/sniffer"
)

var ErrBlobExists = errors.New("blob already exists")

type LocalStore struct {
	dataDir   string
	publicURL string
}

func NewLocalStore(dataDir string, publicURL string) *LocalStore {
	return &LocalStore{
		dataDir:   dataDir,
		publicURL: strings.TrimSuffix(publicURL, "/"),
	}
}

// Dir is the directory served at /images.
func (s *LocalStore) Dir() string {
	return filepath.Join(s.dataDir, ImagePrefix)
}

func (s *LocalStore) Put(ctx context.Context, id string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	dir := s.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create image dir: %w", err)
	}

	name := fmt.Sprintf("%s.%s", id, sniffer.DetectOrPNG(data).Extension())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%s: %w", name, ErrBlobExists)
		}
		return "", fmt.Errorf("open blob: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}

	return s.publicURL + "/" + path.Join(ImagePrefix, name), nil
}
