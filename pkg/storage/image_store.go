// Package storage keeps uploaded images on local disk and hands out public URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNoFile          = errors.New("storage: no file provided")
	ErrUnsupportedType = errors.New("storage: only jpg, jpeg, png and heic images are accepted")
	ErrTooLarge        = errors.New("storage: image exceeds the upload limit")
)

var allowedExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".heic": "image/heic",
}

type StoredImage struct {
	URL      string
	Path     string
	MimeType string
	Data     []byte
}

type ImageStore interface {
	Save(ctx context.Context, ownerID string, file *multipart.FileHeader) (*StoredImage, error)
}

type LocalImageStore struct {
	dir        string
	publicBase string
	maxBytes   int64
}

// NewLocalImageStore serves files written under dir at publicBase, e.g. "http://host/uploads".
func NewLocalImageStore(dir, publicBase string, maxBytes int64) *LocalImageStore {
	return &LocalImageStore{
		dir:        dir,
		publicBase: strings.TrimRight(publicBase, "/"),
		maxBytes:   maxBytes,
	}
}

func (s *LocalImageStore) Save(ctx context.Context, ownerID string, file *multipart.FileHeader) (*StoredImage, error) {
	if file == nil {
		return nil, ErrNoFile
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	mimeType, ok := allowedExtensions[ext]
	if !ok {
		return nil, ErrUnsupportedType
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return nil, ErrTooLarge
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	limit := s.maxBytes
	if limit <= 0 {
		limit = file.Size
	}
	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return nil, ErrTooLarge
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if sniffed := http.DetectContentType(data); strings.HasPrefix(sniffed, "image/") {
		mimeType = sniffed
	}

	ownerDir := filepath.Join(s.dir, filepath.Base(ownerID))
	if err := os.MkdirAll(ownerDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}

	name := uuid.NewString() + ext
	path := filepath.Join(ownerDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}

	return &StoredImage{
		URL:      fmt.Sprintf("%s/%s/%s", s.publicBase, filepath.Base(ownerID), name),
		Path:     path,
		MimeType: mimeType,
		Data:     data,
	}, nil
}
