// Package media stores uploaded images and hands out durable media ids.
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/oklog/ulid/v2"
)

var (
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrTooLarge        = errors.New("media too large")
	ErrEmpty           = errors.New("media is empty")
	ErrInvalidID       = errors.New("invalid media id")
)

// Media is an uploaded asset: a public URL plus the id used to delete it later.
type Media struct {
	URL     string `json:"url"`
	MediaID string `json:"mediaId"`
}

// Store is the media capability used by chats, messages and avatars.
type Store interface {
	Upload(ctx context.Context, data []byte) (Media, error)
	Delete(ctx context.Context, mediaID string) error
}

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DiskStore keeps media as files named <ulid><ext> under dir, served from baseURL.
type DiskStore struct {
	dir      string
	baseURL  string
	maxBytes int64
}

func NewDiskStore(dir, baseURL string, maxBytes int64) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), maxBytes: maxBytes}, nil
}

// Dir is the directory files are written to.
func (s *DiskStore) Dir() string {
	return s.dir
}

func (s *DiskStore) Upload(ctx context.Context, data []byte) (Media, error) {
	if len(data) == 0 {
		return Media{}, ErrEmpty
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return Media{}, ErrTooLarge
	}
	detected := mimetype.Detect(data)
	ext, ok := extensions[detected.String()]
	if !ok {
		return Media{}, fmt.Errorf("%w: %s", ErrUnsupportedType, detected.String())
	}
	if err := ctx.Err(); err != nil {
		return Media{}, err
	}

	id := ulid.Make().String() + ext
	if err := os.WriteFile(filepath.Join(s.dir, id), data, 0o644); err != nil {
		return Media{}, fmt.Errorf("write media: %w", err)
	}
	log.Printf("media stored id=%s type=%s bytes=%d", id, detected.String(), len(data))
	return Media{URL: s.baseURL + "/" + id, MediaID: id}, nil
}

// Delete removes a stored file. Unknown ids are not an error.
func (s *DiskStore) Delete(ctx context.Context, mediaID string) error {
	if err := ValidateID(mediaID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := os.Remove(filepath.Join(s.dir, mediaID))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// ValidateID checks that mediaID has the <ulid><ext> shape this store issues.
func ValidateID(mediaID string) error {
	ext := filepath.Ext(mediaID)
	known := false
	for _, e := range extensions {
		if e == ext {
			known = true
			break
		}
	}
	if !known {
		return ErrInvalidID
	}
	if _, err := ulid.ParseStrict(strings.TrimSuffix(mediaID, ext)); err != nil {
		return ErrInvalidID
	}
	return nil
}
