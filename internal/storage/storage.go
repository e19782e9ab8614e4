package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/hezretaly/toefl/internal/config"
)

// Folders uploads are grouped under
const (
	FolderListeningAudio    = "listening_audios"
	FolderListeningImages   = "listening_images"
	FolderQuestionSnippets  = "question_snippets"
	FolderSpeakingAudio     = "speaking_audios"
	FolderWritingAudio      = "writing_audios"
	FolderSpeakingResponses = "speaking_responses"
)

var (
	ErrFileNotFound = errors.New("file not found")
	ErrInvalidKey   = errors.New("invalid file key")
)

// File is an upload waiting to be stored
type File struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// StorageProvider stores uploaded media under relative keys such as
// "speaking_responses/<uuid>.webm". Keys are what the database keeps.
type StorageProvider interface {
	Save(ctx context.Context, folder string, file *File) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// NewStorageProvider builds the provider selected by STORAGE_DRIVER
func NewStorageProvider(ctx context.Context, cfg config.StorageConfig) (StorageProvider, error) {
	switch cfg.Driver {
	case "minio":
		return NewMinioStorageProvider(ctx, cfg)
	case "local", "":
		return NewLocalStorageProvider(cfg.UploadFolder)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewKey returns a fresh key in folder keeping the original file extension
func NewKey(folder, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(folder, uuid.NewString()+ext)
}

// CleanKey rejects keys that are absolute or escape the storage root
func CleanKey(key string) (string, error) {
	cleaned := path.Clean(strings.TrimPrefix(key, "/"))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") || strings.Contains(cleaned, "\\") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// FromMultipart opens a multipart upload. The caller closes the returned file.
func FromMultipart(header *multipart.FileHeader) (*File, io.Closer, error) {
	f, err := header.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload %s: %w", header.Filename, err)
	}
	return &File{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      f,
	}, f, nil
}

// DeleteAll removes every key and returns the keys that could not be removed
func DeleteAll(ctx context.Context, provider StorageProvider, keys []string) []string {
	var failed []string
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := provider.Delete(ctx, key); err != nil && !errors.Is(err, ErrFileNotFound) {
			failed = append(failed, key)
		}
	}
	return failed
}
