package fileInfo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gabriel-vasile/mimetype"
)

const DefaultMimeType = "application/octet-stream"

var ErrIsDir = errors.New("path is a directory, only regular files can be sent")

// FileDescriptor describes the single file a sender offers.
type FileDescriptor struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
	Checksum string `json:"checksum,omitempty"`
	Path     string `json:"-"`
}

// Describe stats the file at path, sniffs its MIME type and hashes it.
func Describe(path string) (FileDescriptor, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileDescriptor{}, err
	}
	if info.IsDir() {
		return FileDescriptor{}, fmt.Errorf("%s: %w", path, ErrIsDir)
	}
	desc := FileDescriptor{
		Name:     info.Name(),
		Size:     info.Size(),
		MimeType: DetectMimeType(path),
		Path:     path,
	}
	sum, err := calculateSHA256(path)
	if err != nil {
		return FileDescriptor{}, err
	}
	desc.Checksum = sum
	return desc, nil
}

func DetectMimeType(path string) string {
	mime, err := mimetype.DetectFile(path)
	if err != nil {
		slog.Debug("mime detection failed", "path", path, "error", err)
		return DefaultMimeType
	}
	return mime.String()
}

// TypeOrDefault returns the MIME type announced to the peer.
func (d FileDescriptor) TypeOrDefault() string {
	if d.MimeType == "" {
		return DefaultMimeType
	}
	return d.MimeType
}
