package receiver

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrInvalidName = errors.New("invalid file name")

// maxNameAttempts bounds the "name (n).ext" search.
const maxNameAttempts = 1000

// FileSaver is the download sink: it writes assembled files into outputDir
// and never overwrites an existing file.
type FileSaver struct {
	outputDir string
	mu        sync.Mutex
}

func NewFileSaver(outputDir string) *FileSaver {
	return &FileSaver{outputDir: outputDir}
}

func (fs *FileSaver) OutputDir() string { return fs.outputDir }

// Save writes data under the base name of name and returns the path used.
func (fs *FileSaver) Save(name string, data []byte) (string, error) {
	// Sanitize the filename to prevent path traversal
	cleanName := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(name, `\`, "/")))
	if cleanName == "/" || cleanName == "." || cleanName == ".." {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.MkdirAll(fs.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", fs.outputDir, err)
	}

	ext := filepath.Ext(cleanName)
	stem := strings.TrimSuffix(cleanName, ext)
	for i := 0; i < maxNameAttempts; i++ {
		candidate := cleanName
		if i > 0 {
			candidate = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		outputPath := filepath.Join(fs.outputDir, candidate)
		file, err := os.OpenFile(outputPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create output file %s: %w", outputPath, err)
		}
		if _, err := file.Write(data); err != nil {
			file.Close()
			os.Remove(outputPath)
			return "", fmt.Errorf("failed to write file %s: %w", outputPath, err)
		}
		if err := file.Close(); err != nil {
			return "", fmt.Errorf("failed to close file %s: %w", outputPath, err)
		}
		slog.Info("File saved", "path", outputPath, "size", len(data))
		return outputPath, nil
	}
	return "", fmt.Errorf("no free file name for %s in %s", cleanName, fs.outputDir)
}
