package transfer

import (
	"errors"
	"fmt"
	"io"
	"os"
)

var ErrIsDir = errors.New("cannot chunk a directory")

// Chunker reads chunks of a file on demand by index, so the sender never
// holds more than one chunk in memory.
type Chunker struct {
	src         io.ReaderAt
	closer      io.Closer
	chunkSize   int
	size        int64
	totalChunks int
}

// NewChunker wraps src, whose content is size bytes long.
func NewChunker(src io.ReaderAt, size int64, chunkSize int) (*Chunker, error) {
	total, err := TotalChunks(size, chunkSize)
	if err != nil {
		return nil, err
	}
	return &Chunker{
		src:         src,
		chunkSize:   chunkSize,
		size:        size,
		totalChunks: total,
	}, nil
}

// OpenChunker opens path for chunked reading.
func OpenChunker(path string, chunkSize int) (*Chunker, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, ErrIsDir
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	c, err := NewChunker(file, info.Size(), chunkSize)
	if err != nil {
		file.Close()
		return nil, err
	}
	c.closer = file
	return c, nil
}

func (c *Chunker) TotalChunks() int { return c.totalChunks }

func (c *Chunker) Size() int64 { return c.size }

// ChunkAt reads chunk i.
func (c *Chunker) ChunkAt(i int) (*Chunk, error) {
	if i < 0 || i >= c.totalChunks {
		return nil, fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidChunk, i, c.totalChunks)
	}
	offset := int64(i) * int64(c.chunkSize)
	n := int64(c.chunkSize)
	if remaining := c.size - offset; remaining < n {
		n = remaining
	}

	data := make([]byte, n)
	read, err := c.src.ReadAt(data, offset)
	if int64(read) < n {
		if err == nil || errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read chunk %d at offset %d: %w", i, offset, err)
	}

	return &Chunk{
		Index:       i,
		TotalChunks: c.totalChunks,
		Data:        data,
	}, nil
}

func (c *Chunker) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}
