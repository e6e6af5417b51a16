package transfer

import (
	"bytes"
	"encoding/base64"
	"fmt"
)

// Chunk is one fixed-size slice of a file, tagged with its 0-based position.
type Chunk struct {
	Index       int
	TotalChunks int
	Data        []byte
}

// TotalChunks returns ceil(size / chunkSize); an empty file has zero chunks.
func TotalChunks(size int64, chunkSize int) (int, error) {
	if chunkSize <= 0 {
		return 0, ErrInvalidChunkSize
	}
	if size < 0 {
		return 0, fmt.Errorf("%w: negative size %d", ErrInvalidChunk, size)
	}
	cs := int64(chunkSize)
	n := size / cs
	if size%cs != 0 {
		n++
	}
	return int(n), nil
}

// Split cuts data into ordered chunks. Chunk i covers
// [i*chunkSize, min((i+1)*chunkSize, len(data))).
func Split(data []byte, chunkSize int) ([]Chunk, error) {
	total, err := TotalChunks(int64(len(data)), chunkSize)
	if err != nil {
		return nil, err
	}
	chunks := make([]Chunk, 0, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := start + min(chunkSize, len(data)-start)
		chunks = append(chunks, Chunk{
			Index:       i,
			TotalChunks: total,
			Data:        data[start:end],
		})
	}
	return chunks, nil
}

// Encode maps bytes to standard padded base64, the same text a browser
// FileReader data URL carries.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode is the exact inverse of Encode.
func Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return data, nil
}

// Assemble decodes payloads[0..totalChunks) and concatenates them in index
// order. Any absent index yields an *AssemblyError.
func Assemble(payloads map[int]string, totalChunks int) ([]byte, error) {
	if totalChunks < 0 {
		return nil, fmt.Errorf("%w: total chunks %d", ErrInvalidChunk, totalChunks)
	}
	var missing []int
	for i := 0; i < totalChunks; i++ {
		if _, ok := payloads[i]; !ok {
			missing = append(missing, i)
		}
	}
	if len(missing) > 0 {
		return nil, &AssemblyError{TotalChunks: totalChunks, Missing: missing}
	}

	var buf bytes.Buffer
	for i := 0; i < totalChunks; i++ {
		data, err := Decode(payloads[i])
		if err != nil {
			return nil, fmt.Errorf("chunk %d: %w", i, err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}
