package transfer

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be a positive integer")
	ErrInvalidChunk     = errors.New("invalid chunk")
	ErrMissingChunk     = errors.New("missing chunk")
	ErrDecode           = errors.New("failed to decode chunk payload")
	ErrSizeMismatch     = errors.New("assembled size does not match offered size")
	ErrChecksumMismatch = errors.New("file hash mismatch - file may be corrupted during transmission")
	ErrStalled          = errors.New("transfer stalled: no chunk received within the inactivity timeout")
	ErrPeerDisconnected = errors.New("peer disconnected")
	ErrChannelClosed    = errors.New("relay connection lost")
	ErrRejected         = errors.New("file was rejected")
)

// AssemblyError reports the indices absent from a reassembly buffer.
type AssemblyError struct {
	TotalChunks int
	Missing     []int
}

func (e *AssemblyError) Error() string {
	if len(e.Missing) == 1 {
		return fmt.Sprintf("missing chunk %d of %d", e.Missing[0], e.TotalChunks)
	}
	return fmt.Sprintf("missing %d of %d chunks (first %d)", len(e.Missing), e.TotalChunks, e.Missing[0])
}

func (e *AssemblyError) Is(target error) bool {
	return target == ErrMissingChunk
}
