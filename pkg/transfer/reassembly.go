package transfer

import "fmt"

// ReassemblyBuffer collects encoded chunk payloads keyed by index. Arrival
// order does not matter; completion requires every index in
// [0, totalChunks) to be present.
type ReassemblyBuffer struct {
	totalChunks int
	payloads    map[int]string
}

func NewReassemblyBuffer() *ReassemblyBuffer {
	return &ReassemblyBuffer{payloads: make(map[int]string)}
}

// Put stores one chunk. The first chunk fixes totalChunks for the transfer.
// A repeated index overwrites the earlier payload.
func (b *ReassemblyBuffer) Put(index, totalChunks int, payload string) error {
	if totalChunks <= 0 {
		return fmt.Errorf("%w: total chunks must be positive, got %d", ErrInvalidChunk, totalChunks)
	}
	if b.totalChunks == 0 {
		b.totalChunks = totalChunks
	} else if totalChunks != b.totalChunks {
		return fmt.Errorf("%w: total chunks changed from %d to %d", ErrInvalidChunk, b.totalChunks, totalChunks)
	}
	if index < 0 || index >= b.totalChunks {
		return fmt.Errorf("%w: index %d out of range [0,%d)", ErrInvalidChunk, index, b.totalChunks)
	}
	b.payloads[index] = payload
	return nil
}

func (b *ReassemblyBuffer) Len() int { return len(b.payloads) }

func (b *ReassemblyBuffer) TotalChunks() int { return b.totalChunks }

// Complete reports whether the key set equals {0..totalChunks-1}.
func (b *ReassemblyBuffer) Complete() bool {
	if b.totalChunks == 0 {
		return false
	}
	for i := 0; i < b.totalChunks; i++ {
		if _, ok := b.payloads[i]; !ok {
			return false
		}
	}
	return true
}

// Progress returns received/total as a percentage; advisory only.
func (b *ReassemblyBuffer) Progress() float64 {
	if b.totalChunks == 0 {
		return 0
	}
	return float64(len(b.payloads)) / float64(b.totalChunks) * 100
}

func (b *ReassemblyBuffer) Assemble() ([]byte, error) {
	return Assemble(b.payloads, b.totalChunks)
}

// Reset discards every payload.
func (b *ReassemblyBuffer) Reset() {
	b.totalChunks = 0
	clear(b.payloads)
}
