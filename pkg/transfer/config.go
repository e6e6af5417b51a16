package transfer

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// TransferConfig holds all configuration for a relayed transfer session.
type TransferConfig struct {
	// Chunking
	ChunkSize int `json:"chunk_size"`

	// SendInterval is the pause between two chunk sends. Zero sends back to back.
	SendInterval time.Duration `json:"send_interval"`

	// Auto-reset delays after terminal states
	CompleteResetDelay time.Duration `json:"complete_reset_delay"`
	RejectResetDelay   time.Duration `json:"reject_reset_delay"`
	FailureResetDelay  time.Duration `json:"failure_reset_delay"`

	// RequestTimeout re-enables create/join when the relay never answers.
	RequestTimeout time.Duration `json:"request_timeout"`

	// InactivityTimeout fails a transfer that stops receiving chunks. Zero disables it.
	InactivityTimeout time.Duration `json:"inactivity_timeout"`

	// ReconnectBackoff is the fixed delay between channel reconnect attempts.
	ReconnectBackoff time.Duration `json:"reconnect_backoff"`

	// EventBufferSize sizes the coordinator's inbound event queue.
	EventBufferSize int `json:"event_buffer_size"`
}

// Chunk size bounds
const (
	DefaultChunkSize = 32 * 1024   // 32KB - keeps each relayed message small
	MaxChunkSize     = 1024 * 1024 // 1MB - base64 inflates this by a third
	MinChunkSize     = 1
)

// Environment overrides
const (
	EnvServer    = "RELAYSHARE_SERVER"
	EnvChunkSize = "RELAYSHARE_CHUNK_SIZE"
)

// DefaultTransferConfig returns a configuration with sensible defaults
func DefaultTransferConfig() *TransferConfig {
	return &TransferConfig{
		ChunkSize:          DefaultChunkSize,
		SendInterval:       10 * time.Millisecond,
		CompleteResetDelay: 3 * time.Second,
		RejectResetDelay:   2 * time.Second,
		FailureResetDelay:  3 * time.Second,
		RequestTimeout:     10 * time.Second,
		InactivityTimeout:  30 * time.Second,
		ReconnectBackoff:   3 * time.Second,
		EventBufferSize:    64,
	}
}

// Validate checks if the configuration values are valid
func (tc *TransferConfig) Validate() error {
	if tc.ChunkSize <= 0 {
		return ErrInvalidChunkSize
	}
	if tc.ChunkSize > MaxChunkSize {
		return errors.New("chunk_size cannot be greater than max_chunk_size")
	}
	if tc.SendInterval < 0 {
		return errors.New("send_interval cannot be negative")
	}
	if tc.CompleteResetDelay < 0 || tc.RejectResetDelay < 0 || tc.FailureResetDelay < 0 {
		return errors.New("reset delays cannot be negative")
	}
	if tc.RequestTimeout <= 0 {
		return errors.New("request_timeout must be positive")
	}
	if tc.InactivityTimeout < 0 {
		return errors.New("inactivity_timeout cannot be negative")
	}
	if tc.ReconnectBackoff <= 0 {
		return errors.New("reconnect_backoff must be positive")
	}
	if tc.EventBufferSize <= 0 {
		return errors.New("event_buffer_size must be positive")
	}
	return nil
}

// ApplyEnv overlays values found in the environment. It returns the relay
// server URL from RELAYSHARE_SERVER, or "" when unset.
func (tc *TransferConfig) ApplyEnv(lookup func(string) (string, bool)) (string, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvChunkSize); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return "", errors.Join(ErrInvalidChunkSize, err)
		}
		tc.ChunkSize = n
	}
	server, _ := lookup(EnvServer)
	return server, nil
}
