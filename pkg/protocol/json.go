package protocol

import (
	"encoding/json"
)

type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// JSONMessage is the wire form. Pointer fields distinguish "absent" from a
// zero value so that fileSize 0 and accepted=false survive the trip.
type JSONMessage struct {
	Type         MessageType `json:"type"`
	ConnectionID string      `json:"connectionId,omitempty"`
	RoomID       string      `json:"roomId,omitempty"`
	FileName     *string     `json:"fileName,omitempty"`
	FileSize     *int64      `json:"fileSize,omitempty"`
	FileType     *string     `json:"fileType,omitempty"`
	Checksum     string      `json:"checksum,omitempty"`
	Accepted     *bool       `json:"accepted,omitempty"`
	Chunk        *string     `json:"chunk,omitempty"`
	ChunkIndex   *int        `json:"chunkIndex,omitempty"`
	TotalChunks  *int        `json:"totalChunks,omitempty"`
	Success      *bool       `json:"success,omitempty"`
	Error        *string     `json:"error,omitempty"`
	Message      *string     `json:"message,omitempty"`
}

func (j *JSONSerializer) Marshal(msg *Message) ([]byte, error) {
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	wire := JSONMessage{
		Type:   msg.Type,
		RoomID: msg.RoomID,
	}

	switch msg.Type {
	case Connection:
		wire.ConnectionID = msg.ConnectionID
	case FileOffer:
		wire.FileName = &msg.FileName
		wire.FileSize = &msg.FileSize
		wire.FileType = &msg.FileType
		wire.Checksum = msg.Checksum
	case FileAnswer:
		wire.Accepted = &msg.Accepted
	case FileChunk:
		wire.Chunk = &msg.Chunk
		wire.ChunkIndex = &msg.ChunkIndex
		wire.TotalChunks = &msg.TotalChunks
	case FileComplete:
		wire.Success = &msg.Success
	case FileError:
		wire.Error = &msg.Error
	case ServerError:
		wire.Message = &msg.Text
	}

	return json.Marshal(wire)
}

func (j *JSONSerializer) Unmarshal(data []byte) (*Message, error) {
	var wire JSONMessage
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, &ProtocolError{Reason: "malformed JSON", Err: err}
	}
	if wire.Type == "" {
		return nil, &ProtocolError{Reason: "missing type", Err: ErrMissingType}
	}

	msg := &Message{
		Type:         wire.Type,
		ConnectionID: wire.ConnectionID,
		RoomID:       wire.RoomID,
		Checksum:     wire.Checksum,
	}

	missing := func(field string) error {
		return &ProtocolError{Type: wire.Type, Reason: "missing field " + field}
	}

	switch wire.Type {
	case FileOffer:
		if wire.FileName == nil {
			return nil, missing("fileName")
		}
		if wire.FileSize == nil || *wire.FileSize < 0 {
			return nil, missing("fileSize")
		}
		msg.FileName = *wire.FileName
		msg.FileSize = *wire.FileSize
		if wire.FileType != nil {
			msg.FileType = *wire.FileType
		}
	case FileAnswer:
		if wire.Accepted == nil {
			return nil, missing("accepted")
		}
		msg.Accepted = *wire.Accepted
	case FileChunk:
		if wire.Chunk == nil {
			return nil, missing("chunk")
		}
		if wire.ChunkIndex == nil {
			return nil, missing("chunkIndex")
		}
		if wire.TotalChunks == nil {
			return nil, missing("totalChunks")
		}
		msg.Chunk = *wire.Chunk
		msg.ChunkIndex = *wire.ChunkIndex
		msg.TotalChunks = *wire.TotalChunks
	case FileComplete:
		if wire.Success != nil {
			msg.Success = *wire.Success
		}
	}

	if wire.FileName != nil {
		msg.FileName = *wire.FileName
	}
	if wire.Error != nil {
		msg.Error = *wire.Error
	}
	if wire.Message != nil {
		msg.Text = *wire.Message
	}
	return msg, nil
}

func (j *JSONSerializer) Name() string {
	return "json"
}

func (j *JSONSerializer) IsBinary() bool {
	return false
}
