package relay

import (
	"crypto/rand"
	"math/big"
)

const (
	CodeLength   = 6
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Room pairs the client that created it (the sender) with at most one
// client that joined it (the receiver).
type Room struct {
	ID       string
	Sender   *Client
	Receiver *Client
}

// peer returns the other member of the room, or nil.
func (r *Room) peer(c *Client) *Client {
	switch c {
	case r.Sender:
		return r.Receiver
	case r.Receiver:
		return r.Sender
	}
	return nil
}

func newRoomCode() (string, error) {
	code := make([]byte, CodeLength)
	max := big.NewInt(int64(len(codeAlphabet)))
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = codeAlphabet[n.Int64()]
	}
	return string(code), nil
}
