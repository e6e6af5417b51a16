package session

// Role is fixed once chosen; a session is never both.
type Role int

const (
	RoleNone Role = iota
	Sender
	Receiver
)

func (r Role) String() string {
	switch r {
	case Sender:
		return "sender"
	case Receiver:
		return "receiver"
	default:
		return "none"
	}
}

// State is the transfer state of a session.
type State int

const (
	Idle State = iota
	RoomPending
	RoomReady
	OfferSent
	OfferReceived
	Accepted
	Rejected
	Transferring
	Completed
	Failed
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case RoomPending:
		return "room_pending"
	case RoomReady:
		return "room_ready"
	case OfferSent:
		return "offer_sent"
	case OfferReceived:
		return "offer_received"
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	case Transferring:
		return "transferring"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsTerminal returns true for Completed, Failed and Rejected. A terminal
// session is only waiting for its reset.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed || s == Rejected
}

// IsActive reports whether the session can still be failed by a peer
// disconnect or a transport error.
func (s State) IsActive() bool {
	return s != Idle && !s.IsTerminal()
}
