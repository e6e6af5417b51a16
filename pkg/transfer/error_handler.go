package transfer

import (
	"errors"
	"log/slog"
)

// ErrorCategory represents the category of an error for handling purposes
type ErrorCategory int

const (
	// ErrorCategoryProtocol covers unknown message types and messages that are
	// illegal in the current state. They are logged and ignored.
	ErrorCategoryProtocol ErrorCategory = iota
	// ErrorCategoryNegotiation covers a rejected offer.
	ErrorCategoryNegotiation
	// ErrorCategoryTransfer covers encode, decode and assembly failures. The
	// peer is told via file-error.
	ErrorCategoryTransfer
	// ErrorCategoryConnectivity covers channel loss and peer disconnection.
	ErrorCategoryConnectivity
)

func (c ErrorCategory) String() string {
	switch c {
	case ErrorCategoryProtocol:
		return "protocol"
	case ErrorCategoryNegotiation:
		return "negotiation"
	case ErrorCategoryTransfer:
		return "transfer"
	case ErrorCategoryConnectivity:
		return "connectivity"
	default:
		return "unknown"
	}
}

// ErrorAction represents the action to take when an error occurs
type ErrorAction int

const (
	// ErrorActionIgnore leaves the session untouched.
	ErrorActionIgnore ErrorAction = iota
	// ErrorActionFail moves the session to Failed and schedules a reset.
	ErrorActionFail
	// ErrorActionNotifyAndFail also emits file-error to the peer.
	ErrorActionNotifyAndFail
	// ErrorActionReject ends the session as Rejected.
	ErrorActionReject
)

func (ea ErrorAction) String() string {
	switch ea {
	case ErrorActionIgnore:
		return "ignore"
	case ErrorActionFail:
		return "fail"
	case ErrorActionNotifyAndFail:
		return "notify_and_fail"
	case ErrorActionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Classify determines the category of an error. Unknown errors are treated
// as transfer errors so that they always end in a visible failure.
func Classify(err error) ErrorCategory {
	switch {
	case err == nil:
		return ErrorCategoryProtocol
	case errors.Is(err, ErrRejected):
		return ErrorCategoryNegotiation
	case errors.Is(err, ErrPeerDisconnected), errors.Is(err, ErrChannelClosed):
		return ErrorCategoryConnectivity
	case errors.Is(err, ErrMissingChunk),
		errors.Is(err, ErrInvalidChunk),
		errors.Is(err, ErrDecode),
		errors.Is(err, ErrSizeMismatch),
		errors.Is(err, ErrChecksumMismatch),
		errors.Is(err, ErrStalled):
		return ErrorCategoryTransfer
	}
	var protocolErr interface{ ProtocolError() bool }
	if errors.As(err, &protocolErr) && protocolErr.ProtocolError() {
		return ErrorCategoryProtocol
	}
	return ErrorCategoryTransfer
}

// ActionFor maps an error to the reaction the coordinator applies.
func ActionFor(err error) ErrorAction {
	switch Classify(err) {
	case ErrorCategoryProtocol:
		return ErrorActionIgnore
	case ErrorCategoryNegotiation:
		return ErrorActionReject
	case ErrorCategoryConnectivity:
		return ErrorActionFail
	default:
		return ErrorActionNotifyAndFail
	}
}

// LogError logs an error with appropriate context
func LogError(err error, attrs ...any) {
	action := ActionFor(err)
	fields := append([]any{
		"error", err,
		"category", Classify(err).String(),
		"action", action.String(),
	}, attrs...)

	switch action {
	case ErrorActionIgnore:
		slog.Warn("Protocol error ignored", fields...)
	case ErrorActionReject:
		slog.Info("Transfer rejected", fields...)
	default:
		slog.Error("Transfer failed", fields...)
	}
}
