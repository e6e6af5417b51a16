package coordinator

// loopEvent is anything the event loop processes besides UI actions.
type loopEvent interface{}

type inboundMsg struct{ data []byte }

type channelOpened struct{}

type channelClosed struct{ err error }

type channelFailed struct{ err error }

type timerFired struct {
	kind  timerKind
	token uint64
}

type snapshotReq struct{ reply chan Snapshot }

// sendNext asks for the next chunk of the current transfer.
type sendNext struct{ sessionID string }

// resetNow replaces the session with a fresh one.
type resetNow struct{ sessionID string }
