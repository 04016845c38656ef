package slirc

import (
	"gopkg.in/irc.v3"

	"github.com/vkareh/slirc/slack"
)

// All shared state (the world, downstream registration, session liveness)
// is owned by the server event loop; everything that happens off that
// goroutine is funneled through one of these events.
type event interface{}

type eventDownstreamConnected struct {
	dc *downstreamConn
}

type eventDownstreamDisconnected struct {
	dc *downstreamConn
}

type eventDownstreamMessage struct {
	msg *irc.Message
	dc  *downstreamConn
}

// eventDownstreamPing fires from a connection's watchdog timer.
type eventDownstreamPing struct {
	dc *downstreamConn
}

type eventUpstreamConnected struct {
	uc       *upstreamSession
	snapshot *slack.StartResponse
}

type eventUpstreamEvent struct {
	uc *upstreamSession
	ev *slack.Event
}

type eventUpstreamDisconnected struct {
	uc     *upstreamSession
	reason string
}

type eventUpstreamConnectionError struct {
	err error
}

// eventUpstreamPing fires from the session's 60s liveness ticker.
type eventUpstreamPing struct {
	uc *upstreamSession
}

// eventMarkFlush fires when the read-mark debounce window closes.
type eventMarkFlush struct {
	uc *upstreamSession
}

// eventUpstreamCallback delivers the completion of an asynchronous API
// call. The loop drops it when uc is no longer the current session, which
// is what cancels outstanding callbacks on teardown.
type eventUpstreamCallback struct {
	uc *upstreamSession
	f  func()
}

type eventStop struct{}
