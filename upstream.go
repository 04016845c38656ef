package slirc

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/vkareh/slirc/slack"
)

// markDebounce is how long read-marks are batched before one .mark call
// per channel goes out.
const markDebounce = 5 * time.Second

// upstreamSession is one live RTM connection: the API client it was
// bootstrapped with, the event stream, and the loop-owned liveness and
// read-mark bookkeeping. A new session is created for every (re)connect.
type upstreamSession struct {
	srv    *Server
	client *slack.Client
	rtm    *slack.RTM
	logger Logger

	closed      chan struct{}
	closeOnce   sync.Once
	reasonMu    sync.Mutex
	closeReason string

	outgoing chan rtmFrame

	// State below is owned by the server event loop.
	pingCount int
	pingTimer *time.Timer
	marks     map[string]string
	markTimer *time.Timer
}

type rtmFrame struct {
	ping    bool
	channel string
	text    string
}

// runUpstream drives the session lifecycle: bootstrap, pump until the
// stream dies, cool down, retry. It runs for the life of the server.
func (s *Server) runUpstream() {
	for {
		select {
		case <-s.stopped:
			return
		default:
		}

		uc, snapshot, err := connectUpstream(s)
		if err != nil {
			s.events <- eventUpstreamConnectionError{err}
		} else {
			s.events <- eventUpstreamConnected{uc, snapshot}
			reason := uc.pump(s.events)
			s.events <- eventUpstreamDisconnected{uc, reason}
		}

		select {
		case <-s.stopped:
			return
		case <-time.After(reconnectCooldown):
		}
	}
}

// connectUpstream performs the rtm.start handshake and opens the event
// stream.
func connectUpstream(s *Server) (*upstreamSession, *slack.StartResponse, error) {
	logger := &prefixLogger{s.Logger, "upstream: "}
	client := slack.NewClient(s.config.SlackToken)

	start, err := client.RTMStart()
	if err != nil {
		return nil, nil, err
	}

	logger.Printf("connecting to RTM stream")
	rtm, err := slack.DialRTM(start.URL)
	if err != nil {
		return nil, nil, err
	}

	uc := &upstreamSession{
		srv:      s,
		client:   client,
		rtm:      rtm,
		logger:   logger,
		closed:   make(chan struct{}),
		outgoing: make(chan rtmFrame, 64),
		marks:    make(map[string]string),
	}
	go uc.writeFrames()
	return uc, start, nil
}

// pump delivers stream events to the server loop until the stream closes,
// then returns the teardown reason. Malformed frames are logged and
// dropped.
func (uc *upstreamSession) pump(ch chan<- event) string {
	for {
		data, err := uc.rtm.ReadRaw()
		if err != nil {
			if !uc.isClosed() {
				uc.close(fmt.Sprintf("RTM connection closed: %v", err))
			}
			return uc.reason()
		}
		if uc.srv.debugEnabled() {
			uc.logger.Printf("received: %s", data)
		}

		ev, err := slack.ParseEvent(data)
		if err != nil {
			uc.logger.Printf("dropping malformed frame: %v", err)
			continue
		}
		ch <- eventUpstreamEvent{uc, ev}
	}
}

// writeFrames is the single writer for the stream; frames posted with
// send and ping keep their order.
func (uc *upstreamSession) writeFrames() {
	for {
		select {
		case frame := <-uc.outgoing:
			var err error
			if frame.ping {
				err = uc.rtm.Ping()
			} else {
				if uc.srv.debugEnabled() {
					uc.logger.Printf("sent to %s: %s", frame.channel, frame.text)
				}
				err = uc.rtm.SendMessage(frame.channel, frame.text)
			}
			if err != nil {
				if !uc.isClosed() {
					uc.close(fmt.Sprintf("RTM write failed: %v", err))
				}
				return
			}
		case <-uc.closed:
			return
		}
	}
}

// send posts a message frame to a channel or DM conduit id.
func (uc *upstreamSession) send(channel, text string) {
	select {
	case uc.outgoing <- rtmFrame{channel: channel, text: text}:
	case <-uc.closed:
	}
}

func (uc *upstreamSession) sendPing() {
	select {
	case uc.outgoing <- rtmFrame{ping: true}:
	case <-uc.closed:
	}
}

func (uc *upstreamSession) isClosed() bool {
	select {
	case <-uc.closed:
		return true
	default:
		return false
	}
}

// close shuts the stream down once; the first caller's reason wins and
// becomes the teardown notice.
func (uc *upstreamSession) close(reason string) {
	uc.closeOnce.Do(func() {
		uc.reasonMu.Lock()
		uc.closeReason = reason
		uc.reasonMu.Unlock()
		close(uc.closed)
		if uc.rtm != nil {
			uc.rtm.Close()
		}
	})
}

func (uc *upstreamSession) reason() string {
	uc.reasonMu.Lock()
	defer uc.reasonMu.Unlock()
	if uc.closeReason == "" {
		return "RTM connection closed"
	}
	return uc.closeReason
}

func (uc *upstreamSession) schedulePing() {
	uc.pingTimer = time.AfterFunc(upstreamPingInterval, func() {
		uc.srv.events <- eventUpstreamPing{uc}
	})
}

// handlePingTimer runs on the loop every ping interval while the session
// is current.
func (uc *upstreamSession) handlePingTimer() {
	if uc.pingCount >= upstreamPingMax {
		uc.close("RTM ping timeout")
		return
	}
	uc.pingCount++
	uc.sendPing()
	uc.schedulePing()
}

// stopTimers cancels the loop-owned timers on teardown.
func (uc *upstreamSession) stopTimers() {
	if uc.pingTimer != nil {
		uc.pingTimer.Stop()
		uc.pingTimer = nil
	}
	if uc.markTimer != nil {
		uc.markTimer.Stop()
		uc.markTimer = nil
	}
}

// scheduleMark batches a read acknowledgement for a channel. Later
// messages on the same channel overwrite the timestamp, so only the newest
// read-point is reported when the debounce window closes.
func (s *Server) scheduleMark(uc *upstreamSession, c *channel, ts string) {
	uc.marks[c.id] = ts
	if uc.markTimer == nil {
		uc.markTimer = time.AfterFunc(markDebounce, func() {
			s.events <- eventMarkFlush{uc}
		})
	}
}

// flushMarks issues one .mark call per queued channel and clears the
// queue.
func (s *Server) flushMarks(uc *upstreamSession) {
	uc.markTimer = nil
	for id, ts := range uc.marks {
		c := s.world.channelByID(id)
		if c == nil {
			continue
		}
		s.call(uc, c.kind.apiNamespace()+".mark", url.Values{
			"channel": {id},
			"ts":      {ts},
		}, nil)
	}
	uc.marks = make(map[string]string)
}

// sendToUser delivers a message body over a user's DM conduit. While the
// conduit is absent or still opening, bodies queue up and are flushed in
// order once the open event lands.
func (s *Server) sendToUser(uc *upstreamSession, u *user, text string) {
	if u.dmID != "" {
		uc.send(u.dmID, text)
		return
	}

	u.txQueue = append(u.txQueue, text)
	if u.dmPending {
		return
	}
	u.dmPending = true
	s.call(uc, "im.open", url.Values{"user": {u.id}}, func(resp *slack.Response) {
		if resp == nil {
			// The conduit could not be opened; the queued intent must not
			// vanish silently.
			for _, text := range u.txQueue {
				s.forEachReady(func(dc *downstreamConn) {
					dc.sendServerNotice(fmt.Sprintf("Could not send to %s: %s", u.nick, text))
				})
			}
			u.txQueue = nil
			u.dmPending = false
			return
		}
		var body struct {
			Channel struct {
				ID string `json:"id"`
			} `json:"channel"`
		}
		if err := resp.Decode(&body); err != nil || body.Channel.ID == "" {
			return
		}
		// The im_open event normally beats this completion; binding here
		// too covers conduits that were already open upstream.
		s.dmOpened(uc, u, body.Channel.ID)
	})
}

// dmOpened binds a DM conduit and drains any queued bodies in FIFO order.
func (s *Server) dmOpened(uc *upstreamSession, u *user, dmID string) {
	if u.dmID != dmID {
		s.world.bindDM(u, dmID)
	}
	u.dmPending = false
	for _, text := range u.txQueue {
		uc.send(dmID, text)
	}
	u.txQueue = nil
}
