package slirc

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"sync/atomic"
	"time"

	"gopkg.in/irc.v3"

	"github.com/vkareh/slirc/slack"
)

const (
	// Downstream watchdog: first PING after 30s, then every 60s; the
	// connection dies on the third unanswered PING.
	downstreamPingFirst    = 30 * time.Second
	downstreamPingInterval = 60 * time.Second
	downstreamPingMax      = 3

	// Upstream liveness: a ping frame every 60s, teardown after two
	// consecutive misses.
	upstreamPingInterval = 60 * time.Second
	upstreamPingMax      = 2

	// Fixed wait between a teardown and the next bootstrap attempt.
	reconnectCooldown = 5 * time.Second
)

type Logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
}

type prefixLogger struct {
	logger Logger
	prefix string
}

var _ Logger = (*prefixLogger)(nil)

func (l *prefixLogger) Print(v ...interface{}) {
	v = append([]interface{}{l.prefix}, v...)
	l.logger.Print(v...)
}

func (l *prefixLogger) Printf(format string, v ...interface{}) {
	v = append([]interface{}{l.prefix}, v...)
	l.logger.Printf("%v"+format, v...)
}

// Server is the gateway supervisor: it owns the listener side, the single
// upstream session, the world, and the event loop that serialises all
// mutations.
type Server struct {
	Hostname string
	Logger   Logger

	config  *Config
	events  chan event
	stopped chan struct{}
	debug   int32

	// State below is owned by the run loop.
	world            *world
	session          *upstreamSession
	connected        bool
	downstreamConns  []*downstreamConn
	nextDownstreamID uint64
	startedAt        time.Time
}

func NewServer(config *Config) *Server {
	s := &Server{
		Hostname:  "localhost",
		Logger:    log.New(log.Writer(), "", log.LstdFlags),
		config:    config,
		events:    make(chan event, 64),
		stopped:   make(chan struct{}),
		world:     newWorld(),
		startedAt: time.Now(),
	}
	if config.DebugDump {
		atomic.StoreInt32(&s.debug, 1)
	}
	return s
}

func (s *Server) prefix() *irc.Prefix {
	return &irc.Prefix{Name: s.Hostname}
}

func (s *Server) servicePrefix() *irc.Prefix {
	return &irc.Prefix{Name: serviceNick, User: serviceNick, Host: s.Hostname}
}

func (s *Server) debugEnabled() bool {
	return atomic.LoadInt32(&s.debug) != 0
}

func (s *Server) setDebug(on bool) {
	var v int32
	if on {
		v = 1
	}
	atomic.StoreInt32(&s.debug, v)
}

// Serve accepts downstream IRC connections until the listener closes.
func (s *Server) Serve(ln net.Listener) error {
	for {
		netConn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopped:
				return nil
			default:
			}
			return fmt.Errorf("failed to accept connection: %v", err)
		}

		s.handle(netConn)
	}
}

// handle wires an accepted connection into the event loop and starts its
// reader.
func (s *Server) handle(netConn net.Conn) {
	s.nextDownstreamID++
	dc := newDownstreamConn(s, netConn, s.nextDownstreamID)
	s.events <- eventDownstreamConnected{dc}
	go func() {
		if err := dc.readMessages(s.events); err != nil {
			dc.logger.Print(err)
		}
		dc.Close()
		s.events <- eventDownstreamDisconnected{dc}
	}()
}

// Run starts the upstream session manager and runs the event loop. It
// returns after Stop.
func (s *Server) Run() {
	go s.runUpstream()
	s.loop()
}

func (s *Server) loop() {
	for e := range s.events {
		switch e := e.(type) {
		case eventDownstreamConnected:
			dc := e.dc
			s.downstreamConns = append(s.downstreamConns, dc)
			dc.schedulePing(downstreamPingFirst)
		case eventDownstreamDisconnected:
			dc := e.dc
			dc.stopPing()
			for i := range s.downstreamConns {
				if s.downstreamConns[i] == dc {
					s.downstreamConns = append(s.downstreamConns[:i], s.downstreamConns[i+1:]...)
					break
				}
			}
		case eventDownstreamMessage:
			msg, dc := e.msg, e.dc
			if dc.isClosed() {
				break
			}
			err := dc.handleMessage(msg)
			if ircErr, ok := err.(ircError); ok {
				ircErr.Message.Prefix = s.prefix()
				dc.SendMessage(ircErr.Message)
			} else if err != nil {
				dc.logger.Printf("failed to handle message %q: %v", e.msg, err)
				dc.Close()
			}
		case eventDownstreamPing:
			e.dc.handlePingTimer()
		case eventUpstreamConnected:
			s.handleUpstreamConnected(e.uc, e.snapshot)
		case eventUpstreamEvent:
			if e.uc != s.session {
				break
			}
			s.handleUpstreamEvent(e.uc, e.ev)
		case eventUpstreamDisconnected:
			s.handleUpstreamDisconnected(e.uc, e.reason)
		case eventUpstreamConnectionError:
			s.Logger.Printf("upstream connection error: %v", e.err)
			s.broadcastNotice(fmt.Sprintf("RTM connection failed: %v", e.err))
		case eventUpstreamPing:
			if e.uc != s.session {
				break
			}
			e.uc.handlePingTimer()
		case eventMarkFlush:
			if e.uc != s.session {
				break
			}
			s.flushMarks(e.uc)
		case eventUpstreamCallback:
			// Callbacks for a torn-down session must not fire.
			if e.uc != s.session {
				break
			}
			e.f()
		case eventStop:
			close(s.stopped)
			for _, dc := range s.downstreamConns {
				dc.Close()
			}
			if s.session != nil {
				s.session.close("shutting down")
			}
			return
		default:
			panic(fmt.Sprintf("received unknown event type: %T", e))
		}
	}
}

// Stop makes Run tear everything down and return.
func (s *Server) Stop() {
	s.events <- eventStop{}
}

func (s *Server) forEachAuthed(f func(dc *downstreamConn)) {
	for _, dc := range s.downstreamConns {
		if dc.authed && !dc.isClosed() {
			f(dc)
		}
	}
}

func (s *Server) forEachReady(f func(dc *downstreamConn)) {
	for _, dc := range s.downstreamConns {
		if dc.ready && !dc.isClosed() {
			f(dc)
		}
	}
}

// broadcastNotice reports a server-level condition to every authed client.
func (s *Server) broadcastNotice(text string) {
	s.forEachAuthed(func(dc *downstreamConn) {
		dc.sendServerNotice(text)
	})
}

// call runs an API method off the event loop. done, when non-nil, runs
// back on the loop with the response; it receives nil when the call failed,
// after the failure has been reported as a broadcast NOTICE. Completions
// are dropped wholesale if the session is torn down first.
func (s *Server) call(uc *upstreamSession, method string, args url.Values, done func(resp *slack.Response)) {
	go func() {
		resp, err := uc.client.Call(method, args)
		s.events <- eventUpstreamCallback{uc, func() {
			if err != nil {
				s.broadcastNotice("API error: " + err.Error())
				resp = nil
			}
			if done != nil {
				done(resp)
			}
		}}
	}()
}
