package slirc

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"io"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/irc.v3"
)

// namesChunkSize is how many nicks go into one RPL_NAMREPLY line.
const namesChunkSize = 8

// downstreamConn is one attached IRC client. The reader and writer
// goroutines own the socket; registration and dispatch state is owned by
// the server event loop.
type downstreamConn struct {
	id       uint64
	net      net.Conn
	irc      *irc.Conn
	srv      *Server
	logger   Logger
	outgoing chan *irc.Message
	closed   chan struct{}

	// State below is owned by the server event loop.
	nick     string
	username string
	realname string
	hostname string
	password string // empty after authentication
	authed   bool
	ready    bool

	pingCount int
	pingTimer *time.Timer
}

func newDownstreamConn(srv *Server, netConn net.Conn, id uint64) *downstreamConn {
	dc := &downstreamConn{
		id:       id,
		net:      netConn,
		irc:      irc.NewConn(netConn),
		srv:      srv,
		logger:   &prefixLogger{srv.Logger, fmt.Sprintf("downstream %q: ", netConn.RemoteAddr())},
		outgoing: make(chan *irc.Message, 64),
		closed:   make(chan struct{}),
	}
	dc.hostname = netConn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(dc.hostname); err == nil {
		dc.hostname = host
	}

	go func() {
		if err := dc.writeMessages(); err != nil {
			dc.logger.Printf("failed to write message: %v", err)
		}
		if err := dc.net.Close(); err != nil {
			dc.logger.Printf("failed to close connection: %v", err)
		} else {
			dc.logger.Printf("connection closed")
		}
	}()

	dc.logger.Printf("new connection")
	return dc
}

func (dc *downstreamConn) prefix() *irc.Prefix {
	return &irc.Prefix{
		Name: dc.nick,
		User: dc.username,
		Host: dc.hostname,
	}
}

// userPrefix is the message source for a world user as seen by this
// client. The local identity is shadowed by the client's own nick.
func (dc *downstreamConn) userPrefix(u *user) *irc.Prefix {
	if u.id == dc.srv.world.selfID {
		return dc.prefix()
	}
	return &irc.Prefix{
		Name: u.nick,
		User: sanitizeArg(u.id),
		Host: dc.srv.Hostname,
	}
}

func (dc *downstreamConn) marshalNick(u *user) string {
	if u.id == dc.srv.world.selfID {
		return dc.nick
	}
	return u.nick
}

func (dc *downstreamConn) isClosed() bool {
	select {
	case <-dc.closed:
		return true
	default:
		return false
	}
}

func (dc *downstreamConn) readMessages(ch chan<- event) error {
	for {
		msg, err := dc.irc.ReadMessage()
		if err == io.EOF || dc.isClosed() {
			break
		} else if err != nil {
			return fmt.Errorf("failed to read IRC command: %v", err)
		}

		if dc.srv.debugEnabled() {
			dc.logger.Printf("received: %v", msg)
		}

		ch <- eventDownstreamMessage{msg, dc}
	}

	return nil
}

func (dc *downstreamConn) writeMessages() error {
	for {
		select {
		case msg := <-dc.outgoing:
			if dc.srv.debugEnabled() {
				dc.logger.Printf("sent: %v", msg)
			}
			if err := dc.irc.WriteMessage(msg); err != nil {
				return err
			}
		case <-dc.closed:
			// Flush what was queued before the close, such as the final
			// ERROR or teardown NOTICE.
			for {
				select {
				case msg := <-dc.outgoing:
					if err := dc.irc.WriteMessage(msg); err != nil {
						return err
					}
				default:
					return nil
				}
			}
		}
	}
}

func (dc *downstreamConn) Close() error {
	if dc.isClosed() {
		return fmt.Errorf("downstream connection already closed")
	}
	close(dc.closed)
	return nil
}

func (dc *downstreamConn) SendMessage(msg *irc.Message) {
	select {
	case dc.outgoing <- msg:
	case <-dc.closed:
	}
}

// sendServerNotice reports a gateway-level condition to this client.
func (dc *downstreamConn) sendServerNotice(text string) {
	target := dc.nick
	if target == "" {
		target = "*"
	}
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: "NOTICE",
		Params:  []string{target, sanitizeTrailing(text)},
	})
}

func (dc *downstreamConn) sendAwayNumeric(away bool) {
	if away {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.srv.prefix(),
			Command: irc.RPL_NOWAWAY,
			Params:  []string{dc.nick, "You have been marked as being away"},
		})
	} else {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.srv.prefix(),
			Command: irc.RPL_UNAWAY,
			Params:  []string{dc.nick, "You are no longer marked as being away"},
		})
	}
}

func (dc *downstreamConn) schedulePing(d time.Duration) {
	dc.pingTimer = time.AfterFunc(d, func() {
		dc.srv.events <- eventDownstreamPing{dc}
	})
}

func (dc *downstreamConn) stopPing() {
	if dc.pingTimer != nil {
		dc.pingTimer.Stop()
		dc.pingTimer = nil
	}
}

// handlePingTimer runs on the loop at every watchdog interval. Each fire
// with an unanswered PING outstanding counts a miss; the third miss kills
// the connection.
func (dc *downstreamConn) handlePingTimer() {
	if dc.isClosed() {
		return
	}
	if dc.pingCount >= downstreamPingMax {
		dc.logger.Printf("ping timeout")
		dc.SendMessage(&irc.Message{
			Command: "ERROR",
			Params:  []string{"Ping timeout"},
		})
		dc.Close()
		return
	}
	dc.pingCount++
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: "PING",
		Params:  []string{dc.srv.Hostname},
	})
	dc.schedulePing(downstreamPingInterval)
}

func (dc *downstreamConn) handleMessage(msg *irc.Message) error {
	switch msg.Command {
	case "QUIT":
		return dc.Close()
	case "PING":
		var token string
		if err := parseMessageParams(msg, &token); err != nil {
			return err
		}
		dc.SendMessage(&irc.Message{
			Prefix:  dc.srv.prefix(),
			Command: "PONG",
			Params:  []string{token},
		})
		return nil
	case "PONG":
		dc.pingCount = 0
		return nil
	default:
		if dc.ready {
			return dc.handleMessageReady(msg)
		}
		return dc.handleMessageUnregistered(msg)
	}
}

func (dc *downstreamConn) handleMessageUnregistered(msg *irc.Message) error {
	switch msg.Command {
	case "NICK":
		var nick string
		if err := parseMessageParams(msg, &nick); err != nil {
			return err
		}
		if ircEqual(nick, serviceNick) {
			return ircError{&irc.Message{
				Command: irc.ERR_NICKNAMEINUSE,
				Params:  []string{"*", nick, "Nickname reserved for the gateway service"},
			}}
		}
		dc.nick = nick
	case "USER":
		if err := parseMessageParams(msg, &dc.username, nil, nil, &dc.realname); err != nil {
			return err
		}
	case "PASS":
		if err := parseMessageParams(msg, &dc.password); err != nil {
			return err
		}
	default:
		dc.logger.Printf("unhandled message: %v", msg)
		return ircError{&irc.Message{
			Command: irc.ERR_NOTREGISTERED,
			Params:  []string{"*", "You have not registered"},
		}}
	}
	if dc.nick != "" && dc.username != "" {
		return dc.register()
	}
	return nil
}

// register authenticates the client once NICK and USER are in. The welcome
// is deferred until the upstream session is live.
func (dc *downstreamConn) register() error {
	if dc.authed {
		return nil
	}
	if password := dc.srv.config.Password; password != "" {
		if !passwordsMatch(dc.password, password) {
			dc.logger.Printf("authentication failed for nick %q", dc.nick)
			dc.SendMessage(&irc.Message{
				Command: "ERROR",
				Params:  []string{"Invalid password"},
			})
			dc.Close()
			return nil
		}
	}
	dc.password = ""
	dc.authed = true
	dc.logger.Printf("registration complete for nick %q", dc.nick)

	if dc.srv.connected {
		dc.welcome()
	} else {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.srv.prefix(),
			Command: "NOTICE",
			Params:  []string{"*", "Waiting for RTM connection"},
		})
	}
	return nil
}

// passwordsMatch compares fixed-size digests of both sides so the
// comparison time does not depend on the configured password.
func passwordsMatch(supplied, configured string) bool {
	a := sha256.Sum256([]byte(supplied))
	b := sha256.Sum256([]byte(configured))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// welcome replays the live world to an authed client: numerics, one
// JOIN+topic+NAMES block per joined channel, then the away state. A nick
// clashing with a remote user other than self rejects the connection.
func (dc *downstreamConn) welcome() {
	w := dc.srv.world
	if u := w.userByNick(dc.nick); u != nil && u.id != w.selfID {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.srv.prefix(),
			Command: irc.ERR_NICKNAMEINUSE,
			Params:  []string{"*", dc.nick, "Nick already in use"},
		})
		dc.Close()
		return
	}
	dc.ready = true

	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_WELCOME,
		Params:  []string{dc.nick, "Welcome to slirc, " + dc.nick},
	})
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_YOURHOST,
		Params:  []string{dc.nick, "Your host is " + dc.srv.Hostname},
	})
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_CREATED,
		Params:  []string{dc.nick, "This server was created " + dc.srv.startedAt.Format(time.RFC1123)},
	})
	dc.sendMOTD()

	for _, c := range w.selfChannels() {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.prefix(),
			Command: "JOIN",
			Params:  []string{"#" + c.name},
		})
		dc.sendTopic(c)
		dc.sendNames(c)
	}

	if self := w.self(); self != nil {
		dc.sendAwayNumeric(self.away)
	}
}

func (dc *downstreamConn) sendMOTD() {
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_MOTD,
		Params:  []string{dc.nick, "- slirc: IRC to Slack gateway"},
	})
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_ENDOFMOTD,
		Params:  []string{dc.nick, "End of /MOTD command"},
	})
}

func (dc *downstreamConn) sendTopic(c *channel) {
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_TOPIC,
		Params:  []string{dc.nick, "#" + c.name, sanitizeTrailing(c.topic)},
	})
}

func (dc *downstreamConn) sendNames(c *channel) {
	members := dc.srv.world.memberUsers(c)
	nicks := make([]string, 0, len(members))
	for _, u := range members {
		nicks = append(nicks, dc.marshalNick(u))
	}
	for len(nicks) > 0 {
		n := len(nicks)
		if n > namesChunkSize {
			n = namesChunkSize
		}
		dc.SendMessage(&irc.Message{
			Prefix:  dc.srv.prefix(),
			Command: irc.RPL_NAMREPLY,
			Params:  []string{dc.nick, "=", "#" + c.name, strings.Join(nicks[:n], " ")},
		})
		nicks = nicks[n:]
	}
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_ENDOFNAMES,
		Params:  []string{dc.nick, "#" + c.name, "End of /NAMES list"},
	})
}

// channelFromArg resolves an IRC channel argument ("#name") against the
// world.
func (dc *downstreamConn) channelFromArg(arg string) *channel {
	if !strings.HasPrefix(arg, "#") {
		return nil
	}
	return dc.srv.world.channelByName(strings.TrimPrefix(arg, "#"))
}

func (dc *downstreamConn) handleMessageReady(msg *irc.Message) error {
	s := dc.srv
	w := s.world
	uc := s.session
	if uc == nil {
		// Teardown evicts ready clients before clearing the session.
		return nil
	}

	switch msg.Command {
	case "NICK":
		var nick string
		if err := parseMessageParams(msg, &nick); err != nil {
			return err
		}
		if ircEqual(nick, serviceNick) {
			return ircError{&irc.Message{
				Command: irc.ERR_NICKNAMEINUSE,
				Params:  []string{dc.nick, nick, "Nickname reserved for the gateway service"},
			}}
		}
		if u := w.userByNick(nick); u != nil && u.id != w.selfID {
			return ircError{&irc.Message{
				Command: irc.ERR_NICKNAMEINUSE,
				Params:  []string{dc.nick, nick, "Nick already in use"},
			}}
		}
		prefix := dc.prefix()
		dc.nick = nick
		dc.SendMessage(&irc.Message{
			Prefix:  prefix,
			Command: "NICK",
			Params:  []string{nick},
		})
	case "USER", "PASS":
		return ircError{&irc.Message{
			Command: irc.ERR_ALREADYREGISTERED,
			Params:  []string{dc.nick, "You may not reregister"},
		}}
	case "AWAY":
		presence := "auto"
		if len(msg.Params) > 0 {
			presence = "away"
		}
		s.call(uc, "users.setPresence", url.Values{"presence": {presence}}, nil)
		away := presence == "away"
		if self := w.self(); self != nil && self.away != away {
			self.away = away
			s.broadcastAway(away)
		} else {
			dc.sendAwayNumeric(away)
		}
	case "JOIN":
		var names string
		if err := parseMessageParams(msg, &names); err != nil {
			return err
		}
		for _, name := range strings.Split(names, ",") {
			c := dc.channelFromArg(name)
			if c == nil {
				return newNoSuchNickError(name)
			}
			self := w.self()
			if self == nil {
				continue
			}
			if _, member := c.members[self.id]; member {
				continue
			}
			if c.kind == channelGroup {
				// groups.open yields no membership event, so the world is
				// updated optimistically.
				s.call(uc, "groups.open", url.Values{"channel": {c.id}}, nil)
				w.join(c, self)
				s.broadcastJoin(self, c)
			} else {
				// channel_joined confirms the membership.
				s.call(uc, "channels.join", url.Values{"name": {c.name}}, nil)
			}
		}
	case "PART":
		var names string
		if err := parseMessageParams(msg, &names); err != nil {
			return err
		}
		for _, name := range strings.Split(names, ",") {
			c := dc.channelFromArg(name)
			if c == nil {
				return newNoSuchNickError(name)
			}
			self := w.self()
			if self == nil {
				continue
			}
			if _, member := c.members[self.id]; !member {
				continue
			}
			if c.kind == channelGroup {
				s.call(uc, "groups.close", url.Values{"channel": {c.id}}, nil)
				w.part(c, self)
				s.broadcastPart(self, c)
			} else {
				s.call(uc, "channels.leave", url.Values{"channel": {c.id}}, nil)
			}
		}
	case "INVITE":
		var nicks, name string
		if err := parseMessageParams(msg, &nicks, &name); err != nil {
			return err
		}
		c := dc.channelFromArg(name)
		if c == nil {
			return newNoSuchChannelError(name)
		}
		for _, nick := range strings.Split(nicks, ",") {
			u := w.userByNick(nick)
			if u == nil {
				return newNoSuchNickError(nick)
			}
			s.call(uc, c.kind.apiNamespace()+".invite", url.Values{
				"channel": {c.id},
				"user":    {u.id},
			}, nil)
		}
	case "KICK":
		var name, nicks string
		if err := parseMessageParams(msg, &name, &nicks); err != nil {
			return err
		}
		c := dc.channelFromArg(name)
		if c == nil {
			return newNoSuchChannelError(name)
		}
		for _, nick := range strings.Split(nicks, ",") {
			u := w.userByNick(nick)
			if u == nil {
				return newNoSuchNickError(nick)
			}
			s.call(uc, c.kind.apiNamespace()+".kick", url.Values{
				"channel": {c.id},
				"user":    {u.id},
			}, nil)
		}
	case "MODE":
		var target string
		if err := parseMessageParams(msg, &target); err != nil {
			return err
		}
		if strings.HasPrefix(target, "#") {
			c := dc.channelFromArg(target)
			if c == nil {
				return newNoSuchChannelError(target)
			}
			if len(msg.Params) > 1 && strings.Contains(msg.Params[1], "b") {
				dc.SendMessage(&irc.Message{
					Prefix:  s.prefix(),
					Command: irc.RPL_ENDOFBANLIST,
					Params:  []string{dc.nick, "#" + c.name, "End of channel ban list"},
				})
				break
			}
			modes := "+p"
			if c.kind == channelGroup {
				modes = "+ip"
			}
			dc.SendMessage(&irc.Message{
				Prefix:  s.prefix(),
				Command: irc.RPL_CHANNELMODEIS,
				Params:  []string{dc.nick, "#" + c.name, modes},
			})
			dc.SendMessage(&irc.Message{
				Prefix:  s.prefix(),
				Command: rpl_creationtime,
				Params:  []string{dc.nick, "#" + c.name, strconv.FormatInt(s.startedAt.Unix(), 10)},
			})
		} else if ircEqual(target, dc.nick) {
			dc.SendMessage(&irc.Message{
				Prefix:  s.prefix(),
				Command: irc.RPL_UMODEIS,
				Params:  []string{dc.nick, "+i"},
			})
		} else {
			return ircError{&irc.Message{
				Command: irc.ERR_USERSDONTMATCH,
				Params:  []string{dc.nick, "Cannot change mode for other users"},
			}}
		}
	case "TOPIC":
		var name string
		if err := parseMessageParams(msg, &name); err != nil {
			return err
		}
		c := dc.channelFromArg(name)
		if c == nil {
			return newNoSuchChannelError(name)
		}
		if len(msg.Params) > 1 {
			// The topic-change broadcast follows from the upstream event.
			s.call(uc, c.kind.apiNamespace()+".setTopic", url.Values{
				"channel": {c.id},
				"topic":   {renderOutbound(w, msg.Params[1])},
			}, nil)
		} else {
			dc.sendTopic(c)
		}
	case "NAMES":
		if len(msg.Params) == 0 {
			for _, c := range w.selfChannels() {
				dc.sendNames(c)
			}
			dc.SendMessage(&irc.Message{
				Prefix:  s.prefix(),
				Command: irc.RPL_ENDOFNAMES,
				Params:  []string{dc.nick, "*", "End of /NAMES list"},
			})
			break
		}
		for _, name := range strings.Split(msg.Params[0], ",") {
			if c := dc.channelFromArg(name); c != nil {
				dc.sendNames(c)
			} else {
				dc.SendMessage(&irc.Message{
					Prefix:  s.prefix(),
					Command: irc.RPL_ENDOFNAMES,
					Params:  []string{dc.nick, name, "End of /NAMES list"},
				})
			}
		}
	case "WHO":
		if len(msg.Params) == 0 {
			for _, u := range w.allUsers() {
				dc.sendWhoReply("*", u)
			}
			dc.SendMessage(&irc.Message{
				Prefix:  s.prefix(),
				Command: irc.RPL_ENDOFWHO,
				Params:  []string{dc.nick, "*", "End of /WHO list"},
			})
			break
		}
		mask := msg.Params[0]
		if c := dc.channelFromArg(mask); c != nil {
			for _, u := range s.world.memberUsers(c) {
				dc.sendWhoReply("#"+c.name, u)
			}
		} else if u := w.userByNick(mask); u != nil {
			dc.sendWhoReply("*", u)
		}
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_ENDOFWHO,
			Params:  []string{dc.nick, mask, "End of /WHO list"},
		})
	case "WHOIS":
		var nick string
		if err := parseMessageParams(msg, &nick); err != nil {
			return err
		}
		return dc.handleWhois(nick)
	case "LIST":
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_LISTSTART,
			Params:  []string{dc.nick, "Channel", "Users Name"},
		})
		for _, c := range w.allChannels() {
			dc.SendMessage(&irc.Message{
				Prefix:  s.prefix(),
				Command: irc.RPL_LIST,
				Params: []string{
					dc.nick,
					"#" + c.name,
					strconv.Itoa(len(c.members)),
					sanitizeTrailing(c.topic),
				},
			})
		}
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_LISTEND,
			Params:  []string{dc.nick, "End of /LIST"},
		})
	case "MOTD":
		dc.sendMOTD()
	case "PRIVMSG", "NOTICE":
		var target, text string
		if err := parseMessageParams(msg, &target, &text); err != nil {
			return err
		}
		if strings.HasPrefix(target, "#") {
			c := dc.channelFromArg(target)
			if c == nil {
				return newNoSuchChannelError(target)
			}
			uc.send(c.id, renderOutbound(w, text))
			break
		}
		if ircEqual(target, serviceNick) {
			s.handleServiceMessage(dc, text)
			break
		}
		u := w.userByNick(target)
		if u == nil {
			return newNoSuchNickError(target)
		}
		s.sendToUser(uc, u, renderOutbound(w, text))
	default:
		dc.logger.Printf("unhandled message: %v", msg)
		return newUnknownCommandError(msg.Command)
	}
	return nil
}

func (dc *downstreamConn) sendWhoReply(target string, u *user) {
	flags := "H"
	if u.away {
		flags = "G"
	}
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.prefix(),
		Command: irc.RPL_WHOREPLY,
		Params: []string{
			dc.nick,
			target,
			sanitizeArg(u.id),
			dc.srv.Hostname,
			dc.srv.Hostname,
			dc.marshalNick(u),
			flags,
			"0 " + u.realname,
		},
	})
}

func (dc *downstreamConn) handleWhois(nick string) error {
	s := dc.srv
	w := s.world

	if ircEqual(nick, serviceNick) {
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_WHOISUSER,
			Params:  []string{dc.nick, serviceNick, serviceNick, s.Hostname, "*", "Gateway service"},
		})
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_WHOISSERVER,
			Params:  []string{dc.nick, serviceNick, s.Hostname, "slirc gateway"},
		})
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_ENDOFWHOIS,
			Params:  []string{dc.nick, serviceNick, "End of /WHOIS list"},
		})
		return nil
	}

	u := w.userByNick(nick)
	if u == nil && ircEqual(nick, dc.nick) {
		u = w.self()
	}
	if u == nil {
		return newNoSuchNickError(nick)
	}
	shown := dc.marshalNick(u)

	dc.SendMessage(&irc.Message{
		Prefix:  s.prefix(),
		Command: irc.RPL_WHOISUSER,
		Params:  []string{dc.nick, shown, sanitizeArg(u.id), s.Hostname, "*", u.realname},
	})
	dc.SendMessage(&irc.Message{
		Prefix:  s.prefix(),
		Command: irc.RPL_WHOISSERVER,
		Params:  []string{dc.nick, shown, s.Hostname, "slirc gateway"},
	})
	if len(u.channels) > 0 {
		names := make([]string, 0, len(u.channels))
		for id := range u.channels {
			if c := w.channelByID(id); c != nil {
				names = append(names, "#"+c.name)
			}
		}
		sort.Strings(names)
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_WHOISCHANNELS,
			Params:  []string{dc.nick, shown, strings.Join(names, " ")},
		})
	}
	if u.away {
		dc.SendMessage(&irc.Message{
			Prefix:  s.prefix(),
			Command: irc.RPL_AWAY,
			Params:  []string{dc.nick, shown, "Away"},
		})
	}
	dc.SendMessage(&irc.Message{
		Prefix:  s.prefix(),
		Command: irc.RPL_ENDOFWHOIS,
		Params:  []string{dc.nick, shown, "End of /WHOIS list"},
	})
	return nil
}
