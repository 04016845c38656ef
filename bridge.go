package slirc

import (
	"fmt"
	"net/url"
	"strings"

	"gopkg.in/irc.v3"

	"github.com/vkareh/slirc/slack"
)

// fileInlineMax caps how much file content is replayed inline on the IRC
// side.
const fileInlineMax = 65536

// handleUpstreamConnected installs a freshly bootstrapped session:
// populate the world from the snapshot, arm the liveness timer, and
// welcome the clients that were waiting for the session to come up.
func (s *Server) handleUpstreamConnected(uc *upstreamSession, snapshot *slack.StartResponse) {
	s.session = uc
	s.world.reset()
	s.world.selfID = snapshot.Self.ID

	for _, info := range snapshot.Users {
		if info.Deleted {
			continue
		}
		s.world.updateUser(info)
	}
	for _, bot := range snapshot.Bots {
		if bot.Deleted {
			continue
		}
		s.world.updateUser(slack.User{ID: bot.ID, Name: bot.Name})
	}
	if self := s.world.self(); self != nil {
		self.away = snapshot.Self.ManualPresence == "away"
	}
	for _, im := range snapshot.IMs {
		u := s.ensureUser(uc, im.User)
		s.world.bindDM(u, im.ID)
	}
	for _, info := range snapshot.Channels {
		if info.IsArchived || !info.IsMember {
			continue
		}
		_, _, stubbed := s.world.updateChannel(channelPublic, info)
		s.resolveUsers(uc, stubbed)
	}
	for _, info := range snapshot.Groups {
		if info.IsArchived {
			continue
		}
		_, _, stubbed := s.world.updateChannel(channelGroup, info)
		s.resolveUsers(uc, stubbed)
	}

	s.connected = true
	uc.schedulePing()
	s.Logger.Printf("RTM session live as %q (%s)", snapshot.Self.Name, snapshot.Self.ID)

	for _, dc := range s.downstreamConns {
		if dc.authed && !dc.ready && !dc.isClosed() {
			dc.welcome()
		}
	}
}

// handleUpstreamDisconnected tears the session down: report the reason,
// discard the world, cancel timers, and evict every client. A stale or
// repeated teardown is a no-op.
func (s *Server) handleUpstreamDisconnected(uc *upstreamSession, reason string) {
	if uc != s.session {
		return
	}

	s.Logger.Printf("RTM session ended: %s", reason)
	s.broadcastNotice(reason)

	uc.stopTimers()
	s.session = nil
	s.connected = false
	s.world.reset()

	for _, dc := range s.downstreamConns {
		dc.Close()
	}
}

// ensureUser returns the user for a remote id, stub-creating it and firing
// an asynchronous users.info when the id was never seen before.
func (s *Server) ensureUser(uc *upstreamSession, id string) *user {
	if u := s.world.userByID(id); u != nil {
		return u
	}
	u := s.world.stubUser(id)
	s.resolveUser(uc, id)
	return u
}

func (s *Server) resolveUsers(uc *upstreamSession, ids []string) {
	for _, id := range ids {
		s.resolveUser(uc, id)
	}
}

func (s *Server) resolveUser(uc *upstreamSession, id string) {
	s.call(uc, "users.info", url.Values{"user": {id}}, func(resp *slack.Response) {
		if resp == nil {
			return
		}
		var body struct {
			User slack.User `json:"user"`
		}
		if err := resp.Decode(&body); err != nil {
			return
		}
		u := s.world.userByID(id)
		if u == nil || !u.stub {
			// A later event already supplied real attributes; the stale
			// response must not overwrite them.
			return
		}
		u, oldNick, _ := s.world.updateUser(body.User)
		if oldNick != "" {
			s.broadcastNick(u, oldNick)
		}
	})
}

func (s *Server) decodeEvent(ev *slack.Event, v interface{}) bool {
	if err := ev.Decode(v); err != nil {
		s.Logger.Printf("dropping malformed %q event: %v", ev.Type, err)
		return false
	}
	return true
}

// handleUpstreamEvent applies one stream event to the world and fans the
// visible effects out to every ready client. Unknown event types are
// ignored.
func (s *Server) handleUpstreamEvent(uc *upstreamSession, ev *slack.Event) {
	switch ev.Type {
	case "presence_change", "manual_presence_change":
		var p slack.PresenceChangeEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		id := p.User
		if id == "" {
			// manual_presence_change carries no user: it is about self.
			id = s.world.selfID
		}
		u := s.world.userByID(id)
		if u == nil {
			return
		}
		away := p.Presence == "away"
		changed := u.away != away
		u.away = away
		if changed && u.id == s.world.selfID {
			s.broadcastAway(away)
		}
	case "im_open":
		var p slack.IMOpenEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		u := s.ensureUser(uc, p.User)
		s.dmOpened(uc, u, p.Channel)
	case "im_close":
		var p slack.IMOpenEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		if u := s.world.userByDM(p.Channel); u != nil {
			s.world.unbindDM(u)
		}
	case "channel_joined", "group_joined":
		var p slack.ChannelInfoEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		kind := channelPublic
		if ev.Type == "group_joined" {
			kind = channelGroup
		}
		prev := s.world.channelByID(p.Channel.ID)
		wasMember := false
		if prev != nil {
			_, wasMember = prev.members[s.world.selfID]
		}
		info := p.Channel
		info.IsOpen = true
		c, _, stubbed := s.world.updateChannel(kind, info)
		s.resolveUsers(uc, stubbed)
		if self := s.world.self(); self != nil {
			s.world.join(c, self)
			if !wasMember {
				s.broadcastJoin(self, c)
			}
		}
	case "channel_left", "group_left":
		var p slack.ChannelIDEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		c := s.world.channelByID(p.Channel)
		self := s.world.self()
		if c == nil || self == nil {
			return
		}
		if s.world.part(c, self) {
			s.broadcastPart(self, c)
		}
	case "channel_archive", "group_archive":
		var p slack.ChannelIDEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		c := s.world.channelByID(p.Channel)
		if c == nil {
			return
		}
		if self := s.world.self(); self != nil && s.world.part(c, self) {
			s.broadcastPart(self, c)
		}
		s.world.deleteChannel(c)
	case "member_joined_channel":
		var p slack.MemberEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		c := s.world.channelByID(p.Channel)
		if c == nil {
			return
		}
		u := s.ensureUser(uc, p.User)
		if s.world.join(c, u) {
			s.broadcastJoin(u, c)
		}
	case "member_left_channel":
		var p slack.MemberEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		c := s.world.channelByID(p.Channel)
		u := s.world.userByID(p.User)
		if c == nil || u == nil {
			return
		}
		if s.world.part(c, u) {
			s.broadcastPart(u, c)
		}
	case "message":
		var p slack.MessageEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		s.handleMessageEvent(uc, &p)
	case "user_change", "team_join":
		var p slack.UserChangeEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		u, oldNick, _ := s.world.updateUser(p.User)
		if oldNick != "" {
			s.broadcastNick(u, oldNick)
		}
	case "pong":
		uc.pingCount = 0
	case "error":
		var p slack.ErrorEvent
		if !s.decodeEvent(ev, &p) {
			return
		}
		s.broadcastNotice(fmt.Sprintf("RTM error: %s", p.Error.Msg))
	}
}

func (s *Server) handleMessageEvent(uc *upstreamSession, p *slack.MessageEvent) {
	senderID := p.User
	if senderID == "" && p.Comment != nil {
		senderID = p.Comment.User
	}
	if senderID == "" {
		senderID = p.BotID
	}
	if senderID == "" {
		return
	}
	from := s.ensureUser(uc, senderID)

	body := p.Text
	for _, a := range p.Attachments {
		body += "\n" + a.Title + " " + a.Text + " " + a.TitleLink
	}

	c := s.world.channelByID(p.Channel)
	if c != nil {
		switch p.Subtype {
		case "channel_topic", "group_topic":
			c.topic = p.Topic
			s.broadcastTopic(from, c)
			return
		}
		s.emitMessage(c, from, body, p.Subtype)
		if p.TS != "" {
			s.scheduleMark(uc, c, p.TS)
		}
	} else {
		s.emitMessage(nil, from, body, p.Subtype)
	}

	if p.Subtype == "file_share" && p.File != nil {
		s.fetchFileInline(uc, c, from, p.File)
	}
}

// emitMessage renders a message body per recipient and writes one PRIVMSG
// per line. A nil channel means a direct message, addressed to each
// client's own nick.
func (s *Server) emitMessage(c *channel, from *user, body, subtype string) {
	s.forEachReady(func(dc *downstreamConn) {
		text := renderInbound(s.world, dc.nick, body)
		target := dc.nick
		if c != nil {
			target = "#" + c.name
		}
		for _, line := range strings.Split(text, "\n") {
			if subtype != "" {
				line = "\x02[" + subtype + "]\x02 " + line
			}
			dc.SendMessage(&irc.Message{
				Prefix:  dc.userPrefix(from),
				Command: "PRIVMSG",
				Params:  []string{target, sanitizeTrailing(line)},
			})
		}
	})
}

// fetchFileInline downloads shared file content and replays it inline as
// a message with a ">file-id" subtype marker. Oversized files are
// suppressed.
func (s *Server) fetchFileInline(uc *upstreamSession, c *channel, from *user, f *slack.File) {
	if f.Size > fileInlineMax {
		return
	}
	fileID := f.ID
	go func() {
		file := f
		var err error
		if file.URLPrivate == "" {
			file, err = uc.client.FilesInfo(fileID)
		}
		var data []byte
		if err == nil {
			data, err = uc.client.FetchFile(file)
		}
		s.events <- eventUpstreamCallback{uc, func() {
			if err != nil {
				s.broadcastNotice("API error: " + err.Error())
				return
			}
			if len(data) > fileInlineMax {
				return
			}
			s.emitMessage(c, from, string(data), ">"+fileID)
		}}
	}()
}

func (s *Server) broadcastJoin(u *user, c *channel) {
	s.forEachReady(func(dc *downstreamConn) {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.userPrefix(u),
			Command: "JOIN",
			Params:  []string{"#" + c.name},
		})
	})
}

func (s *Server) broadcastPart(u *user, c *channel) {
	s.forEachReady(func(dc *downstreamConn) {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.userPrefix(u),
			Command: "PART",
			Params:  []string{"#" + c.name},
		})
	})
}

func (s *Server) broadcastNick(u *user, oldNick string) {
	s.forEachReady(func(dc *downstreamConn) {
		dc.SendMessage(&irc.Message{
			Prefix:  &irc.Prefix{Name: oldNick, User: sanitizeArg(u.id), Host: s.Hostname},
			Command: "NICK",
			Params:  []string{u.nick},
		})
	})
}

func (s *Server) broadcastTopic(from *user, c *channel) {
	s.forEachReady(func(dc *downstreamConn) {
		dc.SendMessage(&irc.Message{
			Prefix:  dc.userPrefix(from),
			Command: "TOPIC",
			Params:  []string{"#" + c.name, sanitizeTrailing(c.topic)},
		})
	})
}

// broadcastAway reflects a self presence flip as 305/306 numerics.
func (s *Server) broadcastAway(away bool) {
	s.forEachReady(func(dc *downstreamConn) {
		dc.sendAwayNumeric(away)
	})
}
