package slirc

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/irc.v3"

	"github.com/vkareh/slirc/slack"
)

// serviceNick is the reserved gateway pseudo-user. The name arbiter never
// hands it out to a remote user.
const serviceNick = "X"

// serviceNoticeChunk caps the payload of one NOTICE line when replaying
// file content.
const serviceNoticeChunk = 400

func (dc *downstreamConn) sendServiceNotice(text string) {
	dc.SendMessage(&irc.Message{
		Prefix:  dc.srv.servicePrefix(),
		Command: "NOTICE",
		Params:  []string{dc.nick, sanitizeTrailing(text)},
	})
}

// handleServiceMessage dispatches a PRIVMSG addressed to the gateway
// pseudo-user. The command word and its arguments are split on runs of
// spaces; replies come back as NOTICEs from the service.
func (s *Server) handleServiceMessage(dc *downstreamConn, text string) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		dc.sendServiceNotice("Unknown command")
		return
	}
	cmd, args := fields[0], fields[1:]
	uc := s.session

	switch cmd {
	case "newgroup", "newchan":
		if len(args) < 1 {
			dc.sendServiceNotice("Usage: " + cmd + " <name>")
			return
		}
		ns := "channels"
		if cmd == "newgroup" {
			ns = "groups"
		}
		name := args[0]
		// The joined event announces the new channel; this just acks the
		// request.
		s.call(uc, ns+".create", url.Values{"name": {name}}, func(resp *slack.Response) {
			if resp == nil || dc.isClosed() {
				return
			}
			dc.sendServiceNotice("Created " + name)
		})
	case "archive":
		c := s.serviceChannelArg(dc, args)
		if c == nil {
			return
		}
		s.call(uc, c.kind.apiNamespace()+".archive", url.Values{"channel": {c.id}}, nil)
	case "close":
		c := s.serviceChannelArg(dc, args)
		if c == nil {
			return
		}
		if c.kind != channelGroup {
			dc.sendServiceNotice("Not a group: #" + c.name)
			return
		}
		s.call(uc, "groups.close", url.Values{"channel": {c.id}}, nil)
	case "cat":
		if len(args) < 1 {
			dc.sendServiceNotice("Usage: cat <file-id>")
			return
		}
		s.catFile(dc, uc, args[0])
	case "disconnect":
		if uc != nil {
			uc.close("disconnect requested")
		}
	case "delim":
		if len(args) < 1 {
			dc.sendServiceNotice("Usage: delim <nick>")
			return
		}
		u := s.world.userByNick(args[0])
		if u == nil {
			dc.sendServiceNotice("No such nick: " + args[0])
			return
		}
		s.sendToUser(uc, u, strings.Repeat("-", 40))
	case "debug_dump_state":
		s.dumpState(dc)
	case "debug_dump":
		on := !s.debugEnabled()
		if len(args) > 0 {
			on = args[0] == "1"
		}
		s.setDebug(on)
		if on {
			dc.sendServiceNotice("Wire-level logging enabled")
		} else {
			dc.sendServiceNotice("Wire-level logging disabled")
		}
	default:
		dc.sendServiceNotice("Unknown command: " + cmd)
	}
}

// serviceChannelArg resolves the single channel-name argument of a service
// command, with or without the '#' prefix.
func (s *Server) serviceChannelArg(dc *downstreamConn, args []string) *channel {
	if len(args) < 1 {
		dc.sendServiceNotice("Missing channel name")
		return nil
	}
	name := strings.TrimPrefix(args[0], "#")
	c := s.world.channelByName(name)
	if c == nil {
		dc.sendServiceNotice("No such channel: " + args[0])
		return nil
	}
	return c
}

// catFile fetches a file's content and replays it to the requesting client
// as NOTICEs between BEGIN/END delimiters. Files over the inline limit are
// refused.
func (s *Server) catFile(dc *downstreamConn, uc *upstreamSession, fileID string) {
	if uc == nil {
		return
	}
	go func() {
		file, err := uc.client.FilesInfo(fileID)
		var data []byte
		if err == nil {
			if file.Size > fileInlineMax {
				err = errors.Errorf("file is too large (%d bytes)", file.Size)
			} else {
				data, err = uc.client.FetchFile(file)
			}
		}
		s.events <- eventUpstreamCallback{uc, func() {
			if dc.isClosed() {
				return
			}
			if err != nil {
				dc.sendServiceNotice(fmt.Sprintf("Could not fetch %s: %v", fileID, err))
				return
			}
			dc.sendServiceNotice("---- BEGIN " + fileID + " ----")
			for _, line := range strings.Split(string(data), "\n") {
				for len(line) > serviceNoticeChunk {
					dc.sendServiceNotice(line[:serviceNoticeChunk])
					line = line[serviceNoticeChunk:]
				}
				dc.sendServiceNotice(line)
			}
			dc.sendServiceNotice("---- END " + fileID + " ----")
		}}
	}()
}

// dumpState reports a world summary to the requesting client.
func (s *Server) dumpState(dc *downstreamConn) {
	w := s.world
	dc.sendServiceNotice(fmt.Sprintf("session live: %v, users: %d, channels: %d, clients: %d",
		s.connected, len(w.users), len(w.channels), len(s.downstreamConns)))
	for _, c := range w.allChannels() {
		kind := "public"
		if c.kind == channelGroup {
			kind = "group"
		}
		dc.sendServiceNotice(fmt.Sprintf("#%s (%s, %s): %d members, topic %q",
			c.name, sanitizeArg(c.id), kind, len(c.members), c.topic))
	}
	for _, u := range w.allUsers() {
		state := "active"
		if u.away {
			state = "away"
		}
		if u.stub {
			state += ", stub"
		}
		dm := u.dmID
		if dm == "" && u.dmPending {
			dm = "pending"
		}
		if dm == "" {
			dm = "-"
		}
		dc.sendServiceNotice(fmt.Sprintf("%s (%s): %s, dm %s, %d queued",
			u.nick, sanitizeArg(u.id), state, dm, len(u.txQueue)))
	}
}
