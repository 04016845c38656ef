package slirc

import (
	"strings"

	"gopkg.in/irc.v3"
)

// Not part of the RFC 2812 numerics named by gopkg.in/irc.v3.
const rpl_creationtime = "329"

type ircError struct {
	Message *irc.Message
}

func (err ircError) Error() string {
	return err.Message.String()
}

func newUnknownCommandError(cmd string) ircError {
	return ircError{&irc.Message{
		Command: irc.ERR_UNKNOWNCOMMAND,
		Params: []string{
			"*",
			cmd,
			"Unknown command",
		},
	}}
}

func newNeedMoreParamsError(cmd string) ircError {
	return ircError{&irc.Message{
		Command: irc.ERR_NEEDMOREPARAMS,
		Params: []string{
			"*",
			cmd,
			"Not enough parameters",
		},
	}}
}

func newNoSuchNickError(name string) ircError {
	return ircError{&irc.Message{
		Command: irc.ERR_NOSUCHNICK,
		Params:  []string{"*", name, "No such nick/channel"},
	}}
}

func newNoSuchChannelError(name string) ircError {
	return ircError{&irc.Message{
		Command: irc.ERR_NOSUCHCHANNEL,
		Params:  []string{"*", name, "No such channel"},
	}}
}

func parseMessageParams(msg *irc.Message, out ...*string) error {
	if len(msg.Params) < len(out) {
		return newNeedMoreParamsError(msg.Command)
	}
	for i := range out {
		if out[i] != nil {
			*out[i] = msg.Params[i]
		}
	}
	return nil
}

// ircFold is the canonical representation of a name under the rfc1459
// casemapping: lowercased ASCII with the bracket equivalences.
func ircFold(name string) string {
	nameBytes := []byte(name)
	for i, r := range nameBytes {
		if 'A' <= r && r <= 'Z' {
			nameBytes[i] = r + 'a' - 'A'
		} else if r == '{' {
			nameBytes[i] = '['
		} else if r == '}' {
			nameBytes[i] = ']'
		} else if r == '\\' {
			nameBytes[i] = '|'
		} else if r == '~' {
			nameBytes[i] = '^'
		}
	}
	return string(nameBytes)
}

func ircEqual(a, b string) bool {
	return ircFold(a) == ircFold(b)
}

// sanitizeTrailing makes free text safe as a trailing IRC argument.
func sanitizeTrailing(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\r', '\n', 0:
			return ' '
		}
		return r
	}, s)
}

// sanitizeArg makes a string safe as a middle IRC argument. Empty results
// are replaced with "*" so the parameter count stays intact.
func sanitizeArg(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\r', '\n', 0, ' ':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, ":")
	if s == "" {
		return "*"
	}
	return s
}
