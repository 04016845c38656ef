package slirc

import (
	"regexp"
	"strings"
)

// The wire format HTML-escapes &<>" and carries entity references as <@id>
// and <#id>. IRC users type and read <@nick> and <#name>; translation swaps
// the two representations using the world's indices, passing unknown
// references through unchanged.

var (
	outboundUserRef    = regexp.MustCompile(`&lt;@([^&]+)&gt;`)
	outboundChannelRef = regexp.MustCompile(`&lt;#([^&]+)&gt;`)
	inboundUserRef     = regexp.MustCompile(`<@([^>]+)>`)
	inboundChannelRef  = regexp.MustCompile(`<#([^>]+)>`)
)

var outboundEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

var inboundUnescaper = strings.NewReplacer(
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&amp;", "&",
)

// renderOutbound turns IRC message text into upstream wire text.
func renderOutbound(w *world, text string) string {
	text = outboundEscaper.Replace(text)
	text = outboundUserRef.ReplaceAllStringFunc(text, func(ref string) string {
		nick := outboundUserRef.FindStringSubmatch(ref)[1]
		if u := w.userByNick(nick); u != nil {
			return "<@" + u.id + ">"
		}
		return ref
	})
	text = outboundChannelRef.ReplaceAllStringFunc(text, func(ref string) string {
		name := outboundChannelRef.FindStringSubmatch(ref)[1]
		if c := w.channelByName(name); c != nil {
			return "<#" + c.id + ">"
		}
		return ref
	})
	return text
}

// renderInbound turns upstream wire text into IRC message text for one
// recipient. selfNick is that recipient's own nick, substituted for the
// local identity.
func renderInbound(w *world, selfNick, text string) string {
	text = inboundUserRef.ReplaceAllStringFunc(text, func(ref string) string {
		id := inboundUserRef.FindStringSubmatch(ref)[1]
		if id == w.selfID && selfNick != "" {
			return "<@" + selfNick + ">"
		}
		if u := w.userByID(id); u != nil {
			return "<@" + u.nick + ">"
		}
		return ref
	})
	text = inboundChannelRef.ReplaceAllStringFunc(text, func(ref string) string {
		id := inboundChannelRef.FindStringSubmatch(ref)[1]
		if c := w.channelByID(id); c != nil {
			return "<#" + c.name + ">"
		}
		return ref
	})
	return inboundUnescaper.Replace(text)
}
