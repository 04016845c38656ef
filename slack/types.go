package slack

import (
	"encoding/json"
)

// Self describes the identity the RTM session was opened with.
type Self struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ManualPresence string `json:"manual_presence"`
}

type Profile struct {
	RealName string `json:"real_name"`
}

type User struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	RealName string  `json:"real_name"`
	Presence string  `json:"presence"`
	Deleted  bool    `json:"deleted"`
	IsBot    bool    `json:"is_bot"`
	Profile  Profile `json:"profile"`
}

type Bot struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Deleted bool   `json:"deleted"`
}

type Topic struct {
	Value string `json:"value"`
}

// Channel describes both public channels and private groups; the two API
// namespaces return the same shape, groups additionally carrying is_open.
type Channel struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	IsArchived bool     `json:"is_archived"`
	IsMember   bool     `json:"is_member"`
	IsOpen     bool     `json:"is_open"`
	Topic      Topic    `json:"topic"`
	Members    []string `json:"members"`
}

type IM struct {
	ID     string `json:"id"`
	User   string `json:"user"`
	IsOpen bool   `json:"is_open"`
}

// StartResponse is the bootstrap snapshot returned by rtm.start.
type StartResponse struct {
	URL      string    `json:"url"`
	Self     Self      `json:"self"`
	Users    []User    `json:"users"`
	Channels []Channel `json:"channels"`
	Groups   []Channel `json:"groups"`
	IMs      []IM      `json:"ims"`
	Bots     []Bot     `json:"bots"`
}

type Attachment struct {
	Title     string `json:"title"`
	Text      string `json:"text"`
	TitleLink string `json:"title_link"`
}

type File struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Size       int    `json:"size"`
	Mimetype   string `json:"mimetype"`
	URLPrivate string `json:"url_private"`
}

type Comment struct {
	User string `json:"user"`
}

// Event is a single frame read from the RTM stream. Only the type tag is
// decoded eagerly; the payload is decoded on demand into the struct matching
// the type.
type Event struct {
	Type string `json:"type"`

	raw json.RawMessage
}

func ParseEvent(data []byte) (*Event, error) {
	ev := &Event{raw: append(json.RawMessage(nil), data...)}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Decode unmarshals the full frame into v.
func (ev *Event) Decode(v interface{}) error {
	return json.Unmarshal(ev.raw, v)
}

type PresenceChangeEvent struct {
	User     string `json:"user"`
	Presence string `json:"presence"`
}

// IMOpenEvent is the payload of im_open and im_close: the DM channel id and
// the user at the other end.
type IMOpenEvent struct {
	User    string `json:"user"`
	Channel string `json:"channel"`
}

// ChannelInfoEvent is the payload of channel_joined and group_joined, which
// carry the full channel object.
type ChannelInfoEvent struct {
	Channel Channel `json:"channel"`
}

// ChannelIDEvent is the payload of channel_left, group_left, channel_archive
// and group_archive, which carry only the channel id.
type ChannelIDEvent struct {
	Channel string `json:"channel"`
}

type MemberEvent struct {
	User    string `json:"user"`
	Channel string `json:"channel"`
}

type MessageEvent struct {
	Channel     string       `json:"channel"`
	User        string       `json:"user"`
	BotID       string       `json:"bot_id"`
	Text        string       `json:"text"`
	TS          string       `json:"ts"`
	Subtype     string       `json:"subtype"`
	Topic       string       `json:"topic"`
	Comment     *Comment     `json:"comment"`
	File        *File        `json:"file"`
	Attachments []Attachment `json:"attachments"`
}

type UserChangeEvent struct {
	User User `json:"user"`
}

type PongEvent struct {
	ReplyTo uint64 `json:"reply_to"`
}

type ErrorEvent struct {
	Error struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}
