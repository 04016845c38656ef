package slirc

import (
	"sort"

	"github.com/vkareh/slirc/slack"
)

type channelKind int

const (
	channelPublic channelKind = iota
	channelGroup
)

// apiNamespace is the method family prefix for the channel kind: the two
// kinds expose parallel API namespaces.
func (k channelKind) apiNamespace() string {
	if k == channelGroup {
		return "groups"
	}
	return "channels"
}

type user struct {
	id       string
	nick     string
	realname string
	away     bool
	stub     bool

	channels map[string]struct{}

	// DM conduit. dmID is empty while absent or pending; dmPending is set
	// between the im.open call and its open event. txQueue holds outbound
	// message bodies until the conduit is usable.
	dmID      string
	dmPending bool
	txQueue   []string
}

type channel struct {
	id    string
	name  string // without the '#' prefix; groups carry a leading '+'
	kind  channelKind
	topic string

	members map[string]struct{}
}

// world is the in-memory model of the upstream session: flat entity tables
// keyed by remote id, with fold-keyed name indices maintained in lockstep.
// It is only ever touched from the server event loop.
type world struct {
	users          map[string]*user
	usersByName    map[string]*user
	usersByDM      map[string]*user
	channels       map[string]*channel
	channelsByName map[string]*channel
	selfID         string
}

func newWorld() *world {
	w := &world{}
	w.reset()
	return w
}

// reset atomically discards all session state; used on teardown.
func (w *world) reset() {
	w.users = make(map[string]*user)
	w.usersByName = make(map[string]*user)
	w.usersByDM = make(map[string]*user)
	w.channels = make(map[string]*channel)
	w.channelsByName = make(map[string]*channel)
	w.selfID = ""
}

func (w *world) self() *user {
	if w.selfID == "" {
		return nil
	}
	return w.users[w.selfID]
}

func (w *world) userByID(id string) *user {
	return w.users[id]
}

func (w *world) userByNick(nick string) *user {
	return w.usersByName[ircFold(nick)]
}

func (w *world) userByDM(dmID string) *user {
	return w.usersByDM[dmID]
}

func (w *world) channelByID(id string) *channel {
	return w.channels[id]
}

func (w *world) channelByName(name string) *channel {
	return w.channelsByName[ircFold(name)]
}

func (w *world) nickTaken(folded string) bool {
	_, ok := w.usersByName[folded]
	return ok
}

func (w *world) channelNameTaken(folded string) bool {
	_, ok := w.channelsByName[folded]
	return ok
}

// setNick re-arbitrates a user's nick against the current map, the user's
// own entry excluded. It reports whether the visible nick changed.
func (w *world) setNick(u *user, proposed string) bool {
	if u.nick != "" {
		delete(w.usersByName, ircFold(u.nick))
	}
	nick := arbitrateName(proposed, w.nickTaken)
	changed := u.nick != "" && u.nick != nick
	u.nick = nick
	w.usersByName[ircFold(nick)] = u
	return changed
}

// updateUser applies a user snapshot. It returns the user, the previous
// nick when the visible nick changed, and whether the user was created.
func (w *world) updateUser(info slack.User) (u *user, oldNick string, created bool) {
	realname := info.RealName
	if realname == "" {
		realname = info.Profile.RealName
	}
	if realname == "" {
		realname = info.Name
	}

	u, ok := w.users[info.ID]
	if !ok {
		u = &user{
			id:       info.ID,
			channels: make(map[string]struct{}),
		}
		w.users[info.ID] = u
		created = true
	}
	prev := u.nick
	if w.setNick(u, info.Name) {
		oldNick = prev
	}
	u.realname = realname
	u.away = info.Presence == "away"
	u.stub = false
	return u, oldNick, created
}

// stubUser creates a placeholder for an id referenced before its snapshot
// arrived; the nick derives from the id until users.info fills it in.
func (w *world) stubUser(id string) *user {
	if u, ok := w.users[id]; ok {
		return u
	}
	u := &user{
		id:       id,
		stub:     true,
		channels: make(map[string]struct{}),
	}
	w.users[id] = u
	w.setNick(u, id)
	u.realname = id
	return u
}

// updateChannel applies a channel snapshot. Membership links are made
// bidirectional, creating stub users as needed; stubbed ids are returned so
// the caller can resolve them. The name is arbitrated only on creation so
// existing references stay stable.
func (w *world) updateChannel(kind channelKind, info slack.Channel) (c *channel, created bool, stubbed []string) {
	c, ok := w.channels[info.ID]
	if !ok {
		proposed := info.Name
		if kind == channelGroup {
			proposed = "+" + proposed
		}
		c = &channel{
			id:      info.ID,
			name:    arbitrateName(proposed, w.channelNameTaken),
			members: make(map[string]struct{}),
		}
		w.channels[info.ID] = c
		w.channelsByName[ircFold(c.name)] = c
		created = true
	}
	c.kind = kind
	c.topic = info.Topic.Value

	for _, id := range info.Members {
		if kind == channelGroup && !info.IsOpen && id == w.selfID {
			// A closed group is not a joined channel.
			continue
		}
		if _, ok := w.users[id]; !ok {
			w.stubUser(id)
			stubbed = append(stubbed, id)
		}
		w.join(c, w.users[id])
	}
	return c, created, stubbed
}

// join inserts the bidirectional membership link. It reports whether the
// state changed, so re-joins stay silent on the IRC side.
func (w *world) join(c *channel, u *user) bool {
	if _, ok := c.members[u.id]; ok {
		return false
	}
	c.members[u.id] = struct{}{}
	u.channels[c.id] = struct{}{}
	return true
}

func (w *world) part(c *channel, u *user) bool {
	if _, ok := c.members[u.id]; !ok {
		return false
	}
	delete(c.members, u.id)
	delete(u.channels, c.id)
	return true
}

func (w *world) deleteChannel(c *channel) {
	for id := range c.members {
		if u, ok := w.users[id]; ok {
			delete(u.channels, c.id)
		}
	}
	delete(w.channels, c.id)
	delete(w.channelsByName, ircFold(c.name))
}

func (w *world) bindDM(u *user, dmID string) {
	if u.dmID != "" {
		delete(w.usersByDM, u.dmID)
	}
	u.dmID = dmID
	u.dmPending = false
	w.usersByDM[dmID] = u
}

func (w *world) unbindDM(u *user) {
	if u.dmID != "" {
		delete(w.usersByDM, u.dmID)
	}
	u.dmID = ""
	u.dmPending = false
}

// memberUsers returns the channel's members sorted by nick for stable
// NAMES and WHO output.
func (w *world) memberUsers(c *channel) []*user {
	users := make([]*user, 0, len(c.members))
	for id := range c.members {
		if u, ok := w.users[id]; ok {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].nick < users[j].nick })
	return users
}

// allUsers returns every known user sorted by nick.
func (w *world) allUsers() []*user {
	users := make([]*user, 0, len(w.users))
	for _, u := range w.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].nick < users[j].nick })
	return users
}

// allChannels returns every known channel sorted by name for stable LIST
// output.
func (w *world) allChannels() []*channel {
	chs := make([]*channel, 0, len(w.channels))
	for _, c := range w.channels {
		chs = append(chs, c)
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i].name < chs[j].name })
	return chs
}

// selfChannels returns the channels the local identity is in, sorted by
// name for stable replay order.
func (w *world) selfChannels() []*channel {
	self := w.self()
	if self == nil {
		return nil
	}
	chs := make([]*channel, 0, len(self.channels))
	for id := range self.channels {
		if c, ok := w.channels[id]; ok {
			chs = append(chs, c)
		}
	}
	sort.Slice(chs, func(i, j int) bool { return chs[i].name < chs[j].name })
	return chs
}
