package slirc

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vkareh/slirc/slack"
)

// checkWorldInvariants verifies bidirectional membership and that every
// secondary index is an exact inverse of the primary table.
func checkWorldInvariants(t *testing.T, w *world) {
	t.Helper()

	for id, u := range w.users {
		require.Equal(t, id, u.id)
		require.NotEqual(t, ircFold(serviceNick), ircFold(u.nick))
		require.Same(t, u, w.usersByName[ircFold(u.nick)])
		for cid := range u.channels {
			c := w.channels[cid]
			require.NotNil(t, c, "user %s references unknown channel %s", u.id, cid)
			_, ok := c.members[u.id]
			require.True(t, ok, "membership link %s -> %s not bidirectional", u.id, cid)
		}
		if u.dmID != "" {
			require.Same(t, u, w.usersByDM[u.dmID])
		}
	}
	require.Len(t, w.usersByName, len(w.users))

	for id, c := range w.channels {
		require.Equal(t, id, c.id)
		require.Same(t, c, w.channelsByName[ircFold(c.name)])
		for uid := range c.members {
			u := w.users[uid]
			require.NotNil(t, u, "channel %s references unknown user %s", c.id, uid)
			_, ok := u.channels[c.id]
			require.True(t, ok, "membership link %s -> %s not bidirectional", c.id, uid)
		}
	}
	require.Len(t, w.channelsByName, len(w.channels))

	dms := 0
	for _, u := range w.users {
		if u.dmID != "" {
			dms++
		}
	}
	require.Len(t, w.usersByDM, dms)
}

func TestWorldRandomizedInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	w := newWorld()
	w.selfID = "U0"
	w.updateUser(slack.User{ID: "U0", Name: "self"})

	userIDs := []string{"U0", "U1", "U2", "U3", "U4", "U5"}
	userNames := []string{"self", "alice", "bob", "x", "FOO{", "foo["}
	chanIDs := []string{"C1", "C2", "C3", "G1", "G2"}
	chanNames := []string{"general", "dev", "general", "private", "Dev"}

	randomUser := func() *user {
		ids := make([]string, 0, len(w.users))
		for id := range w.users {
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil
		}
		return w.users[ids[rng.Intn(len(ids))]]
	}
	randomChannel := func() *channel {
		ids := make([]string, 0, len(w.channels))
		for id := range w.channels {
			ids = append(ids, id)
		}
		if len(ids) == 0 {
			return nil
		}
		return w.channels[ids[rng.Intn(len(ids))]]
	}

	for i := 0; i < 3000; i++ {
		switch rng.Intn(9) {
		case 0:
			n := rng.Intn(len(userIDs))
			w.updateUser(slack.User{
				ID:       userIDs[n],
				Name:     userNames[rng.Intn(len(userNames))],
				Presence: []string{"active", "away"}[rng.Intn(2)],
			})
		case 1:
			w.stubUser(userIDs[rng.Intn(len(userIDs))])
		case 2:
			n := rng.Intn(len(chanIDs))
			members := []string{}
			for _, id := range userIDs {
				if rng.Intn(2) == 0 {
					members = append(members, id)
				}
			}
			kind := channelPublic
			if chanIDs[n][0] == 'G' {
				kind = channelGroup
			}
			w.updateChannel(kind, slack.Channel{
				ID:      chanIDs[n],
				Name:    chanNames[n],
				IsOpen:  rng.Intn(2) == 0,
				Members: members,
			})
		case 3:
			if c, u := randomChannel(), randomUser(); c != nil && u != nil {
				w.join(c, u)
			}
		case 4:
			if c, u := randomChannel(), randomUser(); c != nil && u != nil {
				w.part(c, u)
			}
		case 5:
			if u := randomUser(); u != nil {
				w.bindDM(u, "D_"+u.id)
			}
		case 6:
			if u := randomUser(); u != nil {
				w.unbindDM(u)
			}
		case 7:
			if c := randomChannel(); c != nil {
				w.deleteChannel(c)
			}
		case 8:
			if u := randomUser(); u != nil {
				w.setNick(u, userNames[rng.Intn(len(userNames))])
			}
		}
		checkWorldInvariants(t, w)
	}

	w.reset()
	assert.Empty(t, w.users)
	assert.Empty(t, w.usersByName)
	assert.Empty(t, w.usersByDM)
	assert.Empty(t, w.channels)
	assert.Empty(t, w.channelsByName)
	assert.Empty(t, w.selfID)
}

func TestUpdateUserRename(t *testing.T) {
	w := newWorld()
	u, oldNick, created := w.updateUser(slack.User{ID: "U1", Name: "alice"})
	require.True(t, created)
	require.Empty(t, oldNick)
	require.Equal(t, "alice", u.nick)

	u2, oldNick, created := w.updateUser(slack.User{ID: "U1", Name: "alicia"})
	require.Same(t, u, u2)
	require.False(t, created)
	assert.Equal(t, "alice", oldNick)
	assert.Equal(t, "alicia", u.nick)
	assert.Nil(t, w.userByNick("alice"))
	assert.Same(t, u, w.userByNick("alicia"))
}

func TestUpdateUserRealnameFallback(t *testing.T) {
	w := newWorld()
	u, _, _ := w.updateUser(slack.User{ID: "U1", Name: "alice"})
	assert.Equal(t, "alice", u.realname)

	u, _, _ = w.updateUser(slack.User{
		ID:      "U2",
		Name:    "bob",
		Profile: slack.Profile{RealName: "Bob P."},
	})
	assert.Equal(t, "Bob P.", u.realname)

	u, _, _ = w.updateUser(slack.User{ID: "U3", Name: "carol", RealName: "Carol"})
	assert.Equal(t, "Carol", u.realname)
}

func TestStubUserThenResolve(t *testing.T) {
	w := newWorld()
	stub := w.stubUser("U_NEW")
	require.True(t, stub.stub)
	assert.Equal(t, "U_NEW", stub.nick)

	u, oldNick, created := w.updateUser(slack.User{ID: "U_NEW", Name: "dave"})
	require.Same(t, stub, u)
	assert.False(t, created)
	assert.False(t, u.stub)
	assert.Equal(t, "U_NEW", oldNick)
	assert.Equal(t, "dave", u.nick)
}

func TestUpdateChannelStubsUnknownMembers(t *testing.T) {
	w := newWorld()
	c, created, stubbed := w.updateChannel(channelPublic, slack.Channel{
		ID:      "C1",
		Name:    "general",
		Members: []string{"U1", "U2"},
	})
	require.True(t, created)
	assert.ElementsMatch(t, []string{"U1", "U2"}, stubbed)
	assert.Len(t, c.members, 2)
	assert.True(t, w.userByID("U1").stub)
}

func TestClosedGroupExcludesSelf(t *testing.T) {
	w := newWorld()
	w.selfID = "U1"
	w.updateUser(slack.User{ID: "U1", Name: "alice"})

	c, _, _ := w.updateChannel(channelGroup, slack.Channel{
		ID:      "G1",
		Name:    "private",
		IsOpen:  false,
		Members: []string{"U1", "U2"},
	})
	assert.Equal(t, "+private", c.name)
	_, member := c.members["U1"]
	assert.False(t, member, "closed group must not count as joined")
	_, member = c.members["U2"]
	assert.True(t, member)
}

func TestChannelNameStableAcrossUpdates(t *testing.T) {
	w := newWorld()
	c1, _, _ := w.updateChannel(channelPublic, slack.Channel{ID: "C1", Name: "general"})
	require.Equal(t, "general", c1.name)

	// A second channel with a colliding name gets a suffix.
	c2, _, _ := w.updateChannel(channelPublic, slack.Channel{ID: "C2", Name: "General"})
	assert.Equal(t, "General1", c2.name)

	// Re-applying a snapshot must not re-arbitrate the name.
	c1again, created, _ := w.updateChannel(channelPublic, slack.Channel{ID: "C1", Name: "general"})
	require.Same(t, c1, c1again)
	assert.False(t, created)
	assert.Equal(t, "general", c1.name)
}

func TestDeleteChannelUnlinksMembers(t *testing.T) {
	w := newWorld()
	c, _, _ := w.updateChannel(channelPublic, slack.Channel{
		ID:      "C1",
		Name:    "general",
		Members: []string{"U1"},
	})
	u := w.userByID("U1")
	require.Contains(t, u.channels, "C1")

	w.deleteChannel(c)
	assert.NotContains(t, u.channels, "C1")
	assert.Nil(t, w.channelByID("C1"))
	assert.Nil(t, w.channelByName("general"))
}
