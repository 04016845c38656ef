package slirc

import (
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gopkg.in/irc.v3"

	"github.com/vkareh/slirc/slack"
)

type apiCall struct {
	method string
	args   map[string]string
}

// testAPI serves Web API calls and records them. Responses are looked up by
// method name; unlisted methods answer {"ok":true}.
type testAPI struct {
	*httptest.Server

	mu      sync.Mutex
	respond map[string]string
	calls   []apiCall
}

func newTestAPI(t *testing.T, respond map[string]string) (*testAPI, func() []apiCall) {
	if respond == nil {
		respond = make(map[string]string)
	}
	api := &testAPI{respond: respond}
	api.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("malformed API request: %v", err)
		}
		method := strings.TrimPrefix(r.URL.Path, "/")
		args := make(map[string]string)
		for k := range r.PostForm {
			args[k] = r.PostForm.Get(k)
		}
		api.mu.Lock()
		api.calls = append(api.calls, apiCall{method, args})
		body, ok := api.respond[method]
		api.mu.Unlock()

		if ok {
			fmt.Fprint(w, body)
		} else {
			fmt.Fprint(w, `{"ok":true}`)
		}
	}))
	t.Cleanup(api.Close)

	return api, func() []apiCall {
		api.mu.Lock()
		defer api.mu.Unlock()
		return append([]apiCall(nil), api.calls...)
	}
}

func (api *testAPI) set(method, body string) {
	api.mu.Lock()
	api.respond[method] = body
	api.mu.Unlock()
}

// pumpCallback runs the next queued API completion on the test goroutine.
func pumpCallback(t *testing.T, srv *Server) {
	t.Helper()
	e, ok := (<-srv.events).(eventUpstreamCallback)
	require.True(t, ok, "expected an API completion event")
	e.f()
}

// attachReadyClient injects a welcomed client backed by a pipe and returns
// a channel of everything the server writes to it.
func attachReadyClient(t *testing.T, srv *Server, nick string) (*downstreamConn, <-chan *irc.Message) {
	c1, c2 := net.Pipe()
	dc := newDownstreamConn(srv, c1, srv.nextDownstreamID+1)
	dc.nick = nick
	dc.username = nick
	dc.authed = true
	dc.ready = true
	srv.downstreamConns = append(srv.downstreamConns, dc)
	t.Cleanup(func() { dc.Close() })

	client := irc.NewConn(c2)
	got := make(chan *irc.Message, 64)
	go func() {
		for {
			msg, err := client.ReadMessage()
			if err != nil {
				close(got)
				return
			}
			got <- msg
		}
	}()
	return dc, got
}

func TestDMQueueDrainsInOrder(t *testing.T) {
	srv := newPumpServer(t)
	uc := newTestSession(srv, "")
	w := srv.world
	w.selfID = "U1"
	w.updateUser(slack.User{ID: "U1", Name: "alice"})
	bob, _, _ := w.updateUser(slack.User{ID: "U_BOB", Name: "bob"})

	bob.txQueue = []string{"hi", "there"}
	bob.dmPending = true
	srv.dmOpened(uc, bob, "D1")

	assert.Equal(t, "D1", bob.dmID)
	assert.False(t, bob.dmPending)
	assert.Empty(t, bob.txQueue)
	assert.Same(t, bob, w.userByDM("D1"))

	frame := <-uc.outgoing
	assert.Equal(t, rtmFrame{channel: "D1", text: "hi"}, frame)
	frame = <-uc.outgoing
	assert.Equal(t, rtmFrame{channel: "D1", text: "there"}, frame)
	select {
	case frame := <-uc.outgoing:
		t.Fatalf("unexpected extra frame: %+v", frame)
	default:
	}
}

func TestSendToUserOpensConduitOnce(t *testing.T) {
	api, calls := newTestAPI(t, map[string]string{
		"im.open": `{"ok":true,"channel":{"id":"D9"}}`,
	})
	srv := newPumpServer(t)
	uc := newTestSession(srv, api.URL)
	srv.session = uc
	w := srv.world
	w.selfID = "U1"
	w.updateUser(slack.User{ID: "U1", Name: "alice"})
	bob, _, _ := w.updateUser(slack.User{ID: "U_BOB", Name: "bob"})

	srv.sendToUser(uc, bob, "hi")
	require.True(t, bob.dmPending)
	srv.sendToUser(uc, bob, "there")
	require.Equal(t, []string{"hi", "there"}, bob.txQueue)

	pumpCallback(t, srv)

	assert.Equal(t, "D9", bob.dmID)
	assert.Empty(t, bob.txQueue)
	assert.False(t, bob.dmPending)

	opens := 0
	for _, call := range calls() {
		if call.method == "im.open" {
			opens++
			assert.Equal(t, "U_BOB", call.args["user"])
		}
	}
	assert.Equal(t, 1, opens)

	frame := <-uc.outgoing
	assert.Equal(t, rtmFrame{channel: "D9", text: "hi"}, frame)
	frame = <-uc.outgoing
	assert.Equal(t, rtmFrame{channel: "D9", text: "there"}, frame)
}

func TestSendToUserOpenFailure(t *testing.T) {
	api, _ := newTestAPI(t, map[string]string{
		"im.open": `{"ok":false,"error":"user_not_found"}`,
	})
	srv := newPumpServer(t)
	uc := newTestSession(srv, api.URL)
	srv.session = uc
	w := srv.world
	w.selfID = "U1"
	w.updateUser(slack.User{ID: "U1", Name: "alice"})
	bob, _, _ := w.updateUser(slack.User{ID: "U_BOB", Name: "bob"})

	_, got := attachReadyClient(t, srv, "me")

	srv.sendToUser(uc, bob, "hi")
	pumpCallback(t, srv)

	assert.Empty(t, bob.txQueue)
	assert.False(t, bob.dmPending)
	assert.Empty(t, bob.dmID)

	msg := <-got
	require.Equal(t, "NOTICE", msg.Command)
	assert.Contains(t, msg.Params[1], "API error")
	assert.Contains(t, msg.Params[1], "user_not_found")

	msg = <-got
	require.Equal(t, "NOTICE", msg.Command)
	assert.Equal(t, "Could not send to bob: hi", msg.Params[1])
}

func TestMarkCoalescing(t *testing.T) {
	api, calls := newTestAPI(t, nil)
	srv := newPumpServer(t)
	uc := newTestSession(srv, api.URL)
	srv.session = uc
	w := srv.world
	c, _, _ := w.updateChannel(channelPublic, slack.Channel{ID: "C1", Name: "general"})

	srv.scheduleMark(uc, c, "1000.1")
	srv.scheduleMark(uc, c, "1000.2")
	require.Equal(t, map[string]string{"C1": "1000.2"}, uc.marks)
	require.NotNil(t, uc.markTimer)
	uc.markTimer.Stop()

	srv.flushMarks(uc)
	pumpCallback(t, srv)

	assert.Empty(t, uc.marks)
	assert.Nil(t, uc.markTimer)

	marked := []apiCall{}
	for _, call := range calls() {
		if call.method == "channels.mark" {
			marked = append(marked, call)
		}
	}
	require.Len(t, marked, 1)
	assert.Equal(t, "C1", marked[0].args["channel"])
	assert.Equal(t, "1000.2", marked[0].args["ts"])
}

func TestGroupMarkUsesGroupNamespace(t *testing.T) {
	api, calls := newTestAPI(t, nil)
	srv := newPumpServer(t)
	uc := newTestSession(srv, api.URL)
	srv.session = uc
	c, _, _ := srv.world.updateChannel(channelGroup, slack.Channel{ID: "G1", Name: "private", IsOpen: true})

	srv.scheduleMark(uc, c, "7.0")
	uc.markTimer.Stop()
	srv.flushMarks(uc)
	pumpCallback(t, srv)

	var methods []string
	for _, call := range calls() {
		methods = append(methods, call.method)
	}
	assert.Equal(t, []string{"groups.mark"}, methods)
}

// newFileShareWorld is the common fixture for inline file replay: a pump
// server with a live session, one channel, and one attached client.
func newFileShareWorld(t *testing.T, api *testAPI) (*Server, *upstreamSession, <-chan *irc.Message) {
	srv := newPumpServer(t)
	uc := newTestSession(srv, api.URL)
	srv.session = uc
	w := srv.world
	w.selfID = "U1"
	w.updateUser(slack.User{ID: "U1", Name: "alice"})
	w.updateUser(slack.User{ID: "U_BOB", Name: "bob"})
	w.updateChannel(channelPublic, slack.Channel{ID: "C1", Name: "general"})
	_, got := attachReadyClient(t, srv, "me")
	return srv, uc, got
}

func fileShareEvent(t *testing.T, size int, urlPrivate string) *slack.Event {
	t.Helper()
	return mustParseEvent(t, fmt.Sprintf(
		`{"type":"message","channel":"C1","user":"U_BOB","subtype":"file_share","text":"shared a file","file":{"id":"F1","size":%d,"url_private":%q}}`,
		size, urlPrivate))
}

func TestFileShareInlineAtLimit(t *testing.T) {
	content := strings.Repeat("a", fileInlineMax)
	api, _ := newTestAPI(t, nil)
	api.set("file-content", content)
	srv, uc, got := newFileShareWorld(t, api)

	srv.handleUpstreamEvent(uc, fileShareEvent(t, fileInlineMax, api.URL+"/file-content"))

	msg := <-got
	require.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, "\x02[file_share]\x02 shared a file", msg.Params[1])

	pumpCallback(t, srv)

	msg = <-got
	require.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, "bob", msg.Prefix.Name)
	assert.Equal(t, "#general", msg.Params[0])
	marker := "\x02[>F1]\x02 "
	require.True(t, strings.HasPrefix(msg.Params[1], marker), "missing file subtype marker: %.40q", msg.Params[1])
	assert.Equal(t, content, strings.TrimPrefix(msg.Params[1], marker))
}

func TestFileShareOversizeSuppressed(t *testing.T) {
	api, calls := newTestAPI(t, nil)
	srv, uc, got := newFileShareWorld(t, api)

	srv.handleUpstreamEvent(uc, fileShareEvent(t, fileInlineMax+1, "http://invalid/"))

	msg := <-got
	require.Equal(t, "PRIVMSG", msg.Command)
	assert.Equal(t, "\x02[file_share]\x02 shared a file", msg.Params[1])

	// The oversize file is never fetched and nothing further is emitted.
	assert.Empty(t, calls())
	select {
	case msg := <-got:
		t.Fatalf("unexpected message after oversize file: %v", msg)
	case e := <-srv.events:
		t.Fatalf("unexpected event after oversize file: %T", e)
	default:
	}
}

func TestFileShareOversizeContentSuppressed(t *testing.T) {
	// The reported size fits but the downloaded content does not; the
	// post-download check must still suppress the replay.
	api, _ := newTestAPI(t, nil)
	api.set("file-content", strings.Repeat("a", fileInlineMax+1))
	srv, uc, got := newFileShareWorld(t, api)

	srv.handleUpstreamEvent(uc, fileShareEvent(t, 1, api.URL+"/file-content"))

	<-got // the file_share body
	pumpCallback(t, srv)

	select {
	case msg := <-got:
		t.Fatalf("unexpected message for oversize content: %v", msg)
	default:
	}
}

func TestSessionCloseReasonFirstWins(t *testing.T) {
	srv := newPumpServer(t)
	uc := newTestSession(srv, "")

	uc.close("RTM ping timeout")
	uc.close("second reason")

	assert.True(t, uc.isClosed())
	assert.Equal(t, "RTM ping timeout", uc.reason())
}
