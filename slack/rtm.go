package slack

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// RTM is the persistent duplex event stream. Reads are owned by a single
// pump goroutine; writes take a mutex and carry a monotonically increasing
// frame id as the protocol requires.
type RTM struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	nextID  uint64
}

// DialRTM connects to the websocket URL returned by rtm.start.
func DialRTM(url string) (*RTM, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to dial RTM stream")
	}
	return &RTM{conn: conn}, nil
}

// ReadRaw blocks until the next frame arrives and returns its payload.
// Decoding is left to the caller so one malformed frame need not kill the
// stream.
func (r *RTM) ReadRaw() ([]byte, error) {
	_, data, err := r.conn.ReadMessage()
	return data, err
}

type messageFrame struct {
	ID      uint64 `json:"id"`
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type pingFrame struct {
	ID   uint64 `json:"id"`
	Type string `json:"type"`
}

// SendMessage posts a message frame to a channel (or DM conduit) id.
func (r *RTM) SendMessage(channel, text string) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.nextID++
	return r.conn.WriteJSON(messageFrame{
		ID:      r.nextID,
		Type:    "message",
		Channel: channel,
		Text:    text,
	})
}

// Ping sends an application-level ping frame; the service answers with a
// pong event on the stream.
func (r *RTM) Ping() error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	r.nextID++
	return r.conn.WriteJSON(pingFrame{ID: r.nextID, Type: "ping"})
}

func (r *RTM) Close() error {
	return r.conn.Close()
}
