// Package slack implements the subset of the Slack Web API and RTM protocol
// that the gateway needs: request/response method calls and the persistent
// event stream opened from an rtm.start bootstrap.
package slack

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

const defaultBaseURL = "https://slack.com/api/"

// Client is a Slack Web API client for a single token.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	token string
}

func NewClient(token string) *Client {
	return &Client{
		BaseURL:    defaultBaseURL,
		HTTPClient: &http.Client{Timeout: time.Minute},
		token:      token,
	}
}

// Response is the envelope every Web API method returns. Raw holds the full
// body so callers can decode method-specific fields.
type Response struct {
	OK  bool   `json:"ok"`
	Err string `json:"error"`

	Raw json.RawMessage
}

// Decode unmarshals the full response body into v.
func (r *Response) Decode(v interface{}) error {
	return json.Unmarshal(r.Raw, v)
}

// Call invokes a Web API method. A non-2xx status or an ok=false envelope is
// returned as an error alongside the decoded response.
func (c *Client) Call(method string, args url.Values) (*Response, error) {
	if args == nil {
		args = url.Values{}
	}
	args.Set("token", c.token)

	httpResp, err := c.HTTPClient.PostForm(c.BaseURL+method, args)
	if err != nil {
		return nil, errors.Wrapf(err, "%s failed", method)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: reading response", method)
	}
	if httpResp.StatusCode/100 != 2 {
		return nil, errors.Errorf("%s: HTTP %s", method, httpResp.Status)
	}

	resp := &Response{Raw: body}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, errors.Wrapf(err, "%s: malformed response", method)
	}
	if !resp.OK {
		return resp, errors.Errorf("%s: %s", method, resp.Err)
	}
	return resp, nil
}

// RTMStart performs the rtm.start handshake and returns the bootstrap
// snapshot, including the websocket URL of the event stream.
func (c *Client) RTMStart() (*StartResponse, error) {
	resp, err := c.Call("rtm.start", nil)
	if err != nil {
		return nil, err
	}
	var start StartResponse
	if err := resp.Decode(&start); err != nil {
		return nil, errors.Wrap(err, "rtm.start: malformed snapshot")
	}
	if start.URL == "" {
		return nil, errors.New("rtm.start: no stream URL in response")
	}
	return &start, nil
}

func (c *Client) FilesInfo(id string) (*File, error) {
	resp, err := c.Call("files.info", url.Values{"file": {id}})
	if err != nil {
		return nil, err
	}
	var body struct {
		File File `json:"file"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, errors.Wrap(err, "files.info: malformed response")
	}
	return &body.File, nil
}

// FetchFile downloads the private content of a file. The url_private
// endpoint is outside the Web API and authenticates with a bearer token.
func (c *Client) FetchFile(f *File) ([]byte, error) {
	if f.URLPrivate == "" {
		return nil, errors.Errorf("file %s has no content URL", f.ID)
	}
	req, err := http.NewRequest("GET", f.URLPrivate, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	httpResp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching file %s", f.ID)
	}
	defer httpResp.Body.Close()
	if httpResp.StatusCode/100 != 2 {
		return nil, errors.Errorf("fetching file %s: HTTP %s", f.ID, httpResp.Status)
	}
	return io.ReadAll(httpResp.Body)
}
