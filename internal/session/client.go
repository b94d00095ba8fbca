package session

import (
	"context"
	"io"
	"net/http"
)

// tokenSource is the Manager surface the Client needs: the current access
// token and a (coalesced) refresh. A refresh that ends the session is the
// token source's business to announce; the Client never reports it.
type tokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) error
}

// Client decorates an http.Client with bearer-token attachment and one
// transparent refresh-and-retry when a request comes back 401. The Client
// never retries a request more than once.
type Client struct {
	http   *http.Client
	tokens tokenSource
}

// NewClient builds a Client.
func NewClient(httpClient *http.Client, tokens tokenSource) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, tokens: tokens}
}

// Do sends the request with the current access token. On a 401 it refreshes
// once and replays the request with the new token; if the refresh fails the
// original 401 response is returned as-is. Requests built without a
// replayable body are not retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	attempt := req
	if token := c.tokens.AccessToken(); token != "" {
		attempt = req.Clone(req.Context())
		attempt.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(attempt)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	retry, ok := c.rebuild(req)
	if !ok {
		return resp, nil
	}

	if err := c.tokens.Refresh(req.Context()); err != nil {
		return resp, nil
	}

	drain(resp)
	if token := c.tokens.AccessToken(); token != "" {
		retry.Header.Set("Authorization", "Bearer "+token)
	}
	return c.http.Do(retry)
}

// rebuild clones the request with a fresh body for the single retry.
func (c *Client) rebuild(req *http.Request) (*http.Request, bool) {
	retry := req.Clone(req.Context())
	if req.Body == nil {
		return retry, true
	}
	if req.GetBody == nil {
		return nil, false
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, false
	}
	retry.Body = body
	return retry, true
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()
}
