// Package rest is the HTTP side of the library. The gateway core does not
// limit or issue REST traffic itself; this client exists so callers can
// discover the gateway endpoint and recommended shard count before opening
// sockets.
package rest

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	defaultBaseURL = "https://discord.com/api/v10"
	userAgent      = "DiscordBot (github.com/raxon/discordeno, 1.0)"
)

// Client is a minimal fasthttp-backed Discord REST client.
type Client struct {
	client  *fasthttp.Client
	token   string
	baseURL string
}

// ClientOpt mutates a Client during construction.
type ClientOpt func(client *Client)

// WithBaseURL points the client at a different API base, e.g. a proxy.
func WithBaseURL(baseURL string) ClientOpt {
	return func(client *Client) {
		client.baseURL = baseURL
	}
}

// WithHTTPClient replaces the underlying fasthttp client.
func WithHTTPClient(httpClient *fasthttp.Client) ClientOpt {
	return func(client *Client) {
		client.client = httpClient
	}
}

// New creates a client authenticating as a bot with token.
func New(token string, opts ...ClientOpt) *Client {
	c := &Client{
		client:  &fasthttp.Client{},
		token:   token,
		baseURL: defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SessionStartLimit describes how many identifies the bot has left.
type SessionStartLimit struct {
	Total          int `json:"total"`
	Remaining      int `json:"remaining"`
	ResetAfter     int `json:"reset_after"`
	MaxConcurrency int `json:"max_concurrency"`
}

// GatewayBot is the response of GET /gateway/bot.
type GatewayBot struct {
	URL               string            `json:"url"`
	Shards            int               `json:"shards"`
	SessionStartLimit SessionStartLimit `json:"session_start_limit"`
}

// GetGatewayBot fetches the gateway endpoint and recommended shard count
// for the authenticated bot.
func (c *Client) GetGatewayBot() (*GatewayBot, error) {
	body, err := c.get("/gateway/bot")
	if err != nil {
		return nil, err
	}
	var gateway GatewayBot
	if err := json.Unmarshal(body, &gateway); err != nil {
		return nil, fmt.Errorf("rest: could not decode gateway response: %w", err)
	}
	return &gateway, nil
}

func (c *Client) get(path string) ([]byte, error) {
	request := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(request)
	response := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(response)

	request.Header.SetMethod(fasthttp.MethodGet)
	request.SetRequestURI(c.baseURL + path)
	request.Header.Set("Authorization", "Bot "+c.token)
	request.Header.Set("User-Agent", userAgent)
	request.Header.Set("Content-Type", "application/json")

	if err := c.client.Do(request, response); err != nil {
		return nil, fmt.Errorf("rest: GET %s: %w", path, err)
	}
	if code := response.StatusCode(); code != fasthttp.StatusOK {
		return nil, fmt.Errorf("rest: GET %s: unexpected status %d", path, code)
	}
	body := make([]byte, len(response.Body()))
	copy(body, response.Body())
	return body, nil
}
