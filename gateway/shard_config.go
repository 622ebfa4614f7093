package gateway

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/raxon/discordeno/discord"
)

// PrimaryGatewayURL is Discord's main gateway endpoint. Query parameters
// are only appended for this endpoint; proxy gateways receive the URL
// unmodified.
const PrimaryGatewayURL = "wss://gateway.discord.gg"

// APIVersion is the gateway protocol version this library speaks.
const APIVersion = 10

// Config describes one shard's connection. Immutable after construction.
type Config struct {
	// URL is the gateway endpoint, defaulting to PrimaryGatewayURL.
	URL string
	// Version is the gateway API version, defaulting to APIVersion.
	Version int
	// Token authenticates the shard. Sent as "Bot <token>".
	Token string
	// Intents selects which event groups the session receives.
	Intents discord.Intents
	// Compress asks the gateway for zlib-compressed payloads.
	Compress bool
	// TotalShards is the size of the shard set this shard belongs to.
	TotalShards int
	// Properties describe the connecting client in the Identify payload.
	Properties discord.IdentifyProperties

	// MakePresence, when set, supplies the presence carried by each
	// Identify.
	MakePresence func() *discord.StatusUpdate
	// RequestIdentify gates Identify payloads. A multi-shard manager uses
	// it to enforce the cluster identify rate; the shard itself does not.
	RequestIdentify func(ctx context.Context, shardID int) error
	// Dial opens gateway sockets. Defaults to WebSocketDialer(nil).
	Dial Dialer
	// Decompress inflates binary frames. Defaults to zlib when Compress is
	// set.
	Decompress func(data []byte) ([]byte, error)

	// CacheRequestMembers makes RequestMembers collect and return the
	// chunked responses correlated by nonce.
	CacheRequestMembers bool

	// MaxRequestsPerRateLimitTick is the gateway command budget per window.
	MaxRequestsPerRateLimitTick int
	// RateLimitRefillInterval is the command budget window.
	RateLimitRefillInterval time.Duration

	Events Events
	Logger *slog.Logger
	Clock  clock.Clock
	Rand   func() float64
}

// DefaultConfig returns a config with the gateway defaults applied.
func DefaultConfig() *Config {
	return &Config{
		URL:                         PrimaryGatewayURL,
		Version:                     APIVersion,
		TotalShards:                 1,
		Properties:                  discord.IdentifyProperties{OS: "linux", Browser: "discordeno", Device: "discordeno"},
		MaxRequestsPerRateLimitTick: 120,
		RateLimitRefillInterval:     60 * time.Second,
		Logger:                      slog.Default(),
		Clock:                       clock.New(),
		Rand:                        rand.Float64,
	}
}

// ConfigOpt mutates a Config during construction.
type ConfigOpt func(config *Config)

// Apply applies opts in order.
func (c *Config) Apply(opts []ConfigOpt) {
	for _, opt := range opts {
		opt(c)
	}
}

func WithURL(url string) ConfigOpt {
	return func(config *Config) {
		config.URL = url
	}
}

func WithVersion(version int) ConfigOpt {
	return func(config *Config) {
		config.Version = version
	}
}

func WithCompress(compress bool) ConfigOpt {
	return func(config *Config) {
		config.Compress = compress
	}
}

func WithTotalShards(totalShards int) ConfigOpt {
	return func(config *Config) {
		config.TotalShards = totalShards
	}
}

func WithProperties(properties discord.IdentifyProperties) ConfigOpt {
	return func(config *Config) {
		config.Properties = properties
	}
}

func WithMakePresence(makePresence func() *discord.StatusUpdate) ConfigOpt {
	return func(config *Config) {
		config.MakePresence = makePresence
	}
}

func WithRequestIdentify(requestIdentify func(ctx context.Context, shardID int) error) ConfigOpt {
	return func(config *Config) {
		config.RequestIdentify = requestIdentify
	}
}

func WithDialer(dial Dialer) ConfigOpt {
	return func(config *Config) {
		config.Dial = dial
	}
}

func WithCacheRequestMembers(enabled bool) ConfigOpt {
	return func(config *Config) {
		config.CacheRequestMembers = enabled
	}
}

func WithEvents(events Events) ConfigOpt {
	return func(config *Config) {
		config.Events = events
	}
}

func WithLogger(logger *slog.Logger) ConfigOpt {
	return func(config *Config) {
		config.Logger = logger
	}
}

func WithClock(c clock.Clock) ConfigOpt {
	return func(config *Config) {
		config.Clock = c
	}
}

func WithRand(random func() float64) ConfigOpt {
	return func(config *Config) {
		config.Rand = random
	}
}
