package discord

import (
	"encoding/json"
)

// Snowflake is a Discord entity id.
type Snowflake string

// Event is a raw gateway packet. D is left undecoded until the op/t switch
// knows what to decode it into. S is a pointer because the gateway
// distinguishes a missing sequence from sequence zero.
type Event struct {
	Op int             `json:"op"`
	S  *int64          `json:"s"`
	T  string          `json:"t"`
	D  json.RawMessage `json:"d"`
}

type Hello struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type Ready struct {
	V                int       `json:"v"`
	User             User      `json:"user"`
	SessionID        string    `json:"session_id"`
	ResumeGatewayURL string    `json:"resume_gateway_url"`
	Shard            []int     `json:"shard,omitempty"`
}

type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator string    `json:"discriminator"`
	Bot           bool      `json:"bot,omitempty"`
}

type Member struct {
	User     *User       `json:"user,omitempty"`
	Nick     string      `json:"nick,omitempty"`
	Roles    []Snowflake `json:"roles"`
	JoinedAt string      `json:"joined_at"`
	Deaf     bool        `json:"deaf"`
	Mute     bool        `json:"mute"`
	Pending  bool        `json:"pending,omitempty"`
}

type GuildMembersChunk struct {
	GuildID    Snowflake        `json:"guild_id"`
	Members    []Member         `json:"members"`
	ChunkIndex int              `json:"chunk_index"`
	ChunkCount int              `json:"chunk_count"`
	NotFound   []Snowflake      `json:"not_found,omitempty"`
	Presences  []json.RawMessage `json:"presences,omitempty"`
	Nonce      string           `json:"nonce,omitempty"`
}

// Activity is the subset of the presence activity object a bot can send.
type Activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
	URL  string `json:"url,omitempty"`
}

// StatusUpdate is the payload of a presence update and of the presence
// field of an Identify.
type StatusUpdate struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}
