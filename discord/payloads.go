package discord

// IdentifyProperties describes the connecting client to the gateway.
type IdentifyProperties struct {
	OS      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type Identify struct {
	Token      string             `json:"token"`
	Properties IdentifyProperties `json:"properties"`
	Compress   bool               `json:"compress"`
	Intents    Intents            `json:"intents"`
	Shard      [2]int             `json:"shard"`
	Presence   *StatusUpdate      `json:"presence,omitempty"`
}

type Resume struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type VoiceStateUpdate struct {
	GuildID   Snowflake  `json:"guild_id"`
	ChannelID *Snowflake `json:"channel_id"`
	SelfMute  bool       `json:"self_mute"`
	SelfDeaf  bool       `json:"self_deaf"`
}

type RequestGuildMembers struct {
	GuildID   Snowflake `json:"guild_id"`
	Query     *string   `json:"query,omitempty"`
	Limit     int       `json:"limit"`
	Presences bool      `json:"presences,omitempty"`
	UserIDs   []Snowflake `json:"user_ids,omitempty"`
	Nonce     string    `json:"nonce,omitempty"`
}

// IdentifyCommand and friends wrap a d payload with its opcode for the wire.
type IdentifyCommand struct {
	Op int      `json:"op"`
	D  Identify `json:"d"`
}

type ResumeCommand struct {
	Op int    `json:"op"`
	D  Resume `json:"d"`
}

type HeartbeatCommand struct {
	Op int    `json:"op"`
	D  *int64 `json:"d"`
}

type StatusUpdateCommand struct {
	Op int          `json:"op"`
	D  StatusUpdate `json:"d"`
}

type VoiceStateUpdateCommand struct {
	Op int              `json:"op"`
	D  VoiceStateUpdate `json:"d"`
}

type RequestGuildMembersCommand struct {
	Op int                 `json:"op"`
	D  RequestGuildMembers `json:"d"`
}
