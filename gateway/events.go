package gateway

import (
	"github.com/raxon/discordeno/discord"
)

// Message is an inbound packet as handed to the Message callback. D has
// been normalized to camelCase keys.
type Message struct {
	Op int
	S  *int64
	T  string
	D  any
}

// Events holds the optional callbacks a shard invokes during its lifecycle.
// All callbacks run synchronously on the goroutine that produced the event,
// so they must not block on shard operations that need further packets.
type Events struct {
	Connecting         func(shard *Shard)
	Connected          func(shard *Shard)
	Identifying        func(shard *Shard)
	Identified         func(shard *Shard)
	Disconnected       func(shard *Shard)
	Hello              func(shard *Shard, hello discord.Hello)
	Heartbeat          func(shard *Shard)
	HeartbeatAck       func(shard *Shard)
	RequestedReconnect func(shard *Shard)
	InvalidSession     func(shard *Shard, resumable bool)
	Resumed            func(shard *Shard)
	Message            func(shard *Shard, message Message)
}
