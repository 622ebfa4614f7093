package discord

// Close codes sent by the gateway when it tears down a connection.
// https://discord.com/developers/docs/topics/opcodes-and-status-codes#gateway-gateway-close-event-codes
const (
	CloseUnknownError         = 4000
	CloseUnknownOpcode        = 4001
	CloseDecodeError          = 4002
	CloseNotAuthenticated     = 4003
	CloseAuthenticationFailed = 4004
	CloseAlreadyAuthenticated = 4005
	CloseInvalidSeq           = 4007
	CloseRateLimited          = 4008
	CloseSessionTimedOut      = 4009
	CloseInvalidShard         = 4010
	CloseShardingRequired     = 4011
	CloseInvalidAPIVersion    = 4012
	CloseInvalidIntents       = 4013
	CloseDisallowedIntents    = 4014
)

// Close codes a shard uses when it closes its own socket. They live in the
// 3xxx range so they can never collide with codes the gateway sends.
const (
	ShardShutdown                   = 3000
	ShardZombiedConnection          = 3010
	ShardResumeClosingOldConnection = 3024
	ShardTestingFinished            = 3064
	ShardResharded                  = 3065
	ShardReIdentifying              = 3066
)
