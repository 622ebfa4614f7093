package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raxon/discordeno/discord"
)

func TestClassifyClose(t *testing.T) {
	tests := []struct {
		name   string
		code   int
		action closeAction
	}{
		{"testing finished", discord.ShardTestingFinished, closeActionNone},
		{"shutdown", discord.ShardShutdown, closeActionGraceful},
		{"re-identifying", discord.ShardReIdentifying, closeActionGraceful},
		{"resharded", discord.ShardResharded, closeActionGraceful},
		{"resume closing old connection", discord.ShardResumeClosingOldConnection, closeActionGraceful},
		{"zombied", discord.ShardZombiedConnection, closeActionGraceful},
		{"unknown opcode", discord.CloseUnknownOpcode, closeActionReIdentify},
		{"not authenticated", discord.CloseNotAuthenticated, closeActionReIdentify},
		{"invalid seq", discord.CloseInvalidSeq, closeActionReIdentify},
		{"rate limited", discord.CloseRateLimited, closeActionReIdentify},
		{"session timed out", discord.CloseSessionTimedOut, closeActionReIdentify},
		{"authentication failed", discord.CloseAuthenticationFailed, closeActionFatal},
		{"invalid shard", discord.CloseInvalidShard, closeActionFatal},
		{"sharding required", discord.CloseShardingRequired, closeActionFatal},
		{"invalid api version", discord.CloseInvalidAPIVersion, closeActionFatal},
		{"invalid intents", discord.CloseInvalidIntents, closeActionFatal},
		{"disallowed intents", discord.CloseDisallowedIntents, closeActionFatal},
		{"unknown error", discord.CloseUnknownError, closeActionResume},
		{"decode error", discord.CloseDecodeError, closeActionResume},
		{"already authenticated", discord.CloseAlreadyAuthenticated, closeActionResume},
		{"transport failure", 0, closeActionResume},
		{"unrecognized code", 1006, closeActionResume},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.action, classifyClose(test.code))
		})
	}
}
