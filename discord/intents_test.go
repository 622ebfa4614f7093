package discord

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIntentsHas(t *testing.T) {
	intents := IntentGuilds | IntentGuildMessages

	assert.True(t, intents.Has(IntentGuilds))
	assert.True(t, intents.Has(IntentGuilds|IntentGuildMessages))
	assert.False(t, intents.Has(IntentGuildMembers))
	assert.False(t, intents.Has(IntentGuilds|IntentGuildMembers))
}

func TestIntentValues(t *testing.T) {
	assert.Equal(t, Intents(1), IntentGuilds)
	assert.Equal(t, Intents(2), IntentGuildMembers)
	assert.Equal(t, Intents(512), IntentGuildMessages)
	assert.Equal(t, Intents(1<<15), IntentMessageContent)
}
