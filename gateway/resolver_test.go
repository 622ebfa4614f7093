package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRendezvousResolveOnce(t *testing.T) {
	r := newRendezvous()

	ch := r.waiter(resolveReady)
	require.True(t, r.resolve(resolveReady, nil))
	assert.NoError(t, <-ch)

	// The waiter was removed on resolution.
	assert.False(t, r.resolve(resolveReady, nil))
}

func TestRendezvousResolveWithoutWaiter(t *testing.T) {
	r := newRendezvous()
	assert.False(t, r.resolve(resolveResumed, nil))
}

func TestRendezvousSupersede(t *testing.T) {
	r := newRendezvous()

	first := r.waiter(resolveReady)
	second := r.waiter(resolveReady)

	// The older attempt is settled immediately so it can never hang.
	assert.ErrorIs(t, <-first, errSuperseded)

	require.True(t, r.resolve(resolveReady, nil))
	assert.NoError(t, <-second)
}

func TestRendezvousFailAll(t *testing.T) {
	r := newRendezvous()

	ready := r.waiter(resolveReady)
	invalid := r.waiter(resolveInvalidSession)

	fatal := &ProtocolFatalError{Code: 4014, Reason: "disallowed intents"}
	r.failAll(fatal)

	assert.ErrorIs(t, <-ready, fatal)
	assert.ErrorIs(t, <-invalid, fatal)
}
