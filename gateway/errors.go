package gateway

import (
	"errors"
	"fmt"
)

// ErrShardShutdown wakes every waiter (offline queue, bucket, rendezvous)
// that outlives a Shutdown call.
var ErrShardShutdown = errors.New("gateway: shard is shut down")

// errSuperseded settles a rendezvous waiter whose identify/resume attempt
// was replaced by a newer one.
var errSuperseded = errors.New("gateway: attempt superseded")

// ProtocolFatalError is returned from an in-flight Identify or Resume when
// the gateway closes with a code that cannot be recovered from. The shard
// goes Offline and does not reconnect on its own.
type ProtocolFatalError struct {
	Code   int
	Reason string
}

func (e *ProtocolFatalError) Error() string {
	return fmt.Sprintf("gateway: fatal close %d: %s", e.Code, e.Reason)
}

// MissingIntentError is returned before any socket traffic when a request
// needs an intent the shard was not configured with.
type MissingIntentError struct {
	Intent string
}

func (e *MissingIntentError) Error() string {
	return fmt.Sprintf("gateway: missing intent %s", e.Intent)
}
