// Package gateway implements a Discord gateway shard: one persistent,
// duplex connection that receives the ordered event stream and transmits a
// small, rate-limited set of control commands.
//
// A Shard identifies itself with credentials, maintains liveness through
// the negotiated heartbeat protocol, preserves sequence continuity across
// transient disconnects by resuming, re-authenticates from scratch when the
// session becomes irrecoverable, and exposes a narrow send interface with
// priority queueing and leaky-bucket admission control.
package gateway
