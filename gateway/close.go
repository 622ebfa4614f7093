package gateway

import (
	"context"

	"github.com/raxon/discordeno/discord"
)

type closeAction int

const (
	// closeActionNone: a testing harness finished with the shard.
	closeActionNone closeAction = iota
	// closeActionGraceful: the shard closed its own socket; whoever did so
	// already owns the next step.
	closeActionGraceful
	// closeActionReIdentify: the session is unusable, start over.
	closeActionReIdentify
	// closeActionFatal: configuration-level rejection, do not reconnect.
	closeActionFatal
	// closeActionResume: transient, rejoin the session.
	closeActionResume
)

// classifyClose maps a close code to the reconnect policy. Unrecognized
// codes, including transport-level failures reported as code 0, default to
// resume.
func classifyClose(code int) closeAction {
	switch code {
	case discord.ShardTestingFinished:
		return closeActionNone
	case discord.ShardShutdown,
		discord.ShardReIdentifying,
		discord.ShardResharded,
		discord.ShardResumeClosingOldConnection,
		discord.ShardZombiedConnection:
		return closeActionGraceful
	case discord.CloseUnknownOpcode,
		discord.CloseNotAuthenticated,
		discord.CloseInvalidSeq,
		discord.CloseRateLimited,
		discord.CloseSessionTimedOut:
		return closeActionReIdentify
	case discord.CloseAuthenticationFailed,
		discord.CloseInvalidShard,
		discord.CloseShardingRequired,
		discord.CloseInvalidAPIVersion,
		discord.CloseInvalidIntents,
		discord.CloseDisallowedIntents:
		return closeActionFatal
	}
	return closeActionResume
}

// handleClose runs exactly once per connection teardown, for both local and
// remote closes. Heartbeat timers are stopped before the classified action
// is applied.
func (s *Shard) handleClose(code int, reason string) {
	s.log.Debug("connection closed", "shard", s.ID, "code", code, "reason", reason)

	action := classifyClose(code)

	s.mu.Lock()
	s.stopHeartbeatLocked()
	switch action {
	case closeActionNone, closeActionFatal:
		s.setStateLocked(StateOffline)
	case closeActionGraceful:
		s.setStateLocked(StateDisconnected)
	case closeActionReIdentify:
		s.setStateLocked(StateIdentifying)
	case closeActionResume:
		s.setStateLocked(StateResuming)
	}
	if action == closeActionFatal || action == closeActionReIdentify {
		// The session is gone for good; only a fresh Ready may set a new id.
		s.sessionID = ""
	}
	s.mu.Unlock()

	if f := s.events.Disconnected; f != nil {
		f(s)
	}

	switch action {
	case closeActionFatal:
		s.waiters.failAll(&ProtocolFatalError{Code: code, Reason: reason})
	case closeActionReIdentify:
		if err := s.Identify(context.Background()); err != nil {
			s.log.Error("re-identify after close failed", "shard", s.ID, "code", code, "err", err)
		}
	case closeActionResume:
		if err := s.Resume(context.Background()); err != nil {
			s.log.Error("resume after close failed", "shard", s.ID, "code", code, "err", err)
		}
	}
}
