package gateway

import (
	"context"
	"math"
	"time"

	"github.com/raxon/discordeno/discord"
)

// connection binds one dialed socket to its shard. Signals from a socket
// the shard no longer owns are dropped by an identity check, so a dying
// read loop can never act on a replacement connection's state.
type connection struct {
	id        string
	shard     *Shard
	transport Conn
}

func (c *connection) OnMessage(binary bool, data []byte) {
	c.shard.onMessage(c, binary, data)
}

func (c *connection) OnClose(code int, reason string) {
	c.shard.onRemoteClose(c, code, reason)
}

func (c *connection) OnError(err error) {
	c.shard.log.Warn("transport error", "shard", c.shard.ID, "connection", c.id, "err", err)
}

func (s *Shard) onMessage(c *connection, binary bool, data []byte) {
	if !s.ownsConnection(c) {
		return
	}

	if binary {
		decompressed, err := s.decompress(data)
		if err != nil {
			s.log.Warn("dropping undecodable frame", "shard", s.ID, "err", err)
			return
		}
		data = decompressed
	}

	var event discord.Event
	if err := json.Unmarshal(data, &event); err != nil {
		s.log.Warn("dropping unparseable packet", "shard", s.ID, "err", err)
		return
	}
	s.handlePacket(&event)
}

func (s *Shard) onRemoteClose(c *connection, code int, reason string) {
	s.mu.Lock()
	if s.conn != c {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.mu.Unlock()

	_ = c.transport.Close(code, reason)
	s.handleClose(code, reason)
}

func (s *Shard) ownsConnection(c *connection) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn == c
}

// handlePacket dispatches one decoded gateway packet. Packets arrive in
// receive order on the connection's read goroutine.
func (s *Shard) handlePacket(event *discord.Event) {
	// Any inbound packet proves the connection is alive, so RTT is measured
	// against the first packet after a beat, not just explicit acks.
	now := s.clock.Now()
	s.mu.Lock()
	s.heart.lastAck = now
	if !s.heart.lastBeat.IsZero() && !s.heart.acknowledged {
		s.heart.rtt = now.Sub(s.heart.lastBeat)
		s.heart.acknowledged = true
	}
	s.mu.Unlock()

	switch event.Op {
	case discord.OpHeartbeat:
		s.sendHeartbeat()

	case discord.OpHello:
		var hello discord.Hello
		if err := json.Unmarshal(event.D, &hello); err != nil {
			s.log.Warn("dropping unparseable hello", "shard", s.ID, "err", err)
			return
		}
		s.handleHello(hello)

	case discord.OpHeartbeatACK:
		if f := s.events.HeartbeatAck; f != nil {
			f(s)
		}

	case discord.OpReconnect:
		if f := s.events.RequestedReconnect; f != nil {
			f(s)
		}
		if err := s.Resume(context.Background()); err != nil {
			s.log.Error("requested reconnect failed", "shard", s.ID, "err", err)
		}

	case discord.OpInvalidSession:
		var resumable bool
		_ = json.Unmarshal(event.D, &resumable)
		s.handleInvalidSession(resumable)
	}

	switch event.T {
	case "READY":
		var ready discord.Ready
		if err := json.Unmarshal(event.D, &ready); err != nil {
			s.log.Warn("dropping unparseable ready", "shard", s.ID, "err", err)
		} else {
			s.handleReady(ready)
		}

	case "RESUMED":
		s.handleResumed()

	case "GUILD_MEMBERS_CHUNK":
		var chunk discord.GuildMembersChunk
		if err := json.Unmarshal(event.D, &chunk); err == nil {
			s.handleMembersChunk(chunk)
		}
	}

	if event.S != nil {
		seq := *event.S
		s.mu.Lock()
		s.seq = &seq
		s.mu.Unlock()
	}

	if f := s.events.Message; f != nil {
		f(s, Message{Op: event.Op, S: event.S, T: event.T, D: camelizeRaw(event.D)})
	}
}

func (s *Shard) handleHello(hello discord.Hello) {
	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond

	s.mu.Lock()
	resuming := s.state == StateResuming
	s.mu.Unlock()

	if !resuming {
		s.rebuildBucket(interval)
	}
	s.startHeartbeating(interval)

	if f := s.events.Hello; f != nil {
		f(s, hello)
	}
}

// rebuildBucket replaces the bucket with one sized to the safe command rate
// for the negotiated heartbeat interval, carrying all waiters over.
func (s *Shard) rebuildBucket(heartbeatInterval time.Duration) {
	safe := safeRequests(s.config.MaxRequestsPerRateLimitTick, s.config.RateLimitRefillInterval, heartbeatInterval)

	s.mu.Lock()
	old := s.bucket
	s.bucket = NewLeakyBucket(BucketConfig{
		Max:            safe,
		RefillAmount:   safe,
		RefillInterval: s.config.RateLimitRefillInterval,
		Clock:          s.clock,
	}, old)
	s.mu.Unlock()

	s.log.Debug("rebuilt command bucket", "shard", s.ID, "safeRequests", safe)
}

func (s *Shard) handleReady(ready discord.Ready) {
	s.mu.Lock()
	s.sessionID = ready.SessionID
	s.resumeGatewayURL = ready.ResumeGatewayURL
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	s.log.Info("shard ready", "shard", s.ID, "session", ready.SessionID)
	s.queue.drain()
	s.waiters.resolve(resolveReady, nil)
}

func (s *Shard) handleResumed() {
	s.mu.Lock()
	s.setStateLocked(StateConnected)
	s.mu.Unlock()

	s.log.Info("shard resumed", "shard", s.ID)
	s.queue.drain()
	s.waiters.resolve(resolveResumed, nil)
	if f := s.events.Resumed; f != nil {
		f(s)
	}
}

// invalidSessionDelay maps a uniform sample from [0,1) into the 1-5 second
// backoff window.
func invalidSessionDelay(sample float64) time.Duration {
	return time.Duration(math.Floor((sample*4+1)*1000)) * time.Millisecond
}

// handleInvalidSession backs off for a uniformly random 1-5 seconds before
// re-identifying (or resuming, when the server says the session survived).
func (s *Shard) handleInvalidSession(resumable bool) {
	s.log.Debug("session invalidated", "shard", s.ID, "resumable", resumable)
	if f := s.events.InvalidSession; f != nil {
		f(s, resumable)
	}

	timer := s.clock.Timer(invalidSessionDelay(s.rand()))
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.done:
		return
	}

	s.waiters.resolve(resolveInvalidSession, nil)

	var err error
	if resumable {
		err = s.Resume(context.Background())
	} else {
		err = s.Identify(context.Background())
	}
	if err != nil {
		s.log.Error("recovery after invalid session failed", "shard", s.ID, "err", err)
	}
}
