package gateway

import (
	"context"
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/raxon/discordeno/discord"
)

// heart tracks the liveness handshake for the current connection.
type heart struct {
	interval     time.Duration
	acknowledged bool
	lastBeat     time.Time
	lastAck      time.Time
	rtt          time.Duration

	jitter *clock.Timer
	stop   chan struct{}
}

// heartbeatJitter computes the delay before the first beat. The floor of
// 0.5x avoids a zero-delay race on the freshly opened socket.
func heartbeatJitter(interval time.Duration, sample float64) time.Duration {
	if sample < 0.5 {
		sample = 0.5
	}
	return time.Duration(math.Ceil(float64(interval) * sample))
}

// safeRequests derives the command budget per rate-limit window, reserving
// two slots per heartbeat the server may demand within the window.
func safeRequests(maxPerInterval int, refillInterval, heartbeatInterval time.Duration) int {
	if heartbeatInterval <= 0 {
		return 0
	}
	reserved := int(math.Ceil(float64(refillInterval)/float64(heartbeatInterval))) * 2
	safe := maxPerInterval - reserved
	if safe < 0 {
		return 0
	}
	return safe
}

// startHeartbeating is driven by Hello. It schedules a jittered first beat
// and, once that fires, a steady interval loop with zombie detection.
func (s *Shard) startHeartbeating(interval time.Duration) {
	s.mu.Lock()
	s.stopHeartbeatLocked()
	s.heart.interval = interval
	s.heart.acknowledged = true
	if s.state == StateDisconnected || s.state == StateOffline {
		s.setStateLocked(StateUnidentified)
	}
	stop := make(chan struct{})
	s.heart.stop = stop
	jitter := s.clock.Timer(heartbeatJitter(interval, s.rand()))
	s.heart.jitter = jitter
	s.mu.Unlock()

	s.log.Debug("heartbeating started", "shard", s.ID, "interval", interval)
	go s.heartbeatLoop(stop, jitter, interval)
}

func (s *Shard) heartbeatLoop(stop chan struct{}, jitter *clock.Timer, interval time.Duration) {
	select {
	case <-stop:
		jitter.Stop()
		return
	case <-jitter.C:
	}
	if !s.IsOpen() {
		return
	}
	s.sendHeartbeat()

	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if !s.IsOpen() {
				continue
			}
			s.mu.Lock()
			acked := s.heart.acknowledged
			s.mu.Unlock()
			if !acked {
				s.log.Warn("heartbeat not acknowledged, connection zombied", "shard", s.ID)
				s.close(discord.ShardZombiedConnection, "zombied connection")
				go func() {
					if err := s.Identify(context.Background()); err != nil {
						s.log.Error("re-identify after zombied connection failed", "shard", s.ID, "err", err)
					}
				}()
				return
			}
			s.sendHeartbeat()
		}
	}
}

// sendHeartbeat transmits a heartbeat carrying the last seen sequence. It
// writes to the socket directly: heartbeats are server-reserved traffic and
// bypass the bucket.
func (s *Shard) sendHeartbeat() {
	s.mu.Lock()
	conn := s.conn
	var seq *int64
	if s.seq != nil {
		v := *s.seq
		seq = &v
	}
	s.heart.lastBeat = s.clock.Now()
	s.heart.acknowledged = false
	s.mu.Unlock()
	if conn == nil {
		return
	}

	data, err := json.Marshal(discord.HeartbeatCommand{Op: discord.OpHeartbeat, D: seq})
	if err != nil {
		return
	}
	if err := conn.transport.Write(context.Background(), data); err != nil {
		s.log.Warn("failed to send heartbeat", "shard", s.ID, "err", err)
		return
	}
	if f := s.events.Heartbeat; f != nil {
		f(s)
	}
}

// stopHeartbeatLocked cancels both timers. Callers hold s.mu.
func (s *Shard) stopHeartbeatLocked() {
	if s.heart.stop != nil {
		close(s.heart.stop)
		s.heart.stop = nil
	}
	if s.heart.jitter != nil {
		s.heart.jitter.Stop()
		s.heart.jitter = nil
	}
}

// Latency reports the round-trip time measured between the last heartbeat
// and the first packet that followed it.
func (s *Shard) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heart.rtt
}
