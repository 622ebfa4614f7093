package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/sasha-s/go-csync"

	"github.com/raxon/discordeno/discord"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Shard is a single persistent gateway connection. It authenticates with
// Identify, keeps the session alive with heartbeats, rejoins the session
// with Resume after transient closes, and funnels every outbound command
// through the offline queue and the leaky bucket.
type Shard struct {
	// ID is this shard's position in [0, TotalShards). Immutable.
	ID int

	config Config
	events Events
	log    *slog.Logger
	clock  clock.Clock
	rand   func() float64

	// mu guards all mutable shard state. It is context-aware so callers
	// blocked on a transition can be cancelled.
	mu               csync.Mutex
	state            State
	conn             *connection
	sessionID        string
	resumeGatewayURL string
	seq              *int64
	heart            heart
	bucket           *LeakyBucket
	identifyAttempt  uint64
	pendingMembers   map[string]*memberRequest

	queue   *offlineQueue
	waiters *rendezvous

	done     chan struct{}
	doneOnce sync.Once
}

// New constructs a shard. The shard stays Offline until Identify (or
// Connect) is called.
func New(id int, token string, intents discord.Intents, opts ...ConfigOpt) *Shard {
	config := DefaultConfig()
	config.Token = token
	config.Intents = intents
	config.Apply(opts)
	if config.Dial == nil {
		config.Dial = WebSocketDialer(nil)
	}
	if config.Decompress == nil && config.Compress {
		config.Decompress = zlibDecompress
	}

	s := &Shard{
		ID:             id,
		config:         *config,
		events:         config.Events,
		log:            config.Logger,
		clock:          config.Clock,
		rand:           config.Rand,
		state:          StateOffline,
		pendingMembers: make(map[string]*memberRequest),
		queue:          newOfflineQueue(),
		waiters:        newRendezvous(),
		done:           make(chan struct{}),
	}
	s.bucket = NewLeakyBucket(BucketConfig{
		Max:            config.MaxRequestsPerRateLimitTick,
		RefillAmount:   config.MaxRequestsPerRateLimitTick,
		RefillInterval: config.RateLimitRefillInterval,
		Clock:          config.Clock,
	}, nil)
	return s
}

// State reports the shard's lifecycle position.
func (s *Shard) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SessionID reports the current session id, empty until the first Ready.
func (s *Shard) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Sequence reports the last non-null sequence number seen, or nil.
func (s *Shard) Sequence() *int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seq == nil {
		return nil
	}
	v := *s.seq
	return &v
}

// IsOpen reports whether the shard currently owns an open socket.
func (s *Shard) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *Shard) setStateLocked(state State) {
	if s.state == state {
		return
	}
	s.log.Debug("state change", "shard", s.ID, "from", s.state, "to", state)
	s.state = state
}

// connectURL builds the dial target. The primary gateway gets version and
// encoding query parameters; proxy gateways pass through unmodified. In
// Resuming the session's resume gateway URL takes precedence.
func (s *Shard) connectURL() string {
	s.mu.Lock()
	base := s.config.URL
	if s.state == StateResuming && s.resumeGatewayURL != "" {
		base = s.resumeGatewayURL
	}
	s.mu.Unlock()

	if strings.HasPrefix(base, PrimaryGatewayURL) {
		return fmt.Sprintf("%s?v=%d&encoding=json", base, s.config.Version)
	}
	return base
}

// Connect opens the socket. It does not identify; callers normally use
// Identify, which connects as needed.
func (s *Shard) Connect(ctx context.Context) error {
	if err := s.mu.CLock(ctx); err != nil {
		return err
	}
	if s.state != StateIdentifying && s.state != StateResuming {
		s.setStateLocked(StateConnecting)
	}
	s.mu.Unlock()

	if f := s.events.Connecting; f != nil {
		f(s)
	}

	conn := &connection{id: uuid.NewString(), shard: s}
	transport, err := s.config.Dial(ctx, s.connectURL(), conn)
	if err != nil {
		return fmt.Errorf("gateway: could not connect shard %d: %w", s.ID, err)
	}
	conn.transport = transport

	s.mu.Lock()
	s.conn = conn
	if s.state != StateIdentifying && s.state != StateResuming {
		s.setStateLocked(StateUnidentified)
	}
	s.mu.Unlock()

	s.log.Debug("socket open", "shard", s.ID, "connection", conn.id)
	if f := s.events.Connected; f != nil {
		f(s)
	}
	return nil
}

// Identify starts a fresh session. It closes any open socket, reconnects,
// waits for the identify permit, transmits the Identify payload with high
// priority, and returns when the gateway answers with Ready or Invalid
// Session (the latter completes silently; the invalid-session handler owns
// the next step).
//
// Concurrent calls are gated by a monotonic attempt counter: a call that
// loses the race returns nil without sending a duplicate Identify.
func (s *Shard) Identify(ctx context.Context) error {
	if err := s.mu.CLock(ctx); err != nil {
		return err
	}
	s.identifyAttempt++
	attempt := s.identifyAttempt
	s.mu.Unlock()

	s.close(discord.ShardReIdentifying, "re-identifying")

	if err := s.mu.CLock(ctx); err != nil {
		return err
	}
	if s.identifyAttempt != attempt {
		s.mu.Unlock()
		return nil
	}
	s.setStateLocked(StateIdentifying)
	open := s.conn != nil
	s.mu.Unlock()

	if f := s.events.Identifying; f != nil {
		f(s)
	}

	if !open {
		if err := s.Connect(ctx); err != nil {
			return err
		}
	}

	if rq := s.config.RequestIdentify; rq != nil {
		if err := rq(ctx, s.ID); err != nil {
			return fmt.Errorf("gateway: identify permit for shard %d: %w", s.ID, err)
		}
	}

	if err := s.mu.CLock(ctx); err != nil {
		return err
	}
	if s.identifyAttempt != attempt {
		s.mu.Unlock()
		return nil
	}
	// Identifying abandons the old session; it is unusable from here on.
	s.sessionID = ""
	ready := s.waiters.waiter(resolveReady)
	invalid := s.waiters.waiter(resolveInvalidSession)
	s.mu.Unlock()

	var presence *discord.StatusUpdate
	if s.config.MakePresence != nil {
		presence = s.config.MakePresence()
	}
	payload := discord.IdentifyCommand{
		Op: discord.OpIdentify,
		D: discord.Identify{
			Token:      "Bot " + s.config.Token,
			Properties: s.config.Properties,
			Compress:   s.config.Compress,
			Intents:    s.config.Intents,
			Shard:      [2]int{s.ID, s.config.TotalShards},
			Presence:   presence,
		},
	}
	if err := s.Send(ctx, payload, true); err != nil {
		return err
	}

	select {
	case err := <-ready:
		if err == errSuperseded {
			return nil
		}
		if err != nil {
			return err
		}
		if f := s.events.Identified; f != nil {
			f(s)
		}
		return nil
	case err := <-invalid:
		if err == errSuperseded || err == nil {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrShardShutdown
	}
}

// Resume rejoins the current session from the last seen sequence number.
// Without a session id it falls back to Identify.
func (s *Shard) Resume(ctx context.Context) error {
	s.close(discord.ShardResumeClosingOldConnection, "resuming")

	if err := s.mu.CLock(ctx); err != nil {
		return err
	}
	if s.sessionID == "" {
		s.mu.Unlock()
		return s.Identify(ctx)
	}
	s.setStateLocked(StateResuming)
	sessionID := s.sessionID
	var seq int64
	if s.seq != nil {
		seq = *s.seq
	}
	resumed := s.waiters.waiter(resolveResumed)
	invalid := s.waiters.waiter(resolveInvalidSession)
	s.mu.Unlock()

	if err := s.Connect(ctx); err != nil {
		return err
	}

	payload := discord.ResumeCommand{
		Op: discord.OpResume,
		D: discord.Resume{
			Token:     "Bot " + s.config.Token,
			SessionID: sessionID,
			Seq:       seq,
		},
	}
	if err := s.Send(ctx, payload, true); err != nil {
		return err
	}

	select {
	case err := <-resumed:
		if err == errSuperseded {
			return nil
		}
		return err
	case err := <-invalid:
		if err == errSuperseded {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrShardShutdown
	}
}

// Send transmits one gateway command. It parks while the socket is not
// open, takes a bucket token, re-checks the socket (it may have closed
// while waiting), then writes. A missing socket at write time drops the
// message silently; the offline queue exists to prevent that case.
func (s *Shard) Send(ctx context.Context, message any, highPriority bool) error {
	if err := s.checkOffline(ctx, highPriority); err != nil {
		return err
	}
	if err := s.acquire(ctx, 1, highPriority); err != nil {
		return err
	}
	if err := s.checkOffline(ctx, highPriority); err != nil {
		return err
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("gateway: could not encode message: %w", err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.transport.Write(ctx, data)
}

func (s *Shard) checkOffline(ctx context.Context, highPriority bool) error {
	if s.IsOpen() {
		return nil
	}
	return s.queue.park(ctx, s.done, highPriority)
}

func (s *Shard) acquire(ctx context.Context, n int, highPriority bool) error {
	s.mu.Lock()
	bucket := s.bucket
	s.mu.Unlock()
	return bucket.Acquire(ctx, s.done, n, highPriority)
}

// close tears down the current socket with the given code, if one is open,
// and routes the teardown through the close classifier. Signals from the
// dead socket's read loop are dropped by the connection identity check.
func (s *Shard) close(code int, reason string) {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return
	}

	s.log.Debug("closing socket", "shard", s.ID, "connection", conn.id, "code", code)
	if err := conn.transport.Close(code, reason); err != nil {
		s.log.Warn("error closing socket", "shard", s.ID, "err", err)
	}
	s.handleClose(code, reason)
}

// Close tears down the current socket with the given code. No-op unless a
// socket is open.
func (s *Shard) Close(code int, reason string) {
	s.close(code, reason)
}

// Shutdown closes the socket, moves the shard Offline, and wakes every
// waiter (offline queue, bucket, rendezvous, member requests) with a
// cancellation error. The shard cannot be reused afterwards.
func (s *Shard) Shutdown() {
	s.close(discord.ShardShutdown, "shutting down")

	s.mu.Lock()
	s.stopHeartbeatLocked()
	s.setStateLocked(StateOffline)
	bucket := s.bucket
	pending := s.pendingMembers
	s.pendingMembers = make(map[string]*memberRequest)
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	s.queue.close(ErrShardShutdown)
	bucket.Close(ErrShardShutdown)
	s.waiters.failAll(ErrShardShutdown)
	for _, req := range pending {
		req.fail(ErrShardShutdown)
	}
	s.log.Info("shard shut down", "shard", s.ID)
}
