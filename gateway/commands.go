package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/raxon/discordeno/discord"
)

// EditShardStatus updates the presence shown for this shard's session.
func (s *Shard) EditShardStatus(ctx context.Context, status discord.StatusUpdate) error {
	return s.Send(ctx, discord.StatusUpdateCommand{
		Op: discord.OpPresenceUpdate,
		D: discord.StatusUpdate{
			Since:      nil,
			AFK:        false,
			Activities: status.Activities,
			Status:     status.Status,
		},
	}, false)
}

// JoinVoiceOptions tweaks the voice state sent by JoinVoiceChannel.
type JoinVoiceOptions struct {
	SelfMute bool
	// SelfDeaf defaults to true when nil.
	SelfDeaf *bool
}

// JoinVoiceChannel moves this shard's voice state into the given channel.
func (s *Shard) JoinVoiceChannel(ctx context.Context, guildID, channelID discord.Snowflake, options *JoinVoiceOptions) error {
	selfMute := false
	selfDeaf := true
	if options != nil {
		selfMute = options.SelfMute
		if options.SelfDeaf != nil {
			selfDeaf = *options.SelfDeaf
		}
	}
	return s.Send(ctx, discord.VoiceStateUpdateCommand{
		Op: discord.OpVoiceStateUpdate,
		D: discord.VoiceStateUpdate{
			GuildID:   guildID,
			ChannelID: &channelID,
			SelfMute:  selfMute,
			SelfDeaf:  selfDeaf,
		},
	}, false)
}

// LeaveVoiceChannel clears this shard's voice state in the given guild.
func (s *Shard) LeaveVoiceChannel(ctx context.Context, guildID discord.Snowflake) error {
	return s.Send(ctx, discord.VoiceStateUpdateCommand{
		Op: discord.OpVoiceStateUpdate,
		D: discord.VoiceStateUpdate{
			GuildID:   guildID,
			ChannelID: nil,
			SelfMute:  false,
			SelfDeaf:  false,
		},
	}, false)
}

// RequestMembersOptions narrows a guild member request.
type RequestMembersOptions struct {
	// Query filters members by username prefix. Empty matches everyone.
	Query *string
	// Limit caps the number of members returned. 0 means no cap.
	Limit int
	// Presences includes presence data in the chunks.
	Presences bool
	// UserIDs requests specific members; it forces Limit to its length.
	UserIDs []discord.Snowflake
}

// memberRequest accumulates the chunked responses for one nonce.
type memberRequest struct {
	nonce   string
	members []discord.Member

	once   sync.Once
	result chan membersResult
}

type membersResult struct {
	members []discord.Member
	err     error
}

func newMemberRequest(nonce string) *memberRequest {
	return &memberRequest{nonce: nonce, result: make(chan membersResult, 1)}
}

func (r *memberRequest) complete(members []discord.Member) {
	r.once.Do(func() { r.result <- membersResult{members: members} })
}

func (r *memberRequest) fail(err error) {
	r.once.Do(func() { r.result <- membersResult{err: err} })
}

// RequestMembers asks the gateway for the member list of a guild. Requests
// that can return more than one member need the GuildMembers intent.
//
// When the request-members cache is enabled the call blocks until the last
// correlated GUILD_MEMBERS_CHUNK arrives and returns the assembled list.
// With the cache disabled it returns an empty list immediately after the
// send; the chunks still arrive through the Message callback.
func (s *Shard) RequestMembers(ctx context.Context, guildID discord.Snowflake, options *RequestMembersOptions) ([]discord.Member, error) {
	if options == nil {
		options = &RequestMembersOptions{}
	}
	if s.config.Intents != 0 &&
		(options.Limit == 0 || options.Limit > 1) &&
		!s.config.Intents.Has(discord.IntentGuildMembers) {
		return nil, &MissingIntentError{Intent: "GUILD_MEMBERS"}
	}

	limit := options.Limit
	if len(options.UserIDs) > 0 {
		limit = len(options.UserIDs)
	}

	query := options.Query
	if query == nil && limit == 0 {
		empty := ""
		query = &empty
	}

	nonce := fmt.Sprintf("%s-%d", guildID, s.clock.Now().UnixMilli())

	var req *memberRequest
	if s.config.CacheRequestMembers {
		req = newMemberRequest(nonce)
		s.mu.Lock()
		s.pendingMembers[nonce] = req
		s.mu.Unlock()
	}

	payload := discord.RequestGuildMembersCommand{
		Op: discord.OpRequestGuildMembers,
		D: discord.RequestGuildMembers{
			GuildID:   guildID,
			Query:     query,
			Limit:     limit,
			Presences: options.Presences,
			UserIDs:   options.UserIDs,
			Nonce:     nonce,
		},
	}
	if err := s.Send(ctx, payload, false); err != nil {
		if req != nil {
			s.mu.Lock()
			delete(s.pendingMembers, nonce)
			s.mu.Unlock()
		}
		return nil, err
	}

	if req == nil {
		return []discord.Member{}, nil
	}

	select {
	case result := <-req.result:
		return result.members, result.err
	case <-ctx.Done():
		s.mu.Lock()
		delete(s.pendingMembers, nonce)
		s.mu.Unlock()
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrShardShutdown
	}
}

// handleMembersChunk appends one chunk to its pending request and completes
// the request on the final chunk.
func (s *Shard) handleMembersChunk(chunk discord.GuildMembersChunk) {
	if chunk.Nonce == "" {
		return
	}
	s.mu.Lock()
	req, ok := s.pendingMembers[chunk.Nonce]
	if !ok {
		s.mu.Unlock()
		return
	}
	req.members = append(req.members, chunk.Members...)
	last := chunk.ChunkIndex+1 >= chunk.ChunkCount
	if last {
		delete(s.pendingMembers, chunk.Nonce)
	}
	members := req.members
	s.mu.Unlock()

	if last {
		req.complete(members)
	}
}
