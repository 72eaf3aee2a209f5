// Package discord adapts the party domain onto discordgo: listing embeds,
// interactive components and the guild side effects (threads, voice
// channels) that surround a party.
package discord

import (
	"context"

	"example.com/partybot/internal/cache"
	"example.com/partybot/internal/party"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Platform implements party.Platform on a discordgo session
type Platform struct {
	session         *discordgo.Session
	names           *cache.NameCache
	voiceCategoryID string
}

// NewPlatform creates a new Discord platform adapter. voiceCategoryID may
// be empty; voice channels are then created at the guild root.
func NewPlatform(session *discordgo.Session, names *cache.NameCache, voiceCategoryID string) *Platform {
	return &Platform{
		session:         session,
		names:           names,
		voiceCategoryID: voiceCategoryID,
	}
}

// PublishListing posts a fresh party listing and returns its message ID
func (p *Platform) PublishListing(ctx context.Context, channelID string, view party.ListingView) (string, error) {
	msg, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{ListingEmbed(view)},
		Components: ListingComponents(view),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "failed to publish listing")
	}
	return msg.ID, nil
}

// EditListing re-renders an existing party listing in place. Closed parties
// render with an empty component set so the stale buttons disappear.
func (p *Platform) EditListing(ctx context.Context, channelID, messageID string, view party.ListingView) error {
	components := ListingComponents(view)
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := p.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     []*discordgo.MessageEmbed{ListingEmbed(view)},
		Components: components,
	}, discordgo.WithContext(ctx))
	return errors.Wrap(err, "failed to edit listing")
}

// CreateThread opens a thread on the listing message
func (p *Platform) CreateThread(ctx context.Context, channelID, messageID, name string) (string, error) {
	thread, err := p.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 1440,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "failed to create thread")
	}
	return thread.ID, nil
}

// ArchiveThread archives and locks a party thread
func (p *Platform) ArchiveThread(ctx context.Context, threadID string) error {
	archived := true
	locked := true
	_, err := p.session.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	}, discordgo.WithContext(ctx))
	return errors.Wrap(err, "failed to archive thread")
}

// CreateVoiceChannel creates the party voice channel, under the configured
// category when one is set
func (p *Platform) CreateVoiceChannel(ctx context.Context, guildID, name string) (string, error) {
	channel, err := p.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:     name,
		Type:     discordgo.ChannelTypeGuildVoice,
		ParentID: p.voiceCategoryID,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", errors.Wrap(err, "failed to create voice channel")
	}
	return channel.ID, nil
}

// DeleteVoiceChannel removes the party voice channel
func (p *Platform) DeleteVoiceChannel(ctx context.Context, channelID string) error {
	_, err := p.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
	return errors.Wrap(err, "failed to delete voice channel")
}

// SendChannelMessage posts content into a channel or thread. User mentions
// in the content ping; roles and everyone never do.
func (p *Platform) SendChannelMessage(ctx context.Context, channelID, content string) error {
	_, err := p.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeUsers},
		},
	}, discordgo.WithContext(ctx))
	return errors.Wrap(err, "failed to send message")
}

// DisplayName resolves a guild member's display name, preferring the cached
// value and falling back to a live member fetch. Misses degrade to the raw
// user ID rather than failing the caller.
func (p *Platform) DisplayName(ctx context.Context, guildID, userID string) string {
	if name := p.names.Get(ctx, guildID, userID); name != "" {
		return name
	}

	member, err := p.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("Member lookup failed")
		return userID
	}
	name := member.Nick
	if name == "" {
		name = member.User.Username
	}
	p.names.Set(ctx, guildID, userID, name)
	return name
}

// DisplayNames resolves a batch of member display names
func (p *Platform) DisplayNames(ctx context.Context, guildID string, userIDs []string) map[string]string {
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		names[id] = p.DisplayName(ctx, guildID, id)
	}
	return names
}
