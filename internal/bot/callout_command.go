package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

// mentionChunkSize keeps each callout message comfortably under the
// platform content limit
const mentionChunkSize = 40

// handleCalloutCommand pings every signed-up member inside a party thread.
// The command only works in the party's own thread and is rate limited per
// thread so it can't be spammed.
func (h *Handler) handleCalloutCommand(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if !h.deferEphemeral(i) {
		return
	}

	event, err := h.events.GetByThreadID(ctx, i.ChannelID)
	if err != nil {
		log.Error().Err(err).Str("channel_id", i.ChannelID).Msg("Thread lookup failed")
		h.followupEphemeral(i, "Something went wrong. Please try again.")
		return
	}
	if event == nil {
		h.followupEphemeral(i, "Use /callout inside a party thread.")
		return
	}
	if !event.IsOpen() {
		h.followupEphemeral(i, "This party is closed.")
		return
	}

	if wait, limited := h.calloutThrottled(event.ThreadID); limited {
		h.followupEphemeral(i, fmt.Sprintf("Easy there — try again in %s.", wait.Round(time.Second)))
		return
	}

	view, err := h.engine.Snapshot(ctx, event.ID)
	if err != nil {
		log.Error().Err(err).Str("event_id", event.ID).Msg("Callout snapshot failed")
		h.followupEphemeral(i, "Something went wrong. Please try again.")
		return
	}

	mentions := make([]string, 0)
	for _, lane := range view {
		for _, occ := range lane.Occupants {
			mentions = append(mentions, "<@"+occ.UserID+">")
		}
	}
	if len(mentions) == 0 {
		h.followupEphemeral(i, "Nobody has joined yet.")
		return
	}

	message := stringOption(indexOptions(data.Options), "message")
	if message == "" {
		message = "Party call!"
	}

	for start := 0; start < len(mentions); start += mentionChunkSize {
		end := start + mentionChunkSize
		if end > len(mentions) {
			end = len(mentions)
		}
		content := message + "\n" + strings.Join(mentions[start:end], " ")
		if err := h.platform.SendChannelMessage(ctx, event.ThreadID, content); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID).Msg("Callout send failed")
			h.followupEphemeral(i, "Could not send the callout.")
			return
		}
	}

	h.followupEphemeral(i, fmt.Sprintf("Called out %s.", pluralize(len(mentions), "member", "members")))
}

// calloutThrottled records a callout attempt and reports whether the thread
// is still inside its cooldown window
func (h *Handler) calloutThrottled(threadID string) (time.Duration, bool) {
	if h.calloutCooldown <= 0 {
		return 0, false
	}
	h.calloutMu.Lock()
	defer h.calloutMu.Unlock()

	now := time.Now()
	if last, ok := h.calloutLast[threadID]; ok {
		if remaining := h.calloutCooldown - now.Sub(last); remaining > 0 {
			return remaining, true
		}
	}
	h.calloutLast[threadID] = now
	return 0, false
}
