package bot

import (
	"context"
	"fmt"
	"strings"

	"example.com/partybot/internal/party"
	"example.com/partybot/internal/reject"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

func (h *Handler) handlePartyCommand(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "create":
		h.handlePartyCreate(ctx, i, sub)
	case "close":
		h.handlePartyClose(ctx, i, sub)
	}
}

func (h *Handler) handlePartyCreate(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.deferEphemeral(i) {
		return
	}

	if h.partyChannelID != "" && i.ChannelID != h.partyChannelID {
		h.followupEphemeral(i, fmt.Sprintf("Use this command in <#%s>.", h.partyChannelID))
		return
	}

	opts := indexOptions(sub.Options)
	userID, userName := interactionUser(i)

	req := party.CreateRequest{
		GuildID:     i.GuildID,
		ChannelID:   i.ChannelID,
		CreatorID:   userID,
		CreatorName: userName,
		TemplateID:  stringOption(opts, "event"),
		Date:        stringOption(opts, "date"),
		Time:        stringOption(opts, "time"),
		TZOffset:    stringOption(opts, "utc_offset"),
		Description: stringOption(opts, "description"),
	}
	if gs, ok := intOption(opts, "min_gs"); ok {
		req.MinGearScore = &gs
	}

	result, err := h.manager.Create(ctx, req)
	if err != nil {
		if rej := reject.As(err); rej != nil {
			h.followupEphemeral(i, rej.Message)
			return
		}
		log.Error().Err(err).Str("template", req.TemplateID).Msg("Party creation failed")
		h.followupEphemeral(i, "Could not create the party. Please try again.")
		return
	}

	lines := []string{fmt.Sprintf("**%s** is up — <t:%d:F>.", result.Event.Title, result.Event.StartTime.Unix())}
	lines = append(lines, result.Notes...)
	h.followupEphemeral(i, strings.Join(lines, "\n"))
}

func (h *Handler) handlePartyClose(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.deferEphemeral(i) {
		return
	}

	opts := indexOptions(sub.Options)
	eventID := stringOption(opts, "party")

	event, err := h.manager.Close(ctx, eventID, requesterFrom(i))
	if err != nil {
		if rej := reject.As(err); rej != nil {
			h.followupEphemeral(i, rej.Message)
			return
		}
		log.Error().Err(err).Str("event_id", eventID).Msg("Party close failed")
		h.followupEphemeral(i, "Could not close the party. Please try again.")
		return
	}
	h.followupEphemeral(i, fmt.Sprintf("**%s** closed.", event.Title))
}

func (h *Handler) handlePartyAutocomplete(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]

	var choices []*discordgo.ApplicationCommandOptionChoice
	switch sub.Name {
	case "create":
		query := strings.ToLower(focusedValue(sub.Options))
		for _, tpl := range h.manager.Templates().All() {
			if query != "" && !strings.Contains(strings.ToLower(tpl.Name), query) {
				continue
			}
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  tpl.Name,
				Value: tpl.ID,
			})
			if len(choices) == 25 {
				break
			}
		}
	case "close":
		open, err := h.events.ListOpen(ctx, i.GuildID, 25)
		if err != nil {
			log.Warn().Err(err).Msg("Open party listing failed")
			break
		}
		query := strings.ToLower(focusedValue(sub.Options))
		for _, event := range open {
			label := fmt.Sprintf("%s — %s", event.Title, event.StartTime.Format("Jan 2 15:04"))
			if query != "" && !strings.Contains(strings.ToLower(label), query) {
				continue
			}
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  label,
				Value: event.ID,
			})
		}
	}

	h.respondChoices(i, choices)
}

func (h *Handler) respondChoices(i *discordgo.InteractionCreate, choices []*discordgo.ApplicationCommandOptionChoice) {
	err := h.session.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		log.Debug().Err(err).Msg("Autocomplete response failed")
	}
}

func indexOptions(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	indexed := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(opts))
	for _, opt := range opts {
		indexed[opt.Name] = opt
	}
	return indexed
}

func stringOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if opt, ok := opts[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func intOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) (int, bool) {
	if opt, ok := opts[name]; ok {
		return int(opt.IntValue()), true
	}
	return 0, false
}

func boolOption(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) bool {
	if opt, ok := opts[name]; ok {
		return opt.BoolValue()
	}
	return false
}

func focusedValue(opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	for _, opt := range opts {
		if opt.Focused {
			return opt.StringValue()
		}
	}
	return ""
}
