package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"example.com/partybot/internal/models"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

func (h *Handler) handleCharacterCommand(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	switch sub.Name {
	case "add":
		h.handleCharacterAdd(ctx, i, sub)
	case "list":
		h.handleCharacterList(ctx, i)
	case "remove":
		h.handleCharacterRemove(ctx, i, sub)
	case "setgs":
		h.handleCharacterGS(ctx, i, sub)
	case "main":
		h.handleCharacterMain(ctx, i, sub)
	case "help":
		h.handleCharacterHelp(i)
	}
}

func (h *Handler) handleCharacterAdd(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.deferEphemeral(i) {
		return
	}

	opts := indexOptions(sub.Options)
	userID, _ := interactionUser(i)

	classID, err := strconv.ParseUint(stringOption(opts, "class"), 10, 32)
	if err != nil {
		h.followupEphemeral(i, "Pick a class from the suggestions.")
		return
	}
	class, err := h.characters.GetClass(ctx, uint(classID))
	if err != nil || class == nil {
		h.followupEphemeral(i, "That class doesn't exist.")
		return
	}

	exists, err := h.characters.HasClass(ctx, userID, i.GuildID, uint(classID))
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Character class check failed")
		h.followupEphemeral(i, "Something went wrong. Please try again.")
		return
	}
	if exists {
		h.followupEphemeral(i, fmt.Sprintf("You already have a %s character. Use /character setgs to update it.", class.SubClass))
		return
	}

	gearScore, _ := intOption(opts, "gs")
	character := models.Character{
		UserID:    userID,
		GuildID:   i.GuildID,
		ClassID:   uint(classID),
		GearScore: gearScore,
		IsMain:    boolOption(opts, "main"),
	}
	if err := h.characters.Create(ctx, &character); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Character creation failed")
		h.followupEphemeral(i, "Could not save the character. Please try again.")
		return
	}

	suffix := ""
	if character.IsMain {
		suffix = " (main)"
	}
	h.followupEphemeral(i, fmt.Sprintf("Added **%s** with GS %d%s.", class.SubClass, gearScore, suffix))
}

func (h *Handler) handleCharacterList(ctx context.Context, i *discordgo.InteractionCreate) {
	if !h.deferEphemeral(i) {
		return
	}

	userID, _ := interactionUser(i)
	characters, err := h.characters.ListByUser(ctx, userID, i.GuildID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Character listing failed")
		h.followupEphemeral(i, "Something went wrong. Please try again.")
		return
	}
	if len(characters) == 0 {
		h.followupEphemeral(i, "You have no characters yet. Add one with /character add.")
		return
	}

	lines := make([]string, 0, len(characters))
	for _, c := range characters {
		marker := ""
		if c.IsMain {
			marker = " ⭐"
		}
		lines = append(lines, fmt.Sprintf("**%s** (%s) — GS %d%s", c.Class.SubClass, c.Class.Role, c.GearScore, marker))
	}
	h.followupEphemeral(i, strings.Join(lines, "\n"))
}

func (h *Handler) handleCharacterRemove(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.deferEphemeral(i) {
		return
	}

	userID, _ := interactionUser(i)
	id, ok := h.ownedCharacterID(i, sub)
	if !ok {
		return
	}
	if err := h.characters.Delete(ctx, id, userID, i.GuildID); err != nil {
		log.Error().Err(err).Uint("character_id", id).Msg("Character removal failed")
		h.followupEphemeral(i, "Could not remove the character.")
		return
	}
	h.followupEphemeral(i, "Character removed.")
}

func (h *Handler) handleCharacterGS(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.deferEphemeral(i) {
		return
	}

	opts := indexOptions(sub.Options)
	userID, _ := interactionUser(i)
	id, ok := h.ownedCharacterID(i, sub)
	if !ok {
		return
	}
	gearScore, _ := intOption(opts, "value")
	if gearScore < 0 {
		h.followupEphemeral(i, "Gear score can't be negative.")
		return
	}
	if err := h.characters.SetGearScore(ctx, id, userID, i.GuildID, gearScore); err != nil {
		log.Error().Err(err).Uint("character_id", id).Msg("Gear score update failed")
		h.followupEphemeral(i, "Could not update the gear score.")
		return
	}
	h.followupEphemeral(i, fmt.Sprintf("Gear score updated to %d.", gearScore))
}

func (h *Handler) handleCharacterMain(ctx context.Context, i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) {
	if !h.deferEphemeral(i) {
		return
	}

	userID, _ := interactionUser(i)
	id, ok := h.ownedCharacterID(i, sub)
	if !ok {
		return
	}
	if err := h.characters.SetMain(ctx, id, userID, i.GuildID); err != nil {
		log.Error().Err(err).Uint("character_id", id).Msg("Main switch failed")
		h.followupEphemeral(i, "Could not update your main.")
		return
	}
	h.followupEphemeral(i, "Main character updated.")
}

func (h *Handler) handleCharacterHelp(i *discordgo.InteractionCreate) {
	help := strings.Join([]string{
		"**/character add** — register a character with its class and gear score",
		"**/character list** — show your roster (⭐ marks your main)",
		"**/character setgs** — update a character's gear score",
		"**/character main** — pick which character is your main",
		"**/character remove** — delete a character",
		"",
		"Your main character is the one party signups and gear-score checks use by default.",
	}, "\n")
	h.respondEphemeral(i, help)
}

// ownedCharacterID parses the character option; it validates shape only,
// ownership is enforced by the repository's scoped writes
func (h *Handler) ownedCharacterID(i *discordgo.InteractionCreate, sub *discordgo.ApplicationCommandInteractionDataOption) (uint, bool) {
	opts := indexOptions(sub.Options)
	id, err := strconv.ParseUint(stringOption(opts, "character"), 10, 32)
	if err != nil {
		h.followupEphemeral(i, "Pick a character from the suggestions.")
		return 0, false
	}
	return uint(id), true
}

func (h *Handler) handleCharacterAutocomplete(ctx context.Context, i *discordgo.InteractionCreate, data discordgo.ApplicationCommandInteractionData) {
	if len(data.Options) == 0 {
		return
	}
	sub := data.Options[0]
	query := focusedValue(sub.Options)

	var choices []*discordgo.ApplicationCommandOptionChoice
	switch sub.Name {
	case "add":
		classes, err := h.characters.SearchClasses(ctx, query, 25)
		if err != nil {
			log.Warn().Err(err).Msg("Class search failed")
			break
		}
		for _, class := range classes {
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  fmt.Sprintf("%s — %s (%s)", class.Name, class.SubClass, class.Role),
				Value: strconv.FormatUint(uint64(class.ID), 10),
			})
		}
	case "remove", "setgs", "main":
		userID, _ := interactionUser(i)
		characters, err := h.characters.ListByUser(ctx, userID, i.GuildID)
		if err != nil {
			log.Warn().Err(err).Msg("Character listing failed")
			break
		}
		lowered := strings.ToLower(query)
		for _, c := range characters {
			label := fmt.Sprintf("%s (GS %d)", c.Class.SubClass, c.GearScore)
			if lowered != "" && !strings.Contains(strings.ToLower(label), lowered) {
				continue
			}
			choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  label,
				Value: strconv.FormatUint(uint64(c.ID), 10),
			})
			if len(choices) == 25 {
				break
			}
		}
	}

	h.respondChoices(i, choices)
}
