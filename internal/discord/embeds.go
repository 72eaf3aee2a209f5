package discord

import (
	"fmt"
	"strings"

	"example.com/partybot/internal/models"
	"example.com/partybot/internal/party"
	"example.com/partybot/internal/signup"

	"github.com/bwmarrin/discordgo"
)

const (
	colorOpen   = 0x00b0ff
	colorClosed = 0x6b7280
)

// ListingEmbed renders a party into its listing embed. Lane fields are
// inline and padded to a multiple of three so Discord's grid stays aligned.
func ListingEmbed(view party.ListingView) *discordgo.MessageEmbed {
	event := view.Event

	title := event.Title
	color := colorOpen
	if !event.IsOpen() {
		title = "[CLOSED] " + title
		color = colorClosed
	}

	fields := []*discordgo.MessageEmbedField{
		{
			Name:   "Time",
			Value:  fmt.Sprintf("<t:%d:F> (<t:%d:R>)", event.StartTime.Unix(), event.StartTime.Unix()),
			Inline: false,
		},
		{
			Name:   "Host",
			Value:  fmt.Sprintf("<@%s>", event.CreatorID),
			Inline: false,
		},
	}
	if event.MinGearScore != nil && *event.MinGearScore > 0 {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   "Min GS",
			Value:  fmt.Sprintf("%d", *event.MinGearScore),
			Inline: false,
		})
	}

	for _, lane := range view.Lanes {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:   laneHeading(lane),
			Value:  laneRoster(lane),
			Inline: true,
		})
	}
	for len(view.Lanes) > 0 && (len(fields)-embedHeaderFields(event))%3 != 0 {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "​", Value: "​", Inline: true})
	}

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: event.Description,
		Color:       color,
		Fields:      fields,
		Footer:      &discordgo.MessageEmbedFooter{Text: "Party " + event.ID},
	}
	if event.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: event.ImageURL}
	}
	return embed
}

func embedHeaderFields(event models.Event) int {
	if event.MinGearScore != nil && *event.MinGearScore > 0 {
		return 3
	}
	return 2
}

func laneHeading(lane signup.LaneView) string {
	name := lane.Lane.Name
	if lane.Lane.Emoji != "" {
		name = lane.Lane.Emoji + " " + name
	}
	if lane.Lane.Unlimited() {
		return fmt.Sprintf("%s (%d)", name, len(lane.Occupants))
	}
	return fmt.Sprintf("%s (%d/%d)", name, len(lane.Occupants), lane.Lane.Capacity)
}

func laneRoster(lane signup.LaneView) string {
	if len(lane.Occupants) == 0 {
		return "—"
	}
	lines := make([]string, 0, len(lane.Occupants))
	for _, occ := range lane.Occupants {
		if occ.GearScore != nil {
			lines = append(lines, fmt.Sprintf("<@%s> (%d)", occ.UserID, *occ.GearScore))
		} else {
			lines = append(lines, fmt.Sprintf("<@%s>", occ.UserID))
		}
	}
	return strings.Join(lines, "\n")
}
