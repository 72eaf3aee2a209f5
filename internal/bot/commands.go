package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
)

// CommandDefinitions returns the application commands this bot serves
func CommandDefinitions() []*discordgo.ApplicationCommand {
	minGS := 0.0
	return []*discordgo.ApplicationCommand{
		{
			Name:        "party",
			Description: "Schedule and manage parties",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "create",
					Description: "Create a new party",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         "event",
							Description:  "Event template",
							Required:     true,
							Autocomplete: true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "date",
							Description: "Start date (YYYY-MM-DD)",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "time",
							Description: "Start time (HH:mm)",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "utc_offset",
							Description: "Your UTC offset, e.g. +13 or -05:30",
							Required:    true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "min_gs",
							Description: "Minimum gear score to join",
							MinValue:    &minGS,
						},
						{
							Type:        discordgo.ApplicationCommandOptionString,
							Name:        "description",
							Description: "Extra details for the listing",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "close",
					Description: "Close a party you manage",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         "party",
							Description:  "The party to close",
							Required:     true,
							Autocomplete: true,
						},
					},
				},
			},
		},
		{
			Name:        "character",
			Description: "Manage your character roster",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "add",
					Description: "Add a character",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         "class",
							Description:  "Character class",
							Required:     true,
							Autocomplete: true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "gs",
							Description: "Gear score",
							Required:    true,
							MinValue:    &minGS,
						},
						{
							Type:        discordgo.ApplicationCommandOptionBoolean,
							Name:        "main",
							Description: "Mark as your main character",
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "list",
					Description: "List your characters",
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "remove",
					Description: "Remove a character",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         "character",
							Description:  "The character to remove",
							Required:     true,
							Autocomplete: true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "setgs",
					Description: "Update a character's gear score",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         "character",
							Description:  "The character to update",
							Required:     true,
							Autocomplete: true,
						},
						{
							Type:        discordgo.ApplicationCommandOptionInteger,
							Name:        "value",
							Description: "New gear score",
							Required:    true,
							MinValue:    &minGS,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "main",
					Description: "Switch your main character",
					Options: []*discordgo.ApplicationCommandOption{
						{
							Type:         discordgo.ApplicationCommandOptionString,
							Name:         "character",
							Description:  "The character to promote",
							Required:     true,
							Autocomplete: true,
						},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionSubCommand,
					Name:        "help",
					Description: "Show how character commands work",
				},
			},
		},
		{
			Name:        "callout",
			Description: "Ping everyone signed up (use inside a party thread)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "message",
					Description: "Message to send with the ping",
				},
			},
		},
	}
}

// RegisterCommands overwrites the guild's application commands with this
// bot's definitions. An empty guildID registers globally.
func RegisterCommands(session *discordgo.Session, applicationID, guildID string) error {
	_, err := session.ApplicationCommandBulkOverwrite(applicationID, guildID, CommandDefinitions())
	return errors.Wrap(err, "failed to register commands")
}
