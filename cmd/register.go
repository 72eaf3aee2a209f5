package cmd

import (
	"example.com/partybot/config"
	"example.com/partybot/internal/bot"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register slash commands",
	Long:  `Overwrite the guild's slash commands with this build's definitions`,
	RunE:  runRegister,
}

func init() {
	rootCmd.AddCommand(registerCmd)
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return errors.Wrap(err, "failed to create Discord session")
	}

	if err := bot.RegisterCommands(session, cfg.Discord.ApplicationID, cfg.Discord.GuildID); err != nil {
		return err
	}

	log.Info().Str("guild_id", cfg.Discord.GuildID).Msg("Slash commands registered")
	return nil
}
