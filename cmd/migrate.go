package cmd

import (
	"example.com/partybot/config"
	"example.com/partybot/internal/database"
	"example.com/partybot/internal/models"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long:  `Run schema migrations and seed the class catalog`,
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := database.AutoMigrate(db); err != nil {
		return err
	}
	if err := seedClasses(db); err != nil {
		return err
	}

	log.Info().Msg("Migrations complete")
	return nil
}

// seedClasses inserts the class catalog. Re-running is safe: existing
// name/subclass pairs are left untouched.
func seedClasses(db *gorm.DB) error {
	classes := []models.Class{
		{Name: "Warrior", SubClass: "Guardian", Role: "tank"},
		{Name: "Warrior", SubClass: "Berserker", Role: "dps"},
		{Name: "Warrior", SubClass: "Destroyer", Role: "tank"},
		{Name: "Mage", SubClass: "Sorceress", Role: "dps"},
		{Name: "Mage", SubClass: "Bard", Role: "heal"},
		{Name: "Mage", SubClass: "Arcanist", Role: "dps"},
		{Name: "Martial Artist", SubClass: "Striker", Role: "dps"},
		{Name: "Martial Artist", SubClass: "Wardancer", Role: "dps"},
		{Name: "Gunner", SubClass: "Sharpshooter", Role: "dps"},
		{Name: "Gunner", SubClass: "Artillerist", Role: "dps"},
		{Name: "Assassin", SubClass: "Shadowhunter", Role: "dps"},
		{Name: "Assassin", SubClass: "Deathblade", Role: "dps"},
		{Name: "Specialist", SubClass: "Artist", Role: "heal"},
		{Name: "Specialist", SubClass: "Aeromancer", Role: "dps"},
	}

	for _, class := range classes {
		err := db.Where(models.Class{Name: class.Name, SubClass: class.SubClass}).
			FirstOrCreate(&class).Error
		if err != nil {
			return errors.Wrapf(err, "failed to seed class %s/%s", class.Name, class.SubClass)
		}
	}
	return nil
}
