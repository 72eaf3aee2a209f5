package repositories

import (
	"context"
	"strings"

	"example.com/partybot/internal/models"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// CharacterRepository provides access to roster data
type CharacterRepository struct {
	db *gorm.DB
}

// NewCharacterRepository creates a new character repository
func NewCharacterRepository(db *gorm.DB) *CharacterRepository {
	return &CharacterRepository{db: db}
}

// Create adds a character. When isMain is set, any previous main for the
// user in the guild is demoted first.
func (r *CharacterRepository) Create(ctx context.Context, character *models.Character) error {
	if character.IsMain {
		err := r.db.WithContext(ctx).
			Model(&models.Character{}).
			Where("user_id = ? AND guild_id = ?", character.UserID, character.GuildID).
			Update("is_main", false).Error
		if err != nil {
			return errors.Wrap(err, "failed to demote previous main")
		}
	}
	return errors.Wrap(r.db.WithContext(ctx).Create(character).Error, "failed to create character")
}

// GetOwned gets a character by id only when it belongs to the user in the
// guild. Returns (nil, nil) when missing or not owned.
func (r *CharacterRepository) GetOwned(ctx context.Context, id uint, userID, guildID string) (*models.Character, error) {
	var character models.Character
	err := r.db.WithContext(ctx).
		Preload("Class").
		Where("id = ? AND user_id = ? AND guild_id = ?", id, userID, guildID).
		First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get character")
	}
	return &character, nil
}

// ListByUser lists a user's characters, main first
func (r *CharacterRepository) ListByUser(ctx context.Context, userID, guildID string) ([]models.Character, error) {
	var characters []models.Character
	err := r.db.WithContext(ctx).
		Preload("Class").
		Joins("JOIN classes ON classes.id = characters.class_id").
		Where("characters.user_id = ? AND characters.guild_id = ?", userID, guildID).
		Order("characters.is_main DESC, classes.role ASC, classes.name ASC").
		Find(&characters).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to list characters")
	}
	return characters, nil
}

// HasClass reports whether the user already registered this class
func (r *CharacterRepository) HasClass(ctx context.Context, userID, guildID string, classID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("user_id = ? AND guild_id = ? AND class_id = ?", userID, guildID, classID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "failed to check character class")
	}
	return count > 0, nil
}

// Delete removes a character owned by the user
func (r *CharacterRepository) Delete(ctx context.Context, id uint, userID, guildID string) error {
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND guild_id = ?", id, userID, guildID).
		Delete(&models.Character{}).Error
	return errors.Wrap(err, "failed to delete character")
}

// SetGearScore updates a character's gear score
func (r *CharacterRepository) SetGearScore(ctx context.Context, id uint, userID, guildID string, gearScore int) error {
	err := r.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("id = ? AND user_id = ? AND guild_id = ?", id, userID, guildID).
		Update("gear_score", gearScore).Error
	return errors.Wrap(err, "failed to set gear score")
}

// SetMain marks one character as the user's main, demoting the rest
func (r *CharacterRepository) SetMain(ctx context.Context, id uint, userID, guildID string) error {
	err := r.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("user_id = ? AND guild_id = ?", userID, guildID).
		Update("is_main", false).Error
	if err != nil {
		return errors.Wrap(err, "failed to demote previous main")
	}
	err = r.db.WithContext(ctx).
		Model(&models.Character{}).
		Where("id = ? AND user_id = ? AND guild_id = ?", id, userID, guildID).
		Update("is_main", true).Error
	return errors.Wrap(err, "failed to set main character")
}

// MainForUser gets the user's designated main character with its class.
// Returns (nil, nil) when no main is set.
func (r *CharacterRepository) MainForUser(ctx context.Context, userID, guildID string) (*models.Character, error) {
	var character models.Character
	err := r.db.WithContext(ctx).
		Preload("Class").
		Where("user_id = ? AND guild_id = ? AND is_main = ?", userID, guildID, true).
		First(&character).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get main character")
	}
	return &character, nil
}

// BestScoreForRole returns the user's highest gear score across characters
// whose class fills the given role. Unresolvable lookups yield zero.
func (r *CharacterRepository) BestScoreForRole(ctx context.Context, userID, guildID, role string) (int, error) {
	var best *int
	err := r.db.WithContext(ctx).
		Model(&models.Character{}).
		Select("MAX(characters.gear_score)").
		Joins("JOIN classes ON classes.id = characters.class_id").
		Where("characters.user_id = ? AND characters.guild_id = ? AND LOWER(classes.role) = ?",
			userID, guildID, strings.ToLower(role)).
		Scan(&best).Error
	if err != nil {
		return 0, errors.Wrap(err, "failed to get best score for role")
	}
	if best == nil {
		return 0, nil
	}
	return *best, nil
}

// SearchClasses finds classes matching a partial name for autocomplete
func (r *CharacterRepository) SearchClasses(ctx context.Context, query string, limit int) ([]models.Class, error) {
	var classes []models.Class
	q := "%" + query + "%"
	err := r.db.WithContext(ctx).
		Where("name ILIKE ? OR sub_class ILIKE ?", q, q).
		Order("role ASC, name ASC, sub_class ASC").
		Limit(limit).
		Find(&classes).Error
	if err != nil {
		return nil, errors.Wrap(err, "failed to search classes")
	}
	return classes, nil
}

// GetClass gets a class by id. Returns (nil, nil) when missing.
func (r *CharacterRepository) GetClass(ctx context.Context, id uint) (*models.Class, error) {
	var class models.Class
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&class).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get class")
	}
	return &class, nil
}
