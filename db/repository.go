package db

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bobberdolle1/Puppeteer/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetActivePersona returns the active persona, or nil when none is active.
func GetActivePersona(gdb *gorm.DB) (*models.Persona, error) {
	var p models.Persona
	err := gdb.Where("is_active = ?", true).Order("updated_at DESC").First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// DefaultChatSettings is the policy applied to chats with no stored row, and
// the fallback when settings cannot be loaded.
func DefaultChatSettings(chatID int64) models.ChatSettings {
	return models.ChatSettings{
		ChatID:           chatID,
		AutoReplyEnabled: true,
		ReplyMode:        "mention_only",
		CooldownSeconds:  5,
		ContextDepth:     10,
		RagEnabled:       true,
	}
}

func GetOrCreateChatSettings(gdb *gorm.DB, chatID int64) (models.ChatSettings, error) {
	var s models.ChatSettings
	err := gdb.First(&s, "chat_id = ?", chatID).Error
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultChatSettings(chatID), err
	}
	s = DefaultChatSettings(chatID)
	if err := gdb.Create(&s).Error; err != nil {
		return DefaultChatSettings(chatID), err
	}
	return s, nil
}

// SaveMessage appends one row to the raw message log.
func SaveMessage(gdb *gorm.DB, msg *models.Message) (uint, error) {
	if err := gdb.Create(msg).Error; err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// GetConfig reads a runtime override; found is false when the key is unset.
func GetConfig(gdb *gorm.DB, key string) (value string, found bool, err error) {
	var rc models.RuntimeConfig
	err = gdb.First(&rc, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return rc.Value, true, nil
}

// GetConfigString returns the runtime override for key, or fallback when the
// key is unset or unreadable.
func GetConfigString(gdb *gorm.DB, key, fallback string) string {
	v, ok, err := GetConfig(gdb, key)
	if err != nil || !ok || strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func GetConfigFloat(gdb *gorm.DB, key string, fallback float64) float64 {
	v, ok, err := GetConfig(gdb, key)
	if err != nil || !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return fallback
	}
	return f
}

func GetConfigInt(gdb *gorm.DB, key string, fallback int) int {
	v, ok, err := GetConfig(gdb, key)
	if err != nil || !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fallback
	}
	return n
}

func SetConfig(gdb *gorm.DB, key, value string) error {
	rc := models.RuntimeConfig{Key: key, Value: value}
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&rc).Error
}

// UpsertAccount records the identity resolved at startup as an active
// account row, keyed by the platform user ID.
func UpsertAccount(gdb *gorm.DB, platformID int64, username, displayName string) error {
	acct := models.Account{
		PlatformID:  platformID,
		Username:    username,
		DisplayName: displayName,
		IsActive:    true,
	}
	return gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "platform_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "display_name", "is_active", "updated_at"}),
	}).Create(&acct).Error
}
