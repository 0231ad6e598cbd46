package database

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Streetliferoleplay/web43/internal/whitelist"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationNormalizeAnswerKeys = "2025-09-14_normalize_answer_keys"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationNormalizeAnswerKeys, apply: normalizeAnswerKeys},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// normalizeAnswerKeys rewrites legacy answers_json blobs whose question keys
// were stored with their original casing. Current intake lowercases keys at
// the edge, but databases written before that change can still carry Q7-style
// entries.
func normalizeAnswerKeys(db *gorm.DB) error {
	var submissions []whitelist.Submission
	if err := db.Where("answers_json IS NOT NULL").Find(&submissions).Error; err != nil {
		return err
	}

	for _, submission := range submissions {
		raw := map[string]string{}
		if err := json.Unmarshal([]byte(*submission.AnswersJSON), &raw); err != nil {
			continue
		}

		changed := false
		normalized := make(map[string]string, len(raw))
		for key, value := range raw {
			lowered := strings.ToLower(key)
			if lowered != key {
				changed = true
			}
			normalized[lowered] = value
		}
		if !changed {
			continue
		}

		encoded, err := json.Marshal(normalized)
		if err != nil {
			return err
		}
		err = db.Model(&whitelist.Submission{}).
			Where("id = ?", submission.ID).
			Update("answers_json", string(encoded)).Error
		if err != nil {
			return err
		}
	}
	return nil
}
