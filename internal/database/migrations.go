package database

import (
	"errors"
	"time"

	"github.com/biolinkhq/biolink/internal/biolinks"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillEmptyThemes = "2026-10-01_backfill_empty_theme_json"
	migrationPurgeOrphanedRows   = "2026-10-02_purge_orphaned_biolink_children"
)

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
		{name: migrationBackfillEmptyThemes, apply: backfillEmptyThemes},
		{name: migrationPurgeOrphanedRows, apply: purgeOrphanedRows},
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
		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.apply(tx); err != nil {
				return err
			}
			appliedAt := time.Now().UTC().Unix()
			return tx.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error
		})
		if err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// backfillEmptyThemes rewrites blank theme blobs to an empty JSON object.
func backfillEmptyThemes(db *gorm.DB) error {
	return db.Model(&biolinks.Biolink{}).
		Where("theme_json IS NULL OR TRIM(theme_json) = ''").
		Update("theme_json", "{}").Error
}

// purgeOrphanedRows removes children whose parent biolink no longer exists.
func purgeOrphanedRows(db *gorm.DB) error {
	parents := db.Model(&biolinks.Biolink{}).Select("id")
	children := []interface{}{
		&biolinks.Link{},
		&biolinks.SocialLink{},
		&biolinks.EmailSubscriber{},
		&biolinks.AnalyticsEvent{},
		&biolinks.QrScan{},
	}
	for _, model := range children {
		if err := db.Where("biolink_id NOT IN (?)", parents).Delete(model).Error; err != nil {
			return err
		}
	}
	return nil
}
