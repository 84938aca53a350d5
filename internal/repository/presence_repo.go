package repository

import (
	"errors"
	"presence-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PresenceRepository interface {
	Upsert(record *models.PresenceRecord) error
	GetByDate(date string) (*models.PresenceRecord, error)
	GetRange(start, end string) ([]models.PresenceRecord, error)
	GetAll() ([]models.PresenceRecord, error)
	CreateIfAbsent(records []models.PresenceRecord) (int64, error)
	ReplacePlanned(remove []string, add []models.PresenceRecord) error
}

type GormPresenceRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormPresenceRepository(db *gorm.DB) (*GormPresenceRepository, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	// Автомиграция
	if err := db.AutoMigrate(&models.PresenceRecord{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate presence_records table")
		return nil, err
	}

	logger.Info("Presence repository initialized")

	return &GormPresenceRepository{
		db:     db,
		logger: logger,
	}, nil
}

// Upsert создает или перезаписывает запись на дату
func (r *GormPresenceRepository) Upsert(record *models.PresenceRecord) error {
	r.logger.WithFields(logrus.Fields{
		"date":   record.Date,
		"status": record.Status,
	}).Info("Saving presence record")

	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "reason", "updated_at"}),
	}).Create(record)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to save presence record")
		return result.Error
	}
	return nil
}

func (r *GormPresenceRepository) GetByDate(date string) (*models.PresenceRecord, error) {
	var record models.PresenceRecord
	result := r.db.Where("date = ?", date).First(&record)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("date", date).Debug("Presence record not found")
		return nil, nil
	}

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get presence record")
		return nil, result.Error
	}

	return &record, nil
}

// GetRange возвращает записи в полуинтервале [start, end)
func (r *GormPresenceRepository) GetRange(start, end string) ([]models.PresenceRecord, error) {
	var records []models.PresenceRecord
	result := r.db.Where("date >= ? AND date < ?", start, end).
		Order("date ASC").
		Find(&records)

	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get presence records by range")
		return nil, result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"start": start,
		"end":   end,
		"count": len(records),
	}).Debug("Retrieved presence records by range")

	return records, nil
}

func (r *GormPresenceRepository) GetAll() ([]models.PresenceRecord, error) {
	var records []models.PresenceRecord
	err := r.db.Order("date DESC").Find(&records).Error
	return records, err
}

// CreateIfAbsent добавляет записи только на даты без записей
func (r *GormPresenceRepository) CreateIfAbsent(records []models.PresenceRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	result := r.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&records)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to bulk create presence records")
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// ReplacePlanned в одной транзакции удаляет запланированные дни из remove
// и записывает add. Записи с другими статусами не удаляются.
func (r *GormPresenceRepository) ReplacePlanned(remove []string, add []models.PresenceRecord) error {
	r.logger.WithFields(logrus.Fields{
		"remove": len(remove),
		"add":    len(add),
	}).Info("Replacing planned presence records")

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if len(remove) > 0 {
			err := tx.Where("date IN ? AND status = ?", remove, models.PresencePlanned).
				Delete(&models.PresenceRecord{}).Error
			if err != nil {
				return err
			}
		}
		for i := range add {
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "reason", "updated_at"}),
			}).Create(&add[i]).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.logger.WithError(err).Error("Failed to replace planned presence records")
	}
	return err
}
