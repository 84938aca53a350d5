package repository

import (
	"errors"
	"presence-bot/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettingRepository interface {
	Get(key string) (*models.Setting, error)
	Set(key, value string) error
}

type GormSettingRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormSettingRepository(db *gorm.DB) (*GormSettingRepository, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate settings table")
		return nil, err
	}

	return &GormSettingRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormSettingRepository) Get(key string) (*models.Setting, error) {
	var setting models.Setting
	result := r.db.Where("name = ?", key).First(&setting)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		r.logger.WithField("key", key).Debug("Setting not found")
		return nil, nil
	}
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to get setting")
		return nil, result.Error
	}
	return &setting, nil
}

func (r *GormSettingRepository) Set(key, value string) error {
	r.logger.WithFields(logrus.Fields{
		"key":   key,
		"value": value,
	}).Info("Updating setting")

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&models.Setting{Name: key, Value: value}).Error
}
