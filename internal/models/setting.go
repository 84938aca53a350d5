package models

import "time"

const (
	SettingGoal = "goal" // недельная цель по дням в офисе, 1-5

	MinGoal = 1
	MaxGoal = 5
)

type Setting struct {
	Name      string    `gorm:"primaryKey;type:varchar(64)" json:"name"`
	Value     string    `gorm:"not null" json:"value"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}
