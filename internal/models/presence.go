package models

import (
	"strings"
	"time"
)

// Статусы присутствия
const (
	PresenceOffice  = "office"
	PresenceRemote  = "remote"
	PresenceLeave   = "leave"
	PresenceWeekend = "weekend" // не сохраняется, выводится из дня недели
	PresenceHoliday = "holiday"
	PresenceSick    = "sick"
	PresenceOther   = "other"
	PresencePlanned = "planned" // запланированный день в офисе

	// PresenceNone - нет записи о будущем или неотслеживаемом дне
	PresenceNone = "none"
)

type PresenceRecord struct {
	Date      string    `gorm:"primaryKey;type:varchar(10)" json:"date"` // YYYY-MM-DD
	Status    string    `gorm:"type:varchar(20);not null;index" json:"status"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"-"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`

	// Derived true, если запись не хранится, а выведена по умолчанию
	Derived bool `gorm:"-" json:"-"`
}

func (PresenceRecord) TableName() string {
	return "presence_records"
}

// IsStoredStatus проверяет, можно ли сохранить статус
func IsStoredStatus(status string) bool {
	switch status {
	case PresenceOffice, PresenceRemote, PresenceLeave, PresenceHoliday,
		PresenceSick, PresenceOther, PresencePlanned:
		return true
	}
	return false
}

// HasReason - причина имеет смысл только для отпуска и "другого"
func HasReason(status string) bool {
	return status == PresenceLeave || status == PresenceOther
}

// Normalize обрезает пробелы вокруг причины
func (r *PresenceRecord) Normalize() {
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *PresenceRecord) IsPlanned() bool {
	return r.Status == PresencePlanned
}

// StatusEmoji возвращает значок статуса для сообщений
func StatusEmoji(status string) string {
	switch status {
	case PresenceOffice:
		return "🏢"
	case PresenceRemote:
		return "🏠"
	case PresenceLeave:
		return "🏖️"
	case PresenceWeekend:
		return "💤"
	case PresenceHoliday:
		return "🎉"
	case PresenceSick:
		return "🤒"
	case PresencePlanned:
		return "📌"
	case PresenceOther:
		return "📝"
	}
	return "▫️"
}

var statusAliases = map[string]string{
	"office": PresenceOffice, "офис": PresenceOffice,
	"remote": PresenceRemote, "удаленно": PresenceRemote, "дом": PresenceRemote, "home": PresenceRemote,
	"leave": PresenceLeave, "отпуск": PresenceLeave, "vacation": PresenceLeave,
	"holiday": PresenceHoliday, "праздник": PresenceHoliday,
	"sick": PresenceSick, "больничный": PresenceSick,
	"other": PresenceOther, "другое": PresenceOther,
	"planned": PresencePlanned, "план": PresencePlanned,
}

// ParseStatus принимает статус на английском или по-русски
func ParseStatus(s string) (string, bool) {
	status, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]
	return status, ok
}

// StatusLabel - название статуса для пользователя
func StatusLabel(status string) string {
	switch status {
	case PresenceOffice:
		return "Офис"
	case PresenceRemote:
		return "Удаленно"
	case PresenceLeave:
		return "Отпуск"
	case PresenceWeekend:
		return "Выходной"
	case PresenceHoliday:
		return "Праздник"
	case PresenceSick:
		return "Больничный"
	case PresenceOther:
		return "Другое"
	case PresencePlanned:
		return "Запланирован офис"
	}
	return "Не отмечено"
}
