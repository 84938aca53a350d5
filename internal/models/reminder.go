package models

import (
	"fmt"
	"time"
)

const (
	ReminderStandard = "standard"
	ReminderSystem   = "system" // создаются планировщиком недели
)

// Состояния напоминания
const (
	ReminderPending  = "pending"
	ReminderNotified = "notified"
	ReminderDone     = "done"
)

type Reminder struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	DateTime  time.Time `json:"dateTime"`
	Completed bool      `json:"completed"`
	Notified  bool      `json:"notified"`
	Type      string    `json:"type"`
}

// IsDue проверяет, пора ли отправить уведомление
func (r *Reminder) IsDue(now time.Time) bool {
	return r.IsPending() && !r.DateTime.After(now)
}

// IsPending - не выполнено и уведомление еще не отправлено
func (r *Reminder) IsPending() bool {
	return !r.Completed && !r.Notified
}

func (r *Reminder) IsSystem() bool {
	return r.Type == ReminderSystem
}

func (r *Reminder) State() string {
	switch {
	case r.Completed:
		return ReminderDone
	case r.Notified:
		return ReminderNotified
	}
	return ReminderPending
}

// FormatLine форматирует напоминание одной строкой
func (r *Reminder) FormatLine() string {
	mark := "⏳"
	switch r.State() {
	case ReminderNotified:
		mark = "🔔"
	case ReminderDone:
		mark = "✅"
	}
	return fmt.Sprintf("%s %s - %s (id %s)", mark, r.DateTime.Format("02.01 15:04"), r.Title, r.ID)
}
