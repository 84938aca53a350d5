package timeutil

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"

	// формат дат, к которому привыкли пользователи бота
	ruDateLayout     = "02.01.2006"
	ruDateTimeLayout = "02.01.2006 15:04"
)

var (
	ErrInvalidDate    = errors.New("некорректная дата")
	ErrInvalidWeekday = errors.New("некорректный день недели")
)

// Clock - источник текущего времени
type Clock interface {
	Now() time.Time
}

// SystemClock возвращает системное время
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// ClockFunc позволяет использовать функцию как Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// DateKey возвращает ключ даты в формате YYYY-MM-DD
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDateKey парсит ключ даты. Принимает также формат 02.01.2006
func ParseDateKey(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateLayout, ruDateLayout} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseDateTime парсит дату и время напоминания
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{DateTimeLayout, ruDateTimeLayout, "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// StartOfDay возвращает полночь того же дня
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays сдвигает дату на n календарных дней (без учета перехода на летнее время)
func AddDays(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+n, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// SameDay проверяет, что обе даты приходятся на один календарный день
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WeekdayIndex возвращает номер дня недели: 0 - воскресенье, 6 - суббота
func WeekdayIndex(t time.Time) int {
	return int(t.Weekday())
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// StartOfWeek возвращает понедельник текущей недели
func StartOfWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	offset := int(day.Weekday()) - int(time.Monday)
	if offset < 0 {
		offset += 7
	}
	return AddDays(day, -offset)
}

// NextOccurrence возвращает ближайшую дату с днем недели wd, начиная с today.
// Если wd совпадает с днем недели today, возвращается сам today.
func NextOccurrence(today time.Time, wd time.Weekday) time.Time {
	day := StartOfDay(today)
	offset := (int(wd) - int(day.Weekday()) + 7) % 7
	return AddDays(day, offset)
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday, "вс": time.Sunday,
	"mon": time.Monday, "monday": time.Monday, "пн": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday, "вт": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday, "ср": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday, "чт": time.Thursday,
	"fri": time.Friday, "friday": time.Friday, "пт": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday, "сб": time.Saturday,
}

// ParseWeekday принимает "mon", "пн" или номер (1 - понедельник, 0 и 7 - воскресенье)
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if wd, ok := weekdayNames[s]; ok {
		return wd, nil
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 7 {
		return time.Weekday(n % 7), nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// ParseWeekdays разбирает список дней через запятую или пробел
func ParseWeekdays(s string) ([]time.Weekday, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == ';'
	})
	days := make([]time.Weekday, 0, len(fields))
	for _, f := range fields {
		wd, err := ParseWeekday(f)
		if err != nil {
			return nil, err
		}
		days = append(days, wd)
	}
	return days, nil
}

// ShortWeekday - короткое название дня недели для сообщений
func ShortWeekday(wd time.Weekday) string {
	return [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}[wd]
}
