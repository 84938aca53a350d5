package weekends

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CalendarJSON - структура производственного календаря (формат xmlcalendar)
type CalendarJSON struct {
	Year        int             `json:"year"`
	Months      []MonthWeekends `json:"months"`
	Transitions []Transition    `json:"transitions"`
	Statistic   Statistic       `json:"statistic"`
}

type MonthWeekends struct {
	Month int    `json:"month"`
	Days  string `json:"days"` // "1,2,3+,7*": "+" перенесенный выходной, "*" сокращенный рабочий день
}

type Transition struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type Statistic struct {
	Workdays int `json:"workdays"`
	Holidays int `json:"holidays"`
}

// NonWorkingDay - нерабочий день календаря
type NonWorkingDay struct {
	Date        time.Time
	Transferred bool
}

// ParseWeekendsJSON читает календарь и возвращает нерабочие дни.
// Сокращенные дни ("*") рабочие и в результат не попадают.
func ParseWeekendsJSON(filePath string) ([]NonWorkingDay, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON file: %w", err)
	}
	return ParseWeekends(data)
}

func ParseWeekends(data []byte) ([]NonWorkingDay, error) {
	var calendar CalendarJSON
	if err := json.Unmarshal(data, &calendar); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	if calendar.Year == 0 {
		return nil, fmt.Errorf("calendar year is missing")
	}

	days := []NonWorkingDay{}
	for _, monthData := range calendar.Months {
		if monthData.Month < 1 || monthData.Month > 12 {
			return nil, fmt.Errorf("invalid month %d", monthData.Month)
		}

		for _, dayStr := range strings.Split(monthData.Days, ",") {
			dayStr = strings.TrimSpace(dayStr)
			if dayStr == "" || strings.HasSuffix(dayStr, "*") {
				continue
			}
			transferred := strings.HasSuffix(dayStr, "+")
			dayStr = strings.TrimSuffix(dayStr, "+")

			day, err := strconv.Atoi(dayStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse day '%s' in month %d: %w",
					dayStr, monthData.Month, err)
			}

			date := time.Date(calendar.Year, time.Month(monthData.Month), day, 0, 0, 0, 0, time.Local)
			if date.Month() != time.Month(monthData.Month) {
				return nil, fmt.Errorf("day %d does not exist in month %d", day, monthData.Month)
			}

			days = append(days, NonWorkingDay{Date: date, Transferred: transferred})
		}
	}

	return days, nil
}

// Holidays возвращает только нерабочие дни, выпадающие на будни:
// субботы и воскресенья и так считаются выходными
func Holidays(days []NonWorkingDay) []NonWorkingDay {
	result := []NonWorkingDay{}
	for _, day := range days {
		wd := day.Date.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			continue
		}
		result = append(result, day)
	}
	return result
}
