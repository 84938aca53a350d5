package service

import (
	"fmt"
	"sort"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/repository"
	"presence-bot/internal/timeutil"

	"github.com/sirupsen/logrus"
)

// PlanWindowDays - длина скользящего окна планирования
const PlanWindowDays = 7

// Plan - разница между выбранными днями недели и уже запланированными
type Plan struct {
	WindowStart time.Time
	WindowEnd   time.Time // не включается

	Current  []time.Weekday // дни, уже запланированные в окне
	Selected []time.Weekday // новый выбор после проверки и ограничения целью

	ToAdd    []time.Time // новые запланированные даты
	ToRemove []time.Time // запланированные даты, которые больше не выбраны
	Skipped  []time.Time // выбранные даты, занятые записью с другим статусом

	HasChanges bool
}

type PlanResult struct {
	Plan
	Reminders []models.Reminder // созданные системные напоминания
}

// PlanResolver превращает выбор дней недели в конкретные даты на
// ближайшие 7 дней и синхронизирует записи со статусом planned
type PlanResolver struct {
	repo      repository.PresenceRepository
	presence  *PresenceService
	reminders *ReminderStore
	logger    *logrus.Logger
}

func NewPlanResolver(
	repo repository.PresenceRepository,
	presence *PresenceService,
	reminders *ReminderStore,
) *PlanResolver {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &PlanResolver{
		repo:      repo,
		presence:  presence,
		reminders: reminders,
		logger:    logger,
	}
}

// Preview считает план без записи в хранилища
func (p *PlanResolver) Preview(now time.Time, selection []time.Weekday) (*Plan, error) {
	goal, err := p.presence.GetGoal()
	if err != nil {
		return nil, err
	}
	selected, err := normalizeSelection(selection, goal)
	if err != nil {
		return nil, err
	}
	if len(selected) < len(uniqueWeekdays(selection)) {
		p.logger.WithFields(logrus.Fields{
			"requested": len(uniqueWeekdays(selection)),
			"goal":      goal,
		}).Warn("Weekly selection clipped to goal")
	}

	start := timeutil.StartOfDay(now)
	end := timeutil.AddDays(start, PlanWindowDays)

	records, err := p.repo.GetRange(timeutil.DateKey(start), timeutil.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей: %w", err)
	}

	plan := &Plan{
		WindowStart: start,
		WindowEnd:   end,
		Selected:    selected,
	}

	planned := make(map[time.Weekday]time.Time)
	occupied := make(map[string]string)
	for _, r := range records {
		date, err := timeutil.ParseDateKey(r.Date)
		if err != nil {
			p.logger.WithField("date", r.Date).Warn("Skipping malformed presence date")
			continue
		}
		if r.IsPlanned() {
			planned[date.Weekday()] = date
			continue
		}
		occupied[r.Date] = r.Status
	}
	for wd := range planned {
		plan.Current = append(plan.Current, wd)
	}
	sortWeekdays(plan.Current)

	isSelected := make(map[time.Weekday]bool, len(selected))
	for _, wd := range selected {
		isSelected[wd] = true

		date := timeutil.NextOccurrence(start, wd)
		if _, ok := planned[wd]; ok {
			continue
		}
		if _, ok := occupied[timeutil.DateKey(date)]; ok {
			plan.Skipped = append(plan.Skipped, date)
			continue
		}
		plan.ToAdd = append(plan.ToAdd, date)
	}

	for wd, date := range planned {
		if !isSelected[wd] {
			plan.ToRemove = append(plan.ToRemove, date)
		}
	}
	sortDates(plan.ToAdd)
	sortDates(plan.ToRemove)
	sortDates(plan.Skipped)

	// выбранный день, занятый другим статусом, изменением не считается
	plan.HasChanges = len(plan.ToAdd) > 0 || len(plan.ToRemove) > 0
	return plan, nil
}

// Apply записывает план: удаляет устаревшие planned-записи в окне, добавляет
// новые и, если notify, создает системное напоминание на каждую новую дату.
// Если выбор не изменился, ничего не пишется.
func (p *PlanResolver) Apply(now time.Time, selection []time.Weekday, notify bool) (*PlanResult, error) {
	plan, err := p.Preview(now, selection)
	if err != nil {
		return nil, err
	}
	result := &PlanResult{Plan: *plan}
	if !plan.HasChanges {
		p.logger.Debug("Weekly plan unchanged, nothing to apply")
		return result, nil
	}

	remove := make([]string, 0, len(plan.ToRemove))
	for _, d := range plan.ToRemove {
		remove = append(remove, timeutil.DateKey(d))
	}
	add := make([]models.PresenceRecord, 0, len(plan.ToAdd))
	for _, d := range plan.ToAdd {
		add = append(add, models.PresenceRecord{
			Date:   timeutil.DateKey(d),
			Status: models.PresencePlanned,
		})
	}

	if err := p.repo.ReplacePlanned(remove, add); err != nil {
		return nil, fmt.Errorf("ошибка сохранения плана: %w", err)
	}

	if notify && len(plan.ToAdd) > 0 {
		drafts := make([]ReminderDraft, 0, len(plan.ToAdd))
		for _, d := range plan.ToAdd {
			drafts = append(drafts, ReminderDraft{
				Title:    SeatBookingTitle(d),
				DateTime: timeutil.StartOfDay(d),
				Type:     models.ReminderSystem,
			})
		}
		created, err := p.reminders.AddMany(drafts)
		if err != nil {
			// после ErrStaleWrite хранилище уже перечитано, повтор пишет поверх свежей версии
			p.logger.WithError(err).Warn("Failed to create system reminders, retrying once")
			created, err = p.reminders.AddMany(drafts)
		}
		if err != nil {
			// план уже сохранен, напоминания можно создать повторным применением
			p.logger.WithError(err).Error("Plan saved but system reminders were not created")
			return result, fmt.Errorf("план сохранен, но напоминания не созданы: %w", err)
		}
		result.Reminders = created
	}

	p.logger.WithFields(logrus.Fields{
		"added":     len(plan.ToAdd),
		"removed":   len(plan.ToRemove),
		"skipped":   len(plan.Skipped),
		"reminders": len(result.Reminders),
	}).Info("Weekly plan applied")

	return result, nil
}

// SeatBookingTitle - заголовок системного напоминания для запланированного дня
func SeatBookingTitle(date time.Time) string {
	return fmt.Sprintf("Забронировать место в офисе: %s %s",
		timeutil.ShortWeekday(date.Weekday()), date.Format("02.01"))
}

// normalizeSelection оставляет только будни, убирает повторы и
// ограничивает выбор целью goal
func normalizeSelection(selection []time.Weekday, goal int) ([]time.Weekday, error) {
	unique := uniqueWeekdays(selection)
	for _, wd := range unique {
		if wd < time.Monday || wd > time.Friday {
			return nil, fmt.Errorf("%w: планировать можно только будни, получено %s", ErrInvalidInput, wd)
		}
	}
	if len(unique) > goal {
		unique = unique[:goal]
	}
	sortWeekdays(unique)
	return unique, nil
}

func uniqueWeekdays(selection []time.Weekday) []time.Weekday {
	seen := make(map[time.Weekday]bool, len(selection))
	out := make([]time.Weekday, 0, len(selection))
	for _, wd := range selection {
		if seen[wd] {
			continue
		}
		seen[wd] = true
		out = append(out, wd)
	}
	return out
}

func sortWeekdays(days []time.Weekday) {
	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
}

func sortDates(dates []time.Time) {
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
}
