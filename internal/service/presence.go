package service

import (
	"fmt"
	"strconv"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/repository"
	"presence-bot/internal/timeutil"
	"presence-bot/pkg/weekends"

	"github.com/sirupsen/logrus"
)

type PresenceService struct {
	repo        repository.PresenceRepository
	settings    repository.SettingRepository
	clock       timeutil.Clock
	defaultGoal int
	logger      *logrus.Logger
}

func NewPresenceService(
	repo repository.PresenceRepository,
	settings repository.SettingRepository,
	clock timeutil.Clock,
	defaultGoal int,
) *PresenceService {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if defaultGoal < models.MinGoal || defaultGoal > models.MaxGoal {
		defaultGoal = 3
	}

	return &PresenceService{
		repo:        repo,
		settings:    settings,
		clock:       clock,
		defaultGoal: defaultGoal,
		logger:      logger,
	}
}

// Get возвращает запись на дату. Если записи нет, статус выводится:
// суббота и воскресенье - weekend, прошедший будний день - remote,
// сегодняшний и будущие дни - none.
func (s *PresenceService) Get(date time.Time) (*models.PresenceRecord, error) {
	key := timeutil.DateKey(date)
	record, err := s.repo.GetByDate(key)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записи: %w", err)
	}
	if record != nil {
		return record, nil
	}
	return s.derive(date), nil
}

// GetByKey - то же, что Get, но принимает строку даты
func (s *PresenceService) GetByKey(key string) (*models.PresenceRecord, error) {
	date, err := timeutil.ParseDateKey(key)
	if err != nil {
		return nil, err
	}
	return s.Get(date)
}

func (s *PresenceService) derive(date time.Time) *models.PresenceRecord {
	status := models.PresenceNone
	today := timeutil.StartOfDay(s.clock.Now())
	switch {
	case timeutil.IsWeekend(date):
		status = models.PresenceWeekend
	case timeutil.StartOfDay(date).Before(today):
		status = models.PresenceRemote
	}
	return &models.PresenceRecord{
		Date:    timeutil.DateKey(date),
		Status:  status,
		Derived: true,
	}
}

// Set создает или перезаписывает запись на дату. Причина допустима
// только для leave и other, иначе возвращается ErrInvalidInput.
func (s *PresenceService) Set(record models.PresenceRecord) error {
	date, err := timeutil.ParseDateKey(record.Date)
	if err != nil {
		s.logger.WithField("date", record.Date).Warn("Invalid presence date")
		return err
	}
	if !models.IsStoredStatus(record.Status) {
		s.logger.WithField("status", record.Status).Warn("Invalid presence status")
		return fmt.Errorf("%w: статус %q", ErrInvalidInput, record.Status)
	}

	record.Normalize()
	if record.Reason != "" && !models.HasReason(record.Status) {
		s.logger.WithField("status", record.Status).Warn("Reason given for a status without reason")
		return fmt.Errorf("%w: причина указывается только для статусов %s и %s",
			ErrInvalidInput, models.PresenceLeave, models.PresenceOther)
	}

	record.Date = timeutil.DateKey(date)
	record.Derived = false

	if err := s.repo.Upsert(&record); err != nil {
		return fmt.Errorf("ошибка сохранения записи: %w", err)
	}
	return nil
}

// CountInWindow считает дни в [start, end), удовлетворяющие pred.
// Дни без записей учитываются с выведенным статусом.
func (s *PresenceService) CountInWindow(pred func(models.PresenceRecord) bool, start, end time.Time) (int, error) {
	records, err := s.window(start, end)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, r := range records {
		if pred(r) {
			count++
		}
	}
	return count, nil
}

// window возвращает по записи на каждый день в [start, end)
func (s *PresenceService) window(start, end time.Time) ([]models.PresenceRecord, error) {
	start = timeutil.StartOfDay(start)
	end = timeutil.StartOfDay(end)

	stored, err := s.repo.GetRange(timeutil.DateKey(start), timeutil.DateKey(end))
	if err != nil {
		return nil, fmt.Errorf("ошибка получения записей: %w", err)
	}
	byDate := make(map[string]models.PresenceRecord, len(stored))
	for _, r := range stored {
		byDate[r.Date] = r
	}

	var days []models.PresenceRecord
	for d := start; d.Before(end); d = timeutil.AddDays(d, 1) {
		if r, ok := byDate[timeutil.DateKey(d)]; ok {
			days = append(days, r)
			continue
		}
		days = append(days, *s.derive(d))
	}
	return days, nil
}

// WeeklyOfficeCount - дни в офисе с понедельника по пятницу текущей недели
func (s *PresenceService) WeeklyOfficeCount(now time.Time) (int, error) {
	monday := timeutil.StartOfWeek(now)
	return s.CountInWindow(func(r models.PresenceRecord) bool {
		return r.Status == models.PresenceOffice
	}, monday, timeutil.AddDays(monday, 5))
}

// MonthStats считает статусы дней месяца без учета выходных
func (s *PresenceService) MonthStats(year int, month time.Month) (map[string]int, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	days, err := s.window(start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}
	stats := map[string]int{
		models.PresenceOffice:  0,
		models.PresenceRemote:  0,
		models.PresenceLeave:   0,
		models.PresenceHoliday: 0,
	}
	for _, d := range days {
		if d.Status == models.PresenceWeekend {
			continue
		}
		stats[d.Status]++
	}
	return stats, nil
}

type GoalProgress struct {
	OfficeDays int
	Goal       int
	Percent    int
}

// GoalProgress - выполнение недельной цели по дням в офисе
func (s *PresenceService) GoalProgress(now time.Time) (*GoalProgress, error) {
	goal, err := s.GetGoal()
	if err != nil {
		return nil, err
	}
	count, err := s.WeeklyOfficeCount(now)
	if err != nil {
		return nil, err
	}
	percent := count * 100 / goal
	if percent > 100 {
		percent = 100
	}
	return &GoalProgress{OfficeDays: count, Goal: goal, Percent: percent}, nil
}

func (s *PresenceService) GetGoal() (int, error) {
	setting, err := s.settings.Get(models.SettingGoal)
	if err != nil {
		return 0, fmt.Errorf("ошибка получения цели: %w", err)
	}
	if setting == nil {
		return s.defaultGoal, nil
	}
	goal, err := strconv.Atoi(setting.Value)
	if err != nil || goal < models.MinGoal || goal > models.MaxGoal {
		s.logger.WithField("value", setting.Value).Warn("Stored goal is invalid, using default")
		return s.defaultGoal, nil
	}
	return goal, nil
}

func (s *PresenceService) SetGoal(goal int) error {
	if goal < models.MinGoal || goal > models.MaxGoal {
		return fmt.Errorf("%w: цель должна быть от %d до %d", ErrInvalidInput, models.MinGoal, models.MaxGoal)
	}
	return s.settings.Set(models.SettingGoal, strconv.Itoa(goal))
}

// NeedsCheckIn - сегодня будний день и статус еще не отмечен
func (s *PresenceService) NeedsCheckIn(now time.Time) (bool, error) {
	if timeutil.IsWeekend(now) {
		return false, nil
	}
	record, err := s.repo.GetByDate(timeutil.DateKey(now))
	if err != nil {
		return false, err
	}
	return record == nil, nil
}

// ImportHolidays загружает праздники из производственного календаря.
// Уже отмеченные дни не перезаписываются.
func (s *PresenceService) ImportHolidays(path string) (int64, error) {
	days, err := weekends.ParseWeekendsJSON(path)
	if err != nil {
		return 0, err
	}

	var records []models.PresenceRecord
	for _, d := range weekends.Holidays(days) {
		records = append(records, models.PresenceRecord{
			Date:   timeutil.DateKey(d.Date),
			Status: models.PresenceHoliday,
		})
	}

	created, err := s.repo.CreateIfAbsent(records)
	if err != nil {
		return 0, fmt.Errorf("ошибка сохранения праздников: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"path":    path,
		"parsed":  len(records),
		"created": created,
	}).Info("Holidays imported")
	return created, nil
}
