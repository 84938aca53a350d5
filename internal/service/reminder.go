package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"presence-bot/internal/kvstore"
	"presence-bot/internal/models"
	"presence-bot/internal/timeutil"

	"github.com/sirupsen/logrus"
)

// RemindersKey - ключ, под которым хранится вся коллекция напоминаний
const RemindersKey = "reminders"

// ReminderOrder - порядок выдачи списка
type ReminderOrder int

const (
	OrderDue     ReminderOrder = iota // по времени напоминания
	OrderCreated                      // в порядке создания (журнал)
)

// ReminderDraft - данные для создания напоминания
type ReminderDraft struct {
	Title    string
	DateTime time.Time
	Type     string
}

// ReminderStore держит копию коллекции напоминаний в памяти и сохраняет
// ее целиком при каждом изменении. Второй процесс получает изменения
// через Reload.
type ReminderStore struct {
	kv     kvstore.Store
	clock  timeutil.Clock
	logger *logrus.Logger

	mu          sync.Mutex
	items       []models.Reminder
	version     uint64
	origin      string
	subscribers []func([]models.Reminder)
}

func NewReminderStore(kv kvstore.Store, clock timeutil.Clock) (*ReminderStore, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	s := &ReminderStore{
		kv:     kv,
		clock:  clock,
		logger: logger,
	}
	if _, err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Subscribe регистрирует обработчик, вызываемый после каждого изменения коллекции
func (s *ReminderStore) Subscribe(fn func([]models.Reminder)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// Reload заменяет копию в памяти сохраненной коллекцией целиком.
// Возвращает true, если коллекция изменилась.
func (s *ReminderStore) Reload() (bool, error) {
	env, err := s.kv.Get(RemindersKey)
	if err != nil && !errors.Is(err, kvstore.ErrKeyNotFound) {
		s.logger.WithError(err).Error("Failed to load reminders")
		return false, err
	}

	var (
		items   []models.Reminder
		version uint64
		origin  string
	)
	if env != nil {
		if err := json.Unmarshal(env.Data, &items); err != nil {
			s.logger.WithError(err).Error("Failed to decode reminders")
			return false, fmt.Errorf("decode reminders: %w", err)
		}
		version, origin = env.Version, env.Origin
	}

	s.mu.Lock()
	if version == s.version && origin == s.origin {
		s.mu.Unlock()
		return false, nil
	}
	s.items = items
	s.version = version
	s.origin = origin
	snapshot, subscribers := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"version": version,
		"count":   len(items),
	}).Debug("Reminders reloaded")

	notifySubscribers(subscribers, snapshot)
	return true, nil
}

// Version - версия коллекции, которую видит этот процесс
func (s *ReminderStore) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Add создает напоминание. completed и notified всегда false.
func (s *ReminderStore) Add(title string, at time.Time, reminderType string) (*models.Reminder, error) {
	created, err := s.AddMany([]ReminderDraft{{Title: title, DateTime: at, Type: reminderType}})
	if err != nil {
		return nil, err
	}
	return &created[0], nil
}

// AddMany создает несколько напоминаний одной записью в хранилище
func (s *ReminderStore) AddMany(drafts []ReminderDraft) ([]models.Reminder, error) {
	if len(drafts) == 0 {
		return nil, nil
	}
	for i := range drafts {
		drafts[i].Title = strings.TrimSpace(drafts[i].Title)
		if drafts[i].Title == "" {
			return nil, fmt.Errorf("%w: пустой заголовок напоминания", ErrInvalidInput)
		}
		if drafts[i].DateTime.IsZero() {
			return nil, fmt.Errorf("%w: не указано время напоминания", ErrInvalidInput)
		}
		switch drafts[i].Type {
		case "":
			drafts[i].Type = models.ReminderStandard
		case models.ReminderStandard, models.ReminderSystem:
		default:
			return nil, fmt.Errorf("%w: неизвестный тип %q", ErrInvalidInput, drafts[i].Type)
		}
	}

	var created []models.Reminder
	err := s.mutate(func(items []models.Reminder) ([]models.Reminder, error) {
		next := nextReminderID(s.clock.Now(), items)
		for _, d := range drafts {
			r := models.Reminder{
				ID:       strconv.FormatInt(next, 10),
				Title:    d.Title,
				DateTime: d.DateTime,
				Type:     d.Type,
			}
			next++
			items = append(items, r)
			created = append(created, r)
		}
		return items, nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithField("count", len(created)).Info("Reminders created")
	return created, nil
}

// ToggleCompleted переключает признак выполнения, не трогая notified
func (s *ReminderStore) ToggleCompleted(id string) (*models.Reminder, error) {
	var updated models.Reminder
	err := s.mutate(func(items []models.Reminder) ([]models.Reminder, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: напоминание %s", ErrNotFound, id)
		}
		items[i].Completed = !items[i].Completed
		updated = items[i]
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{
		"id":        id,
		"completed": updated.Completed,
	}).Info("Reminder toggled")
	return &updated, nil
}

func (s *ReminderStore) Remove(id string) error {
	err := s.mutate(func(items []models.Reminder) ([]models.Reminder, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: напоминание %s", ErrNotFound, id)
		}
		return append(items[:i], items[i+1:]...), nil
	})
	if err != nil {
		return err
	}
	s.logger.WithField("id", id).Info("Reminder removed")
	return nil
}

// MarkNotified отмечает отправку уведомления. Повторный вызов ничего не делает.
func (s *ReminderStore) MarkNotified(id string) error {
	s.mu.Lock()
	i := indexOf(s.items, id)
	already := i >= 0 && s.items[i].Notified
	s.mu.Unlock()
	if already {
		return nil
	}

	return s.mutate(func(items []models.Reminder) ([]models.Reminder, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: напоминание %s", ErrNotFound, id)
		}
		if items[i].Notified {
			return nil, errNoChange
		}
		items[i].Notified = true
		return items, nil
	})
}

// Reset - ручной перезапуск напоминания: снова ожидает отправки
func (s *ReminderStore) Reset(id string) (*models.Reminder, error) {
	var updated models.Reminder
	err := s.mutate(func(items []models.Reminder) ([]models.Reminder, error) {
		i := indexOf(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: напоминание %s", ErrNotFound, id)
		}
		items[i].Notified = false
		items[i].Completed = false
		updated = items[i]
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.WithField("id", id).Info("Reminder re-initialized")
	return &updated, nil
}

func (s *ReminderStore) Get(id string) (*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := indexOf(s.items, id)
	if i < 0 {
		return nil, fmt.Errorf("%w: напоминание %s", ErrNotFound, id)
	}
	r := s.items[i]
	return &r, nil
}

// List возвращает напоминания указанного типа (все при пустом фильтре)
func (s *ReminderStore) List(filter string, order ReminderOrder) []models.Reminder {
	s.mu.Lock()
	out := make([]models.Reminder, 0, len(s.items))
	for _, r := range s.items {
		if filter == "" || r.Type == filter {
			out = append(out, r)
		}
	}
	s.mu.Unlock()

	switch order {
	case OrderCreated:
		sort.SliceStable(out, func(i, j int) bool {
			return idLess(out[i].ID, out[j].ID)
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			if out[i].DateTime.Equal(out[j].DateTime) {
				return idLess(out[i].ID, out[j].ID)
			}
			return out[i].DateTime.Before(out[j].DateTime)
		})
	}
	return out
}

// Due - напоминания, по которым пора отправить уведомление
func (s *ReminderStore) Due(now time.Time) []models.Reminder {
	var due []models.Reminder
	for _, r := range s.List("", OrderDue) {
		if r.IsDue(now) {
			due = append(due, r)
		}
	}
	return due
}

// Pending - еще не отправленные и не выполненные напоминания
func (s *ReminderStore) Pending() []models.Reminder {
	var pending []models.Reminder
	for _, r := range s.List("", OrderDue) {
		if r.IsPending() {
			pending = append(pending, r)
		}
	}
	return pending
}

var errNoChange = errors.New("no change")

// mutate применяет fn к копии коллекции и сохраняет результат. Копия в
// памяти заменяется только после успешной записи.
func (s *ReminderStore) mutate(fn func([]models.Reminder) ([]models.Reminder, error)) error {
	s.mu.Lock()
	working := make([]models.Reminder, len(s.items))
	copy(working, s.items)

	next, err := fn(working)
	if errors.Is(err, errNoChange) {
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if next == nil {
		next = []models.Reminder{}
	}

	data, err := json.Marshal(next)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("encode reminders: %w", err)
	}

	env, err := s.kv.Put(RemindersKey, data, s.version)
	if err != nil {
		s.mu.Unlock()
		s.logger.WithError(err).Error("Failed to persist reminders")
		if errors.Is(err, kvstore.ErrStaleWrite) {
			// подтягиваем чужую запись, вызывающий может повторить операцию
			if _, rerr := s.Reload(); rerr != nil {
				s.logger.WithError(rerr).Warn("Failed to reload after stale write")
			}
		}
		return err
	}

	s.items = next
	s.version = env.Version
	s.origin = env.Origin
	snapshot, subscribers := s.snapshotLocked()
	s.mu.Unlock()

	notifySubscribers(subscribers, snapshot)
	return nil
}

func (s *ReminderStore) snapshotLocked() ([]models.Reminder, []func([]models.Reminder)) {
	snapshot := make([]models.Reminder, len(s.items))
	copy(snapshot, s.items)
	subscribers := make([]func([]models.Reminder), len(s.subscribers))
	copy(subscribers, s.subscribers)
	return snapshot, subscribers
}

func notifySubscribers(subscribers []func([]models.Reminder), snapshot []models.Reminder) {
	for _, fn := range subscribers {
		fn(snapshot)
	}
}

func indexOf(items []models.Reminder, id string) int {
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// nextReminderID выдает id из времени создания в миллисекундах,
// строго больше всех существующих
func nextReminderID(now time.Time, items []models.Reminder) int64 {
	next := now.UnixMilli()
	for _, r := range items {
		if n, err := strconv.ParseInt(r.ID, 10, 64); err == nil && n >= next {
			next = n + 1
		}
	}
	return next
}

func idLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
