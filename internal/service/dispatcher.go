package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/notify"
	"presence-bot/internal/timeutil"

	"github.com/sirupsen/logrus"
)

// DefaultPollInterval - период опроса напоминаний
const DefaultPollInterval = 10 * time.Second

const reminderAlertTitle = "Напоминание"

// ErrNotDue - срок напоминания еще не наступил
var ErrNotDue = errors.New("напоминание еще не наступило")

// Alerter показывает уведомление пользователю
type Alerter interface {
	Alert(ctx context.Context, title, body string) notify.Delivery
}

// Dispatcher находит наступившие напоминания, показывает уведомление
// и отмечает notified. Если отметку сохранить не удалось, она повторяется
// на следующем тике без повторного уведомления.
type Dispatcher struct {
	store    *ReminderStore
	alerter  Alerter
	clock    timeutil.Clock
	interval time.Duration
	logger   *logrus.Logger

	deliverMu sync.Mutex
	unmarked  map[string]struct{}
}

func NewDispatcher(store *ReminderStore, alerter Alerter, clock timeutil.Clock, interval time.Duration) *Dispatcher {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	return &Dispatcher{
		store:    store,
		alerter:  alerter,
		clock:    clock,
		interval: interval,
		logger:   logger,
		unmarked: make(map[string]struct{}),
	}
}

// Run опрашивает хранилище каждые interval до отмены ctx
func (d *Dispatcher) Run(ctx context.Context) {
	d.logger.WithField("interval", d.interval).Info("Reminder poller started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		if _, err := d.Tick(ctx); err != nil {
			d.logger.WithError(err).Warn("Reminder tick finished with errors")
		}
		select {
		case <-ctx.Done():
			d.logger.Info("Reminder poller stopped")
			return
		case <-ticker.C:
		}
	}
}

// Tick - один проход: повтор несохраненных отметок, затем доставка
// наступивших напоминаний. Возвращает число показанных уведомлений.
func (d *Dispatcher) Tick(ctx context.Context) (int, error) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	retryErr := d.retryMarksLocked()

	now := d.clock.Now()
	fired := 0
	var firstErr error
	for _, r := range d.store.Due(now) {
		if _, pending := d.unmarked[r.ID]; pending {
			continue
		}
		if err := d.deliverLocked(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
		fired++
	}

	if firstErr == nil {
		firstErr = retryErr
	}
	return fired, firstErr
}

// Fire доставляет одно напоминание по сработавшему будильнику. Перед
// проверкой копия хранилища перечитывается, чтобы не доставить повторно
// то, что уже отметил другой процесс.
func (d *Dispatcher) Fire(ctx context.Context, id string) (*models.Reminder, error) {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()

	if _, err := d.store.Reload(); err != nil {
		d.logger.WithError(err).Warn("Failed to reload reminders before firing alarm")
	}
	if _, pending := d.unmarked[id]; pending {
		return nil, d.retryMarksLocked()
	}

	r, err := d.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !r.IsPending() {
		return r, nil
	}
	if !r.IsDue(d.clock.Now()) {
		return r, ErrNotDue
	}
	return r, d.deliverLocked(ctx, *r)
}

// Unmarked - число доставленных напоминаний, отметка которых еще не сохранена
func (d *Dispatcher) Unmarked() int {
	d.deliverMu.Lock()
	defer d.deliverMu.Unlock()
	return len(d.unmarked)
}

func (d *Dispatcher) deliverLocked(ctx context.Context, r models.Reminder) error {
	delivery := d.alerter.Alert(ctx, reminderAlertTitle, r.Title)

	d.logger.WithFields(logrus.Fields{
		"id":     r.ID,
		"type":   r.Type,
		"native": delivery.Native,
		"banner": delivery.Banner,
	}).Info("Reminder delivered")

	if err := d.store.MarkNotified(r.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		d.unmarked[r.ID] = struct{}{}
		d.logger.WithError(err).WithField("id", r.ID).Error("Failed to mark reminder as notified, will retry")
		return fmt.Errorf("mark reminder %s: %w", r.ID, err)
	}
	return nil
}

func (d *Dispatcher) retryMarksLocked() error {
	var firstErr error
	for id := range d.unmarked {
		err := d.store.MarkNotified(id)
		if err == nil || errors.Is(err, ErrNotFound) {
			delete(d.unmarked, id)
			d.logger.WithField("id", id).Info("Pending notified mark saved")
			continue
		}
		if firstErr == nil {
			firstErr = fmt.Errorf("retry mark reminder %s: %w", id, err)
		}
	}
	return firstErr
}
