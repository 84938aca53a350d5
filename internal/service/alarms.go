package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/timeutil"

	"github.com/sirupsen/logrus"
)

// Timer - остановимый одноразовый таймер
type Timer interface {
	Stop() bool
}

// AfterFunc запускает f через d
type AfterFunc func(d time.Duration, f func()) Timer

func systemAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type alarm struct {
	due   time.Time
	timer Timer
	gen   uint64
}

// AlarmScheduler держит по одному будильнику на каждое ожидающее
// напоминание. Будильники ключуются id: повторная регистрация заменяет
// прежний таймер. После каждого изменения коллекции набор пересчитывается.
type AlarmScheduler struct {
	dispatcher *Dispatcher
	clock      timeutil.Clock
	afterFunc  AfterFunc
	logger     *logrus.Logger

	mu     sync.Mutex
	ctx    context.Context
	alarms map[string]*alarm
	gen    uint64
}

func NewAlarmScheduler(dispatcher *Dispatcher, clock timeutil.Clock, afterFunc AfterFunc) *AlarmScheduler {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if afterFunc == nil {
		afterFunc = systemAfterFunc
	}

	return &AlarmScheduler{
		dispatcher: dispatcher,
		clock:      clock,
		afterFunc:  afterFunc,
		logger:     logger,
		ctx:        context.Background(),
		alarms:     make(map[string]*alarm),
	}
}

// Start заводит будильники по текущей коллекции и подписывается на ее изменения
func (a *AlarmScheduler) Start(ctx context.Context, store *ReminderStore) {
	a.mu.Lock()
	a.ctx = ctx
	a.mu.Unlock()

	store.Subscribe(a.Resync)
	a.Resync(store.List("", OrderDue))

	go func() {
		<-ctx.Done()
		a.Stop()
	}()
}

// Resync приводит набор будильников в соответствие с коллекцией
func (a *AlarmScheduler) Resync(reminders []models.Reminder) {
	want := make(map[string]time.Time, len(reminders))
	for _, r := range reminders {
		if r.IsPending() {
			want[r.ID] = r.DateTime
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	cancelled := 0
	for id, al := range a.alarms {
		if due, ok := want[id]; !ok || !due.Equal(al.due) {
			al.timer.Stop()
			delete(a.alarms, id)
			cancelled++
		}
	}

	armed := 0
	for id, due := range want {
		if _, ok := a.alarms[id]; ok {
			continue
		}
		a.armLocked(id, due)
		armed++
	}

	if armed > 0 || cancelled > 0 {
		a.logger.WithFields(logrus.Fields{
			"armed":       armed,
			"cancelled":   cancelled,
			"outstanding": len(a.alarms),
		}).Info("Reminder alarms resynced")
	}
}

// Schedule заводит будильник для одного напоминания, заменяя прежний
func (a *AlarmScheduler) Schedule(id string, due time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.armLocked(id, due)
}

func (a *AlarmScheduler) armLocked(id string, due time.Time) {
	if existing, ok := a.alarms[id]; ok {
		existing.timer.Stop()
	}

	delay := due.Sub(a.clock.Now())
	if delay < 0 {
		delay = 0
	}
	a.gen++
	gen := a.gen
	a.alarms[id] = &alarm{
		due:   due,
		gen:   gen,
		timer: a.afterFunc(delay, func() { a.onAlarm(id, gen) }),
	}
}

func (a *AlarmScheduler) onAlarm(id string, gen uint64) {
	a.mu.Lock()
	al, ok := a.alarms[id]
	if !ok || al.gen != gen {
		a.mu.Unlock()
		return
	}
	al.timer.Stop()
	delete(a.alarms, id)
	ctx := a.ctx
	a.mu.Unlock()

	r, err := a.dispatcher.Fire(ctx, id)
	switch {
	case errors.Is(err, ErrNotDue):
		a.Schedule(id, r.DateTime)
	case errors.Is(err, ErrNotFound):
	case err != nil:
		// несохраненную отметку повторяет следующий будильник
		retryAt := a.clock.Now().Add(a.dispatcher.interval)
		a.logger.WithError(err).WithFields(logrus.Fields{
			"id":    id,
			"retry": retryAt,
		}).Warn("Alarm delivery failed")
		if ctx.Err() == nil {
			a.Schedule(id, retryAt)
		}
	}
}

// Outstanding возвращает id напоминаний с заведенными будильниками
func (a *AlarmScheduler) Outstanding() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.alarms))
	for id := range a.alarms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Stop отменяет все будильники
func (a *AlarmScheduler) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, al := range a.alarms {
		al.timer.Stop()
		delete(a.alarms, id)
	}
}
