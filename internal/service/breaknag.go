package service

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"presence-bot/internal/timeutil"

	"github.com/sirupsen/logrus"
)

const (
	DefaultBreakInterval      = 60 * time.Minute
	DefaultBreakCheckInterval = time.Minute

	BreakAlertTitle = "Время перерыва!"
)

// BreakCommand - команда для BreakNag
type BreakCommand int

const (
	BreakTrigger BreakCommand = iota
	BreakDismiss
)

func (c BreakCommand) String() string {
	switch c {
	case BreakTrigger:
		return "trigger"
	case BreakDismiss:
		return "dismiss"
	}
	return "unknown"
}

var breakMessages = []string{
	"Human.exe перестал отвечать. Встаньте и станцуйте, чтобы перезапуститься.",
	"Говорят, если просидеть еще час, станешь частью эргономичной сетки. Беги!",
	"Ваши глаза подают на развод. Посмотрите 5 минут на настоящее дерево (или на стену).",
	"Пей воду или засохни! Почки уже просят пощады.",
	"Кофемашина шепчет ваше имя. Проверьте, не болтает ли она с кем-то еще.",
	"Спина приняла форму креветки. Срочно раскреветьтесь.",
	"Ошибка 404: концентрация не найдена. Перезагрузите мозг двухминутной прогулкой.",
	"Пиксели уже осуждают вашу осанку. Покажите им, кто здесь главный, и потянитесь.",
	"Вы сидите тут так долго, что пыль называет детей в вашу честь.",
	"Если не встанете, ноги забудут, как работает гравитация. Не дайте им забыть.",
}

// BreakMessages возвращает список сообщений о перерыве
func BreakMessages() []string {
	out := make([]string, len(breakMessages))
	copy(out, breakMessages)
	return out
}

// BreakPresenter показывает напоминание о перерыве. Возвращает false,
// если у пользователя нет способа закрыть показанное напоминание.
type BreakPresenter interface {
	ShowBreak(ctx context.Context, message string) bool
}

// AlertPresenter показывает перерыв обычным уведомлением
type AlertPresenter struct {
	Alerter Alerter
}

func (p AlertPresenter) ShowBreak(ctx context.Context, message string) bool {
	delivery := p.Alerter.Alert(ctx, BreakAlertTitle, message)
	return delivery.Native || delivery.Banner
}

// BreakNag раз в interval напоминает о перерыве. Пока напоминание на
// экране, второе не показывается. Закрытие сбрасывает таймер.
type BreakNag struct {
	presenter  BreakPresenter
	clock      timeutil.Clock
	interval   time.Duration
	checkEvery time.Duration
	commands   chan BreakCommand
	pick       func(n int) int
	logger     *logrus.Logger

	mu          sync.Mutex
	visible     bool
	autoDismiss bool
	message     string
	lastBreak   time.Time
}

func NewBreakNag(presenter BreakPresenter, clock timeutil.Clock, interval, checkEvery time.Duration) *BreakNag {
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
		interval = DefaultBreakInterval
	}
	if checkEvery <= 0 {
		checkEvery = DefaultBreakCheckInterval
	}

	return &BreakNag{
		presenter:  presenter,
		clock:      clock,
		interval:   interval,
		checkEvery: checkEvery,
		commands:   make(chan BreakCommand, 8),
		pick:       rand.Intn,
		logger:     logger,
		lastBreak:  clock.Now(),
	}
}

// WithAutoDismiss делает напоминание одноразовым: оно считается закрытым
// сразу после показа. Так работает фоновый процесс без интерфейса.
func (b *BreakNag) WithAutoDismiss() *BreakNag {
	b.mu.Lock()
	b.autoDismiss = true
	b.mu.Unlock()
	return b
}

// Send ставит команду в очередь. Если очередь заполнена, команда
// отбрасывается и возвращается false.
func (b *BreakNag) Send(cmd BreakCommand) bool {
	select {
	case b.commands <- cmd:
		return true
	default:
		b.logger.WithField("command", cmd).Warn("Break command queue is full, dropping command")
		return false
	}
}

func (b *BreakNag) Trigger() bool { return b.Send(BreakTrigger) }
func (b *BreakNag) Dismiss() bool { return b.Send(BreakDismiss) }

func (b *BreakNag) Run(ctx context.Context) {
	b.logger.WithFields(logrus.Fields{
		"interval": b.interval,
		"check":    b.checkEvery,
	}).Info("Break nag started")

	ticker := time.NewTicker(b.checkEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Break nag stopped")
			return
		case <-ticker.C:
			b.Check(ctx)
		case cmd := <-b.commands:
			b.Handle(ctx, cmd)
		}
	}
}

// Check показывает напоминание, если с последнего перерыва прошел interval
func (b *BreakNag) Check(ctx context.Context) bool {
	b.mu.Lock()
	due := !b.visible && b.clock.Now().Sub(b.lastBreak) >= b.interval
	b.mu.Unlock()

	if !due {
		return false
	}
	return b.show(ctx, "timer")
}

// Handle выполняет команду. Возвращает true, если состояние изменилось.
func (b *BreakNag) Handle(ctx context.Context, cmd BreakCommand) bool {
	switch cmd {
	case BreakTrigger:
		return b.show(ctx, "manual")
	case BreakDismiss:
		b.mu.Lock()
		defer b.mu.Unlock()
		if !b.visible {
			return false
		}
		b.visible = false
		b.lastBreak = b.clock.Now()
		b.logger.Info("Break dismissed")
		return true
	}
	b.logger.WithField("command", cmd).Warn("Unknown break command")
	return false
}

func (b *BreakNag) show(ctx context.Context, source string) bool {
	b.mu.Lock()
	if b.visible {
		b.mu.Unlock()
		return false
	}
	message := breakMessages[b.pick(len(breakMessages))]
	b.message = message
	autoDismiss := b.autoDismiss
	if autoDismiss {
		b.lastBreak = b.clock.Now()
	} else {
		b.visible = true
	}
	b.mu.Unlock()

	b.logger.WithField("source", source).Info("Break reminder shown")
	if b.presenter.ShowBreak(ctx, message) || autoDismiss {
		return true
	}

	// закрыть нечем: считаем напоминание закрытым, следующее придет через interval
	b.mu.Lock()
	b.visible = false
	b.lastBreak = b.clock.Now()
	b.mu.Unlock()
	b.logger.WithField("source", source).Warn("Break reminder has no dismiss control, treating it as dismissed")
	return true
}

// Visible сообщает, показано ли напоминание сейчас
func (b *BreakNag) Visible() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.visible
}

// Message - текст последнего показанного напоминания
func (b *BreakNag) Message() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.message
}

func (b *BreakNag) LastBreak() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastBreak
}
