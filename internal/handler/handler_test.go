package handler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"presence-bot/internal/kvstore"
	"presence-bot/internal/models"
	"presence-bot/internal/notify"
	"presence-bot/internal/repository"
	"presence-bot/internal/service"
	"presence-bot/internal/testfixtures"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const ownerID int64 = 777

// senderStub собирает отправленные сообщения
type senderStub struct {
	mu       sync.Mutex
	sent     []tgbotapi.MessageConfig
	requests []tgbotapi.Chattable
	sendErr  error
}

func (s *senderStub) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return tgbotapi.Message{}, s.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func (s *senderStub) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	s.mu.Lock()
	s.requests = append(s.requests, c)
	s.mu.Unlock()
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (s *senderStub) GetChat(config tgbotapi.ChatInfoConfig) (tgbotapi.Chat, error) {
	return tgbotapi.Chat{ID: config.ChatID}, nil
}

func (s *senderStub) Sent() []tgbotapi.MessageConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]tgbotapi.MessageConfig, len(s.sent))
	copy(out, s.sent)
	return out
}

func (s *senderStub) Last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	sent := s.Sent()
	if len(sent) == 0 {
		t.Fatal("no messages sent")
	}
	return sent[len(sent)-1]
}

type fixture struct {
	handler   *Handler
	sender    *senderStub
	presence  *service.PresenceService
	repo      repository.PresenceRepository
	reminders *service.ReminderStore
	center    *notify.Center
	clock     *testfixtures.Clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := testfixtures.OpenDB(t)
	repo, err := repository.NewGormPresenceRepository(db)
	if err != nil {
		t.Fatalf("presence repo: %v", err)
	}
	settings, err := repository.NewGormSettingRepository(db)
	if err != nil {
		t.Fatalf("settings repo: %v", err)
	}
	kv, err := kvstore.NewDiskStore(t.TempDir(), kvstore.LastWriterWins)
	if err != nil {
		t.Fatalf("disk store: %v", err)
	}

	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	reminders, err := service.NewReminderStore(kv, clock)
	if err != nil {
		t.Fatalf("reminder store: %v", err)
	}
	presence := service.NewPresenceService(repo, settings, clock, 3)
	planner := service.NewPlanResolver(repo, presence, reminders)

	sender := &senderStub{}
	center := notify.NewCenter(notify.NewTelegramNotifier(sender, ownerID), nil)

	return &fixture{
		handler:   NewHandler(sender, presence, reminders, planner, center, clock, ownerID),
		sender:    sender,
		presence:  presence,
		repo:      repo,
		reminders: reminders,
		center:    center,
		clock:     clock,
	}
}

func command(chatID int64, text string) tgbotapi.Update {
	name := strings.SplitN(text, " ", 2)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		Chat:      &tgbotapi.Chat{ID: chatID},
		From:      &tgbotapi.User{UserName: "owner"},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func callback(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 2, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func (f *fixture) do(t *testing.T, update tgbotapi.Update) {
	t.Helper()
	f.handler.HandleUpdate(context.Background(), update)
}

func TestForeignChatIsRefused(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(1, "/office"))

	last := f.sender.Last(t)
	if last.ChatID != 1 || !strings.Contains(last.Text, "только для владельца") {
		t.Fatalf("unexpected reply: %+v", last)
	}
	record, err := f.repo.GetByDate("2026-10-21")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record != nil {
		t.Fatalf("foreign chat must not change presence, got %+v", record)
	}
}

func TestOfficeMarksToday(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/office"))

	record, err := f.presence.Get(f.clock.Now())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record.Status != models.PresenceOffice || record.Derived {
		t.Fatalf("expected stored office, got %+v", record)
	}
	if !strings.Contains(f.sender.Last(t).Text, "1 из 3") {
		t.Fatalf("expected goal progress in reply, got %q", f.sender.Last(t).Text)
	}
	if f.handler.PromptCheckIn() {
		t.Fatal("check-in prompt must not be sent after the day is marked")
	}
}

func TestMarkDayWithReason(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/mark 23.10.2026 отпуск Дача"))

	record, err := f.repo.GetByDate("2026-10-23")
	if err != nil || record == nil {
		t.Fatalf("expected stored record, got %v, %v", record, err)
	}
	if record.Status != models.PresenceLeave || record.Reason != "Дача" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestMarkDayRejectsWeekendAndUnknownStatus(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/mark 24.10.2026 офис"))
	f.do(t, command(ownerID, "/mark 23.10.2026 пляж"))

	all, err := f.repo.GetAll()
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("nothing should be stored, got %+v", all)
	}
	if !strings.Contains(f.sender.Last(t).Text, "Неизвестный статус") {
		t.Fatalf("unexpected reply: %q", f.sender.Last(t).Text)
	}
}

func TestRemindCreatesReminder(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/remind 23.10.2026 14:30 Созвон с командой"))

	list := f.reminders.List("", service.OrderDue)
	if len(list) != 1 {
		t.Fatalf("expected one reminder, got %d", len(list))
	}
	r := list[0]
	want := time.Date(2026, time.October, 23, 14, 30, 0, 0, time.Local)
	if r.Title != "Созвон с командой" || !r.DateTime.Equal(want) || r.Type != models.ReminderStandard {
		t.Fatalf("unexpected reminder: %+v", r)
	}
}

func TestRemindRejectsBadTime(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/remind завтра 25:99 Созвон"))

	if n := len(f.reminders.List("", service.OrderDue)); n != 0 {
		t.Fatalf("expected no reminders, got %d", n)
	}
	if !strings.Contains(f.sender.Last(t).Text, "Неверное время") {
		t.Fatalf("unexpected reply: %q", f.sender.Last(t).Text)
	}
}

func TestReminderDoneCallbackToggles(t *testing.T) {
	f := newFixture(t)
	r, err := f.reminders.Add("Отчет", f.clock.Now().Add(time.Hour), models.ReminderStandard)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	f.do(t, command(ownerID, "/reminders"))
	markup, ok := f.sender.Last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard) != 1 {
		t.Fatalf("expected one done button, got %#v", f.sender.Last(t).ReplyMarkup)
	}
	data := markup.InlineKeyboard[0][0].CallbackData
	if data == nil || *data != cbReminderDone+r.ID {
		t.Fatalf("unexpected callback data: %v", data)
	}

	f.do(t, callback(ownerID, *data))

	got, err := f.reminders.Get(r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Completed {
		t.Fatal("reminder should be completed after the button")
	}
}

func TestDeleteUnknownReminder(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/delete 123"))

	if !strings.Contains(f.sender.Last(t).Text, "не найдено") {
		t.Fatalf("unexpected reply: %q", f.sender.Last(t).Text)
	}
}

func TestPlanCreatesPlannedDaysAndBookingReminders(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/plan пн,ср"))

	for _, key := range []string{"2026-10-21", "2026-10-26"} {
		record, err := f.repo.GetByDate(key)
		if err != nil || record == nil || record.Status != models.PresencePlanned {
			t.Fatalf("%s: expected planned record, got %+v, %v", key, record, err)
		}
	}
	system := f.reminders.List(models.ReminderSystem, service.OrderDue)
	if len(system) != 2 {
		t.Fatalf("expected two booking reminders, got %d", len(system))
	}
	if !strings.Contains(f.sender.Last(t).Text, "План сохранен") {
		t.Fatalf("unexpected reply: %q", f.sender.Last(t).Text)
	}
}

func TestPlanPreviewThenSilentApply(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/planpreview пт"))

	if record, _ := f.repo.GetByDate("2026-10-23"); record != nil {
		t.Fatalf("preview must not write, got %+v", record)
	}
	markup, ok := f.sender.Last(t).ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || len(markup.InlineKeyboard[0]) != 2 {
		t.Fatalf("expected apply buttons, got %#v", f.sender.Last(t).ReplyMarkup)
	}
	silent := markup.InlineKeyboard[0][1].CallbackData
	if silent == nil || *silent != cbPlanApplySilent+"5" {
		t.Fatalf("unexpected silent callback: %v", silent)
	}

	f.do(t, callback(ownerID, *silent))

	record, err := f.repo.GetByDate("2026-10-23")
	if err != nil || record == nil || record.Status != models.PresencePlanned {
		t.Fatalf("expected planned friday, got %+v, %v", record, err)
	}
	if n := len(f.reminders.List("", service.OrderDue)); n != 0 {
		t.Fatalf("silent apply must not create reminders, got %d", n)
	}
}

func TestPlanPreviewWithoutChangesHasNoButtons(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/planpreview -"))

	if f.sender.Last(t).ReplyMarkup != nil {
		t.Fatalf("expected no buttons, got %#v", f.sender.Last(t).ReplyMarkup)
	}
}

func TestPlanRejectsWeekend(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/plan сб"))

	if !strings.Contains(f.sender.Last(t).Text, "❌") {
		t.Fatalf("expected error reply, got %q", f.sender.Last(t).Text)
	}
	all, _ := f.repo.GetAll()
	if len(all) != 0 {
		t.Fatalf("nothing should be stored, got %+v", all)
	}
}

func TestShowBreakFallsBackToBanner(t *testing.T) {
	f := newFixture(t)
	f.sender.sendErr = errors.New("network down")

	if f.handler.ShowBreak(context.Background(), "Пора размяться") {
		t.Fatal("break without a delivered dismiss button must report false")
	}

	banners := f.center.Banners().Drain()
	if len(banners) != 1 || banners[0].Title != service.BreakAlertTitle || banners[0].Body != "Пора размяться" {
		t.Fatalf("unexpected banners: %+v", banners)
	}
}

func TestBreakNagRecoversAfterFailedSend(t *testing.T) {
	f := newFixture(t)
	nag := service.NewBreakNag(f.handler, f.clock, time.Hour, time.Minute)
	f.handler.SetBreakNag(nag)
	ctx := context.Background()

	f.sender.sendErr = errors.New("network down")
	f.clock.Advance(time.Hour)
	if !nag.Check(ctx) {
		t.Fatal("break should fire after the interval")
	}
	if nag.Visible() {
		t.Fatal("break without a dismiss button must not stay visible")
	}
	if n := len(f.center.Banners().Drain()); n != 1 {
		t.Fatalf("expected the break as a banner, got %d", n)
	}

	f.sender.sendErr = nil
	f.do(t, command(ownerID, "/break"))
	for _, msg := range f.sender.Sent() {
		if strings.Contains(msg.Text, "уже на экране") {
			t.Fatalf("break must not be reported as visible: %q", msg.Text)
		}
	}

	f.clock.Advance(time.Hour)
	if !nag.Check(ctx) {
		t.Fatal("timer must fire again once sending recovers")
	}
	last := f.sender.Last(t)
	if _, ok := last.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); !ok || !strings.Contains(last.Text, service.BreakAlertTitle) {
		t.Fatalf("expected break message with a dismiss button, got %+v", last)
	}
}

func TestBreakCommandAndDismiss(t *testing.T) {
	f := newFixture(t)
	nag := service.NewBreakNag(f.handler, f.clock, time.Hour, time.Minute)
	f.handler.SetBreakNag(nag)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go nag.Run(ctx)

	f.do(t, command(ownerID, "/break"))
	waitFor(t, func() bool {
		sent := f.sender.Sent()
		return len(sent) > 0 && strings.Contains(sent[len(sent)-1].Text, service.BreakAlertTitle)
	})
	if !nag.Visible() {
		t.Fatal("break should be visible")
	}

	last := f.sender.Last(t)
	if !strings.Contains(last.Text, service.BreakAlertTitle) {
		t.Fatalf("expected break message, got %q", last.Text)
	}
	markup, ok := last.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok || *markup.InlineKeyboard[0][0].CallbackData != cbBreakDismiss {
		t.Fatalf("expected dismiss button, got %#v", last.ReplyMarkup)
	}

	f.do(t, callback(ownerID, cbBreakDismiss))
	waitFor(t, func() bool { return !nag.Visible() })
}

func TestBreakWithoutNag(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/break"))

	if !strings.Contains(f.sender.Last(t).Text, "отключены") {
		t.Fatalf("unexpected reply: %q", f.sender.Last(t).Text)
	}
}

func TestPromptCheckInOncePerDay(t *testing.T) {
	f := newFixture(t)

	if !f.handler.PromptCheckIn() {
		t.Fatal("expected prompt on an unmarked working day")
	}
	if f.handler.PromptCheckIn() {
		t.Fatal("prompt must be sent once per day")
	}

	f.clock.Set(time.Date(2026, time.October, 24, 9, 0, 0, 0, time.Local))
	if f.handler.PromptCheckIn() {
		t.Fatal("no prompt on saturday")
	}
}

func TestUnknownCommand(t *testing.T) {
	f := newFixture(t)

	f.do(t, command(ownerID, "/dance"))

	if !strings.Contains(f.sender.Last(t).Text, "Неизвестная команда") {
		t.Fatalf("unexpected reply: %q", f.sender.Last(t).Text)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}
