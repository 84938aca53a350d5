package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"presence-bot/internal/models"
	"presence-bot/internal/timeutil"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.Local)
}

func TestPresenceDefaultInference(t *testing.T) {
	f := newPresenceFixture(t) // сегодня среда, 21.10.2026

	tests := []struct {
		name string
		date time.Time
		want string
	}{
		{"past weekday", day(time.October, 19), models.PresenceRemote},
		{"past saturday", day(time.October, 17), models.PresenceWeekend},
		{"future sunday", day(time.October, 25), models.PresenceWeekend},
		{"today", day(time.October, 21), models.PresenceNone},
		{"future weekday", day(time.October, 23), models.PresenceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.presence.Get(tt.date)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Status != tt.want || !got.Derived {
				t.Fatalf("got %+v, want derived %s", got, tt.want)
			}
		})
	}
}

func TestPresenceWeekendIgnoresHistory(t *testing.T) {
	f := newPresenceFixture(t)
	if err := f.presence.Set(models.PresenceRecord{Date: "2026-10-16", Status: models.PresenceOffice}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, _ := f.presence.Get(day(time.October, 18))
	if got.Status != models.PresenceWeekend {
		t.Fatalf("sunday without record must be weekend, got %s", got.Status)
	}
}

func TestPresenceSetThenGetRoundTrip(t *testing.T) {
	f := newPresenceFixture(t)

	in := models.PresenceRecord{Date: "2026-10-20", Status: models.PresenceLeave, Reason: "Отпуск"}
	if err := f.presence.Set(in); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := f.presence.GetByKey("2026-10-20")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Date != in.Date || got.Status != in.Status || got.Reason != in.Reason || got.Derived {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	// у офиса причины нет: такую запись нельзя сохранить без потерь
	err = f.presence.Set(models.PresenceRecord{Date: "2026-10-20", Status: models.PresenceOffice, Reason: "x"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for office with reason, got %v", err)
	}
	if got, _ = f.presence.GetByKey("2026-10-20"); got.Status != models.PresenceLeave || got.Reason != "Отпуск" {
		t.Fatalf("rejected overwrite must keep the old record: %+v", got)
	}

	// перезапись целиком
	if err := f.presence.Set(models.PresenceRecord{Date: "2026-10-20", Status: models.PresenceOffice}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = f.presence.GetByKey("2026-10-20")
	if got.Status != models.PresenceOffice || got.Reason != "" {
		t.Fatalf("unexpected overwrite result: %+v", got)
	}
}

func TestPresenceSetRejectsBadInput(t *testing.T) {
	f := newPresenceFixture(t)

	if err := f.presence.Set(models.PresenceRecord{Date: "2026-13-01", Status: models.PresenceOffice}); !errors.Is(err, timeutil.ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
	for _, status := range []string{models.PresenceWeekend, models.PresenceNone, "cafe"} {
		err := f.presence.Set(models.PresenceRecord{Date: "2026-10-20", Status: status})
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("status %q: expected ErrInvalidInput, got %v", status, err)
		}
	}
	all, _ := f.repo.GetAll()
	if len(all) != 0 {
		t.Fatalf("rejected input must not be stored: %+v", all)
	}
}

func TestPresenceCountsAndGoal(t *testing.T) {
	f := newPresenceFixture(t)
	for _, d := range []string{"2026-10-19", "2026-10-20"} {
		_ = f.presence.Set(models.PresenceRecord{Date: d, Status: models.PresenceOffice})
	}
	_ = f.presence.Set(models.PresenceRecord{Date: "2026-10-22", Status: models.PresenceSick})

	office := func(r models.PresenceRecord) bool { return r.Status == models.PresenceOffice }
	n, err := f.presence.CountInWindow(office, day(time.October, 19), day(time.October, 20))
	if err != nil || n != 1 {
		t.Fatalf("window must be half-open, got %d, %v", n, err)
	}

	weekly, _ := f.presence.WeeklyOfficeCount(f.clock.Now())
	if weekly != 2 {
		t.Fatalf("expected 2 office days this week, got %d", weekly)
	}

	progress, err := f.presence.GoalProgress(f.clock.Now())
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if progress.Goal != 3 || progress.OfficeDays != 2 || progress.Percent != 66 {
		t.Fatalf("unexpected progress: %+v", progress)
	}

	if err := f.presence.SetGoal(2); err != nil {
		t.Fatalf("set goal: %v", err)
	}
	progress, _ = f.presence.GoalProgress(f.clock.Now())
	if progress.Percent != 100 {
		t.Fatalf("percent must reach 100, got %d", progress.Percent)
	}
	if err := f.presence.SetGoal(6); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPresenceMonthStats(t *testing.T) {
	f := newPresenceFixture(t)
	_ = f.presence.Set(models.PresenceRecord{Date: "2026-10-01", Status: models.PresenceOffice})
	_ = f.presence.Set(models.PresenceRecord{Date: "2026-10-02", Status: models.PresenceLeave, Reason: "Дача"})

	stats, err := f.presence.MonthStats(2026, time.October)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	// будни до 20.10: 14, из них один офис и один отпуск
	if stats[models.PresenceOffice] != 1 || stats[models.PresenceLeave] != 1 || stats[models.PresenceRemote] != 12 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	// 21.10 - 30.10: 8 будних дней без записей
	if stats[models.PresenceNone] != 8 {
		t.Fatalf("expected 8 untracked days, got %d", stats[models.PresenceNone])
	}
	if _, ok := stats[models.PresenceWeekend]; ok {
		t.Fatal("weekends must be excluded")
	}
}

func TestPresenceNeedsCheckIn(t *testing.T) {
	f := newPresenceFixture(t)

	need, _ := f.presence.NeedsCheckIn(f.clock.Now())
	if !need {
		t.Fatal("weekday without record needs check-in")
	}
	_ = f.presence.Set(models.PresenceRecord{Date: "2026-10-21", Status: models.PresenceRemote})
	need, _ = f.presence.NeedsCheckIn(f.clock.Now())
	if need {
		t.Fatal("marked day does not need check-in")
	}
	need, _ = f.presence.NeedsCheckIn(day(time.October, 24))
	if need {
		t.Fatal("weekend does not need check-in")
	}
}

func TestPresenceImportHolidaysKeepsExisting(t *testing.T) {
	f := newPresenceFixture(t)
	_ = f.presence.Set(models.PresenceRecord{Date: "2026-11-04", Status: models.PresenceOffice})

	path := filepath.Join(t.TempDir(), "calendar.json")
	calendar := `{"year":2026,"months":[` +
		`{"month":11,"days":"1,3,4,7,8"},` +
		`{"month":12,"days":"31"}]}`
	if err := os.WriteFile(path, []byte(calendar), 0o644); err != nil {
		t.Fatalf("write calendar: %v", err)
	}

	created, err := f.presence.ImportHolidays(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	// 1, 7, 8 ноября - выходные, 4 ноября уже отмечено
	if created != 2 {
		t.Fatalf("expected 2 holidays created, got %d", created)
	}
	got, _ := f.presence.GetByKey("2026-11-04")
	if got.Status != models.PresenceOffice {
		t.Fatal("import must not overwrite explicit records")
	}
	got, _ = f.presence.GetByKey("2026-11-03")
	if got.Status != models.PresenceHoliday {
		t.Fatalf("expected holiday, got %s", got.Status)
	}
}
