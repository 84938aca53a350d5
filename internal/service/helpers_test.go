package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"presence-bot/internal/kvstore"
	"presence-bot/internal/notify"
	"presence-bot/internal/repository"
	"presence-bot/internal/testfixtures"
)

var errDiskFull = errors.New("disk full")

// flakyKV отказывает в записи, пока failPuts > 0
type flakyKV struct {
	kvstore.Store

	mu       sync.Mutex
	failPuts int
	puts     int
}

func (f *flakyKV) Put(key string, data []byte, baseVersion uint64) (*kvstore.Envelope, error) {
	f.mu.Lock()
	f.puts++
	if f.failPuts > 0 {
		f.failPuts--
		f.mu.Unlock()
		return nil, errDiskFull
	}
	f.mu.Unlock()
	return f.Store.Put(key, data, baseVersion)
}

func (f *flakyKV) FailNext(n int) {
	f.mu.Lock()
	f.failPuts = n
	f.mu.Unlock()
}

func (f *flakyKV) Puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.puts
}

type alert struct {
	Title string
	Body  string
}

// alerterStub запоминает показанные уведомления
type alerterStub struct {
	mu     sync.Mutex
	alerts []alert
}

func (a *alerterStub) Alert(ctx context.Context, title, body string) notify.Delivery {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, alert{Title: title, Body: body})
	return notify.Delivery{Banner: true}
}

func (a *alerterStub) Alerts() []alert {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

func newDiskKV(t *testing.T, dir string, policy kvstore.ConflictPolicy) *kvstore.DiskStore {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	kv, err := kvstore.NewDiskStore(dir, policy)
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	return kv
}

func newReminderStore(t *testing.T, kv kvstore.Store, clock *testfixtures.Clock) *ReminderStore {
	t.Helper()
	store, err := NewReminderStore(kv, clock)
	if err != nil {
		t.Fatalf("new reminder store: %v", err)
	}
	return store
}

type presenceFixture struct {
	repo     repository.PresenceRepository
	settings repository.SettingRepository
	presence *PresenceService
	clock    *testfixtures.Clock
}

func newPresenceFixture(t *testing.T) *presenceFixture {
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
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	return &presenceFixture{
		repo:     repo,
		settings: settings,
		presence: NewPresenceService(repo, settings, clock, 3),
		clock:    clock,
	}
}
