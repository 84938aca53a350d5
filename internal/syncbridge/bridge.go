package syncbridge

import (
	"context"
	"sync"
	"time"

	"presence-bot/internal/kvstore"

	"github.com/sirupsen/logrus"
)

const defaultRestartDelay = 2 * time.Second

// Watcher отдает изменения ключей хранилища
type Watcher interface {
	Watch(ctx context.Context) (<-chan kvstore.Change, error)
}

// Reloader перечитывает свою копию данных из хранилища
type Reloader interface {
	Reload() (bool, error)
}

// Bridge доставляет изменения, записанные другим процессом, в копию
// этого процесса. Собственные записи отсеивает сам Reloader: версия и
// источник у них совпадают с уже загруженными.
type Bridge struct {
	watcher      Watcher
	logger       *logrus.Logger
	restartDelay time.Duration

	mu      sync.Mutex
	targets map[string]Reloader
	reloads int
}

func New(watcher Watcher) *Bridge {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	return &Bridge{
		watcher:      watcher,
		logger:       logger,
		restartDelay: defaultRestartDelay,
		targets:      make(map[string]Reloader),
	}
}

// Register связывает ключ хранилища с копией, которую нужно перечитать
func (b *Bridge) Register(key string, target Reloader) {
	b.mu.Lock()
	b.targets[key] = target
	b.mu.Unlock()
}

// Reloads - сколько раз изменения другого процесса попали в копию
func (b *Bridge) Reloads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reloads
}

// Run слушает изменения до отмены ctx. Если наблюдатель упал, он
// перезапускается через restartDelay, а все копии перечитываются, чтобы
// не пропустить записи, сделанные в промежутке.
func (b *Bridge) Run(ctx context.Context) error {
	b.logger.Info("Sync bridge started")
	for {
		changes, err := b.watcher.Watch(ctx)
		if err != nil {
			b.logger.WithError(err).Error("Failed to start store watcher")
			if ctx.Err() != nil {
				return ctx.Err()
			}
		} else {
			b.reloadAll()
			b.consume(ctx, changes)
		}

		select {
		case <-ctx.Done():
			b.logger.Info("Sync bridge stopped")
			return nil
		case <-time.After(b.restartDelay):
			b.logger.Warn("Restarting store watcher")
		}
	}
}

func (b *Bridge) consume(ctx context.Context, changes <-chan kvstore.Change) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			b.handle(change.Key)
		}
	}
}

func (b *Bridge) handle(key string) {
	b.mu.Lock()
	target, ok := b.targets[key]
	b.mu.Unlock()
	if !ok {
		b.logger.WithField("key", key).Debug("Ignoring change of unregistered key")
		return
	}

	changed, err := target.Reload()
	if err != nil {
		b.logger.WithError(err).WithField("key", key).Error("Failed to reload after external change")
		return
	}
	if !changed {
		return
	}

	b.mu.Lock()
	b.reloads++
	b.mu.Unlock()
	b.logger.WithField("key", key).Info("External change applied")
}

func (b *Bridge) reloadAll() {
	b.mu.Lock()
	keys := make([]string, 0, len(b.targets))
	for key := range b.targets {
		keys = append(keys, key)
	}
	b.mu.Unlock()

	for _, key := range keys {
		b.handle(key)
	}
}
