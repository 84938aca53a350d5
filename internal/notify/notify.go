package notify

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

func (p Permission) String() string {
	switch p {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	}
	return "unknown"
}

// Notifier - системный канал уведомлений
type Notifier interface {
	RequestPermission(ctx context.Context) Permission
	Notify(ctx context.Context, title, body string) error
}

// Delivery описывает, куда ушло уведомление
type Delivery struct {
	Native bool
	Banner bool
}

// Center отправляет уведомление в системный канал, а при отказе в
// доступе или ошибке показывает баннер внутри приложения
type Center struct {
	native  Notifier
	banners *BannerBoard
	clock   func() time.Time
	logger  *logrus.Logger

	mu         sync.Mutex
	permission Permission
}

func NewCenter(native Notifier, banners *BannerBoard) *Center {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	if banners == nil {
		banners = NewBannerBoard(DefaultBannerCapacity)
	}
	return &Center{
		native:  native,
		banners: banners,
		clock:   time.Now,
		logger:  logger,
	}
}

// RequestPermission запрашивает доступ к системному каналу и запоминает ответ
func (c *Center) RequestPermission(ctx context.Context) Permission {
	permission := PermissionDenied
	if c.native != nil {
		permission = c.native.RequestPermission(ctx)
	}

	c.mu.Lock()
	c.permission = permission
	c.mu.Unlock()

	c.logger.WithField("permission", permission).Info("Notification permission resolved")
	return permission
}

func (c *Center) Permission() Permission {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.permission
}

func (c *Center) Banners() *BannerBoard {
	return c.banners
}

// Alert показывает уведомление. Ошибка системного канала не возвращается:
// вместо нее показывается баннер.
func (c *Center) Alert(ctx context.Context, title, body string) Delivery {
	permission := c.Permission()
	if permission == PermissionUnknown {
		permission = c.RequestPermission(ctx)
	}

	if permission == PermissionGranted {
		err := c.native.Notify(ctx, title, body)
		if err == nil {
			return Delivery{Native: true}
		}
		c.logger.WithError(err).WithField("title", title).Warn("Native notification failed, falling back to banner")
	}

	c.banners.Push(Banner{Title: title, Body: body, At: c.clock()})
	return Delivery{Banner: true}
}
