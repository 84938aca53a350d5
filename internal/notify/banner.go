package notify

import (
	"sync"
	"time"
)

const DefaultBannerCapacity = 50

// Banner - уведомление внутри приложения
type Banner struct {
	Title string
	Body  string
	At    time.Time
}

// BannerBoard хранит последние баннеры, пока интерфейс их не заберет.
// При переполнении самые старые вытесняются.
type BannerBoard struct {
	mu       sync.Mutex
	banners  []Banner
	capacity int
}

func NewBannerBoard(capacity int) *BannerBoard {
	if capacity <= 0 {
		capacity = DefaultBannerCapacity
	}
	return &BannerBoard{capacity: capacity}
}

func (b *BannerBoard) Push(banner Banner) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.banners = append(b.banners, banner)
	if over := len(b.banners) - b.capacity; over > 0 {
		b.banners = b.banners[over:]
	}
}

// Drain возвращает накопленные баннеры и очищает доску
func (b *BannerBoard) Drain() []Banner {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.banners
	b.banners = nil
	return out
}

func (b *BannerBoard) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.banners)
}
