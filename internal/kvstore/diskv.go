package kvstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/peterbourgon/diskv/v3"
	"github.com/sirupsen/logrus"
)

var (
	ErrKeyNotFound = errors.New("kvstore: key not found")
	// ErrStaleWrite - запись основана на устаревшей версии коллекции
	ErrStaleWrite = errors.New("kvstore: stale write rejected")
)

// ConflictPolicy определяет поведение при одновременной записи из двух процессов
type ConflictPolicy string

const (
	LastWriterWins ConflictPolicy = "last-writer-wins"
	RejectStale    ConflictPolicy = "reject-stale"
)

// ParseConflictPolicy разбирает значение из конфигурации
func ParseConflictPolicy(s string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LastWriterWins:
		return LastWriterWins, nil
	case RejectStale:
		return RejectStale, nil
	}
	return "", fmt.Errorf("kvstore: unknown conflict policy %q", s)
}

// Envelope - сохраненное значение ключа вместе с версией и автором записи
type Envelope struct {
	Version   uint64          `json:"version"`
	Origin    string          `json:"origin"`
	WrittenAt time.Time       `json:"writtenAt"`
	Data      json.RawMessage `json:"data"`
}

// Store - общее для процессов хранилище ключ-значение
type Store interface {
	Get(key string) (*Envelope, error)
	Put(key string, data []byte, baseVersion uint64) (*Envelope, error)
	Origin() string
}

const tempDirName = ".tmp"

// DiskStore хранит каждый ключ отдельным файлом в BasePath.
// Записи атомарны (временный файл + rename), кэш отключен, чтобы
// каждый процесс читал актуальное состояние с диска.
type DiskStore struct {
	d        *diskv.Diskv
	basePath string
	origin   string
	policy   ConflictPolicy
	mu       sync.Mutex
	logger   *logrus.Logger
}

func NewDiskStore(basePath string, policy ConflictPolicy) (*DiskStore, error) {
	if basePath == "" {
		return nil, errors.New("kvstore: base path required")
	}
	tempDir := filepath.Join(basePath, tempDirName)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("kvstore: ensure base path: %w", err)
	}
	if policy == "" {
		policy = LastWriterWins
	}

	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	s := &DiskStore{
		d: diskv.New(diskv.Options{
			BasePath:     basePath,
			Transform:    func(string) []string { return []string{} },
			TempDir:      tempDir,
			CacheSizeMax: 0,
		}),
		basePath: basePath,
		origin:   uuid.NewString(),
		policy:   policy,
		logger:   logger,
	}

	logger.WithFields(logrus.Fields{
		"path":   basePath,
		"origin": s.origin,
		"policy": policy,
	}).Info("Key-value store initialized")

	return s, nil
}

// Origin - идентификатор процесса, записанный в каждый Envelope
func (s *DiskStore) Origin() string {
	return s.origin
}

func (s *DiskStore) BasePath() string {
	return s.basePath
}

func (s *DiskStore) Get(key string) (*Envelope, error) {
	if !s.d.Has(key) {
		return nil, ErrKeyNotFound
	}
	raw, err := s.d.Read(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrKeyNotFound
		}
		return nil, fmt.Errorf("kvstore: read %s: %w", key, err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("kvstore: decode %s: %w", key, err)
	}
	return &env, nil
}

// Put сохраняет data под ключом key. baseVersion - версия, от которой
// отталкивался писатель. При RejectStale запись отклоняется, если на диске
// уже лежит другая версия. Проверка не атомарна между процессами.
func (s *DiskStore) Put(key string, data []byte, baseVersion uint64) (*Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	existing, err := s.Get(key)
	switch {
	case err == nil:
		current = existing.Version
	case errors.Is(err, ErrKeyNotFound):
	default:
		return nil, err
	}

	if s.policy == RejectStale && current != baseVersion {
		s.logger.WithFields(logrus.Fields{
			"key":     key,
			"base":    baseVersion,
			"current": current,
		}).Warn("Rejecting stale write")
		return nil, fmt.Errorf("%w: %s at version %d, base %d", ErrStaleWrite, key, current, baseVersion)
	}

	next := current
	if baseVersion > next {
		next = baseVersion
	}
	env := &Envelope{
		Version:   next + 1,
		Origin:    s.origin,
		WrittenAt: time.Now(),
		Data:      json.RawMessage(data),
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("kvstore: encode %s: %w", key, err)
	}
	if err := s.d.Write(key, raw); err != nil {
		s.logger.WithError(err).WithField("key", key).Error("Failed to write key")
		return nil, fmt.Errorf("kvstore: write %s: %w", key, err)
	}

	s.logger.WithFields(logrus.Fields{
		"key":     key,
		"version": env.Version,
	}).Debug("Key written")
	return env, nil
}
