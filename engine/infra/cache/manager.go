package cache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bidcraft/bidcraft/pkg/config"
	"github.com/bidcraft/bidcraft/pkg/logger"
)

// Manager is a cache facade that degrades instead of failing: any backend
// error flips it to unavailable, after which Get reports a miss, Set reports
// false and the pipeline keeps serving uncached. No cache operation ever
// returns an error to the caller.
type Manager struct {
	client    RedisInterface
	cfg       *config.CacheConfig
	available atomic.Bool
}

// NewManager wires a manager over a connected client. A nil client or a
// disabled config yields a permanently unavailable manager, which is a valid
// deployment mode.
func NewManager(client RedisInterface, cfg *config.CacheConfig) *Manager {
	if cfg == nil {
		def := config.Default().Cache
		cfg = &def
	}
	m := &Manager{client: client, cfg: cfg}
	m.available.Store(client != nil && cfg.Enabled)
	return m
}

// Available reports whether the cache is currently serving.
func (m *Manager) Available() bool {
	return m.available.Load()
}

// Recover pings the backend and restores availability on success.
func (m *Manager) Recover(ctx context.Context) bool {
	if m.client == nil || !m.cfg.Enabled {
		return false
	}
	if err := m.client.Ping(ctx).Err(); err != nil {
		return false
	}
	m.available.Store(true)
	return true
}

// Get loads the JSON value stored at key into dest. Returns false on a
// miss, on decode failure, or when the cache is unavailable.
func (m *Manager) Get(ctx context.Context, key string, dest any) bool {
	if !m.available.Load() {
		return false
	}
	raw, err := m.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		m.degrade(ctx, "get", key, err)
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		logger.FromContext(ctx).Warn("cache entry is not valid JSON, dropping", "key", key, "error", err)
		m.client.Del(ctx, key)
		return false
	}
	return true
}

// Set stores value as JSON under key. A non-positive ttl falls back to the
// configured default. Reports whether the write landed.
func (m *Manager) Set(ctx context.Context, key string, value any, ttl time.Duration) bool {
	if !m.available.Load() {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		logger.FromContext(ctx).Warn("cache value not serializable", "key", key, "error", err)
		return false
	}
	if ttl <= 0 {
		ttl = m.cfg.DefaultTTL
	}
	if err := m.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		m.degrade(ctx, "set", key, err)
		return false
	}
	return true
}

// Delete removes keys and reports how many existed.
func (m *Manager) Delete(ctx context.Context, keys ...string) int {
	if !m.available.Load() || len(keys) == 0 {
		return 0
	}
	n, err := m.client.Del(ctx, keys...).Result()
	if err != nil {
		m.degrade(ctx, "delete", strings.Join(keys, ","), err)
		return 0
	}
	return int(n)
}

// DeletePattern removes every key matching a glob pattern using SCAN, so
// large keyspaces are walked without blocking the server.
func (m *Manager) DeletePattern(ctx context.Context, pattern string) int {
	if !m.available.Load() || pattern == "" {
		return 0
	}
	deleted := 0
	var cursor uint64
	for {
		keys, next, err := m.client.Scan(ctx, cursor, pattern, int64(m.cfg.KeyScanCount)).Result()
		if err != nil {
			m.degrade(ctx, "scan", pattern, err)
			return deleted
		}
		if len(keys) > 0 {
			n, err := m.client.Del(ctx, keys...).Result()
			if err != nil {
				m.degrade(ctx, "delete", pattern, err)
				return deleted
			}
			deleted += int(n)
		}
		cursor = next
		if cursor == 0 {
			return deleted
		}
	}
}

// Exists reports whether key is present.
func (m *Manager) Exists(ctx context.Context, key string) bool {
	if !m.available.Load() {
		return false
	}
	n, err := m.client.Exists(ctx, key).Result()
	if err != nil {
		m.degrade(ctx, "exists", key, err)
		return false
	}
	return n > 0
}

// GetOrSet returns the cached value for key, computing and storing it on a
// miss. Empty computed strings are returned but never cached. compute errors
// propagate; cache failures do not.
func (m *Manager) GetOrSet(
	ctx context.Context,
	key string,
	ttl time.Duration,
	compute func(ctx context.Context) (string, error),
) (string, error) {
	var cached string
	if m.Get(ctx, key, &cached) {
		return cached, nil
	}
	value, err := compute(ctx)
	if err != nil {
		return "", err
	}
	if value != "" {
		m.Set(ctx, key, value, ttl)
	}
	return value, nil
}

// MakeKey builds a deterministic cache key from a prefix, positional parts
// and keyword pairs. Keyword pairs are sorted so equivalent inputs always
// produce the same key. Keys over the configured length collapse to a
// prefix-plus-digest form.
func (m *Manager) MakeKey(prefix string, parts []string, kwargs map[string]string) string {
	segments := make([]string, 0, len(parts)+len(kwargs)+1)
	segments = append(segments, prefix)
	segments = append(segments, parts...)
	if len(kwargs) > 0 {
		names := make([]string, 0, len(kwargs))
		for name := range kwargs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			segments = append(segments, fmt.Sprintf("%s:%s", name, kwargs[name]))
		}
	}
	key := strings.Join(segments, ":")
	if len(key) > m.cfg.MaxKeyLength {
		return fmt.Sprintf("%s:hash:%s", prefix, HashText(key))
	}
	return key
}

// HashText returns the hex md5 of text, used to keep unbounded inputs out
// of key names.
func HashText(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (m *Manager) degrade(ctx context.Context, op, subject string, err error) {
	if m.available.CompareAndSwap(true, false) {
		logger.FromContext(ctx).Warn(
			"cache backend failed, continuing without cache",
			"op", op,
			"subject", subject,
			"error", err,
		)
	}
}
