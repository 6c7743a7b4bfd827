// Package lyriccache 进程内歌词缓存，不落盘
package lyriccache

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"lyricsync/internal/lyrics"
)

// DefaultTTL 缓存有效期
const DefaultTTL = 24 * time.Hour

var logger = log.With().Str("component", "lyric-cache").Logger()

// Entry 缓存条目
type Entry struct {
	Key       string
	Value     lyrics.SyncedLyricSet
	FetchedAt time.Time
}

// Result 一次 Do 调用的结果，Shared 表示与其他调用者共用了同一次请求
type Result struct {
	Set    lyrics.SyncedLyricSet
	Err    error
	Shared bool
}

// Cache 以歌曲标识为键的 TTL 缓存
// 过期条目只在读取时视为不存在，不会被删除
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	ttl     time.Duration
	now     func() time.Time
	group   singleflight.Group
}

// Option 配置 Cache
type Option func(*Cache)

// WithTTL 设置有效期，非正数时使用默认值
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New 创建缓存
func New(opts ...Option) *Cache {
	c := &Cache{
		entries: make(map[string]Entry),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get 返回未过期的歌词
func (c *Cache) Get(key string) (lyrics.SyncedLyricSet, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return lyrics.SyncedLyricSet{}, false
	}
	if c.now().Sub(entry.FetchedAt) >= c.ttl {
		logger.Debug().Str("key", key).Time("fetched_at", entry.FetchedAt).Msg("Cache entry expired")
		return lyrics.SyncedLyricSet{}, false
	}
	return entry.Value, true
}

// Put 写入或覆盖，并记录当前时间
func (c *Cache) Put(key string, set lyrics.SyncedLyricSet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = Entry{Key: key, Value: set, FetchedAt: c.now()}
}

// Len 条目数量，包括已过期的
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TTL 返回有效期
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Do 同一个 key 同时只执行一次 fn，其他调用者共享结果
// 结果不会自动写入缓存，由调用方在确认仍然需要后 Put
func (c *Cache) Do(key string, fn func() (lyrics.SyncedLyricSet, error)) <-chan Result {
	out := make(chan Result, 1)
	ch := c.group.DoChan(key, func() (any, error) {
		return fn()
	})
	go func() {
		r := <-ch
		set, _ := r.Val.(lyrics.SyncedLyricSet)
		out <- Result{Set: set, Err: r.Err, Shared: r.Shared}
	}()
	return out
}
