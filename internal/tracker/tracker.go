// Package tracker 把播放器状态和歌词对齐
//
// Tracker 的所有状态只由 Run 所在的 goroutine 修改。歌词请求在单独的
// goroutine 中执行，结果通过 channel 回到循环里，应用前会检查是否仍然
// 属于当前歌曲，切歌后迟到的结果直接丢弃。
package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"lyricsync/internal/lyrics"
	"lyricsync/internal/player"
	"lyricsync/pkg/lyriccache"
)

var logger = log.With().Str("component", "tracker").Logger()

const (
	DefaultPollInterval   = time.Second
	DefaultPlayerTimeout  = 3 * time.Second
	DefaultNotifyCooldown = 30 * time.Second
)

// Resolver 获取歌词
type Resolver interface {
	Resolve(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error)
}

// Config Tracker 配置
type Config struct {
	PollInterval   time.Duration
	PlayerTimeout  time.Duration
	NotifyCooldown time.Duration
	// OffsetMs 加到播放进度上，正数让歌词提前
	OffsetMs int64
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.PlayerTimeout <= 0 {
		c.PlayerTimeout = DefaultPlayerTimeout
	}
	if c.NotifyCooldown <= 0 {
		c.NotifyCooldown = DefaultNotifyCooldown
	}
}

type fetchResult struct {
	key     string
	fetchID string
	set     lyrics.SyncedLyricSet
	err     error
}

// Tracker 轮询播放器并维护当前歌词
type Tracker struct {
	player    player.Provider
	resolver  Resolver
	cache     *lyriccache.Cache
	presenter Presenter
	cfg       Config
	now       func() time.Time

	results chan fetchResult

	// 以下字段只在循环 goroutine 中访问
	activeKey string
	activeID  lyrics.Identity
	active    lyrics.SyncedLyricSet
	pending   bool
	notFound  bool
	inFlight  string
	last      *lyrics.Snapshot
	limiters  map[NotificationKind]*rate.Limiter

	mu        sync.RWMutex
	state     DisplayState
	published bool
}

// Option 配置 Tracker
type Option func(*Tracker)

// WithClock 替换时钟，只影响通知冷却
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New 创建 Tracker，presenter 可以为 nil
func New(p player.Provider, r Resolver, cache *lyriccache.Cache, presenter Presenter, cfg Config, opts ...Option) *Tracker {
	cfg.applyDefaults()
	if presenter == nil {
		presenter = nopPresenter{}
	}
	if cache == nil {
		cache = lyriccache.New()
	}
	t := &Tracker{
		player:    p,
		resolver:  r,
		cache:     cache,
		presenter: presenter,
		cfg:       cfg,
		now:       time.Now,
		results:   make(chan fetchResult, 4),
		limiters:  make(map[NotificationKind]*rate.Limiter),
		state:     idleState(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// State 返回当前显示状态的副本
func (t *Tracker) State() DisplayState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Run 阻塞直到 ctx 结束
func (t *Tracker) Run(ctx context.Context) error {
	logger.Info().
		Dur("poll_interval", t.cfg.PollInterval).
		Dur("player_timeout", t.cfg.PlayerTimeout).
		Int64("offset_ms", t.cfg.OffsetMs).
		Msg("Tracker started")

	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()

	t.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Tracker stopped")
			return ctx.Err()
		case <-ticker.C:
			t.Tick(ctx)
		case res := <-t.results:
			t.apply(res)
		}
	}
}

// Sync 执行一次轮询，如果触发了歌词请求则等待其完成
func (t *Tracker) Sync(ctx context.Context) (DisplayState, error) {
	t.Tick(ctx)
	for t.inFlight != "" {
		select {
		case <-ctx.Done():
			return t.State(), ctx.Err()
		case res := <-t.results:
			t.apply(res)
		}
		// 之前的请求属于别的歌曲，当前歌曲还没开始请求
		if t.inFlight == "" && t.pending {
			t.Tick(ctx)
		}
	}
	return t.State(), nil
}

// Tick 执行一次对齐
func (t *Tracker) Tick(ctx context.Context) {
	queryCtx, cancel := context.WithTimeout(ctx, t.cfg.PlayerTimeout)
	snap, err := t.player.Snapshot(queryCtx)
	cancel()

	if err != nil {
		if player.IsPermissionError(err) {
			t.permissionDenied(err)
			return
		}
		logger.Debug().Err(err).Msg("Player query failed, treating as nothing playing")
		t.reset()
		return
	}
	if snap == nil {
		t.reset()
		return
	}
	t.last = snap

	if key := snap.Identity.Key(); key != t.activeKey {
		t.switchTrack(snap)
	}

	if snap.Playing && t.pending && t.inFlight == "" {
		t.startFetch(ctx, t.activeID)
	}

	t.publish(t.render(snap))
}

func (t *Tracker) switchTrack(snap *lyrics.Snapshot) {
	logger.Info().
		Str("track", snap.Identity.String()).
		Str("player", snap.Player).
		Bool("playing", snap.Playing).
		Msg("Track changed")

	t.activeKey = snap.Identity.Key()
	t.activeID = snap.Identity
	t.active = lyrics.SyncedLyricSet{}
	t.notFound = false
	t.pending = false

	if set, ok := t.cache.Get(t.activeKey); ok {
		logger.Debug().Str("track", snap.Identity.String()).Str("provider", set.Provider).Msg("Lyrics cache hit")
		t.active = set
		return
	}
	t.pending = true
}

func (t *Tracker) startFetch(ctx context.Context, id lyrics.Identity) {
	key := id.Key()
	fetchID := uuid.NewString()
	t.inFlight = key

	logger.Info().Str("track", id.String()).Str("fetch_id", fetchID).Msg("Fetching lyrics")

	done := t.cache.Do(key, func() (lyrics.SyncedLyricSet, error) {
		return t.resolver.Resolve(ctx, id.Artist, id.Title)
	})
	go func() {
		var res lyriccache.Result
		select {
		case res = <-done:
		case <-ctx.Done():
			return
		}
		select {
		case t.results <- fetchResult{key: key, fetchID: fetchID, set: res.Set, err: res.Err}:
		case <-ctx.Done():
		}
	}()
}

func (t *Tracker) apply(res fetchResult) {
	if res.key == t.inFlight {
		t.inFlight = ""
	}

	if res.key != t.activeKey || !t.pending {
		logger.Debug().
			Str("fetch_id", res.fetchID).
			Bool("failed", res.err != nil).
			Msg("Discarding stale lyrics result")
		return
	}
	t.pending = false

	if res.err != nil || res.set.Empty() {
		logger.Info().Err(res.err).Str("track", t.activeID.String()).Str("fetch_id", res.fetchID).Msg("No lyrics available")
		t.active = lyrics.SyncedLyricSet{}
		t.notFound = true
		t.notify(Notification{
			Kind:  NotifyNotFound,
			Title: NotFoundText,
			Body:  t.activeID.String(),
		})
	} else {
		logger.Info().
			Str("track", t.activeID.String()).
			Str("provider", res.set.Provider).
			Int("lines", len(res.set.Lines)).
			Str("fetch_id", res.fetchID).
			Msg("Lyrics ready")
		t.cache.Put(res.key, res.set)
		t.active = res.set
		t.notFound = false
	}

	if t.last != nil {
		t.publish(t.render(t.last))
	}
}

func (t *Tracker) render(snap *lyrics.Snapshot) DisplayState {
	id := snap.Identity
	state := DisplayState{
		Artist:     id.Artist,
		Title:      id.Title,
		Provider:   t.active.Provider,
		LineIndex:  -1,
		Transcript: t.active.Transcript(),
	}

	switch {
	case t.pending:
		state.Status = StatusLoading
		state.Text = LoadingText
		state.Tooltip = tooltip(id, "searching")
	case t.notFound:
		state.Status = StatusNotFound
		state.Text = NotFoundText
		state.Tooltip = tooltip(id, "no lyrics")
	default:
		state.Status = StatusReady
		state.Tooltip = tooltip(id, "")
		state.Text = PlaceholderText
		if line, idx, ok := lyrics.Locate(t.active.Lines, snap.PositionMs+t.cfg.OffsetMs); ok {
			state.Text = line.Text
			state.Translation = line.Translation
			state.LineIndex = idx
		}
	}

	if !snap.Playing {
		state.Status = StatusPaused
		state.Tooltip = tooltip(id, "paused")
		if t.pending {
			state.Text = id.String()
		}
	}
	return state
}

func (t *Tracker) reset() {
	if t.activeKey != "" {
		logger.Info().Str("track", t.activeID.String()).Msg("Nothing playing")
	}
	t.activeKey = ""
	t.activeID = lyrics.Identity{}
	t.active = lyrics.SyncedLyricSet{}
	t.pending = false
	t.notFound = false
	t.last = nil
	t.publish(idleState())
}

func (t *Tracker) permissionDenied(err error) {
	logger.Warn().Err(err).Msg("Player access denied or timed out")

	state := DisplayState{
		Status:    StatusPermission,
		Text:      PermissionText,
		Tooltip:   PermissionText,
		LineIndex: -1,
	}
	if !t.activeID.IsZero() {
		state.Artist = t.activeID.Artist
		state.Title = t.activeID.Title
		state.Provider = t.active.Provider
		state.Transcript = t.active.Transcript()
		state.Tooltip = tooltip(t.activeID, "permission needed")
	}
	t.publish(state)

	t.notify(Notification{
		Kind:  NotifyPermission,
		Title: PermissionText,
		Body:  err.Error(),
	})
}

// notify 同一类通知在冷却时间内只发一次
func (t *Tracker) notify(n Notification) {
	limiter, ok := t.limiters[n.Kind]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(t.cfg.NotifyCooldown), 1)
		t.limiters[n.Kind] = limiter
	}
	if !limiter.AllowN(t.now(), 1) {
		logger.Debug().Str("kind", string(n.Kind)).Msg("Notification suppressed by cooldown")
		return
	}
	t.presenter.Notify(n)
}

func (t *Tracker) publish(state DisplayState) {
	t.mu.Lock()
	if t.published && t.state == state {
		t.mu.Unlock()
		return
	}
	t.state = state
	t.published = true
	t.mu.Unlock()

	t.presenter.Present(state)
}
