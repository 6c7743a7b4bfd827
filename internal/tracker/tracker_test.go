package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/lyriccache"
)

type fakePlayer struct {
	mu   sync.Mutex
	snap *lyrics.Snapshot
	err  error
}

func (f *fakePlayer) set(snap *lyrics.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = snap, err
}

func (f *fakePlayer) Snapshot(ctx context.Context) (*lyrics.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap == nil {
		return nil, f.err
	}
	s := *f.snap
	return &s, f.err
}

func snapshot(artist, title string, posMs int64, playing bool) *lyrics.Snapshot {
	return &lyrics.Snapshot{
		Identity:   lyrics.NewIdentity(artist, title),
		PositionMs: posMs,
		Playing:    playing,
		Player:     "test",
	}
}

type fakeResolver struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	sets  map[string]lyrics.SyncedLyricSet
}

func newResolver() *fakeResolver {
	return &fakeResolver{
		gates: make(map[string]chan struct{}),
		sets:  make(map[string]lyrics.SyncedLyricSet),
	}
}

func (f *fakeResolver) add(title string, texts ...string) {
	lines := make([]lyrics.Line, len(texts))
	for i, text := range texts {
		lines[i] = lyrics.Line{TimeMs: int64(i+1) * 1000, Text: text}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets[title] = lyrics.NewSet("fake", lines, "")
}

// block 让 title 的请求阻塞，直到返回的函数被调用
func (f *fakeResolver) block(title string) func() {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[title] = gate
	f.mu.Unlock()
	return func() { close(gate) }
}

func (f *fakeResolver) Resolve(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error) {
	f.mu.Lock()
	f.calls = append(f.calls, title)
	gate := f.gates[title]
	set, ok := f.sets[title]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return lyrics.SyncedLyricSet{}, errors.New("no lyrics found")
	}
	return set, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingPresenter struct {
	mu            sync.Mutex
	states        []DisplayState
	notifications []Notification
}

func (r *recordingPresenter) Present(s DisplayState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recordingPresenter) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifications = append(r.notifications, n)
}

func (r *recordingPresenter) last() DisplayState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.states) == 0 {
		return DisplayState{}
	}
	return r.states[len(r.states)-1]
}

func (r *recordingPresenter) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states), len(r.notifications)
}

type harness struct {
	player    *fakePlayer
	resolver  *fakeResolver
	cache     *lyriccache.Cache
	presenter *recordingPresenter
	tracker   *Tracker
	now       time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		player:    &fakePlayer{},
		resolver:  newResolver(),
		cache:     lyriccache.New(),
		presenter: &recordingPresenter{},
		now:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	h.tracker = New(h.player, h.resolver, h.cache, h.presenter,
		Config{NotifyCooldown: 30 * time.Second},
		WithClock(func() time.Time { return h.now }))
	return h
}

// settle 等待一个请求结果并交给 Tracker 处理
func (h *harness) settle(t *testing.T) {
	t.Helper()
	select {
	case res := <-h.tracker.results:
		h.tracker.apply(res)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for fetch result")
	}
}

func TestFetchAndLocate(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one", "two", "three")
	ctx := context.Background()

	h.player.set(snapshot("Artist", "Song", 2500, true), nil)
	h.tracker.Tick(ctx)
	assert.Equal(t, StatusLoading, h.tracker.State().Status)
	assert.Equal(t, LoadingText, h.tracker.State().Text)

	h.settle(t)
	state := h.tracker.State()
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, "two", state.Text)
	assert.Equal(t, 1, state.LineIndex)
	assert.Equal(t, "Artist - Song", state.Tooltip)
	assert.Equal(t, "one\ntwo\nthree", state.Transcript)

	_, cached := h.cache.Get(lyrics.NewIdentity("Artist", "Song").Key())
	assert.True(t, cached)
}

func TestPlaceholderBeforeFirstLine(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one")

	h.player.set(snapshot("Artist", "Song", 200, true), nil)
	h.tracker.Tick(context.Background())
	h.settle(t)

	state := h.tracker.State()
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, PlaceholderText, state.Text)
	assert.Equal(t, -1, state.LineIndex)
}

func TestOffsetShiftsPosition(t *testing.T) {
	h := newHarness(t)
	h.tracker.cfg.OffsetMs = 600
	h.resolver.add("Song", "one", "two")

	h.player.set(snapshot("Artist", "Song", 1500, true), nil)
	h.tracker.Tick(context.Background())
	h.settle(t)

	assert.Equal(t, "two", h.tracker.State().Text)
}

func TestTrackChangeDiscardsStaleResult(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("X", "x line")
	h.resolver.add("Y", "y line")
	releaseX := h.resolver.block("X")
	ctx := context.Background()

	h.player.set(snapshot("A", "X", 1000, true), nil)
	h.tracker.Tick(ctx)

	// 切到 Y 时 X 的请求还没有完成
	h.player.set(snapshot("A", "Y", 1000, true), nil)
	h.tracker.Tick(ctx)
	assert.Equal(t, 1, h.resolver.callCount(), "only one fetch in flight")
	assert.Equal(t, LoadingText, h.tracker.State().Text)

	releaseX()
	h.settle(t)
	state := h.tracker.State()
	assert.Equal(t, StatusLoading, state.Status, "X result must not be applied to Y")
	assert.Equal(t, "Y", state.Title)
	_, cached := h.cache.Get(lyrics.NewIdentity("A", "X").Key())
	assert.False(t, cached, "stale result is discarded, not cached")

	h.tracker.Tick(ctx)
	h.settle(t)
	state = h.tracker.State()
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, "y line", state.Text)
	assert.Equal(t, []string{"X", "Y"}, h.resolver.calls)
}

func TestReturningToInFlightTrackKeepsResult(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("X", "x line")
	releaseX := h.resolver.block("X")
	ctx := context.Background()

	h.player.set(snapshot("A", "X", 1000, true), nil)
	h.tracker.Tick(ctx)
	h.player.set(snapshot("A", "Y", 1000, true), nil)
	h.tracker.Tick(ctx)
	h.player.set(snapshot("A", "X", 1000, true), nil)
	h.tracker.Tick(ctx)

	releaseX()
	h.settle(t)
	assert.Equal(t, "x line", h.tracker.State().Text)
	assert.Equal(t, 1, h.resolver.callCount())
}

func TestCacheHitSkipsResolver(t *testing.T) {
	h := newHarness(t)
	id := lyrics.NewIdentity("Artist", "Song")
	h.cache.Put(id.Key(), lyrics.NewSet("cached", []lyrics.Line{{TimeMs: 0, Text: "from cache"}}, ""))

	h.player.set(snapshot("Artist", "Song", 10, true), nil)
	h.tracker.Tick(context.Background())

	state := h.tracker.State()
	assert.Equal(t, StatusReady, state.Status)
	assert.Equal(t, "from cache", state.Text)
	assert.Equal(t, "cached", state.Provider)
	assert.Zero(t, h.resolver.callCount())
}

func TestPausedTrackIsNotFetched(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one")
	ctx := context.Background()

	h.player.set(snapshot("Artist", "Song", 1000, false), nil)
	h.tracker.Tick(ctx)
	h.tracker.Tick(ctx)

	state := h.tracker.State()
	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, "Artist - Song", state.Text)
	assert.Zero(t, h.resolver.callCount())

	h.player.set(snapshot("Artist", "Song", 1000, true), nil)
	h.tracker.Tick(ctx)
	h.settle(t)
	assert.Equal(t, "one", h.tracker.State().Text)
	assert.Equal(t, 1, h.resolver.callCount())
}

func TestPauseKeepsLyrics(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one", "two")
	ctx := context.Background()

	h.player.set(snapshot("Artist", "Song", 2000, true), nil)
	h.tracker.Tick(ctx)
	h.settle(t)

	h.player.set(snapshot("Artist", "Song", 2000, false), nil)
	h.tracker.Tick(ctx)

	state := h.tracker.State()
	assert.Equal(t, StatusPaused, state.Status)
	assert.Equal(t, "two", state.Text)
	assert.NotEmpty(t, state.Transcript)
	assert.Equal(t, 1, h.resolver.callCount())
}

func TestNothingPlayingResetsToIdle(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one")
	ctx := context.Background()

	h.player.set(snapshot("Artist", "Song", 1000, true), nil)
	h.tracker.Tick(ctx)
	h.settle(t)

	h.player.set(nil, nil)
	h.tracker.Tick(ctx)
	idle := h.tracker.State()
	assert.Equal(t, StatusIdle, idle.Status)
	assert.Equal(t, IdleText, idle.Text)
	assert.Equal(t, IdleText, idle.Tooltip)
	assert.Empty(t, idle.Transcript)
	assert.Equal(t, -1, idle.LineIndex)
	assert.Equal(t, IdleText, h.presenter.last().Text)

	// 回到同一首歌直接命中缓存
	h.player.set(snapshot("Artist", "Song", 1000, true), nil)
	h.tracker.Tick(ctx)
	assert.Equal(t, "one", h.tracker.State().Text)
	assert.Equal(t, 1, h.resolver.callCount())

	h.player.set(nil, errors.New("dbus: connection closed"))
	h.tracker.Tick(ctx)
	assert.Equal(t, StatusIdle, h.tracker.State().Status)
	assert.Equal(t, IdleText, h.tracker.State().Text)
}

func TestNotFound(t *testing.T) {
	h := newHarness(t)

	h.player.set(snapshot("Artist", "Unknown", 1000, true), nil)
	h.tracker.Tick(context.Background())
	h.settle(t)

	state := h.tracker.State()
	assert.Equal(t, StatusNotFound, state.Status)
	assert.Equal(t, NotFoundText, state.Text)
	assert.Zero(t, h.cache.Len())

	require.Len(t, h.presenter.notifications, 1)
	assert.Equal(t, NotifyNotFound, h.presenter.notifications[0].Kind)
	assert.Equal(t, "Artist - Unknown", h.presenter.notifications[0].Body)
}

func TestPermissionCooldown(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one")
	ctx := context.Background()

	h.player.set(snapshot("Artist", "Song", 1000, true), nil)
	h.tracker.Tick(ctx)
	h.settle(t)

	h.player.set(nil, errors.New("Operation not allowed"))
	h.tracker.Tick(ctx)

	state := h.tracker.State()
	assert.Equal(t, StatusPermission, state.Status)
	assert.Equal(t, PermissionText, state.Text)
	assert.Equal(t, "one", state.Transcript, "lyrics are kept while access is denied")

	_, notes := h.presenter.counts()
	assert.Equal(t, 1, notes)

	h.now = h.now.Add(10 * time.Second)
	h.tracker.Tick(ctx)
	_, notes = h.presenter.counts()
	assert.Equal(t, 1, notes, "suppressed within cooldown")

	h.now = h.now.Add(25 * time.Second)
	h.tracker.Tick(ctx)
	_, notes = h.presenter.counts()
	assert.Equal(t, 2, notes)

	// 恢复后继续使用已加载的歌词
	h.player.set(snapshot("Artist", "Song", 1000, true), nil)
	h.tracker.Tick(ctx)
	assert.Equal(t, StatusReady, h.tracker.State().Status)
	assert.Equal(t, 1, h.resolver.callCount())
}

func TestTimeoutIsPermissionClass(t *testing.T) {
	h := newHarness(t)
	h.player.set(nil, context.DeadlineExceeded)
	h.tracker.Tick(context.Background())
	assert.Equal(t, StatusPermission, h.tracker.State().Status)
}

func TestIdenticalStatesNotRepublished(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one", "two")
	ctx := context.Background()

	h.player.set(snapshot("Artist", "Song", 1000, true), nil)
	h.tracker.Tick(ctx)
	h.settle(t)
	published, _ := h.presenter.counts()

	h.player.set(snapshot("Artist", "Song", 1400, true), nil)
	h.tracker.Tick(ctx)
	h.tracker.Tick(ctx)
	after, _ := h.presenter.counts()
	assert.Equal(t, published, after, "same line, nothing new to publish")

	h.player.set(snapshot("Artist", "Song", 2100, true), nil)
	h.tracker.Tick(ctx)
	after, _ = h.presenter.counts()
	assert.Equal(t, published+1, after)

	h.player.set(nil, nil)
	h.tracker.Tick(ctx)
	h.tracker.Tick(ctx)
	final, _ := h.presenter.counts()
	assert.Equal(t, after+1, final)
}

func TestSync(t *testing.T) {
	h := newHarness(t)
	h.resolver.add("Song", "one")
	h.player.set(snapshot("Artist", "Song", 1000, true), nil)

	state, err := h.tracker.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "one", state.Text)
}

func TestRun(t *testing.T) {
	h := newHarness(t)
	h.tracker.cfg.PollInterval = 5 * time.Millisecond
	h.resolver.add("Song", "one")
	h.player.set(snapshot("Artist", "Song", 1000, true), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.tracker.Run(ctx) }()

	require.Eventually(t, func() bool {
		return h.tracker.State().Text == "one"
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
