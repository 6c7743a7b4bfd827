package app

import (
	"context"
	"time"

	"lyricsync/internal/i3block"
	"lyricsync/internal/ipc"
	"lyricsync/internal/notify"
	"lyricsync/internal/tracker"
	"lyricsync/pkg/fileutil"
	"lyricsync/pkg/redis"
)

const sinkTimeout = 500 * time.Millisecond

// Presenters 按顺序把状态分发给每个输出
type Presenters []tracker.Presenter

func (p Presenters) Present(state tracker.DisplayState) {
	for _, s := range p {
		s.Present(state)
	}
}

func (p Presenters) Notify(n tracker.Notification) {
	for _, s := range p {
		s.Notify(n)
	}
}

// formatLine 单行文本输出，有翻译时附在后面
func formatLine(state tracker.DisplayState) string {
	if state.Translation == "" {
		return state.Text
	}
	return state.Text + " / " + state.Translation
}

type ipcSink struct {
	server *ipc.Server
}

func (s ipcSink) Present(state tracker.DisplayState) {
	s.server.Broadcast(formatLine(state))
}

func (ipcSink) Notify(tracker.Notification) {}

// fileSink 供 i3blocks 之类按文件读取的状态栏使用
type fileSink struct {
	path string
}

func (s fileSink) Present(state tracker.DisplayState) {
	if err := fileutil.WriteFileAtomic(s.path, []byte(formatLine(state)+"\n"), 0644); err != nil {
		logger.Error().Err(err).Str("path", s.path).Msg("Failed to write lyrics file")
	}
}

func (fileSink) Notify(tracker.Notification) {}

type redisSink struct {
	publisher *redis.Publisher
}

func (s redisSink) Present(state tracker.DisplayState) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, state); err != nil {
		logger.Error().Err(err).Msg("Failed to publish state to redis")
	}
}

func (redisSink) Notify(tracker.Notification) {}

// i3blockSink 必须排在 fileSink 之后，i3blocks 收到信号时文件已经更新
type i3blockSink struct {
	controller *i3block.Controller
}

func (s i3blockSink) Present(tracker.DisplayState) {
	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()
	if err := s.controller.Refresh(ctx); err != nil {
		logger.Debug().Err(err).Msg("Failed to signal i3blocks")
	}
}

func (i3blockSink) Notify(tracker.Notification) {}

// notifySink 同一类通知替换上一条，不在桌面上堆积
type notifySink struct {
	notifier notify.Notifier
	ids      map[tracker.NotificationKind]uint32
}

func newNotifySink(n notify.Notifier) *notifySink {
	return &notifySink{notifier: n, ids: make(map[tracker.NotificationKind]uint32)}
}

func (*notifySink) Present(tracker.DisplayState) {}

func (s *notifySink) Notify(n tracker.Notification) {
	urgency := notify.UrgencyNormal
	if n.Kind == tracker.NotifyNotFound {
		urgency = notify.UrgencyLow
	}

	id, err := s.notifier.Notify(notify.Notification{
		Title:      n.Title,
		Body:       n.Body,
		Icon:       "audio-x-generic",
		Timeout:    -1,
		ReplacesID: s.ids[n.Kind],
		Urgency:    urgency,
	})
	if err != nil {
		logger.Warn().Err(err).Str("kind", string(n.Kind)).Msg("Failed to send desktop notification")
		return
	}
	s.ids[n.Kind] = id
}
