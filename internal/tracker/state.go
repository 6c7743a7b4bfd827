package tracker

import "lyricsync/internal/lyrics"

// Status 显示状态
type Status string

const (
	StatusIdle       Status = "idle"
	StatusLoading    Status = "loading"
	StatusReady      Status = "ready"
	StatusNotFound   Status = "not_found"
	StatusPaused     Status = "paused"
	StatusPermission Status = "permission"
)

const (
	IdleText        = "No music playing"
	PlaceholderText = "♪"
	LoadingText     = "Searching lyrics…"
	NotFoundText    = "No lyrics found"
	PermissionText  = "Player permission needed"
)

// DisplayState 展示层需要的全部信息
// 不包含播放进度，进度变化但歌词行不变时不会重复推送
type DisplayState struct {
	Status      Status `json:"status"`
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	Tooltip     string `json:"tooltip"`
	Artist      string `json:"artist,omitempty"`
	Title       string `json:"title,omitempty"`
	Provider    string `json:"provider,omitempty"`
	LineIndex   int    `json:"line_index"`
	Transcript  string `json:"transcript,omitempty"`
}

// NotificationKind 通知类别，冷却时间按类别计算
type NotificationKind string

const (
	NotifyPermission NotificationKind = "permission"
	NotifyNotFound   NotificationKind = "not_found"
)

// Notification 面向用户的一次性提醒
type Notification struct {
	Kind  NotificationKind
	Title string
	Body  string
}

// Presenter 接收显示状态和通知
type Presenter interface {
	Present(state DisplayState)
	Notify(n Notification)
}

type nopPresenter struct{}

func (nopPresenter) Present(DisplayState) {}
func (nopPresenter) Notify(Notification)  {}

func idleState() DisplayState {
	return DisplayState{Status: StatusIdle, Text: IdleText, Tooltip: IdleText, LineIndex: -1}
}

func tooltip(id lyrics.Identity, suffix string) string {
	s := id.String()
	if suffix == "" {
		return s
	}
	if s == "" {
		return suffix
	}
	return s + " (" + suffix + ")"
}
