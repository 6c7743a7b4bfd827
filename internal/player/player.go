// Package player 查询本地播放器的当前播放状态
package player

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/lyrics"
)

var logger = log.With().Str("component", "player").Logger()

var (
	// ErrPermission 没有权限访问播放器，或者查询超时
	ErrPermission = errors.New("player access not allowed")
	// ErrNoPlayer 没有可用的播放器
	ErrNoPlayer = errors.New("no player running")
)

// Provider 播放状态来源
// 没有播放任何内容时返回 nil, nil
type Provider interface {
	Snapshot(ctx context.Context) (*lyrics.Snapshot, error)
}

var permissionMarkers = []string{"not allowed", "permission", "authorized", "timed out"}

// IsPermissionError 判断错误是否属于权限或超时一类，这类错误需要提示用户处理
func IsPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermission) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range permissionMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func newSnapshot(artist, title string, positionMs, durationMs int64, playing bool, player string) *lyrics.Snapshot {
	id := lyrics.NewIdentity(artist, title)
	if id.IsZero() {
		return nil
	}
	if positionMs < 0 {
		positionMs = 0
	}
	return &lyrics.Snapshot{
		Identity:   id,
		PositionMs: positionMs,
		DurationMs: durationMs,
		Playing:    playing,
		Player:     player,
	}
}
