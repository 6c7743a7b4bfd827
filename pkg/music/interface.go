package music

import (
	"context"

	"lyricsync/internal/lyrics"
)

// Provider 歌词来源适配器：搜索、获取歌词、解析为统一格式
type Provider interface {
	// Name 提供商名称
	Name() string

	// Fetch 根据歌手和标题获取同步歌词
	// 没有匹配时返回 ErrNotFound，网络或解析失败返回 ErrUpstream
	Fetch(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error)
}

// Refiner 从不规范的媒体标题中提取歌手和标题
type Refiner interface {
	Refine(ctx context.Context, artist, title string) (SongInfo, error)
}

// Translator 为歌词行补充翻译
type Translator interface {
	Translate(ctx context.Context, set lyrics.SyncedLyricSet) (lyrics.SyncedLyricSet, error)
}

// SongInfo 歌曲信息结构
type SongInfo struct {
	Title  string `json:"title"`
	Artist string `json:"artist"`
	IsSong bool   `json:"is_song"`
}
