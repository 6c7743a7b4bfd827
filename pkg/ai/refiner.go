package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/pkg/music"
)

var logger = log.With().Str("component", "ai-refiner").Logger()

const (
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

var _ music.Refiner = (*Refiner)(nil)

func formatQuerySong(title string) string {
	return fmt.Sprintf(`请精确地按照以下JSON格式提取歌曲信息: {"is_song": true, "title": "歌曲标题", "artist": "演唱者"}。  输入是一个媒体标题，如果标题中包含歌曲信息，请返回符合格式的JSON；否则，返回{"is_song": false}。 请注意，"title" 和 "artist" 必须准确，否则将被视为错误，切记不要任何markdown格式，并将繁体中文转换为简体。 媒体标题是：%s`, title)
}

// Refiner 用大模型从媒体标题中提取歌名和歌手
type Refiner struct {
	client     AiInterface
	maxRetries int
	retryDelay time.Duration
}

// NewRefiner 创建 Refiner
func NewRefiner(client AiInterface) *Refiner {
	return &Refiner{
		client:     client,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
}

// Refine 实现 music.Refiner
func (r *Refiner) Refine(ctx context.Context, artist, title string) (music.SongInfo, error) {
	query := title
	if artist != "" {
		query = artist + " - " + title
	}

	var raw string
	var err error
	for i := 0; i < r.maxRetries; i++ {
		raw, err = r.client.HandleText(ctx, formatQuerySong(query))
		if err == nil {
			break
		}
		logger.Warn().Err(err).Str("model", r.client.Name()).Int("attempt", i+1).Int("max_retries", r.maxRetries).Msg("Failed to query model")
		if i == r.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return music.SongInfo{}, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}
	if err != nil {
		return music.SongInfo{}, fmt.Errorf("failed to query %s after %d attempts: %w", r.client.Name(), r.maxRetries, err)
	}

	info, err := ParseSongInfo(raw)
	if err != nil {
		return music.SongInfo{}, fmt.Errorf("failed to parse %s response: %w", r.client.Name(), err)
	}
	logger.Info().Str("query", query).Str("title", info.Title).Str("artist", info.Artist).Bool("is_song", info.IsSong).Msg("Model returned song info")
	return info, nil
}

// ParseSongInfo 解析模型返回的 JSON，容忍 markdown 代码块
func ParseSongInfo(raw string) (music.SongInfo, error) {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		raw = raw[start : end+1]
	}

	var info music.SongInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return music.SongInfo{}, err
	}
	info.Title = strings.TrimSpace(info.Title)
	info.Artist = strings.TrimSpace(info.Artist)
	return info, nil
}
