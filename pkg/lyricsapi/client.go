// Package lyricsapi 对接按行返回毫秒时间戳的 JSON 歌词服务
package lyricsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/music"
)

// ProviderName 提供商名称
const ProviderName = "lyricsapi"

var logger = log.With().Str("component", "lyricsapi").Logger()

// Track 搜索结果
type Track struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ArtistName string `json:"artistName"`
}

// LyricLine 上游的单行歌词，startTimeMs 是字符串形式的毫秒数
type LyricLine struct {
	StartTimeMs string `json:"startTimeMs"`
	Words       string `json:"words"`
}

// LyricsResponse 歌词接口响应
type LyricsResponse struct {
	Lines []LyricLine `json:"lines"`
}

// Client JSON 歌词服务客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      music.RetryPolicy
}

// NewClient baseURL 没有默认值，未配置时不应启用该提供商
func NewClient(baseURL string, timeout time.Duration, retry music.RetryPolicy) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      retry,
	}
}

func (c *Client) Name() string {
	return ProviderName
}

// Fetch 搜索第一首匹配的歌曲并获取逐行歌词
func (c *Client) Fetch(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error) {
	track, err := c.Search(ctx, artist, title)
	if err != nil {
		return lyrics.SyncedLyricSet{}, err
	}

	params := url.Values{}
	params.Set("id", track.ID)
	var resp LyricsResponse
	if err := c.getJSON(ctx, c.baseURL+"/lyrics?"+params.Encode(), &resp); err != nil {
		return lyrics.SyncedLyricSet{}, err
	}

	lines := ConvertLines(resp.Lines)
	if len(lines) == 0 {
		return lyrics.SyncedLyricSet{}, music.NotFound(ProviderName, "track %s has no synced lines", track.ID)
	}
	return lyrics.NewSet(ProviderName, lines, ""), nil
}

// Search 返回第一条结果，优先歌手一致的
func (c *Client) Search(ctx context.Context, artist, title string) (Track, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(artist+" "+title))

	var tracks []Track
	if err := c.getJSON(ctx, c.baseURL+"/search?"+params.Encode(), &tracks); err != nil {
		return Track{}, err
	}
	if len(tracks) == 0 {
		return Track{}, music.NotFound(ProviderName, "no tracks for '%s - %s'", artist, title)
	}

	for _, t := range tracks {
		if strings.EqualFold(t.ArtistName, artist) {
			return t, nil
		}
	}
	logger.Debug().Str("artist", artist).Str("picked", tracks[0].ArtistName).Msg("No exact artist match, using first result")
	return tracks[0], nil
}

// ConvertLines 把上游行转换为 Line，时间无法解析、为负或文本为空的行被丢弃
func ConvertLines(in []LyricLine) []lyrics.Line {
	lines := make([]lyrics.Line, 0, len(in))
	for _, l := range in {
		ms, err := strconv.ParseInt(strings.TrimSpace(l.StartTimeMs), 10, 64)
		if err != nil || ms < 0 {
			continue
		}
		text := strings.TrimSpace(l.Words)
		if text == "" {
			continue
		}
		lines = append(lines, lyrics.Line{TimeMs: ms, Text: text})
	}
	lyrics.SortLines(lines)
	return lines
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return music.Upstream(ProviderName, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := music.DoWithRetry(c.httpClient, req, c.retry)
	if err != nil {
		return music.Upstream(ProviderName, err)
	}
	defer resp.Body.Close()

	if err := music.CheckStatus(ProviderName, resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return music.Upstream(ProviderName, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}
