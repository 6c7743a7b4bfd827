package netease

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

const (
	// ProviderName 提供商名称
	ProviderName   = "netease"
	DefaultBaseURL = "https://music.163.com"
)

var logger = log.With().Str("component", "netease").Logger()

// NeteaseSearchResponse 网易云搜索API响应
type NeteaseSearchResponse struct {
	Code   int `json:"code"`
	Result struct {
		Songs []struct {
			ID      int    `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"songs"`
	} `json:"result"`
}

// NeteaseLyricResponse 网易云歌词API响应
type NeteaseLyricResponse struct {
	Code    int  `json:"code"`
	NoLyric bool `json:"nolyric"`
	Lrc     struct {
		Lyric string `json:"lyric"`
	} `json:"lrc"`
	Tlyric struct {
		Lyric string `json:"lyric"`
	} `json:"tlyric"`
}

// Client 网易云音乐客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
	retry      music.RetryPolicy
}

// NewClient 创建新的网易云音乐客户端
func NewClient(baseURL, cookie string, timeout time.Duration, retry music.RetryPolicy) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		cookie:     cookie,
		retry:      retry,
	}
}

// Name 获取提供商名称
func (c *Client) Name() string {
	return ProviderName
}

// Fetch 搜索歌曲并获取歌词
func (c *Client) Fetch(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error) {
	songID, err := c.SearchSong(ctx, title, artist)
	if err != nil {
		return lyrics.SyncedLyricSet{}, err
	}

	resp, err := c.GetLyrics(ctx, songID)
	if err != nil {
		return lyrics.SyncedLyricSet{}, err
	}
	if resp.NoLyric || strings.TrimSpace(resp.Lrc.Lyric) == "" {
		return lyrics.SyncedLyricSet{}, music.NotFound(ProviderName, "song %s has no lyrics", songID)
	}

	lines := lyrics.ParseLRC(resp.Lrc.Lyric)
	if len(lines) == 0 {
		return lyrics.SyncedLyricSet{}, music.NotFound(ProviderName, "song %s has no synced lyrics", songID)
	}
	mergeTranslations(lines, resp.Tlyric.Lyric)

	return lyrics.NewSet(ProviderName, lines, ""), nil
}

// SearchSong 搜索歌曲，返回歌曲ID
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("s", strings.TrimSpace(title+" "+artist))
	params.Set("type", "1")
	params.Set("limit", "30")
	searchURL := fmt.Sprintf("%s/api/search/get/web?%s", c.baseURL, params.Encode())
	logger.Debug().Str("url", searchURL).Msg("Searching for song")

	var searchResp NeteaseSearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return "", err
	}

	if len(searchResp.Result.Songs) == 0 {
		return "", music.NotFound(ProviderName, "no songs found for '%s'", title)
	}

	songID := c.findBestMatch(searchResp, artist, title)
	if songID == 0 {
		return "", music.NotFound(ProviderName, "no matching song found for '%s' by '%s'", title, artist)
	}

	return strconv.Itoa(songID), nil
}

// GetLyrics 根据歌曲ID获取歌词
func (c *Client) GetLyrics(ctx context.Context, songID string) (*NeteaseLyricResponse, error) {
	lyricURL := fmt.Sprintf("%s/api/song/lyric?os=pc&id=%s&lv=-1&kv=-1&tv=-1", c.baseURL, url.QueryEscape(songID))
	logger.Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	var lyricResp NeteaseLyricResponse
	if err := c.getJSON(ctx, lyricURL, &lyricResp); err != nil {
		return nil, err
	}
	return &lyricResp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return music.Upstream(ProviderName, fmt.Errorf("failed to create request: %w", err))
	}
	// 设置Cookie
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}
	req.Header.Set("Referer", "https://music.163.com/")

	resp, err := c.doRequestWithRetry(req)
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

func (c *Client) doRequestWithRetry(req *http.Request) (*http.Response, error) {
	return music.DoWithRetry(c.httpClient, req, c.retry)
}

// findBestMatch 找到最佳匹配的歌曲
func (c *Client) findBestMatch(resp NeteaseSearchResponse, targetArtist, targetTitle string) int {
	titleOnly := -1
	for i, song := range resp.Result.Songs {
		// 判断歌曲名包含关系
		if !containsIgnoreCase(song.Name, targetTitle) {
			continue
		}
		if titleOnly < 0 {
			titleOnly = i
		}

		// 判断歌手名包含关系，artists 可能有多个，只要一个满足就算
		for _, artist := range song.Artists {
			if targetArtist != "" && containsIgnoreCase(artist.Name, targetArtist) {
				logger.Info().Str("song", song.Name).Str("artist", artist.Name).Int("id", song.ID).Msg("Found matching song")
				return song.ID
			}
		}
	}

	// 如果没有找到完全匹配的，返回第一个匹配标题的
	if titleOnly >= 0 {
		song := resp.Result.Songs[titleOnly]
		logger.Info().Str("song", song.Name).Int("id", song.ID).Msg("Using first matching song")
		return song.ID
	}

	return 0
}

// mergeTranslations 按时间戳把翻译歌词合并到原文歌词行
func mergeTranslations(lines []lyrics.Line, translated string) {
	if strings.TrimSpace(translated) == "" {
		return
	}
	byTime := make(map[int64]string)
	for _, t := range lyrics.ParseLRC(translated) {
		if _, ok := byTime[t.TimeMs]; !ok {
			byTime[t.TimeMs] = t.Text
		}
	}
	for i := range lines {
		if text, ok := byTime[lines[i].TimeMs]; ok {
			lines[i].Translation = text
		}
	}
}

// normalizeString 标准化字符串（转小写，去空格）
func normalizeString(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "")
}

// containsIgnoreCase 忽略大小写和空格的包含关系检查
func containsIgnoreCase(s1, s2 string) bool {
	norm1, norm2 := normalizeString(s1), normalizeString(s2)
	if norm1 == "" || norm2 == "" {
		return norm1 == norm2
	}
	return strings.Contains(norm1, norm2) || strings.Contains(norm2, norm1)
}
