package qqmusic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/music"
)

const (
	// ProviderName 提供商名称
	ProviderName   = "qqmusic"
	DefaultBaseURL = "https://c.y.qq.com"

	referer = "https://y.qq.com/"
)

var logger = log.With().Str("component", "qqmusic").Logger()

// QQMusicSearchResponse QQ音乐搜索API响应
type QQMusicSearchResponse struct {
	Code int `json:"code"`
	Data struct {
		Song struct {
			List []struct {
				SongMID  string `json:"songmid"`
				SongName string `json:"songname"`
				Singer   []struct {
					Name string `json:"name"`
				} `json:"singer"`
			} `json:"list"`
		} `json:"song"`
	} `json:"data"`
}

// QQMusicLyricResponse QQ音乐歌词API响应
type QQMusicLyricResponse struct {
	Code  int    `json:"code"`
	Lyric string `json:"lyric"`
	Trans string `json:"trans"`
}

// Client QQ音乐客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	cookie     string
	retry      music.RetryPolicy
}

// NewClient 创建新的QQ音乐客户端
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
	songMID, err := c.SearchSong(ctx, title, artist)
	if err != nil {
		return lyrics.SyncedLyricSet{}, err
	}

	resp, err := c.GetLyrics(ctx, songMID)
	if err != nil {
		return lyrics.SyncedLyricSet{}, err
	}

	lines := lyrics.ParseLRC(resp.Lyric)
	if len(lines) == 0 {
		return lyrics.SyncedLyricSet{}, music.NotFound(ProviderName, "song %s has no synced lyrics", songMID)
	}
	if resp.Trans != "" {
		byTime := make(map[int64]string)
		for _, t := range lyrics.ParseLRC(resp.Trans) {
			byTime[t.TimeMs] = t.Text
		}
		for i := range lines {
			lines[i].Translation = byTime[lines[i].TimeMs]
		}
	}

	return lyrics.NewSet(ProviderName, lines, ""), nil
}

// SearchSong 搜索歌曲，返回 songmid
func (c *Client) SearchSong(ctx context.Context, title, artist string) (string, error) {
	params := url.Values{}
	params.Set("w", strings.TrimSpace(title+" "+artist))
	params.Set("format", "json")
	params.Set("p", "1")
	params.Set("n", "20")
	searchURL := fmt.Sprintf("%s/soso/fcgi-bin/client_search_cp?%s", c.baseURL, params.Encode())
	logger.Debug().Str("url", searchURL).Msg("Searching for song")

	var searchResp QQMusicSearchResponse
	if err := c.getJSON(ctx, searchURL, &searchResp); err != nil {
		return "", err
	}
	if searchResp.Code != 0 {
		return "", music.Upstream(ProviderName, fmt.Errorf("search returned code %d", searchResp.Code))
	}

	list := searchResp.Data.Song.List
	if len(list) == 0 {
		return "", music.NotFound(ProviderName, "no songs found for '%s'", title)
	}

	var titleOnly string
	for _, song := range list {
		if !strings.EqualFold(strings.TrimSpace(song.SongName), strings.TrimSpace(title)) {
			continue
		}
		if titleOnly == "" {
			titleOnly = song.SongMID
		}
		for _, singer := range song.Singer {
			if strings.EqualFold(strings.TrimSpace(singer.Name), strings.TrimSpace(artist)) {
				logger.Info().Str("song", song.SongName).Str("artist", singer.Name).Str("mid", song.SongMID).Msg("Found matching song")
				return song.SongMID, nil
			}
		}
	}
	if titleOnly != "" {
		return titleOnly, nil
	}

	return "", music.NotFound(ProviderName, "no matching song found for '%s' by '%s'", title, artist)
}

// GetLyrics 根据 songmid 获取歌词
func (c *Client) GetLyrics(ctx context.Context, songMID string) (*QQMusicLyricResponse, error) {
	params := url.Values{}
	params.Set("songmid", songMID)
	params.Set("format", "json")
	params.Set("nobase64", "1")
	lyricURL := fmt.Sprintf("%s/lyric/fcgi-bin/fcg_query_lyric_new.fcg?%s", c.baseURL, params.Encode())
	logger.Debug().Str("url", lyricURL).Msg("Fetching lyrics")

	var lyricResp QQMusicLyricResponse
	if err := c.getJSON(ctx, lyricURL, &lyricResp); err != nil {
		return nil, err
	}
	if lyricResp.Code != 0 || strings.TrimSpace(lyricResp.Lyric) == "" {
		return nil, music.NotFound(ProviderName, "song %s has no lyrics (code %d)", songMID, lyricResp.Code)
	}

	// nobase64 模式下歌词是 HTML 实体编码的
	lyricResp.Lyric = html.UnescapeString(lyricResp.Lyric)
	lyricResp.Trans = html.UnescapeString(lyricResp.Trans)
	return &lyricResp, nil
}

func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return music.Upstream(ProviderName, fmt.Errorf("failed to create request: %w", err))
	}
	// 歌词接口校验 Referer
	req.Header.Set("Referer", referer)
	if c.cookie != "" {
		req.Header.Set("Cookie", c.cookie)
	}

	resp, err := music.DoWithRetry(c.httpClient, req, c.retry)
	if err != nil {
		return music.Upstream(ProviderName, err)
	}
	defer resp.Body.Close()

	if err := music.CheckStatus(ProviderName, resp); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return music.Upstream(ProviderName, fmt.Errorf("failed to read response: %w", err))
	}
	if err := json.Unmarshal(stripJSONP(body), out); err != nil {
		return music.Upstream(ProviderName, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

// stripJSONP 去掉 callback(...) 包装，部分接口即使指定 format=json 也会返回 JSONP
func stripJSONP(body []byte) []byte {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] == '{' || body[0] == '[' {
		return body
	}
	start := bytes.IndexByte(body, '(')
	end := bytes.LastIndexByte(body, ')')
	if start < 0 || end <= start {
		return body
	}
	return body[start+1 : end]
}
