package lrclib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/music"
)

const (
	// ProviderName 提供商名称
	ProviderName   = "lrclib"
	DefaultBaseURL = "https://lrclib.net/api"
)

var logger = log.With().Str("component", "lrclib").Logger()

// Client LRCLib客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
	retry      music.RetryPolicy
}

// LRCLibResponse LRCLib API响应结构
type LRCLibResponse struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	AlbumName    string  `json:"albumName"`
	Duration     float64 `json:"duration"`
	Instrumental bool    `json:"instrumental"`
	PlainLyrics  string  `json:"plainLyrics"`
	SyncedLyrics string  `json:"syncedLyrics"`
}

// HasSyncedLyrics 是否带有同步歌词
func (r *LRCLibResponse) HasSyncedLyrics() bool {
	return strings.TrimSpace(r.SyncedLyrics) != ""
}

// NewClient 创建新的LRCLib客户端
func NewClient(baseURL string, timeout time.Duration, retry music.RetryPolicy) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retry:      retry,
	}
}

// Name 返回提供商名称
func (c *Client) Name() string {
	return ProviderName
}

// Fetch 搜索候选，按排序依次尝试，直到某个候选有同步歌词
func (c *Client) Fetch(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error) {
	candidates, err := c.Search(ctx, artist, title)
	if err != nil {
		return lyrics.SyncedLyricSet{}, err
	}
	if len(candidates) == 0 {
		return lyrics.SyncedLyricSet{}, music.NotFound(ProviderName, "no results for '%s - %s'", artist, title)
	}

	ranked := Rank(candidates, artist, title)
	for i, candidate := range ranked {
		lines := lyrics.ParseLRC(candidate.SyncedLyrics)
		if len(lines) == 0 {
			continue
		}
		logger.Info().
			Int("id", candidate.ID).
			Int("rank", i+1).
			Str("track", candidate.TrackName).
			Str("artist", candidate.ArtistName).
			Int("lines", len(lines)).
			Msg("Selected candidate")
		return lyrics.NewSet(ProviderName, lines, candidate.PlainLyrics), nil
	}

	return lyrics.SyncedLyricSet{}, music.NotFound(ProviderName,
		"none of %d results has synced lyrics for '%s - %s'", len(candidates), artist, title)
}

// Search 搜索歌曲，返回上游原始顺序的候选列表
func (c *Client) Search(ctx context.Context, artist, title string) ([]LRCLibResponse, error) {
	params := url.Values{}
	params.Set("track_name", title)
	if artist != "" {
		params.Set("artist_name", artist)
	}
	searchURL := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, http.NoBody)
	if err != nil {
		return nil, music.Upstream(ProviderName, fmt.Errorf("failed to create request: %w", err))
	}

	resp, err := music.DoWithRetry(c.httpClient, req, c.retry)
	if err != nil {
		return nil, music.Upstream(ProviderName, err)
	}
	defer resp.Body.Close()

	if err := music.CheckStatus(ProviderName, resp); err != nil {
		return nil, err
	}

	var results []LRCLibResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, music.Upstream(ProviderName, fmt.Errorf("failed to decode response: %w", err))
	}

	logger.Debug().Int("results", len(results)).Str("artist", artist).Str("title", title).Msg("Search finished")
	return results, nil
}

// Rank 对候选排序：有同步歌词 > 歌手完全一致 > 标题完全一致 > 上游顺序
func Rank(candidates []LRCLibResponse, artist, title string) []LRCLibResponse {
	ranked := make([]LRCLibResponse, len(candidates))
	copy(ranked, candidates)

	score := func(r *LRCLibResponse) int {
		s := 0
		if r.HasSyncedLyrics() {
			s += 4
		}
		if equalFold(r.ArtistName, artist) {
			s += 2
		}
		if equalFold(r.TrackName, title) {
			s++
		}
		return s
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return score(&ranked[i]) > score(&ranked[j])
	})
	return ranked
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
