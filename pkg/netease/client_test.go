package netease

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricsync/pkg/music"
)

const searchBody = `{"code":200,"result":{"songs":[
	{"id":1,"name":"Other Song","artists":[{"name":"Someone"}]},
	{"id":123,"name":"Test Song","artists":[{"name":"Guest"},{"name":"Test Artist"}]}
]}}`

const lyricBody = `{"code":200,
	"lrc":{"lyric":"[00:00.00]作词 : 某人\n[00:01.00]Hello\n[00:02.50]World\n"},
	"tlyric":{"lyric":"[00:01.00]你好\n"}}`

func newServer(t *testing.T, lyric string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/search/get/web":
			_, _ = w.Write([]byte(searchBody))
		case "/api/song/lyric":
			assert.Equal(t, "123", r.URL.Query().Get("id"))
			_, _ = w.Write([]byte(lyric))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetch(t *testing.T) {
	client := NewClient(newServer(t, lyricBody).URL, "", time.Second, music.RetryPolicy{})

	set, err := client.Fetch(context.Background(), "Test Artist", "Test Song")
	require.NoError(t, err)
	require.Len(t, set.Lines, 3)

	assert.Equal(t, int64(1000), set.Lines[1].TimeMs)
	assert.Equal(t, "你好", set.Lines[1].Translation)
	assert.Empty(t, set.Lines[2].Translation)
	assert.Equal(t, "Hello\nWorld", set.PlainText, "credit line removed from transcript only")
}

func TestFetchNoLyric(t *testing.T) {
	client := NewClient(newServer(t, `{"code":200,"nolyric":true}`).URL, "", time.Second, music.RetryPolicy{})

	_, err := client.Fetch(context.Background(), "Test Artist", "Test Song")
	assert.ErrorIs(t, err, music.ErrNotFound)
}

func TestFetchNoMatch(t *testing.T) {
	client := NewClient(newServer(t, lyricBody).URL, "", time.Second, music.RetryPolicy{})

	_, err := client.Fetch(context.Background(), "Nobody", "Unknown Title")
	assert.ErrorIs(t, err, music.ErrNotFound)
}

// TestClientRetry 测试重试机制
func TestClientRetry(t *testing.T) {
	requestCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount++
		if requestCount <= 2 {
			// 前两次请求失败
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(searchBody))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", time.Second, music.RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond})

	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := client.doRequestWithRetry(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 3, requestCount)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

// TestTimeout 测试超时机制
func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 100*time.Millisecond, music.RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	_, err = client.doRequestWithRetry(req)
	assert.Error(t, err)
}

func TestFindBestMatchFallsBackToFirstTitleMatch(t *testing.T) {
	var resp NeteaseSearchResponse
	require.NoError(t, json.Unmarshal([]byte(`{"code":200,"result":{"songs":[
		{"id":1,"name":"Unrelated","artists":[{"name":"Someone"}]},
		{"id":2,"name":"Test Song (Live)","artists":[{"name":"Cover Band"}]},
		{"id":3,"name":"Test Song","artists":[{"name":"Another Cover"}]}
	]}}`), &resp))

	c := NewClient("", "", time.Second, music.RetryPolicy{})
	assert.Equal(t, 2, c.findBestMatch(resp, "Test Artist", "Test Song"))
	assert.Equal(t, 0, c.findBestMatch(resp, "Test Artist", "Missing"))
}
