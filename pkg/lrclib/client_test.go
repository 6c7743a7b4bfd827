package lrclib

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lyricsync/pkg/music"
)

var noRetry = music.RetryPolicy{}

func TestRank(t *testing.T) {
	t.Run("synced wins regardless of order", func(t *testing.T) {
		candidates := []LRCLibResponse{
			{ID: 1, ArtistName: "Foo"},
			{ID: 2, ArtistName: "foo", SyncedLyrics: "[00:01.00]x"},
		}
		ranked := Rank(candidates, "Foo", "Song")
		assert.Equal(t, 2, ranked[0].ID)
	})

	t.Run("artist before title, then upstream order", func(t *testing.T) {
		candidates := []LRCLibResponse{
			{ID: 1, ArtistName: "Other", TrackName: "Song"},
			{ID: 2, ArtistName: "Other", TrackName: "Else"},
			{ID: 3, ArtistName: "FOO", TrackName: "Else"},
			{ID: 4, ArtistName: "foo", TrackName: "song"},
		}
		ranked := Rank(candidates, "Foo", "Song")
		ids := []int{ranked[0].ID, ranked[1].ID, ranked[2].ID, ranked[3].ID}
		assert.Equal(t, []int{4, 3, 1, 2}, ids)
		assert.Equal(t, 1, candidates[0].ID, "input is not reordered")
	})
}

func newTestServer(t *testing.T, status int, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Song", r.URL.Query().Get("track_name"))
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestFetch(t *testing.T) {
	t.Run("tries ranked candidates until lines parse", func(t *testing.T) {
		body := `[
			{"id":1,"trackName":"Song","artistName":"Foo","syncedLyrics":"[bad]nothing usable"},
			{"id":2,"trackName":"Song","artistName":"Bar","syncedLyrics":"[00:01.00]first\n[00:02.00]second","plainLyrics":"first\nsecond"},
			{"id":3,"trackName":"Song","artistName":"Foo","plainLyrics":"plain only"}
		]`
		server, _ := newTestServer(t, http.StatusOK, body)

		client := NewClient(server.URL, time.Second, noRetry)
		set, err := client.Fetch(context.Background(), "Foo", "Song")
		require.NoError(t, err)
		require.Len(t, set.Lines, 2)
		assert.Equal(t, int64(1000), set.Lines[0].TimeMs)
		assert.Equal(t, "first\nsecond", set.PlainText)
		assert.Equal(t, ProviderName, set.Provider)
	})

	t.Run("no synced candidates", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK, `[{"id":1,"trackName":"Song","plainLyrics":"x"}]`)
		_, err := NewClient(server.URL, time.Second, noRetry).Fetch(context.Background(), "Foo", "Song")
		assert.ErrorIs(t, err, music.ErrNotFound)
	})

	t.Run("empty results", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK, `[]`)
		_, err := NewClient(server.URL, time.Second, noRetry).Fetch(context.Background(), "Foo", "Song")
		assert.ErrorIs(t, err, music.ErrNotFound)
	})

	t.Run("bad json is an upstream error", func(t *testing.T) {
		server, _ := newTestServer(t, http.StatusOK, `{not json`)
		_, err := NewClient(server.URL, time.Second, noRetry).Fetch(context.Background(), "Foo", "Song")
		assert.ErrorIs(t, err, music.ErrUpstream)
	})

	t.Run("server errors are retried", func(t *testing.T) {
		server, calls := newTestServer(t, http.StatusBadGateway, `oops`)
		policy := music.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}
		_, err := NewClient(server.URL, time.Second, policy).Fetch(context.Background(), "Foo", "Song")
		assert.ErrorIs(t, err, music.ErrUpstream)
		assert.Equal(t, 3, *calls)
	})

	t.Run("404 is not retried", func(t *testing.T) {
		server, calls := newTestServer(t, http.StatusNotFound, ``)
		policy := music.RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}
		_, err := NewClient(server.URL, time.Second, policy).Fetch(context.Background(), "Foo", "Song")
		assert.ErrorIs(t, err, music.ErrNotFound)
		assert.Equal(t, 1, *calls)
	})
}
