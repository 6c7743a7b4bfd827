package music

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/lyrics"
)

var logger = log.With().Str("component", "lyrics-resolver").Logger()

// Resolver 按优先级依次尝试各个提供商
type Resolver struct {
	providers  []Provider
	refiner    Refiner
	translator Translator
}

// Option 配置 Resolver
type Option func(*Resolver)

// WithRefiner 所有提供商都失败后，用 Refiner 清洗标题再试一轮
func WithRefiner(r Refiner) Option {
	return func(res *Resolver) { res.refiner = r }
}

// WithTranslator 成功后补充翻译
func WithTranslator(t Translator) Option {
	return func(res *Resolver) { res.translator = t }
}

// NewResolver 创建新的歌词解析器
func NewResolver(providers []Provider, opts ...Option) *Resolver {
	r := &Resolver{providers: providers}
	for _, opt := range opts {
		opt(r)
	}

	if len(providers) == 0 {
		logger.Warn().Msg("No lyric providers configured")
	} else {
		logger.Info().
			Int("provider_count", len(providers)).
			Strs("providers", r.ProviderNames()).
			Msg("Lyrics resolver initialized")
	}
	return r
}

// Resolve 获取同步歌词，第一个返回非空结果的提供商胜出
func (r *Resolver) Resolve(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error) {
	set, lastErr := r.tryProviders(ctx, artist, title)
	if lastErr == nil {
		return r.translate(ctx, set), nil
	}

	if r.refiner != nil && ctx.Err() == nil {
		info, err := r.refiner.Refine(ctx, artist, title)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("Query refiner failed")
		case !info.IsSong || info.Title == "":
			logger.Info().Str("artist", artist).Str("title", title).Msg("Refiner says this is not a song")
		case sameQuery(info, artist, title):
			logger.Debug().Msg("Refiner returned the original query")
		default:
			logger.Info().
				Str("artist", info.Artist).
				Str("title", info.Title).
				Msg("Retrying with refined query")
			refined, err := r.tryProviders(ctx, info.Artist, info.Title)
			if err == nil {
				return r.translate(ctx, refined), nil
			}
			lastErr = err
		}
	}

	if errors.Is(lastErr, errNoAttempt) {
		lastErr = nil
	}
	return lyrics.SyncedLyricSet{}, &NoLyricsError{Artist: artist, Title: title, Last: lastErr}
}

var errNoAttempt = errors.New("no provider attempted")

func (r *Resolver) tryProviders(ctx context.Context, artist, title string) (lyrics.SyncedLyricSet, error) {
	lastErr := errNoAttempt
	for i, provider := range r.providers {
		if err := ctx.Err(); err != nil {
			return lyrics.SyncedLyricSet{}, err
		}

		logger.Info().
			Str("artist", artist).
			Str("title", title).
			Str("provider", provider.Name()).
			Int("attempt", i+1).
			Int("total_providers", len(r.providers)).
			Msg("Trying to get lyrics")

		set, err := provider.Fetch(ctx, artist, title)
		if err != nil {
			event := logger.Warn()
			if errors.Is(err, ErrNotFound) {
				event = logger.Info()
			}
			event.Str("provider", provider.Name()).Err(err).Msg("Provider failed")
			lastErr = err
			continue
		}
		if set.Empty() {
			logger.Info().Str("provider", provider.Name()).Msg("Provider returned no synced lines")
			lastErr = NotFound(provider.Name(), "no synced lines for '%s - %s'", artist, title)
			continue
		}

		if set.Provider == "" {
			set.Provider = provider.Name()
		}
		logger.Info().
			Str("artist", artist).
			Str("title", title).
			Str("provider", provider.Name()).
			Int("lines", len(set.Lines)).
			Msg("Successfully got lyrics")
		return set, nil
	}
	return lyrics.SyncedLyricSet{}, lastErr
}

func (r *Resolver) translate(ctx context.Context, set lyrics.SyncedLyricSet) lyrics.SyncedLyricSet {
	if r.translator == nil {
		return set
	}
	translated, err := r.translator.Translate(ctx, set)
	if err != nil {
		logger.Warn().Err(err).Msg("Translation failed, keeping original lyrics")
		return set
	}
	return translated
}

func sameQuery(info SongInfo, artist, title string) bool {
	return strings.EqualFold(strings.TrimSpace(info.Artist), strings.TrimSpace(artist)) &&
		strings.EqualFold(strings.TrimSpace(info.Title), strings.TrimSpace(title))
}

// ProviderCount 获取提供商数量
func (r *Resolver) ProviderCount() int {
	return len(r.providers)
}

// ProviderNames 获取所有提供商名称
func (r *Resolver) ProviderNames() []string {
	names := make([]string, len(r.providers))
	for i, provider := range r.providers {
		names[i] = provider.Name()
	}
	return names
}
