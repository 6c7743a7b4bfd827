// Package providers 根据配置创建歌词提供商和解析器
package providers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"lyricsync/internal/config"
	"lyricsync/pkg/ai"
	"lyricsync/pkg/ai/gemini"
	"lyricsync/pkg/ai/openai"
	"lyricsync/pkg/lrclib"
	"lyricsync/pkg/lyricsapi"
	"lyricsync/pkg/music"
	"lyricsync/pkg/netease"
	"lyricsync/pkg/qqmusic"
	"lyricsync/pkg/tencent"
)

var logger = log.With().Str("component", "providers").Logger()

// Create 创建音乐提供商客户端
func Create(name string, cfg config.LyricsConfig) (music.Provider, error) {
	canonical, err := config.ProviderByName(name)
	if err != nil {
		return nil, err
	}
	retry := music.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}

	switch canonical {
	case config.ProviderLyricsAPI:
		if cfg.LyricsAPIURL == "" {
			return nil, fmt.Errorf("%s requires lyricsapi_url", canonical)
		}
		logger.Info().Str("url", cfg.LyricsAPIURL).Msg("Creating lyricsapi client")
		return lyricsapi.NewClient(cfg.LyricsAPIURL, cfg.RequestTimeout, retry), nil
	case config.ProviderLRCLib:
		logger.Info().Msg("Creating LRCLib client")
		return lrclib.NewClient(cfg.LRCLibURL, cfg.RequestTimeout, retry), nil
	case config.ProviderNetEase:
		logger.Info().Bool("cookie", cfg.NeteaseCookie != "").Msg("Creating NetEase music client")
		return netease.NewClient(cfg.NeteaseURL, cfg.NeteaseCookie, cfg.RequestTimeout, retry), nil
	case config.ProviderQQMusic:
		logger.Info().Bool("cookie", cfg.QQMusicCookie != "").Msg("Creating QQ Music client")
		return qqmusic.NewClient(cfg.QQMusicURL, cfg.QQMusicCookie, cfg.RequestTimeout, retry), nil
	default:
		return nil, fmt.Errorf("unknown music provider: %s", name)
	}
}

// CreateAll 按配置顺序创建提供商，创建失败的跳过
func CreateAll(cfg config.LyricsConfig) ([]music.Provider, error) {
	var list []music.Provider
	for _, name := range cfg.Providers {
		provider, err := Create(name, cfg)
		if err != nil {
			logger.Warn().Err(err).Str("provider", name).Msg("Failed to create provider")
			continue
		}
		list = append(list, provider)
	}

	if len(list) == 0 {
		return nil, fmt.Errorf("no music providers available")
	}
	return list, nil
}

// NewAI 根据模块名创建大模型客户端，除 gemini 以外都走 OpenAI 兼容接口
func NewAI(ctx context.Context, cfg config.AIConfig) (ai.AiInterface, error) {
	if cfg.ModuleName == "gemini" {
		return gemini.NewGemini(ctx, cfg.APIKey, cfg.Model)
	}
	model := cfg.Model
	if model == "" && cfg.ModuleName != "openai" {
		model = cfg.ModuleName
	}
	return openai.NewOpenAi(cfg.APIKey, model, cfg.BaseURL), nil
}

// NewResolver 创建解析器，按配置挂上标题清洗和翻译
func NewResolver(ctx context.Context, cfg *config.Config) (*music.Resolver, error) {
	list, err := CreateAll(cfg.Lyrics)
	if err != nil {
		return nil, err
	}

	var opts []music.Option
	if cfg.AI.Enabled {
		client, err := NewAI(ctx, cfg.AI)
		if err != nil {
			return nil, fmt.Errorf("failed to create ai client: %w", err)
		}
		logger.Info().Str("model", client.Name()).Msg("Query refiner enabled")
		opts = append(opts, music.WithRefiner(ai.NewRefiner(client)))
	}
	if cfg.Translate.Enabled {
		translator, err := tencent.NewTranslator(cfg.Translate.SecretID, cfg.Translate.SecretKey, cfg.Translate.Region, cfg.Translate.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to create translator: %w", err)
		}
		logger.Info().Str("target", cfg.Translate.Target).Msg("Translation enabled")
		opts = append(opts, music.WithTranslator(translator))
	}

	return music.NewResolver(list, opts...), nil
}
