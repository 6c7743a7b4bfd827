// Package app 把播放器、歌词来源和各个输出组装成一个常驻进程
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog/log"

	"lyricsync/internal/config"
	"lyricsync/internal/i3block"
	"lyricsync/internal/ipc"
	"lyricsync/internal/notify"
	"lyricsync/internal/player"
	"lyricsync/internal/tracker"
	"lyricsync/pkg/lyriccache"
	"lyricsync/pkg/providers"
	"lyricsync/pkg/redis"
)

var logger = log.With().Str("component", "app").Logger()

type App struct {
	cfg       *config.Config
	tracker   *tracker.Tracker
	ipcServer *ipc.Server
	i3block   *i3block.Controller
	closers   []func() error
}

// NewPlayer 根据配置创建播放器后端
func NewPlayer(cfg config.PlayerConfig) (player.Provider, error) {
	switch cfg.Backend {
	case config.BackendMPRIS:
		conn, err := dbus.SessionBus()
		if err != nil {
			return nil, fmt.Errorf("failed to connect to session bus: %w", err)
		}
		return player.NewMPRIS(conn, cfg.Name)
	case config.BackendPlayerctl, "":
		return player.NewPlayerctl(cfg.PlayerctlBin, cfg.Name), nil
	default:
		return nil, fmt.Errorf("unknown player backend: %s", cfg.Backend)
	}
}

// NewTracker 创建不带输出的 Tracker，供一次性命令使用
func NewTracker(ctx context.Context, cfg *config.Config, presenter tracker.Presenter) (*tracker.Tracker, error) {
	p, err := NewPlayer(cfg.Player)
	if err != nil {
		return nil, err
	}
	resolver, err := providers.NewResolver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	cache := lyriccache.New(lyriccache.WithTTL(cfg.Lyrics.CacheTTL))

	return tracker.New(p, resolver, cache, presenter, tracker.Config{
		PollInterval:   cfg.App.PollInterval,
		PlayerTimeout:  cfg.App.PlayerTimeout,
		NotifyCooldown: cfg.App.NotifyCooldown,
		OffsetMs:       cfg.App.OffsetMs,
	}), nil
}

// New 创建常驻进程，所有输出在这里按配置组装
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	var presenters Presenters
	if cfg.App.SocketPath != "" {
		a.ipcServer = ipc.NewServer(cfg.App.SocketPath)
		presenters = append(presenters, ipcSink{server: a.ipcServer})
	}
	if cfg.App.OutputFile != "" {
		presenters = append(presenters, fileSink{path: cfg.App.OutputFile})
	}
	if cfg.I3Block.Enabled {
		a.i3block = i3block.NewController(cfg.I3Block.Process, cfg.I3Block.Signal)
		presenters = append(presenters, i3blockSink{controller: a.i3block})
	}
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			// Redis 只是一个可选输出
			logger.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("Failed to connect to redis, publishing disabled")
		} else {
			publisher := redis.NewPublisher(client, cfg.Redis.Key, cfg.Redis.Channel)
			presenters = append(presenters, redisSink{publisher: publisher})
			a.closers = append(a.closers, publisher.Close)
		}
	}
	if cfg.App.Notifications {
		notifier, err := notify.New()
		if err != nil {
			return nil, err
		}
		presenters = append(presenters, newNotifySink(notifier))
	}

	t, err := NewTracker(ctx, cfg, presenters)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = t
	return a, nil
}

// Run 阻塞直到 ctx 结束
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.ipcServer != nil {
		if err := a.ipcServer.Start(); err != nil {
			return fmt.Errorf("failed to start IPC server: %w", err)
		}
	}
	if a.i3block != nil {
		go a.i3block.Run(ctx)
	}

	logger.Info().
		Str("backend", a.cfg.Player.Backend).
		Strs("providers", a.cfg.Lyrics.Providers).
		Msg("Starting player check loop...")

	err := a.tracker.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close 释放所有输出，可以重复调用
func (a *App) Close() {
	if a.ipcServer != nil {
		a.ipcServer.Close()
		a.ipcServer = nil
	}
	for _, c := range a.closers {
		if err := c(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close output")
		}
	}
	a.closers = nil
}
