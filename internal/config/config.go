package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSocketPath     = "/tmp/lyricsync.sock"
	DefaultOutputFile     = "/tmp/lyrics"
	DefaultPollInterval   = time.Second
	DefaultPlayerTimeout  = 3 * time.Second
	DefaultNotifyCooldown = 30 * time.Second
	DefaultCacheTTL       = 24 * time.Hour
	DefaultRequestTimeout = 10 * time.Second
	DefaultRetryBackoff   = 500 * time.Millisecond
	DefaultMaxRetries     = 2
)

// 提供商名称
const (
	ProviderLyricsAPI = "lyricsapi"
	ProviderLRCLib    = "lrclib"
	ProviderNetEase   = "netease"
	ProviderQQMusic   = "qqmusic"
)

// 播放器后端
const (
	BackendPlayerctl = "playerctl"
	BackendMPRIS     = "mpris"
)

var providerAliases = map[string]string{
	"lyricsapi": ProviderLyricsAPI,
	"lrclib":    ProviderLRCLib,
	"netease":   ProviderNetEase,
	"网易云":       ProviderNetEase,
	"163":       ProviderNetEase,
	"qqmusic":   ProviderQQMusic,
	"qq":        ProviderQQMusic,
	"腾讯":        ProviderQQMusic,
}

// ProviderByName 把配置中的名称或别名转换为标准名称
func ProviderByName(name string) (string, error) {
	if p, ok := providerAliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown provider name: %s", name)
}

// TomlConfig TOML配置文件结构
type TomlConfig struct {
	App struct {
		PollInterval   string `toml:"poll_interval"`
		PlayerTimeout  string `toml:"player_timeout"`
		NotifyCooldown string `toml:"notify_cooldown"`
		SocketPath     string `toml:"socket_path"`
		OutputFile     string `toml:"output_file"`
		OffsetMs       int64  `toml:"offset_ms"`
		LogLevel       string `toml:"log_level"`
		Notifications  *bool  `toml:"notifications"`
	} `toml:"app"`

	Player struct {
		Backend      string `toml:"backend"`
		Name         string `toml:"name"`
		PlayerctlBin string `toml:"playerctl_bin"`
	} `toml:"player"`

	Lyrics struct {
		Providers      []string `toml:"providers"`
		CacheTTL       string   `toml:"cache_ttl"`
		RequestTimeout string   `toml:"request_timeout"`
		MaxRetries     *int     `toml:"max_retries"`
		RetryBackoff   string   `toml:"retry_backoff"`
		LyricsAPIURL   string   `toml:"lyricsapi_url"`
		LRCLibURL      string   `toml:"lrclib_url"`
		NeteaseURL     string   `toml:"netease_url"`
		NeteaseCookie  string   `toml:"netease_cookie"`
		QQMusicURL     string   `toml:"qqmusic_url"`
		QQMusicCookie  string   `toml:"qqmusic_cookie"`
	} `toml:"lyrics"`

	AI struct {
		Enabled    bool   `toml:"enabled"`
		ModuleName string `toml:"module_name"`
		Model      string `toml:"model"`
		APIKey     string `toml:"api_key"`
		BaseURL    string `toml:"base_url"` // for OpenAI
	} `toml:"ai"`

	Redis struct {
		Enabled  bool   `toml:"enabled"`
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Key      string `toml:"key"`
		Channel  string `toml:"channel"`
	} `toml:"redis"`

	Translate struct {
		Enabled   bool   `toml:"enabled"`
		SecretID  string `toml:"secret_id"`
		SecretKey string `toml:"secret_key"`
		Region    string `toml:"region"`
		Target    string `toml:"target"`
	} `toml:"translate"`

	I3Block struct {
		Enabled bool   `toml:"enabled"`
		Signal  int    `toml:"signal"`
		Process string `toml:"process"`
	} `toml:"i3block"`
}

// AppConfig 应用配置
type AppConfig struct {
	PollInterval   time.Duration
	PlayerTimeout  time.Duration
	NotifyCooldown time.Duration
	SocketPath     string
	OutputFile     string
	OffsetMs       int64
	LogLevel       string
	Notifications  bool
}

// PlayerConfig 播放器配置
type PlayerConfig struct {
	Backend      string
	Name         string
	PlayerctlBin string
}

// LyricsConfig 歌词来源配置
type LyricsConfig struct {
	Providers      []string
	CacheTTL       time.Duration
	RequestTimeout time.Duration
	MaxRetries     int
	RetryBackoff   time.Duration
	LyricsAPIURL   string
	LRCLibURL      string
	NeteaseURL     string
	NeteaseCookie  string
	QQMusicURL     string
	QQMusicCookie  string
}

// AIConfig AI配置
type AIConfig struct {
	Enabled    bool
	ModuleName string
	Model      string
	APIKey     string
	BaseURL    string
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Key      string
	Channel  string
}

// TranslateConfig 翻译配置
type TranslateConfig struct {
	Enabled   bool
	SecretID  string
	SecretKey string
	Region    string
	Target    string
}

// I3BlockConfig i3blocks 刷新信号配置
type I3BlockConfig struct {
	Enabled bool
	Signal  int
	Process string
}

// Config 主配置结构
type Config struct {
	App       AppConfig
	Player    PlayerConfig
	Lyrics    LyricsConfig
	AI        AIConfig
	Redis     RedisConfig
	Translate TranslateConfig
	I3Block   I3BlockConfig
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		App: AppConfig{
			PollInterval:   DefaultPollInterval,
			PlayerTimeout:  DefaultPlayerTimeout,
			NotifyCooldown: DefaultNotifyCooldown,
			SocketPath:     DefaultSocketPath,
			OutputFile:     DefaultOutputFile,
			LogLevel:       "info",
			Notifications:  true,
		},
		Player: PlayerConfig{
			Backend:      BackendPlayerctl,
			PlayerctlBin: "playerctl",
		},
		Lyrics: LyricsConfig{
			Providers:      []string{ProviderLRCLib, ProviderNetEase, ProviderQQMusic},
			CacheTTL:       DefaultCacheTTL,
			RequestTimeout: DefaultRequestTimeout,
			MaxRetries:     DefaultMaxRetries,
			RetryBackoff:   DefaultRetryBackoff,
		},
		AI: AIConfig{
			ModuleName: "gemini",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Key:     "lyricsync:current",
			Channel: "lyricsync",
		},
		Translate: TranslateConfig{
			Target: "zh",
		},
		I3Block: I3BlockConfig{
			Signal:  21,
			Process: "i3blocks",
		},
	}
}

// DefaultPath 获取配置文件路径
func DefaultPath() string {
	// 优先使用 XDG_CONFIG_HOME 环境变量
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "lyricsync", "config.toml")
	}

	// 否则使用用户主目录下的 .config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Warn().Err(err).Msg("Cannot get user home directory")
		return "config.toml" // 回退到当前目录
	}

	return filepath.Join(homeDir, ".config", "lyricsync", "config.toml")
}

// loadTomlConfig 加载TOML配置文件
func loadTomlConfig(configPath string) (*TomlConfig, error) {
	// 检查配置文件是否存在
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Info().Str("path", configPath).Msg("Config file not found, using defaults")
		return &TomlConfig{}, nil
	}

	var config TomlConfig
	if _, err := toml.DecodeFile(configPath, &config); err != nil {
		return nil, err
	}

	log.Info().Str("path", configPath).Msg("Loaded config")
	return &config, nil
}

// Load 读取配置文件并校验，path 为空时使用默认路径
// 文件无法解析时记录错误并使用默认配置
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	tomlConfig, err := loadTomlConfig(path)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to load config file, using default configuration")
		tomlConfig = &TomlConfig{}
	}

	config := Default()
	config.apply(tomlConfig)
	config.applyEnv()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return config, nil
}

func (c *Config) apply(t *TomlConfig) {
	// 从TOML配置中覆盖App设置
	setDuration(&c.App.PollInterval, t.App.PollInterval, "app.poll_interval")
	setDuration(&c.App.PlayerTimeout, t.App.PlayerTimeout, "app.player_timeout")
	setDuration(&c.App.NotifyCooldown, t.App.NotifyCooldown, "app.notify_cooldown")
	setString(&c.App.SocketPath, t.App.SocketPath)
	setString(&c.App.OutputFile, t.App.OutputFile)
	setString(&c.App.LogLevel, t.App.LogLevel)
	c.App.OffsetMs = t.App.OffsetMs
	if t.App.Notifications != nil {
		c.App.Notifications = *t.App.Notifications
	}

	setString(&c.Player.Backend, strings.ToLower(t.Player.Backend))
	setString(&c.Player.Name, t.Player.Name)
	setString(&c.Player.PlayerctlBin, t.Player.PlayerctlBin)

	// 歌词来源
	if len(t.Lyrics.Providers) > 0 {
		c.Lyrics.Providers = t.Lyrics.Providers
	}
	setDuration(&c.Lyrics.CacheTTL, t.Lyrics.CacheTTL, "lyrics.cache_ttl")
	setDuration(&c.Lyrics.RequestTimeout, t.Lyrics.RequestTimeout, "lyrics.request_timeout")
	setDuration(&c.Lyrics.RetryBackoff, t.Lyrics.RetryBackoff, "lyrics.retry_backoff")
	if t.Lyrics.MaxRetries != nil {
		c.Lyrics.MaxRetries = *t.Lyrics.MaxRetries
	}
	setString(&c.Lyrics.LyricsAPIURL, t.Lyrics.LyricsAPIURL)
	setString(&c.Lyrics.LRCLibURL, t.Lyrics.LRCLibURL)
	setString(&c.Lyrics.NeteaseURL, t.Lyrics.NeteaseURL)
	setString(&c.Lyrics.NeteaseCookie, t.Lyrics.NeteaseCookie)
	setString(&c.Lyrics.QQMusicURL, t.Lyrics.QQMusicURL)
	setString(&c.Lyrics.QQMusicCookie, t.Lyrics.QQMusicCookie)

	// 从TOML配置中覆盖AI设置
	c.AI.Enabled = t.AI.Enabled
	setString(&c.AI.ModuleName, t.AI.ModuleName)
	setString(&c.AI.Model, t.AI.Model)
	setString(&c.AI.APIKey, t.AI.APIKey)
	setString(&c.AI.BaseURL, t.AI.BaseURL)

	// 从TOML配置中覆盖Redis设置
	c.Redis.Enabled = t.Redis.Enabled
	setString(&c.Redis.Addr, t.Redis.Addr)
	setString(&c.Redis.Password, t.Redis.Password)
	if t.Redis.DB != 0 {
		c.Redis.DB = t.Redis.DB
	}
	setString(&c.Redis.Key, t.Redis.Key)
	setString(&c.Redis.Channel, t.Redis.Channel)

	c.Translate.Enabled = t.Translate.Enabled
	setString(&c.Translate.SecretID, t.Translate.SecretID)
	setString(&c.Translate.SecretKey, t.Translate.SecretKey)
	setString(&c.Translate.Region, t.Translate.Region)
	setString(&c.Translate.Target, t.Translate.Target)

	c.I3Block.Enabled = t.I3Block.Enabled
	if t.I3Block.Signal != 0 {
		c.I3Block.Signal = t.I3Block.Signal
	}
	setString(&c.I3Block.Process, t.I3Block.Process)
}

// applyEnv 环境变量优先于配置文件
func (c *Config) applyEnv() {
	setString(&c.Lyrics.NeteaseCookie, os.Getenv("NETEASE_COOKIE"))
	setString(&c.Lyrics.QQMusicCookie, os.Getenv("QQMUSIC_COOKIE"))
	setString(&c.AI.APIKey, os.Getenv("LYRICSYNC_AI_KEY"))
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	var errs []error

	if c.App.PollInterval <= 0 {
		errs = append(errs, errors.New("app.poll_interval must be positive"))
	}
	if c.App.PlayerTimeout <= 0 {
		errs = append(errs, errors.New("app.player_timeout must be positive"))
	}
	if c.App.NotifyCooldown <= 0 {
		errs = append(errs, errors.New("app.notify_cooldown must be positive"))
	}
	if c.Lyrics.CacheTTL <= 0 {
		errs = append(errs, errors.New("lyrics.cache_ttl must be positive"))
	}
	if c.Lyrics.RequestTimeout <= 0 {
		errs = append(errs, errors.New("lyrics.request_timeout must be positive"))
	}
	if c.Lyrics.MaxRetries < 0 {
		errs = append(errs, errors.New("lyrics.max_retries must not be negative"))
	}

	switch c.Player.Backend {
	case BackendPlayerctl, BackendMPRIS:
	default:
		errs = append(errs, fmt.Errorf("player.backend must be %q or %q, got %q", BackendPlayerctl, BackendMPRIS, c.Player.Backend))
	}

	if len(c.Lyrics.Providers) == 0 {
		errs = append(errs, errors.New("lyrics.providers must not be empty"))
	}
	seen := make(map[string]bool)
	for i, name := range c.Lyrics.Providers {
		p, err := ProviderByName(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if seen[p] {
			errs = append(errs, fmt.Errorf("provider %s listed twice", p))
		}
		seen[p] = true
		c.Lyrics.Providers[i] = p
	}
	if seen[ProviderLyricsAPI] && c.Lyrics.LyricsAPIURL == "" {
		errs = append(errs, errors.New("lyrics.lyricsapi_url is required when lyricsapi is enabled"))
	}

	// 检查必要的配置
	if c.AI.Enabled && c.AI.APIKey == "" {
		errs = append(errs, errors.New("ai.api_key (or LYRICSYNC_AI_KEY) is required when ai is enabled"))
	}
	if c.Translate.Enabled && (c.Translate.SecretID == "" || c.Translate.SecretKey == "") {
		errs = append(errs, errors.New("translate.secret_id and translate.secret_key are required when translate is enabled"))
	}

	return errors.Join(errs...)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v, name string) {
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warn().Str("key", name).Str("value", v).Msg("Invalid duration format, using default")
		return
	}
	*dst = d
}
