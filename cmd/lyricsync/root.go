package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"lyricsync/internal/app"
	"lyricsync/internal/config"
)

var (
	cfgFile  string
	logLevel string
	jsonOut  bool

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "lyricsync",
	Short: "Show synced lyrics for the song playing on the desktop",
	Long: `lyricsync follows the active MPRIS player, fetches time-synced lyrics
from several providers and publishes the current line to a unix socket,
a status file, i3blocks, redis and desktop notifications.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/lyricsync/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "", "log level, overrides app.log_level")
	rootCmd.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output as JSON")
}

func initConfig() error {
	// 先用默认级别，配置文件加载过程中的日志也能输出
	if err := app.SetupLogging(logLevel); err != nil {
		return err
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if logLevel == "" {
		return app.SetupLogging(cfg.App.LogLevel)
	}
	return nil
}
