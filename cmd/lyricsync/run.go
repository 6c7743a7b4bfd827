package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lyricsync/internal/app"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Follow the player and publish the current lyric line",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// 不带子命令时等同于 run
	rootCmd.Args = cobra.NoArgs
	rootCmd.RunE = runDaemon
}

func runDaemon(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
