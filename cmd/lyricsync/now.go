package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lyricsync/internal/app"
)

var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Print the lyric line for the current playback position",
	Args:  cobra.NoArgs,
	RunE:  runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	t, err := app.NewTracker(ctx, cfg, nil)
	if err != nil {
		return err
	}

	state, err := t.Sync(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(state)
	}
	fmt.Println(state.Text)
	if state.Translation != "" {
		fmt.Println(state.Translation)
	}
	return nil
}
