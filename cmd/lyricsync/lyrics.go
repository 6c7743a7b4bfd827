package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/providers"
)

var lrcOut bool

var lyricsCmd = &cobra.Command{
	Use:   "lyrics <artist> <title>",
	Short: "Fetch lyrics for a song without a player",
	Long:  `Runs the provider chain once and prints the result. Useful for checking provider config.`,
	Args:  cobra.ExactArgs(2),
	RunE:  runLyrics,
}

func init() {
	lyricsCmd.Flags().BoolVar(&lrcOut, "lrc", false, "print lines as LRC with timestamps")
	rootCmd.AddCommand(lyricsCmd)
}

func runLyrics(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	resolver, err := providers.NewResolver(ctx, cfg)
	if err != nil {
		return err
	}

	set, err := resolver.Resolve(ctx, args[0], args[1])
	if err != nil {
		return err
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(set)
	}

	fmt.Fprintf(os.Stderr, "provider: %s, %d lines\n", set.Provider, len(set.Lines))
	if !lrcOut {
		fmt.Println(set.Transcript())
		return nil
	}
	for _, line := range set.Lines {
		fmt.Printf("[%s]%s\n", lyrics.FormatStamp(line.TimeMs), line.Text)
		if line.Translation != "" {
			fmt.Printf("[%s]%s\n", lyrics.FormatStamp(line.TimeMs), line.Translation)
		}
	}
	return nil
}
