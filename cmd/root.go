package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/eren1106/video-audio-to-text-converter/internal/config"
)

var (
	verbose    bool
	quiet      bool
	configPath string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "audio2text",
	Short: "Convert audio/video files and video links to text",
	Long: `audio2text transcribes speech in audio and video files, or in videos fetched
from a link, by splitting the audio into fixed-length segments and sending
each one to a speech recognition service.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, path, exists, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
		setupLogging(cfg.Logging)
		if exists {
			slog.Debug("loaded config", "path", path)
		}
		return nil
	},
}

func setupLogging(l config.Logging) {
	level := slog.LevelInfo
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}
	if quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if l.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.config/audio2text/config.toml)")
}
