package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/eren1106/video-audio-to-text-converter/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configSampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Print the default configuration as TOML",
	Args:  cobra.NoArgs,
	// Printing the defaults must work even when the current file is invalid.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(config.Default().Logging)
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		sample, err := config.Sample()
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), sample)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration, with API keys masked",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		shown.Google.APIKey = mask(shown.Google.APIKey)
		shown.OpenAI.APIKey = mask(shown.OpenAI.APIKey)
		shown.ElevenLabs.APIKey = mask(shown.ElevenLabs.APIKey)

		rows := [][]string{
			{"transcription.backend", shown.Transcription.Backend},
			{"transcription.language", shown.Transcription.Language},
			{"transcription.chunk_length_seconds", fmt.Sprint(shown.Transcription.ChunkLengthSeconds)},
			{"transcription.requests_per_minute", fmt.Sprint(shown.Transcription.RequestsPerMinute)},
			{"google.api_key", shown.Google.APIKey},
			{"openai.api_key", shown.OpenAI.APIKey},
			{"elevenlabs.api_key", shown.ElevenLabs.APIKey},
			{"paths.work_dir", shown.Paths.WorkDir},
			{"server.bind", shown.Server.Bind},
			{"fetch.ytdlp_binary", shown.Fetch.YtDlpBinary},
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Key", "Value"}, rows))
		return nil
	},
}

func mask(key string) string {
	if len(key) <= 4 {
		if key == "" {
			return ""
		}
		return "****"
	}
	return "****" + key[len(key)-4:]
}

func init() {
	configCmd.AddCommand(configSampleCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
