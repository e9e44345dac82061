package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/eren1106/video-audio-to-text-converter/internal/api"
	"github.com/eren1106/video-audio-to-text-converter/internal/config"
	"github.com/eren1106/video-audio-to-text-converter/internal/pipeline"
	"github.com/eren1106/video-audio-to-text-converter/internal/worker"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <file|url>",
	Short: "Transcribe an audio/video file or a video link to text",
	Long: `Transcribe a local audio or video file, or a video link fetched with yt-dlp.
The audio is split into fixed-length segments which are transcribed one at a
time; segments that fail are reported and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

var (
	output      string
	format      string
	report      bool
	chunkLength int
	backend     string
	language    string
	maxCPL      int
)

func init() {
	transcribeCmd.Flags().StringVarP(&output, "output", "o", "", "write the transcript to this file instead of stdout")
	transcribeCmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or srt")
	transcribeCmd.Flags().BoolVar(&report, "report", false, "print a per-segment table to stderr (default when stderr is a terminal)")
	transcribeCmd.Flags().IntVar(&chunkLength, "chunk-length", 0, "segment length in seconds (default from config)")
	transcribeCmd.Flags().StringVarP(&backend, "backend", "b", "", "recognition backend: google, openai, elevenlabs")
	transcribeCmd.Flags().StringVarP(&language, "language", "l", "", "recognition language as a BCP 47 tag, e.g. en-US")
	transcribeCmd.Flags().IntVar(&maxCPL, "max-cpl", pipeline.DefaultCharsPerLine, "characters per line in srt output")

	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	if format != "text" && format != "srt" {
		return fmt.Errorf("unknown format %q (want text or srt)", format)
	}
	if err := applyTranscribeFlags(cmd); err != nil {
		return err
	}

	// Setup signal handling for graceful cancellation.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := worker.NewRunner(cfg)
	if err != nil {
		return err
	}

	media, err := runner.Resolve(ctx, args[0])
	if err != nil {
		return err
	}

	res, runErr := runner.Run(ctx, media, 0, nil)
	if res == nil {
		return runErr
	}
	if runErr != nil && res.State != pipeline.StateCanceled {
		return runErr
	}

	if report || (!cmd.Flags().Changed("report") && isTerminal(os.Stderr)) {
		fmt.Fprintln(os.Stderr, segmentReport(res))
	}

	if err := writeTranscript(res); err != nil {
		return err
	}

	if failed := len(res.Failures()); failed > 0 && !quiet {
		slog.Warn("transcript is incomplete", "failed_segments", failed, "total", len(res.Segments))
	}
	if runErr != nil {
		return fmt.Errorf("stopped after %d segments: %w", len(res.Segments), runErr)
	}
	if !quiet {
		slog.Info("done", "segments", len(res.Segments), "duration", res.Duration.Round(time.Second))
	}
	return nil
}

// applyTranscribeFlags overrides config values with explicitly set flags.
func applyTranscribeFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("chunk-length") {
		cfg.Transcription.ChunkLengthSeconds = chunkLength
	}
	if flags.Changed("backend") {
		cfg.Transcription.Backend = backend
	}
	if flags.Changed("language") {
		tag, err := config.NormalizeLanguage(language)
		if err != nil {
			return err
		}
		cfg.Transcription.Language = tag
	}
	return cfg.Validate()
}

func writeTranscript(res *pipeline.Result) error {
	content := res.Transcript + "\n"
	if format == "srt" {
		content = res.SRT(maxCPL)
	}

	if output == "" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	slog.Info("transcript saved", "path", output)
	return nil
}

func segmentReport(res *pipeline.Result) string {
	rows := make([][]string, 0, len(res.Segments))
	for _, seg := range res.Segments {
		status, detail := "ok", strconv.Itoa(len(seg.Text))+" chars"
		if seg.Err != nil {
			status, detail = "failed", truncate(seg.Err.Error(), 60)
			var recErr *api.RecognitionError
			if errors.As(seg.Err, &recErr) {
				status = "failed (" + string(recErr.Cause) + ")"
			}
		}
		rows = append(rows, []string{
			strconv.Itoa(seg.Index + 1),
			formatOffset(seg.Start),
			formatOffset(seg.Duration),
			status,
			detail,
		})
	}
	return renderTable(
		[]string{"#", "Start", "Length", "Status", "Detail"},
		rows,
		1, 2, 3,
	)
}

func formatOffset(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%02d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
