package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eren1106/video-audio-to-text-converter/internal/server"
	"github.com/eren1106/video-audio-to-text-converter/internal/worker"
)

var bind string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the browser UI",
	Long: `Serve a small web page for uploading a file or pasting a video link and
watching the transcript come in segment by segment.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("bind") {
			cfg.Server.Bind = bind
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		runner, err := worker.NewRunner(cfg)
		if err != nil {
			return err
		}
		srv := server.New(runner, server.Options{
			Addr:           cfg.Server.Bind,
			MaxUploadBytes: cfg.MaxUploadBytes(),
		})
		return srv.Serve(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&bind, "bind", "", "listen address (default from config, 127.0.0.1:8501)")
	rootCmd.AddCommand(serveCmd)
}
