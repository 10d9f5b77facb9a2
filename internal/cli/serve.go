package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ppiankov/symptra/internal/pipeline"
	"github.com/ppiankov/symptra/internal/server"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the diagnosis pipeline over HTTP",
	Long: `Serve starts an HTTP server with the routes:
  POST /api/v1/symptoms/submit    {"text": "..."}
  GET  /api/v1/diseases/:name
  GET  /api/v1/model
  POST /api/v1/model/retrain
  GET  /healthz

Example:
  symptra serve --addr :8080`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := pipeline.New(ctx, cfg)
	if err != nil {
		return err
	}

	return server.Run(ctx, cfg.Server.Addr, server.NewRouter(p, cfg.Server.Mode))
}
