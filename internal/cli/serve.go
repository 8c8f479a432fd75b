package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucasnoah/sprintfactory/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the JSON API",
	Long: `Serve the interview, ingestion and planning operations over HTTP, plus
/healthz and Prometheus /metrics. Sessions are addressed by id in the URL, so
the --session flag is ignored here.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		port := a.cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port, _ = cmd.Flags().GetInt("port")
		}
		a.orch.SetLogger(log.New(cmd.ErrOrStderr(), "[ORCH] ", log.LstdFlags))
		srv := web.NewServer(a.orch, log.New(cmd.ErrOrStderr(), "[HTTP] ", log.LstdFlags))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errc := make(chan error, 1)
		go func() { errc <- srv.Start(fmt.Sprintf(":%d", port)) }()

		select {
		case err := <-errc:
			return err
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 8080, "Port to listen on (default: server.port from config)")
}
