package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/quatton/qsmr/pkg/qapi"
	"github.com/quatton/qsmr/pkg/qapi/config"
	"github.com/quatton/qsmr/pkg/qapi/routes"
	"github.com/quatton/qsmr/pkg/qapi/services"
	"github.com/spf13/cobra"
)

var serveMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve stored reports over HTTP",
	Long: `Start the read-only reports API. Settings come from the environment
(PORT, REPORTS_BACKEND, REPORTS_DIR, DB_*, S3_*); a .env file is loaded in
development.`,
	// The API is configured from the environment, not qsmr.yaml.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.ValidateEnv()
		if err != nil {
			return err
		}
		if serveMigrate {
			cfg.Migrate = true
		}
		cfg.Print(log.Printf)

		ctx := cmd.Context()
		svcs, err := services.NewServices(ctx, cfg, newLogger())
		if err != nil {
			return err
		}
		defer svcs.Close()

		api := qapi.NewApi()
		routes.RegisterAPI(api.Api, svcs)

		addr := fmt.Sprintf(":%s", cfg.Port)
		server := &http.Server{Addr: addr, Handler: api.Router, ReadHeaderTimeout: 10 * time.Second}

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			server.Shutdown(shutdownCtx)
		}()

		log.Printf("🚀 Reports API starting on %s\n", addr)
		log.Printf("📚 OpenAPI docs: http://localhost%s/docs\n", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveMigrate, "migrate", false, "Apply database migrations before serving")
}
