package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/api"
	"github.com/mmynk/splitledger/internal/auth"
	"github.com/mmynk/splitledger/internal/config"
	"github.com/mmynk/splitledger/internal/metrics"
	authmw "github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/service"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
	"github.com/mmynk/splitledger/pkg/logging"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "Path to a TOML config file")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server",
	Long: `Run the Connect API server with /health and /metrics endpoints.

Configuration comes from defaults, the optional --config TOML file, a .env
file, and SPLITLEDGER_* environment variables, in that order.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	// Initialize SQLite storage
	store, err := sqlite.New(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("Storage initialized", "database", cfg.Server.DBPath)

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		// HTTP/2 without TLS for Connect
		Handler:           h2c.NewHandler(newHandler(cfg, store, reg, logger), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Connect server starting", "address", srv.Addr, "metrics", cfg.Metrics.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownDuration())
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}

// newHandler builds the HTTP routes: Connect services, /health and, when reg
// is non-nil, /metrics.
func newHandler(cfg *config.Config, store storage.Store, reg *prometheus.Registry, logger *slog.Logger) http.Handler {
	var m *metrics.Collectors
	if reg != nil {
		m = metrics.New(reg)
	}

	jwtManager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.TokenDuration())
	authenticator := auth.NewPasswordAuthenticator(store)
	opts := []service.Option{
		service.WithDefaultCurrency(cfg.Ledger.DefaultCurrency),
		service.WithLocale(cfg.Language()),
		service.WithMetrics(m),
	}

	logRPC := authmw.LoggingInterceptor(m)
	public := connect.WithInterceptors(authmw.OptionalAuth(jwtManager), logRPC)
	protected := connect.WithInterceptors(authmw.RequireAuth(jwtManager), logRPC)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	}

	mountService := func(path string, h http.Handler) {
		r.Handle(path+"*", h)
		logger.Debug("Service mounted", "path", path)
	}
	mountService(api.NewAuthServiceHandler(service.NewAuthService(authenticator, jwtManager, store, logger), public))
	mountService(api.NewGroupServiceHandler(service.NewGroupService(store, opts...), protected))
	mountService(api.NewExpenseServiceHandler(service.NewExpenseService(store, opts...), protected))

	return r
}
