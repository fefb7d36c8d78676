package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quietriver/sitecache/pkg/cache"
	"github.com/quietriver/sitecache/pkg/classify"
	"github.com/quietriver/sitecache/pkg/config"
	"github.com/quietriver/sitecache/pkg/gateway"
	"github.com/quietriver/sitecache/pkg/lifecycle"
	"github.com/quietriver/sitecache/pkg/notify"
	"github.com/quietriver/sitecache/pkg/relay"
	"github.com/quietriver/sitecache/pkg/strategy"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Install the configured generation set and serve the site",
	Long: `Installs the precache manifest into a fresh generation set, then serves
every request through the tier strategies. With skip_waiting the new
generations claim control immediately and stale ones are swept; otherwise
activation waits for a POST to /sitecache/skip-waiting.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg config.Config) error {
	logger := log.With().Str("component", "serve").Logger()

	registry, err := openRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	defer registry.Close()

	controller, err := lifecycle.NewController(registry, lifecycle.Config{
		Version:     cfg.Version,
		Origin:      cfg.Origin,
		Manifest:    cfg.Precache,
		SkipWaiting: cfg.SkipWaiting,
	})
	if err != nil {
		return fmt.Errorf("create controller: %w", err)
	}

	if err := controller.Install(ctx); err != nil {
		return fmt.Errorf("install: %w", err)
	}

	fetcher := strategy.New(strategy.Config{APITimeout: cfg.Cache.APITimeout})
	defer fetcher.Drain()

	handler, err := gateway.New(gateway.Config{
		Origin:     cfg.Origin,
		Registry:   registry,
		Classifier: classify.New(classify.Rules{
			APIPrefixes: cfg.Routes.APIPrefixes,
			CDNPrefixes: cfg.Routes.CDNPrefixes,
			StaticPaths: cfg.Precache,
		}),
		Fetcher: fetcher,
		Generations: gateway.Generations{
			Static:  controller.Generation(cache.PurposeStatic),
			Dynamic: controller.Generation(cache.PurposeDynamic),
			API:     controller.Generation(cache.PurposeAPI),
		},
	})
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	// Controller messages flow over the bus; the worker answers status
	// queries and skip-waiting commands.
	bus := notify.NewBus()
	worker := notify.NewWorker(bus, registry, controller)
	workerCtx, stopWorker := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Serve(workerCtx)
	}()
	defer func() {
		stopWorker()
		<-workerDone
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", gateway.HealthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/sitecache/status", gateway.StatusHandler(bus))
	mux.HandleFunc("/sitecache/skip-waiting", skipWaitingHandler(bus))
	if cfg.Relay.Enabled {
		mux.Handle(cfg.Relay.Path, relay.NewHandler(relay.ConfigFromEnv()))
	}
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Int("port", cfg.Server.Port).
			Str("origin", cfg.Origin).
			Str("version", cfg.Version).
			Str("state", controller.State().String()).
			Msg("Serving")
		errCh <- server.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	case <-ctx.Done():
		logger.Info().Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// skipWaitingHandler triggers activation over the bus, the same path the
// update prompt's confirm uses.
func skipWaitingHandler(bus *notify.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		reply, err := bus.Request(ctx, notify.Message{Type: notify.MessageSkipWaiting})
		if err != nil {
			http.Error(w, fmt.Sprintf("skip waiting: %v", err), http.StatusInternalServerError)
			return
		}
		if reply.Err != "" {
			http.Error(w, reply.Err, http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// openRegistry opens the configured backend and wraps it in a registry.
func openRegistry(ctx context.Context, cfg config.Config) (*cache.Registry, error) {
	switch cfg.Cache.Backend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
		}
		return cache.NewRegistry(cache.NewRedisBackend(client)), nil
	default:
		backend, err := cache.OpenLevelDB(cfg.Cache.LevelDBPath)
		if err != nil {
			return nil, fmt.Errorf("open leveldb at %s: %w", cfg.Cache.LevelDBPath, err)
		}
		return cache.NewRegistry(backend), nil
	}
}
