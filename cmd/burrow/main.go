package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sinas-io/burrow/pkg/api"
	"github.com/sinas-io/burrow/pkg/config"
	"github.com/sinas-io/burrow/pkg/events"
	"github.com/sinas-io/burrow/pkg/executor"
	"github.com/sinas-io/burrow/pkg/functions"
	"github.com/sinas-io/burrow/pkg/log"
	"github.com/sinas-io/burrow/pkg/metrics"
	"github.com/sinas-io/burrow/pkg/pool"
	"github.com/sinas-io/burrow/pkg/protocol"
	"github.com/sinas-io/burrow/pkg/runtime"
	"github.com/sinas-io/burrow/pkg/types"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "burrow",
	Short: "Burrow - shared worker pool for sandboxed function execution",
	Long: `Burrow runs user-registered functions inside a pool of locked-down,
long-lived worker containers. The pool scales at runtime, survives host
restarts by rediscovering its containers, and drives executions through a
file-based protocol that needs no network listener inside the sandbox.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Burrow version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(executorCmd)
	rootCmd.AddCommand(workersCmd)
	rootCmd.AddCommand(functionCmd)
	rootCmd.AddCommand(execCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the worker pool manager and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyServeFlags(cmd, cfg)

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogJSON,
		})
		metrics.SetVersion(Version)
		logger := log.WithComponent("serve")

		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		directory, err := functions.NewBoltDirectory(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("failed to open function directory: %w", err)
		}
		defer directory.Close()
		metrics.RegisterComponent("functions", true, "")

		rt, err := runtime.NewContainerdRuntime(cfg.ContainerdSocket, cfg.ContainerdNamespace)
		if err != nil {
			return fmt.Errorf("failed to connect to containerd: %w", err)
		}
		defer rt.Close()
		metrics.RegisterComponent("containerd", true, "")

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()

		ctx := context.Background()
		if err := rt.PullImage(ctx, cfg.WorkerImage); err != nil {
			// A locally built image may not be pullable; discovery and
			// creation will surface a real problem.
			logger.Warn().Err(err).Str("image", cfg.WorkerImage).Msg("image pull failed, continuing with local image")
		}

		mgr := pool.NewManager(pool.Config{
			Image:           cfg.WorkerImage,
			Prefix:          cfg.WorkerPrefix,
			DefaultCount:    cfg.WorkerCount,
			FunctionTimeout: cfg.FunctionTimeout(),
			PollInterval:    cfg.PollInterval(),
			Resources: types.WorkerResources{
				MemoryBytes: cfg.MemoryLimitBytes,
				CPUCores:    cfg.CPUCores,
				TmpfsBytes:  cfg.TmpfsSizeBytes,
			},
		}, rt, directory, broker)

		if err := mgr.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize worker pool: %w", err)
		}
		metrics.RegisterComponent("pool", true, "")

		recon := pool.NewReconciler(mgr, 10*time.Second)
		recon.Start()
		defer recon.Stop()

		apiServer := api.NewServer(mgr, directory)
		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(cfg.APIAddr); err != nil {
				errCh <- fmt.Errorf("API server error: %w", err)
			}
		}()
		metrics.RegisterComponent("api", true, "")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return err
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return apiServer.Stop(shutdownCtx)
	},
}

var executorCmd = &cobra.Command{
	Use:   "executor",
	Short: "Run the in-container executor loop",
	Long: `Run the guest-side executor. This is the entrypoint of the worker
container image; it polls the shared tmpfs for execution triggers and never
exits on its own.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("dir")
		intervalMS, _ := cmd.Flags().GetInt("poll-interval-ms")
		logLevel, _ := cmd.Flags().GetString("log-level")

		log.Init(log.Config{Level: log.Level(logLevel)})

		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		exec := executor.New(dir,
			executor.WithPollInterval(time.Duration(intervalMS)*time.Millisecond))
		if err := exec.Run(ctx); err != nil && err != context.Canceled {
			return err
		}
		return nil
	},
}

func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("workers") {
		cfg.WorkerCount, _ = cmd.Flags().GetInt("workers")
	}
	if cmd.Flags().Changed("api-addr") {
		cfg.APIAddr, _ = cmd.Flags().GetString("api-addr")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
	}
	if cmd.Flags().Changed("worker-image") {
		cfg.WorkerImage, _ = cmd.Flags().GetString("worker-image")
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel, _ = cmd.Flags().GetString("log-level")
	}
}

func init() {
	serveCmd.Flags().String("config", "", "Path to config file")
	serveCmd.Flags().Int("workers", config.DefaultWorkerCount, "Default worker count")
	serveCmd.Flags().String("api-addr", config.DefaultAPIAddr, "HTTP API listen address")
	serveCmd.Flags().String("data-dir", config.DefaultDataDir, "Data directory")
	serveCmd.Flags().String("worker-image", config.DefaultWorkerImage, "Worker container image")
	serveCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")

	executorCmd.Flags().String("dir", protocol.DefaultDir, "Protocol directory")
	executorCmd.Flags().Int("poll-interval-ms", 100, "Trigger poll interval in milliseconds")
	executorCmd.Flags().String("log-level", "info", "Log level")
}
