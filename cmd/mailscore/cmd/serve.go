package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/solatis/mailscore/internal/core/api"
	"github.com/solatis/mailscore/internal/core/auth"
	"github.com/solatis/mailscore/internal/core/config"
	"github.com/solatis/mailscore/internal/core/db"
	"github.com/solatis/mailscore/internal/core/logger"
	"github.com/solatis/mailscore/internal/core/server"
	"github.com/solatis/mailscore/internal/rc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC scoring API",
	Long: `Serve exposes Compile, Score, AddRule, RemoveRule and ListRules over gRPC,
plus the gRPC health service and Prometheus metrics. When a rules file is
configured it is watched and reloaded on change.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", ":9464", "metrics listen address, empty to disable")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Get()

	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Server.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
	}

	c, err := buildComponents(cfg, log)
	if err != nil {
		return err
	}

	var queries *db.Queries
	if cfg.Database.URL != "" {
		database, q, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()
		queries = q
	}

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	var authenticator *auth.Authenticator
	if len(secrets) > 0 {
		if queries == nil {
			return fmt.Errorf("API key authentication needs a database (set --db-url)")
		}
		authenticator = auth.NewAuthenticator(secrets, queries)
	} else {
		log.Warn("no HMAC secrets configured, authentication disabled")
	}

	opts := []api.Option{api.WithLogger(log)}
	if queries != nil {
		opts = append(opts, api.WithQueries(queries))
	}
	service, err := api.NewScoringService(c.engine, opts...)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	grpcServer, err := server.NewGRPCServer(&cfg.Server, service, authenticator)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	if cfg.Scoring.RulesFile != "" {
		watcher, err := rc.NewWatcher(cfg.Scoring.RulesFile, func() error {
			next, err := buildComponents(cfg, log)
			if err != nil {
				return err
			}
			service.SetEngine(next.engine)
			log.Info("rules reloaded", "rules", next.store.Len())
			return nil
		}, log)
		if err != nil {
			return fmt.Errorf("failed to watch rules file: %w", err)
		}
		defer watcher.Close()
		go watcher.Run(ctx)
	}

	var metricsServer *server.MetricsServer
	if cfg.Server.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(cfg.Server.MetricsAddr)
		go func() {
			if err := metricsServer.Start(); err != nil {
				errChan <- err
			}
		}()
	}

	log.Info("starting mailscore scoring API",
		"version", Version,
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"metrics", cfg.Server.MetricsAddr,
		"rules", c.store.Len())
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		log.Info("shutting down gracefully")
		shutdownCtx := context.Background()
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Warn("metrics server shutdown failed", "error", err)
			}
		}
		return grpcServer.Shutdown(shutdownCtx)
	}
}
