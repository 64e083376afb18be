package main

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

	"github.com/flowpbx/remotecc/internal/api"
	"github.com/flowpbx/remotecc/internal/api/middleware"
	"github.com/flowpbx/remotecc/internal/config"
	"github.com/flowpbx/remotecc/internal/events"
	"github.com/flowpbx/remotecc/internal/metrics"
	"github.com/flowpbx/remotecc/internal/routing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const usage = `usage: remotecc [flags]                       run the webhook server
       remotecc import-rules [flags] <file.csv>    replace the routing table
       remotecc issue-token [flags] <subject> [ttl] print a dashboard token`

func main() {
	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "import-rules", "issue-token", "serve":
			command, args = args[0], args[1:]
		case "help", "-h", "--help":
			fmt.Fprintln(os.Stderr, usage)
			return
		}
	}

	cfg, err := config.Load(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(cfg.SlogHandler(os.Stdout)))

	switch command {
	case "import-rules":
		err = runImport(cfg)
	case "issue-token":
		err = runIssueToken(cfg)
	default:
		err = runServer(cfg)
	}
	if err != nil {
		slog.Error("remotecc failed", "command", command, "error", err)
		os.Exit(1)
	}
}

func runImport(cfg *config.Config) error {
	if len(cfg.Args) != 1 {
		return fmt.Errorf("import-rules takes exactly one csv file\n%s", usage)
	}
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	n, err := importRules(context.Background(), st.rules, cfg.Args[0])
	if err != nil {
		return err
	}
	slog.Info("routing table imported", "path", cfg.Args[0], "rules", n)
	return nil
}

func runIssueToken(cfg *config.Config) error {
	if len(cfg.Args) < 1 || len(cfg.Args) > 2 {
		return fmt.Errorf("issue-token takes a subject and an optional ttl\n%s", usage)
	}
	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		return err
	}
	if secret == nil {
		return errors.New("issue-token requires --jwt-secret or REMOTECC_JWT_SECRET")
	}

	var ttl time.Duration
	if len(cfg.Args) == 2 {
		if ttl, err = time.ParseDuration(cfg.Args[1]); err != nil {
			return fmt.Errorf("parsing ttl: %w", err)
		}
	}

	token, expiresAt, err := middleware.GenerateDashboardToken(secret, cfg.Args[0], ttl)
	if err != nil {
		return fmt.Errorf("signing token: %w", err)
	}
	if !expiresAt.IsZero() {
		slog.Info("dashboard token issued", "subject", cfg.Args[0], "expires_at", expiresAt.Format(time.RFC3339))
	}
	fmt.Println(token)
	return nil
}

func runServer(cfg *config.Config) error {
	started := time.Now()
	slog.Info("starting remotecc",
		"http_port", cfg.HTTPPort,
		"db_driver", cfg.DBDriver,
		"data_dir", cfg.DataDir,
	)

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	if cfg.RoutingImport != "" {
		n, err := importRules(context.Background(), st.rules, cfg.RoutingImport)
		if err != nil {
			return err
		}
		slog.Info("routing table imported", "path", cfg.RoutingImport, "rules", n)
	}

	secret, err := cfg.JWTSecretBytes()
	if err != nil {
		return err
	}
	if secret == nil {
		slog.Warn("no jwt secret configured, dashboard endpoints are open")
	}

	table := routing.NewTable(st.rules, routing.TableOptions{CacheTTL: cfg.RoutingCacheTTL})
	hub := events.NewHub(cfg.HubBuffer)
	defer hub.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewCollector(st.events, hub, started),
	)
	webhookMetrics := metrics.NewWebhook()
	if err := webhookMetrics.Register(reg); err != nil {
		return fmt.Errorf("registering webhook metrics: %w", err)
	}

	limiter := middleware.NewIPRateLimiter(middleware.DashboardRateLimitConfig(cfg.APIRate, cfg.APIBurst))
	defer limiter.Stop()

	handler := api.NewServer(api.Config{
		Resolver:       table,
		Events:         st.events,
		Hub:            hub,
		Pinger:         st,
		Metrics:        webhookMetrics,
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		PersistTimeout: cfg.PersistTimeout,
		JWTSecret:      secret,
		CORSOrigins:    middleware.ParseCORSOrigins(cfg.CORSOrigins),
		RateLimiter:    limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("received shutdown signal", "signal", sig.String())
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutting down")
	// Closing the hub ends every push session; Shutdown does not track
	// hijacked connections.
	hub.Close()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	slog.Info("remotecc stopped")
	return nil
}
