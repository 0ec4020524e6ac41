package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pulsesync/internal/canvas"
	"pulsesync/internal/config"
	appLog "pulsesync/internal/log"
	"pulsesync/internal/metrics"
	"pulsesync/internal/pipeline"
	"pulsesync/internal/publish"
	"pulsesync/internal/scheduler"
	"pulsesync/internal/timeedit"
	"pulsesync/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envFile    string
	listen     string
	once       bool
	noColor    bool
}

func main() {
	flags := parseFlags()

	if flags.noColor {
		appLog.SetOutput(os.Stderr, true)
	}

	if err := godotenv.Load(flags.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		appLog.Warn("failed to load env file", "path", flags.envFile, "reason", err.Error())
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv(os.LookupEnv)
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("pulsesync starting", "version", version)
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"log_level", conf.LogLevel,
		"canvas_base_url", conf.Target.BaseURL,
		"canvas_token_set", conf.Target.Token != "",
		"sync_jobs", len(conf.Sync),
		"once", flags.once,
	)

	m := metrics.New(prometheus.DefaultRegisterer)

	canvasClient := canvas.NewClient(canvas.ClientConfig{
		BaseURL:   conf.Target.BaseURL,
		Token:     conf.Target.Token,
		Timeout:   conf.Target.Timeout(),
		RateLimit: conf.Target.RateLimit,
		RateBurst: conf.Target.RateBurst,
		Observe:   m.UpstreamObserver(metrics.UpstreamCanvas),
	})
	if !canvasClient.Configured() {
		appLog.Warn("canvas is not configured; publishing will fail with CONFIG_ERROR",
			"hint", "set target.base_url/target.token or "+config.EnvCanvasBaseURL+"/"+config.EnvCanvasToken)
	}

	fetcher := pipeline.NewFetcher(timeedit.NewFetcher(conf.Source.Timeout()), m)
	publisher := publish.NewPublisher(canvasClient, m)
	runner := pipeline.NewSyncRunner(fetcher, canvasClient, publisher)

	sched, err := scheduler.New(conf, runner)
	if err != nil {
		appLog.Error("failed to build sync schedule", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if flags.once {
		failed := sched.RunOnce(ctx)
		appLog.Info("pulsesync exiting", "jobs", sched.Len(), "failed", failed)
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	srv := web.NewServer(conf, web.Deps{
		Schedules: fetcher,
		Publisher: publisher,
		Identity:  canvasClient,
		Metrics:   promhttp.Handler(),
	})
	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sched.Start(ctx)

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
	sched.Stop()
	appLog.Info("pulsesync exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/pulsesync/config.yaml", "Path to config file")
	flag.StringVar(&cfg.envFile, "env-file", ".env", "Path to a .env file with CANVAS_TOKEN and friends")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run every configured sync job once and exit")
	flag.BoolVar(&cfg.noColor, "no-color", false, "Disable coloured log output")

	flag.Parse()

	return cfg
}
