package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"restaurant-assistant/internal/app/assistant"
	"restaurant-assistant/internal/common/logger"
	"restaurant-assistant/internal/config"
)

func main() {
	cfgPath := pflag.String("config", "", "path to YAML config (default: config.yaml if present)")
	mode := pflag.String("mode", "", "api | notification-subscriber | migrate")
	port := pflag.Int("port", 0, "api: http port, overrides http.addr")
	maxConc := pflag.Int("max-concurrent", 0, "api: max concurrent requests, overrides http.max_concurrent")
	storeKind := pflag.String("store", "", "memory | postgres, overrides store")
	prefetch := pflag.Int("prefetch", 10, "notification-subscriber: RabbitMQ prefetch")
	pflag.Parse()

	path := *cfgPath
	if path == "" {
		p, err := config.FindConfig()
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		path = p
	}
	if *storeKind != "" {
		os.Setenv("STORE", *storeKind)
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *port != 0 {
		cfg.HTTP.Addr = fmt.Sprintf(":%d", *port)
	}
	if *maxConc > 0 {
		cfg.HTTP.MaxConcurrent = *maxConc
	}

	lg := logger.Must(cfg.Log.Level, cfg.Log.Format, "restaurant-assistant")
	defer lg.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "api":
		err = assistant.RunAPI(ctx, cfg, lg)
	case "notification-subscriber":
		if !cfg.RabbitMQ.Enabled {
			fmt.Fprintln(os.Stderr, "notification-subscriber needs rabbitmq.enabled")
			os.Exit(2)
		}
		err = assistant.RunSubscriber(ctx, cfg, lg, *prefetch)
	case "migrate":
		err = assistant.Migrate(ctx, cfg, lg)
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: api | notification-subscriber | migrate")
		os.Exit(2)
	}
	if err != nil {
		lg.Error("fatal", zap.String("mode", *mode), zap.Error(err))
		lg.Sync()
		os.Exit(1)
	}
}
