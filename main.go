package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JNickson/kubelog-viewer/internal/capability"
	"github.com/JNickson/kubelog-viewer/internal/clients"
	"github.com/JNickson/kubelog-viewer/internal/config"
	"github.com/JNickson/kubelog-viewer/internal/connection"
	"github.com/JNickson/kubelog-viewer/internal/directory"
	"github.com/JNickson/kubelog-viewer/internal/metrics"
	"github.com/JNickson/kubelog-viewer/internal/pods"
	"github.com/JNickson/kubelog-viewer/internal/restart"
	"github.com/JNickson/kubelog-viewer/internal/runtime"
	"github.com/JNickson/kubelog-viewer/internal/utils"
	"github.com/samber/mo"
	"github.com/spf13/pflag"
)

func main() {
	cfg := mustConfig()
	logger := setupLogger(cfg.LogLevel)

	entity := mustEntity(cfg)
	dir := mustDirectory(cfg, logger)

	app := runtime.New(cfg, runtime.Deps{
		Directory: dir,
		Entity:    entity,
		Connector: connection.NewManager(connection.NewWebsocketDialer(cfg.DialReadLimit), logger),
		Restarter: restart.NewClient(&http.Client{Timeout: 30 * time.Second}, logger),
		Metrics:   metrics.New(),
		Logger:    logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.Start(ctx)
}

// mustConfig loads settings from the environment; command-line flags win.
func mustConfig() config.Settings {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	flags := pflag.NewFlagSet("kubelog-viewer", pflag.ContinueOnError)
	flags.StringVar(&cfg.EntityFile, "entity", cfg.EntityFile, "path to the catalog entity YAML file")
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	mode := flags.String("directory-mode", string(cfg.DirectoryMode), "resource directory: http or kube")
	flags.StringVar(&cfg.DirectoryURL, "directory-url", cfg.DirectoryURL, "base URL of the resource directory (http mode)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")

	if err := flags.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			os.Exit(0)
		}
		slog.Error("invalid flags", "error", err)
		os.Exit(2)
	}
	cfg.DirectoryMode = config.DirectoryMode(*mode)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogger(level string) *slog.Logger {
	logger := utils.NewLogger(level)
	slog.SetDefault(logger)
	return logger
}

func mustEntity(cfg config.Settings) directory.Entity {
	entity, err := directory.LoadEntity(cfg.EntityFile)
	if err != nil {
		slog.Error("failed to load entity", "path", cfg.EntityFile, "error", err)
		os.Exit(1)
	}
	if cfg.Entity != "" {
		entity.Metadata.Name = cfg.Entity
	}
	return entity
}

func mustDirectory(cfg config.Settings, logger *slog.Logger) directory.Directory {
	if cfg.DirectoryMode == config.DirectoryHTTP {
		return directory.NewClient(cfg.DirectoryURL, &http.Client{Timeout: cfg.DiscoveryTimeout})
	}

	kubeCfg, err := clients.NewKubeConfig(cfg.Kubeconfig)
	if err != nil {
		slog.Error("failed to create kube config", "error", err)
		os.Exit(1)
	}

	kubeClient, err := clients.NewKubeClient(kubeCfg)
	if err != nil {
		slog.Error("failed to create kube client", "error", err)
		os.Exit(1)
	}

	return directory.NewKubeDirectory(pods.NewPodService(kubeClient), directory.KubeCluster{
		Name:    cfg.KubeClusterName,
		Title:   cfg.KubeClusterTitle,
		URL:     cfg.KubeStreamURL,
		Version: cfg.KubeVersion,
		Capabilities: capability.Set{
			View:    optionalToken(cfg.KubeViewKey),
			Restart: optionalToken(cfg.KubeRestartKey),
		},
	}, logger)
}

func optionalToken(raw string) mo.Option[capability.Token] {
	if raw == "" {
		return mo.None[capability.Token]()
	}
	return mo.Some(capability.Token(raw))
}
