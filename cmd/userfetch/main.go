package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	goversion "github.com/caarlos0/go-version"

	"github.com/samvad-hq/samvad-user-fetcher/internal/app"
	"github.com/samvad-hq/samvad-user-fetcher/internal/config"
	"github.com/samvad-hq/samvad-user-fetcher/internal/logger"
)

var (
	version   = "0.1.0"
	commit    = ""
	treeState = ""
	date      = ""
	builtBy   = ""
)

const (
	appName        = "userfetch"
	appDescription = "Fetch the user directory over HTTPS when the host is online."
	appWebsite     = "https://github.com/samvad-hq/samvad-user-fetcher"
)

type cli struct {
	Fetch   fetchCmd   `cmd:"" default:"withargs" help:"Fetch users once, or repeatedly with --watch."`
	Version versionCmd `cmd:"" help:"Print version information."`
}

type fetchCmd struct {
	Endpoint string        `help:"Users endpoint (overrides USERS_ENDPOINT)."`
	Delay    time.Duration `help:"Simulated latency before the request (overrides SIMULATED_DELAY_MS when non-zero)."`
	Watch    time.Duration `help:"Re-fetch on this interval until interrupted (overrides WATCH_INTERVAL_SECONDS when non-zero)."`
}

type versionCmd struct{}

func main() {
	var args cli
	kctx := kong.Parse(&args,
		kong.Name(appName),
		kong.Description(appDescription),
		kong.UsageOnError(),
	)
	if err := kctx.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", appName, err)
		os.Exit(1)
	}
}

func (c *versionCmd) Run() error {
	fmt.Println(buildVersion(version, commit, date, builtBy, treeState).String())
	return nil
}

func (c *fetchCmd) Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	c.apply(cfg)

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("user fetcher starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	v := buildVersion(version, commit, date, builtBy, treeState)
	runner, err := app.NewRunner(ctx, cfg, log, app.NewTerminalPresenter(os.Stdout), appName+"/"+v.GitVersion)
	if err != nil {
		logger.ErrorObj("failed to initialize runner", "error", err)
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.ErrorObj("runner close failed", "error", err)
		}
	}()

	if err := runner.Run(ctx); err != nil {
		return fmt.Errorf("runner run: %w", err)
	}
	return nil
}

// apply lets command-line flags override the environment.
func (c *fetchCmd) apply(cfg *config.Config) {
	if endpoint := strings.TrimSpace(c.Endpoint); endpoint != "" {
		cfg.UsersEndpoint = endpoint
	}
	if c.Delay > 0 {
		cfg.SimulatedDelay = c.Delay
	}
	if c.Watch > 0 {
		cfg.WatchInterval = c.Watch
	}
}

func buildVersion(version, commit, date, builtBy, treeState string) goversion.Info {
	return goversion.GetVersionInfo(
		goversion.WithAppDetails(appName, appDescription, appWebsite),
		func(i *goversion.Info) {
			if commit != "" {
				i.GitCommit = commit
			}
			if version != "" {
				i.GitVersion = version
			}
			if treeState != "" {
				i.GitTreeState = treeState
			}
			if date != "" {
				i.BuildDate = date
			}
			if builtBy != "" {
				i.BuiltBy = builtBy
			}
		},
	)
}
