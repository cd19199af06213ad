package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samvad-hq/samvad-user-fetcher/internal/config"
	"github.com/samvad-hq/samvad-user-fetcher/internal/domain"
	"github.com/samvad-hq/samvad-user-fetcher/internal/logger"
	"github.com/samvad-hq/samvad-user-fetcher/internal/storage"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/connectivity"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/httpclient"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/publishers"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/result"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/users"
)

const (
	TitleResponse = "Response"
	TitleError    = "Error"

	// MsgBusy is returned when Trigger is called while a fetch is still loading.
	MsgBusy = "request already in progress"
)

// UserFetcher is the part of users.Fetcher the runner depends on.
type UserFetcher interface {
	FetchUsersAsync(ctx context.Context) <-chan users.UsersResult
	Endpoint() string
}

// Presenter renders the loading state and the result dialog.
type Presenter interface {
	SetLoading(loading bool)
	ShowDialog(title, message string)
}

// Runner drives fetches from a user trigger or a watch interval, renders
// results through a Presenter and reports them to the configured sinks.
type Runner struct {
	fetcher   UserFetcher
	presenter Presenter
	fanout    *publishers.Fanout
	store     storage.Store
	log       logger.Logger
	interval  time.Duration
	loading   atomic.Bool
}

// NewRunner builds a runner from config. publishers_file and storage are optional.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger, presenter Presenter, userAgent string) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	checker, err := connectivity.NewChecker(cfg.ConnectivityMode, connectivity.Options{
		ProbeAddr:    cfg.ConnectivityProbeAddr,
		ProbeTimeout: cfg.ConnectivityProbeTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init connectivity checker: %w", err)
	}

	client := httpclient.NewRestyClient(httpclient.Options{
		Timeout:   cfg.HTTPTimeout,
		UserAgent: userAgent,
	})
	fetcher := users.NewFetcher(client, checker, users.Options{
		Endpoint: cfg.UsersEndpoint,
		Delay:    cfg.SimulatedDelay,
		Logger:   log,
	})
	log.InfoObj("user fetcher configured", "fetcher_config", map[string]any{
		"endpoint":          fetcher.Endpoint(),
		"connectivity_mode": cfg.ConnectivityMode,
		"delay_ms":          cfg.SimulatedDelay.Milliseconds(),
		"timeout_seconds":   int(cfg.HTTPTimeout.Seconds()),
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		UserTTL:         cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		_ = fanout.Close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"user_ttl_seconds":         int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return newRunner(fetcher, presenter, fanout, store, log, cfg.WatchInterval), nil
}

func newRunner(fetcher UserFetcher, presenter Presenter, fanout *publishers.Fanout, store storage.Store, log logger.Logger, interval time.Duration) *Runner {
	if presenter == nil {
		presenter = nopPresenter{}
	}
	if store == nil {
		store = storage.NewNoopStore()
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	return &Runner{
		fetcher:   fetcher,
		presenter: presenter,
		fanout:    fanout,
		store:     store,
		log:       log,
		interval:  interval,
	}
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(path) == "" {
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := publisherReg.Enabled()
	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubClients), nil
}

// Trigger performs one fetch as a button press would: it shows the loading
// state, waits for the result, renders it as a dialog and clears the loading
// state. A trigger while another is loading is rejected without fetching.
func (r *Runner) Trigger(ctx context.Context) users.UsersResult {
	if !r.loading.CompareAndSwap(false, true) {
		r.log.WarnObj("trigger ignored", "trigger_state", map[string]any{"reason": MsgBusy})
		return result.Error[[]domain.User](MsgBusy)
	}
	defer r.loading.Store(false)

	r.presenter.SetLoading(true)
	res := r.await(ctx)
	r.report(ctx, res)
	return res
}

// await renders the fetch result and clears the loading state before any
// sink is contacted.
func (r *Runner) await(ctx context.Context) users.UsersResult {
	defer r.presenter.SetLoading(false)

	res := <-r.fetcher.FetchUsersAsync(ctx)
	res.Match(
		func(list []domain.User) {
			r.presenter.ShowDialog(TitleResponse, FormatUsers(list))
		},
		func(msg string) {
			r.log.ErrorObj("user fetch failed", "fetch_error", map[string]any{
				"endpoint": r.fetcher.Endpoint(),
				"error":    msg,
			})
			r.presenter.ShowDialog(TitleError, msg)
		},
	)
	return res
}

// Loading reports whether a trigger is in flight.
func (r *Runner) Loading() bool { return r.loading.Load() }

// Run triggers once, then again on every watch interval until ctx is done.
// With no interval it returns after the first trigger.
func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.fetcher == nil {
		return fmt.Errorf("runner is not initialized")
	}

	r.Trigger(ctx)
	if r.interval <= 0 {
		return nil
	}

	r.log.InfoObj("watch loop starting", "watch_state", map[string]any{
		"interval":         r.interval.String(),
		"publishers_count": r.fanout.Size(),
	})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.InfoObj("watch loop exiting", "reason", ctx.Err())
			return nil
		case <-ticker.C:
			r.Trigger(ctx)
		}
	}
}

// report marks newly seen users and fans the outcome out to the sinks.
// Sink and storage failures are logged only.
func (r *Runner) report(ctx context.Context, res users.UsersResult) {
	var fresh []int
	if list, ok := res.Value(); ok {
		fresh = r.newUserIDs(list)
	}
	if r.fanout.Size() == 0 {
		return
	}

	evt := publishers.NewEvent(r.fetcher.Endpoint(), res, fresh)
	delivered, err := r.fanout.Publish(ctx, evt)
	if err != nil {
		r.log.ErrorObj("event publish failed", "publish_error", map[string]any{
			"delivered": delivered,
			"error":     err.Error(),
		})
		return
	}
	r.log.DebugObj("event published", "publish_result", map[string]any{
		"delivered": delivered,
		"outcome":   evt.Outcome,
	})
}

func (r *Runner) newUserIDs(list []domain.User) []int {
	var fresh []int
	for _, id := range domain.IDs(list) {
		seen, err := r.store.SeenUser(id)
		if err != nil {
			r.log.WarnObj("seen lookup failed", "storage_error", map[string]any{"user_id": id, "error": err.Error()})
			continue
		}
		if seen {
			continue
		}
		if err := r.store.MarkUser(id); err != nil {
			r.log.WarnObj("mark user failed", "storage_error", map[string]any{"user_id": id, "error": err.Error()})
		}
		fresh = append(fresh, id)
	}
	return fresh
}

// Close releases the sinks and the store.
func (r *Runner) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if err := r.fanout.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publishers: %w", err))
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	return errors.Join(errs...)
}

// FormatUsers renders one "ID:<id>, Name:<username>" line per user.
func FormatUsers(list []domain.User) string {
	lines := make([]string, 0, len(list))
	for _, u := range list {
		lines = append(lines, fmt.Sprintf("ID:%d, Name:%s", u.ID, u.Username))
	}
	return strings.Join(lines, "\n")
}

type nopPresenter struct{}

func (nopPresenter) SetLoading(bool)           {}
func (nopPresenter) ShowDialog(string, string) {}
