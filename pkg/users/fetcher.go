package users

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-user-fetcher/internal/domain"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/connectivity"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/httpclient"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/result"
)

const (
	DefaultEndpoint = "https://jsonplaceholder.typicode.com/users"

	MsgNoInternet        = "No internet connection"
	MsgRequestFailed     = "Request failed"
	MsgExceptionOccurred = "Exception occurred"
)

// UsersResult is the outcome of one fetch.
type UsersResult = result.Result[[]domain.User]

// Options configures a Fetcher. Delay is a simulated latency inserted before
// the request; it exists only so loading indicators are visible in demos.
type Options struct {
	Endpoint string
	Delay    time.Duration
	Headers  map[string]string
	Logger   Logger
}

// Fetcher retrieves the user list from a fixed endpoint. It holds no mutable
// state and is safe for concurrent use.
type Fetcher struct {
	client   httpclient.Client
	checker  connectivity.Checker
	endpoint string
	delay    time.Duration
	headers  map[string]string
	log      Logger
}

// NewFetcher wires a fetcher. A nil client gets a default resty client and a
// nil checker inspects the host network interfaces.
func NewFetcher(client httpclient.Client, checker connectivity.Checker, opts Options) *Fetcher {
	if client == nil {
		client = httpclient.NewRestyClient(httpclient.Options{})
	}
	if checker == nil {
		checker = connectivity.NewInterfaceChecker()
	}
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	headers := map[string]string{"Accept": "application/json"}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &Fetcher{
		client:   client,
		checker:  checker,
		endpoint: endpoint,
		delay:    opts.Delay,
		headers:  headers,
		log:      ensureLogger(opts.Logger),
	}
}

// Endpoint returns the URL the fetcher requests.
func (f *Fetcher) Endpoint() string { return f.endpoint }

// FetchUsersAsync returns immediately. The connectivity check and, when
// online, the request both run on a new goroutine. The returned channel yields
// exactly one result and is then closed.
func (f *Fetcher) FetchUsersAsync(ctx context.Context) <-chan UsersResult {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan UsersResult, 1)

	go func() {
		defer close(out)
		if !f.online(ctx) {
			f.log.WarnObj("user fetch skipped", "fetch_skipped", map[string]any{
				"endpoint": f.endpoint,
				"reason":   MsgNoInternet,
			})
			out <- result.Error[[]domain.User](MsgNoInternet)
			return
		}
		out <- f.fetch(ctx)
	}()
	return out
}

// FetchUsers blocks the calling goroutine until the result of FetchUsersAsync
// is available. It never panics and never returns a partial success.
func (f *Fetcher) FetchUsers(ctx context.Context) UsersResult {
	return <-f.FetchUsersAsync(ctx)
}

func (f *Fetcher) online(ctx context.Context) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return f.checker.IsInternetAvailable(ctx)
}

func (f *Fetcher) fetch(ctx context.Context) (res UsersResult) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			msg := faultMessage(r)
			f.log.ErrorObj("user fetch panicked", "fetch_fault", map[string]any{
				"endpoint": f.endpoint,
				"fault":    msg,
			})
			res = result.Error[[]domain.User](msg)
		}
	}()

	if f.delay > 0 {
		timer := time.NewTimer(f.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result.Error[[]domain.User](messageOr(ctx.Err(), MsgExceptionOccurred))
		case <-timer.C:
		}
	}

	resp, err := f.client.Get(ctx, f.endpoint, f.headers)
	if err != nil {
		f.log.WarnObj("user fetch transport failure", "fetch_error", map[string]any{
			"endpoint": f.endpoint,
			"error":    err.Error(),
		})
		return result.Error[[]domain.User](messageOr(err, MsgRequestFailed))
	}
	if resp == nil {
		return result.Error[[]domain.User](MsgRequestFailed)
	}

	if code := resp.StatusCode(); code < http.StatusOK || code >= http.StatusMultipleChoices {
		f.log.WarnObj("user fetch rejected", "fetch_error", map[string]any{
			"endpoint": f.endpoint,
			"status":   code,
		})
		return result.Error[[]domain.User](statusMessage(code))
	}

	users, err := DecodeUsers(resp.Body())
	if err != nil {
		f.log.WarnObj("user payload rejected", "fetch_error", map[string]any{
			"endpoint": f.endpoint,
			"error":    err.Error(),
		})
		return result.Error[[]domain.User](messageOr(err, MsgExceptionOccurred))
	}

	f.log.DebugObj("user fetch completed", "fetch_result", map[string]any{
		"endpoint":   f.endpoint,
		"users":      len(users),
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return result.Success(users)
}

func statusMessage(code int) string {
	return strings.TrimSpace(fmt.Sprintf("%s: HTTP %d %s", MsgRequestFailed, code, http.StatusText(code)))
}

func messageOr(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return fallback
}

func faultMessage(r any) string {
	var msg string
	switch v := r.(type) {
	case error:
		msg = v.Error()
	case string:
		msg = v
	default:
		msg = fmt.Sprint(v)
	}
	if msg = strings.TrimSpace(msg); msg == "" {
		return MsgExceptionOccurred
	}
	return msg
}
