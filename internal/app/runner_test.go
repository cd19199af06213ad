package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-user-fetcher/internal/config"
	"github.com/samvad-hq/samvad-user-fetcher/internal/domain"
	"github.com/samvad-hq/samvad-user-fetcher/internal/storage"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/publishers"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/result"
	"github.com/samvad-hq/samvad-user-fetcher/pkg/users"
)

// fakeFetcher yields a preset result, optionally waiting on release first.
type fakeFetcher struct {
	mu      sync.Mutex
	res     users.UsersResult
	release chan struct{}
	calls   int
}

func (f *fakeFetcher) Endpoint() string { return "https://example.test/users" }

func (f *fakeFetcher) FetchUsersAsync(context.Context) <-chan users.UsersResult {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	out := make(chan users.UsersResult, 1)
	go func() {
		defer close(out)
		if f.release != nil {
			<-f.release
		}
		out <- f.res
	}()
	return out
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingPresenter keeps every call in order.
type recordingPresenter struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPresenter) SetLoading(loading bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if loading {
		p.events = append(p.events, "loading:on")
	} else {
		p.events = append(p.events, "loading:off")
	}
}

func (p *recordingPresenter) ShowDialog(title, message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, "dialog:"+title+":"+message)
}

func (p *recordingPresenter) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// fakePublisher records published events and can inject errors.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (f *fakePublisher) ID() string   { return "fake" }
func (f *fakePublisher) Type() string { return "fake" }
func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.err
}

// blockingPublisher holds Publish until release is closed.
type blockingPublisher struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingPublisher) ID() string   { return "slow" }
func (b *blockingPublisher) Type() string { return "fake" }
func (b *blockingPublisher) Publish(ctx context.Context, _ publishers.Event) error {
	close(b.started)
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return nil
}

// memStore is an in-memory seen-user store.
type memStore struct {
	seen map[int]bool
}

func (m *memStore) Close() error { return nil }
func (m *memStore) SeenUser(id int) (bool, error) {
	return m.seen[id], nil
}
func (m *memStore) MarkUser(id int) error {
	if m.seen == nil {
		m.seen = map[int]bool{}
	}
	m.seen[id] = true
	return nil
}

func TestTriggerSuccessShowsResponseDialog(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{
		{ID: 1, Name: "Leanne Graham", Username: "Bret"},
		{ID: 2, Name: "Ervin Howell", Username: "Antonette"},
	})}
	presenter := &recordingPresenter{}
	r := newRunner(fetcher, presenter, nil, nil, nil, 0)

	res := r.Trigger(context.Background())
	if !res.IsSuccess() {
		t.Fatalf("expected success, got %s", res)
	}

	want := []string{
		"loading:on",
		"dialog:Response:ID:1, Name:Bret\nID:2, Name:Antonette",
		"loading:off",
	}
	got := presenter.snapshot()
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Fatalf("presenter events = %q, want %q", got, want)
	}
	if r.Loading() {
		t.Fatalf("runner should not be loading after trigger returns")
	}
}

func TestTriggerErrorShowsMessageVerbatim(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Error[[]domain.User](users.MsgNoInternet)}
	presenter := &recordingPresenter{}
	r := newRunner(fetcher, presenter, nil, nil, nil, 0)

	res := r.Trigger(context.Background())
	if msg, ok := res.Message(); !ok || msg != users.MsgNoInternet {
		t.Fatalf("expected no-internet error, got %s", res)
	}
	got := presenter.snapshot()
	if len(got) != 3 || got[1] != "dialog:Error:No internet connection" {
		t.Fatalf("unexpected presenter events %q", got)
	}
}

func TestTriggerRejectsReentry(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{}), release: make(chan struct{})}
	r := newRunner(fetcher, &recordingPresenter{}, nil, nil, nil, 0)

	done := make(chan users.UsersResult, 1)
	go func() { done <- r.Trigger(context.Background()) }()

	deadline := time.After(2 * time.Second)
	for !r.Loading() {
		select {
		case <-deadline:
			t.Fatalf("first trigger never started loading")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	second := r.Trigger(context.Background())
	if msg, ok := second.Message(); !ok || msg != MsgBusy {
		t.Fatalf("expected busy error, got %s", second)
	}

	close(fetcher.release)
	if first := <-done; !first.IsSuccess() {
		t.Fatalf("first trigger should succeed, got %s", first)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("expected a single fetch, got %d", fetcher.callCount())
	}
}

func TestTriggerPublishesEventsWithNewUserIDs(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{{ID: 1}, {ID: 2}})}
	pub := &fakePublisher{}
	store := &memStore{seen: map[int]bool{1: true}}
	r := newRunner(fetcher, nil, publishers.NewFanout([]publishers.Publisher{pub}), store, nil, 0)

	r.Trigger(context.Background())
	r.Trigger(context.Background())

	if len(pub.events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(pub.events))
	}
	first, second := pub.events[0], pub.events[1]
	if first.Outcome != publishers.OutcomeSuccess || first.Endpoint != fetcher.Endpoint() {
		t.Fatalf("unexpected first event %+v", first)
	}
	if len(first.NewUserIDs) != 1 || first.NewUserIDs[0] != 2 {
		t.Fatalf("expected only user 2 to be new, got %v", first.NewUserIDs)
	}
	if len(second.NewUserIDs) != 0 {
		t.Fatalf("expected no new users on second trigger, got %v", second.NewUserIDs)
	}
}

func TestTriggerClearsLoadingBeforePublishing(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{{ID: 1, Username: "Bret"}})}
	pub := &blockingPublisher{started: make(chan struct{}), release: make(chan struct{})}
	presenter := &recordingPresenter{}
	r := newRunner(fetcher, presenter, publishers.NewFanout([]publishers.Publisher{pub}), nil, nil, 0)

	done := make(chan users.UsersResult, 1)
	go func() { done <- r.Trigger(context.Background()) }()

	select {
	case <-pub.started:
	case <-time.After(2 * time.Second):
		t.Fatalf("publisher was never called")
	}

	want := []string{"loading:on", "dialog:Response:ID:1, Name:Bret", "loading:off"}
	if got := presenter.snapshot(); strings.Join(got, "|") != strings.Join(want, "|") {
		close(pub.release)
		t.Fatalf("presenter events while publishing = %q, want %q", got, want)
	}

	close(pub.release)
	if res := <-done; !res.IsSuccess() {
		t.Fatalf("expected success, got %s", res)
	}
	if got := presenter.snapshot(); len(got) != 3 {
		t.Fatalf("loading toggled again after publishing: %q", got)
	}
}

// panickyPresenter fails while rendering the dialog.
type panickyPresenter struct {
	recordingPresenter
}

func (p *panickyPresenter) ShowDialog(string, string) { panic("render failed") }

func TestTriggerClearsLoadingWhenPresenterPanics(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{{ID: 1}})}
	presenter := &panickyPresenter{}
	r := newRunner(fetcher, presenter, nil, nil, nil, 0)

	func() {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected the presenter panic to propagate")
			}
		}()
		r.Trigger(context.Background())
	}()

	got := presenter.snapshot()
	if len(got) == 0 || got[len(got)-1] != "loading:off" {
		t.Fatalf("loading not cleared after presenter panic: %q", got)
	}
	if r.Loading() {
		t.Fatalf("runner still reports loading after presenter panic")
	}
}

func TestNewRunnerDefaultsToNoopStore(t *testing.T) {
	r := newRunner(&fakeFetcher{}, nil, nil, nil, nil, 0)
	if r.store == nil {
		t.Fatalf("expected a default store")
	}
	if err := r.store.MarkUser(1); err != nil {
		t.Fatalf("default store MarkUser: %v", err)
	}
	if seen, _ := r.store.SeenUser(1); seen {
		t.Fatalf("default store should not remember ids")
	}
}

func TestTriggerPublishFailureDoesNotChangeResult(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Error[[]domain.User](users.MsgRequestFailed)}
	pub := &fakePublisher{err: errors.New("sink down")}
	presenter := &recordingPresenter{}
	r := newRunner(fetcher, presenter, publishers.NewFanout([]publishers.Publisher{pub}), nil, nil, 0)

	res := r.Trigger(context.Background())
	if msg, _ := res.Message(); msg != users.MsgRequestFailed {
		t.Fatalf("unexpected result %s", res)
	}
	if len(pub.events) != 1 || pub.events[0].Outcome != publishers.OutcomeError || pub.events[0].Message != users.MsgRequestFailed {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if got := presenter.snapshot(); got[len(got)-1] != "loading:off" {
		t.Fatalf("loading not cleared: %q", got)
	}
}

func TestRunSingleShot(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{{ID: 1}})}
	r := newRunner(fetcher, nil, nil, nil, nil, 0)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("expected one fetch, got %d", fetcher.callCount())
	}
}

func TestRunWatchStopsOnCancel(t *testing.T) {
	fetcher := &fakeFetcher{res: result.Success([]domain.User{{ID: 1}})}
	r := newRunner(fetcher, nil, nil, nil, nil, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for fetcher.callCount() < 2 {
		select {
		case <-deadline:
			t.Fatalf("watch loop did not re-trigger")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not exit after cancel")
	}
}

func TestRunUninitialized(t *testing.T) {
	var r *Runner
	if err := r.Run(context.Background()); err == nil {
		t.Fatalf("expected error for nil runner")
	}
}

func TestFormatUsers(t *testing.T) {
	if got := FormatUsers(nil); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
	got := FormatUsers([]domain.User{{ID: 10, Username: "Moriah.Stanton"}})
	if got != "ID:10, Name:Moriah.Stanton" {
		t.Fatalf("unexpected format %q", got)
	}
}

func TestTerminalPresenter(t *testing.T) {
	var buf bytes.Buffer
	p := NewTerminalPresenter(&buf)
	p.SetLoading(true)
	p.ShowDialog(TitleResponse, "ID:1, Name:Bret")
	p.SetLoading(false)

	want := "Loading...\n[Response]\nID:1, Name:Bret\n[OK]\n"
	if buf.String() != want {
		t.Fatalf("terminal output = %q, want %q", buf.String(), want)
	}
}

func TestNewRunnerFromConfig(t *testing.T) {
	dir := t.TempDir()
	pubFile := filepath.Join(dir, "publishers.yaml")
	if err := os.WriteFile(pubFile, []byte(`
publishers:
  - id: hook
    type: http
    http:
      url: https://example.com/hook
  - id: off
    type: http
    enabled: false
    http:
      url: https://example.com/off
`), 0o644); err != nil {
		t.Fatalf("write publishers: %v", err)
	}

	cfg := &config.Config{
		UsersEndpoint:          "https://example.test/users",
		ConnectivityMode:       "always",
		PublishersFile:         pubFile,
		StorageType:            "bbolt",
		BBoltPath:              filepath.Join(dir, "users.db"),
		StorageTTL:             time.Hour,
		StorageCleanupInterval: time.Hour,
	}
	r, err := NewRunner(context.Background(), cfg, nil, nil, "userfetch/test")
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	defer r.Close()

	if r.fanout.Size() != 1 {
		t.Fatalf("expected one enabled publisher, got %d", r.fanout.Size())
	}
	if r.fetcher.Endpoint() != cfg.UsersEndpoint {
		t.Fatalf("endpoint = %s", r.fetcher.Endpoint())
	}
}

func TestNewRunnerRejectsBadConfig(t *testing.T) {
	if _, err := NewRunner(context.Background(), nil, nil, nil, ""); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := NewRunner(context.Background(), &config.Config{ConnectivityMode: "carrier-pigeon"}, nil, nil, ""); err == nil {
		t.Fatalf("expected error for unknown connectivity mode")
	}
	_, err := NewRunner(context.Background(), &config.Config{ConnectivityMode: "always", StorageType: "redis"}, nil, nil, "")
	if err == nil {
		t.Fatalf("expected error for unsupported storage")
	}
}

var _ storage.Store = (*memStore)(nil)
