package connectivity

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Package connectivity reports whether the host currently has a usable
// outbound network path.

const (
	ModeInterfaces = "interfaces"
	ModeProbe      = "probe"
	ModeAlways     = "always"

	defaultProbeTimeout = 2 * time.Second
)

// Checker answers whether outbound internet access is available. Implementations
// never fail: lookup problems are reported as "unavailable".
type Checker interface {
	IsInternetAvailable(ctx context.Context) bool
}

// CheckerFunc adapts a plain function to Checker.
type CheckerFunc func(ctx context.Context) bool

func (f CheckerFunc) IsInternetAvailable(ctx context.Context) bool {
	if f == nil {
		return false
	}
	return guard(func() bool { return f(ctx) })
}

// Static returns a Checker with a fixed answer.
func Static(available bool) Checker {
	return CheckerFunc(func(context.Context) bool { return available })
}

// Options configures NewChecker.
type Options struct {
	ProbeAddr    string
	ProbeTimeout time.Duration
}

// NewChecker builds the checker for the given mode.
func NewChecker(mode string, opts Options) (Checker, error) {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", ModeInterfaces:
		return NewInterfaceChecker(), nil
	case ModeProbe:
		if strings.TrimSpace(opts.ProbeAddr) == "" {
			return nil, fmt.Errorf("probe connectivity mode requires a probe address")
		}
		return NewProbeChecker(opts.ProbeAddr, opts.ProbeTimeout), nil
	case ModeAlways:
		return Static(true), nil
	default:
		return nil, fmt.Errorf("unsupported connectivity mode %q", mode)
	}
}

// guard turns a panicking check into "unavailable".
func guard(check func() bool) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return check()
}
