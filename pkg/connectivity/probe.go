package connectivity

import (
	"context"
	"net"
	"time"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// ProbeChecker opens a TCP connection to a well-known address and reports
// success if the handshake completes within the timeout.
type ProbeChecker struct {
	addr    string
	timeout time.Duration
	dial    dialFunc
}

func NewProbeChecker(addr string, timeout time.Duration) *ProbeChecker {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	d := &net.Dialer{}
	return &ProbeChecker{addr: addr, timeout: timeout, dial: d.DialContext}
}

func (p *ProbeChecker) IsInternetAvailable(ctx context.Context) bool {
	if p == nil || p.dial == nil || p.addr == "" {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return guard(func() bool {
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		conn, err := p.dial(ctx, "tcp", p.addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	})
}
