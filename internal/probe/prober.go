package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

const (
	// DefaultConnectTimeout bounds a single connect attempt
	DefaultConnectTimeout = time.Second
	// DefaultPollInterval is the wait between probes while polling
	DefaultPollInterval = 500 * time.Millisecond
)

// Dialer opens TCP connections; *net.Dialer satisfies it
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober checks whether a debug port accepts TCP connections. It never
// speaks the adapter protocol; a successful connect is the only signal.
type Prober struct {
	clock          clock.Clock
	dialer         Dialer
	connectTimeout time.Duration
	logger         *zap.Logger
}

// Option configures a Prober
type Option func(*Prober)

// WithClock sets the clock used by the poll loop
func WithClock(c clock.Clock) Option {
	return func(p *Prober) { p.clock = c }
}

// WithDialer replaces the network dialer
func WithDialer(d Dialer) Option {
	return func(p *Prober) { p.dialer = d }
}

// WithConnectTimeout sets the per-probe connect timeout used while polling
func WithConnectTimeout(d time.Duration) Option {
	return func(p *Prober) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

// WithLogger sets the prober's logger
func WithLogger(l *zap.Logger) Option {
	return func(p *Prober) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Prober using the real clock and network
func New(opts ...Option) *Prober {
	p := &Prober{
		clock:          clock.New(),
		dialer:         &net.Dialer{},
		connectTimeout: DefaultConnectTimeout,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ConnectTimeout returns the per-probe timeout used by PollUntilReady
func (p *Prober) ConnectTimeout() time.Duration { return p.connectTimeout }

// ProbeOnce attempts a single connect. Refusal, timeout and cancellation all
// report false.
func (p *Prober) ProbeOnce(ctx context.Context, ip string, port int, connectTimeout time.Duration) bool {
	if connectTimeout <= 0 {
		connectTimeout = p.connectTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	conn, err := p.dialer.DialContext(dialCtx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
	if err != nil {
		p.logger.Debug("probe failed", zap.String("ip", ip), zap.Int("port", port), zap.Error(err))
		return false
	}
	conn.Close()
	return true
}

// PollUntilReady probes every pollInterval until a probe succeeds (true), ctx
// is cancelled (false) or totalTimeout has elapsed (false). Cancellation is
// observed before every probe and during every wait.
func (p *Prober) PollUntilReady(ctx context.Context, ip string, port int, totalTimeout, pollInterval time.Duration) bool {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	start := p.clock.Now()

	for p.clock.Since(start) < totalTimeout {
		if ctx.Err() != nil {
			return false
		}
		if p.ProbeOnce(ctx, ip, port, p.connectTimeout) {
			p.logger.Debug("debug port ready",
				zap.Int("port", port),
				zap.Duration("elapsed", p.clock.Since(start)))
			return true
		}
		if ctx.Err() != nil {
			return false
		}

		timer := p.clock.Timer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}

	p.logger.Debug("gave up waiting for debug port",
		zap.Int("port", port),
		zap.Duration("timeout", totalTimeout))
	return false
}
