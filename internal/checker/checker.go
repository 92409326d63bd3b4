package checker

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/net/proxy"
	"h12.io/socks"

	"proxyfinder/internal/logger"
	"proxyfinder/internal/model"
)

const (
	DefaultTargetURL = "https://www.google.com"
	DefaultTimeout   = 10 * time.Second
)

// Checker probes a candidate by sending one GET through it to TargetURL.
type Checker struct {
	TargetURL string
	// Timeout bounds each phase separately: connect, TLS handshake,
	// proxy handshake, and waiting for the response.
	Timeout time.Duration

	clock clock.Clock
}

type Option func(*Checker)

// WithClock replaces the clock used to measure latency.
func WithClock(c clock.Clock) Option {
	return func(chk *Checker) { chk.clock = c }
}

func NewChecker(targetURL string, timeout time.Duration, opts ...Option) *Checker {
	if targetURL == "" {
		targetURL = DefaultTargetURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Checker{
		TargetURL: targetURL,
		Timeout:   timeout,
		clock:     clock.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check validates the proxy by requesting the target URL through it and
// returns a copy of p carrying the outcome. Every failure (dial, proxy
// handshake, TLS, timeout, non-2xx status) yields StateInvalid.
func (c *Checker) Check(ctx context.Context, p model.Candidate) model.Candidate {
	l := logger.WithComponent("Checker")

	start := c.clock.Now()
	if err := c.roundTrip(ctx, p); err != nil {
		l.Debug().Err(err).Str("proxy", p.Address()).Str("protocol", string(p.Protocol)).Msg("Probe failed.")
		return p.WithResult(false, 0)
	}
	latency := c.clock.Since(start)

	l.Debug().Str("proxy", p.Address()).Dur("latency", latency).Msg("Probe succeeded.")
	return p.WithResult(true, latency)
}

func (c *Checker) roundTrip(ctx context.Context, p model.Candidate) error {
	transport, err := c.transport(p)
	if err != nil {
		return err
	}
	defer transport.CloseIdleConnections()

	client := &http.Client{
		Transport: transport,
		// Connect, write and read each get Timeout.
		Timeout: 3 * c.Timeout,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.TargetURL, nil)
	if err != nil {
		return fmt.Errorf("bad request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("received non-successful status code: %d", resp.StatusCode)
	}
	return nil
}

// transport builds a single-use transport routed through p. HTTP and HTTPS
// candidates are used as HTTP proxies, SOCKS4/SOCKS5 through a SOCKS
// dialer; anything else falls back to HTTP.
func (c *Checker) transport(p model.Candidate) (*http.Transport, error) {
	if p.IP == "" || !model.ValidPort(p.Port) {
		return nil, fmt.Errorf("invalid proxy address %q", p.Address())
	}
	addr := net.JoinHostPort(p.IP, strconv.Itoa(p.Port))

	dialer := &net.Dialer{Timeout: c.Timeout}
	t := &http.Transport{
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   c.Timeout,
		ResponseHeaderTimeout: c.Timeout,
		ForceAttemptHTTP2:     false,
	}

	switch p.Protocol {
	case model.ProtocolSOCKS5:
		d, err := proxy.SOCKS5("tcp", addr, nil, dialer)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("SOCKS5 dialer does not support contexts")
		}
		t.DialContext = cd.DialContext
	case model.ProtocolSOCKS4:
		dial := socks.Dial(fmt.Sprintf("socks4://%s?timeout=%s", addr, c.Timeout))
		t.DialContext = func(ctx context.Context, network, target string) (net.Conn, error) {
			return dial(network, target)
		}
	default:
		t.Proxy = http.ProxyURL(&url.URL{Scheme: "http", Host: addr})
		t.DialContext = dialer.DialContext
	}
	return t, nil
}
