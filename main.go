package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/die-net/socksfetch/internal/dialer"
	"github.com/die-net/socksfetch/internal/fetch"
	"github.com/die-net/socksfetch/internal/tunnel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var (
		proxyURL = pflag.String("proxy", defaultProxy(), "Proxy URL: socks5://host[:port] (resolve names locally) | socks5h://host[:port] (proxy resolves names) | direct://")

		dialTimeout        = pflag.Duration("dial-timeout", 10*time.Second, "Timeout for DNS lookup and TCP connect to the proxy")
		negotiationTimeout = pflag.Duration("negotiation-timeout", 10*time.Second, "Timeout for the SOCKS5 handshake and the TLS handshake")
		tcpKeepAlive       = pflag.String("tcp-keepalive", "45:45:3", "TCP keepalive: on|off|keepidle:keepintvl:keepcnt")
		parallel           = pflag.Int("parallel", 4, "Maximum number of concurrent fetches")
		outputDir          = pflag.StringP("output-dir", "o", ".", "Directory to save fetched responses in")
		connect            = pflag.String("connect", "", "Tunnel stdin/stdout to host:port through the proxy instead of fetching URLs")
		userAgent          = pflag.String("user-agent", fetch.DefaultUserAgent, "User-Agent header sent with each fetch")
		verbose            = pflag.Bool("verbose", false, "Enable debug logging of handshake transitions")
	)

	pflag.CommandLine.SortFlags = false
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] URL...\n       %s [flags] --connect host:port\n\n", os.Args[0], os.Args[0])
		pflag.PrintDefaults()
	}
	pflag.Parse()

	urls := pflag.Args()
	if *connect == "" && len(urls) == 0 {
		pflag.Usage()
		return errors.New("no URLs to fetch (or use --connect host:port)")
	}
	if *connect != "" && len(urls) > 0 {
		return errors.New("--connect cannot be combined with URLs")
	}
	if *parallel <= 0 {
		return errors.New("invalid --parallel: must be > 0")
	}

	ka, err := parseTCPKeepAlive(*tcpKeepAlive)
	if err != nil {
		return fmt.Errorf("invalid --tcp-keepalive: %w", err)
	}

	logger, err := newLogger(*verbose)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	dialCfg := dialer.Config{
		DialTimeout:        *dialTimeout,
		NegotiationTimeout: *negotiationTimeout,
		KeepAlive:          ka,
		Logger:             logger,
	}

	d, err := dialer.New(dialCfg, *proxyURL)
	if err != nil {
		return fmt.Errorf("invalid --proxy: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *connect != "" {
		return runConnect(ctx, d, *connect)
	}

	f, err := fetch.New(fetch.Config{
		Dialer:             d,
		NegotiationTimeout: *negotiationTimeout,
		UserAgent:          *userAgent,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	return runFetch(ctx, logger, f, urls, *outputDir, *parallel)
}

func runConnect(ctx context.Context, d dialer.Dialer, target string) error {
	conn, err := d.DialContext(ctx, "tcp", target)
	if err != nil {
		return err
	}
	return tunnel.Copy(ctx, conn, os.Stdin, os.Stdout)
}

func runFetch(ctx context.Context, logger *zap.Logger, f *fetch.Fetcher, urls []string, dir string, parallel int) error {
	if err := checkOutputNames(urls); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("output dir: %w", err)
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	g.SetLimit(parallel)

	for _, u := range urls {
		g.Go(func() error {
			res, err := f.FetchToFile(ctx, u, dir)
			if res != nil && res.Path != "" {
				logger.Info("saved", zap.String("url", u), zap.String("path", res.Path), zap.Int64("bytes", res.Bytes))
			}
			if err != nil {
				logger.Error("fetch failed", zap.String("url", u), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if errs != nil {
		return fmt.Errorf("%d of %d fetches failed: %w", len(multierr.Errors(errs)), len(urls), errs)
	}
	return nil
}

// checkOutputNames rejects URL sets that would be saved to the same file.
func checkOutputNames(urls []string) error {
	seen := make(map[string]string, len(urls))
	for _, u := range urls {
		name, err := fetch.OutputName(u)
		if err != nil {
			return err
		}
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%s and %s would both be saved as %s", prev, u, name)
		}
		seen[name] = u
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

func parseTCPKeepAlive(s string) (net.KeepAliveConfig, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return net.KeepAliveConfig{}, errors.New("empty")
	}
	if s == "on" {
		return net.KeepAliveConfig{Enable: true}, nil
	}
	if s == "off" {
		return net.KeepAliveConfig{Enable: false}, nil
	}

	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return net.KeepAliveConfig{}, errors.New("expected on|off|keepidle:keepintvl:keepcnt")
	}
	keepIdle, err := parsePositiveSeconds(parts[0])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepidle: %w", err)
	}
	keepIntvl, err := parsePositiveSeconds(parts[1])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepintvl: %w", err)
	}
	keepCnt, err := parsePositiveInt(parts[2])
	if err != nil {
		return net.KeepAliveConfig{}, fmt.Errorf("keepcnt: %w", err)
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     keepIdle,
		Interval: keepIntvl,
		Count:    keepCnt,
	}, nil
}

func parsePositiveSeconds(s string) (time.Duration, error) {
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func parsePositiveInt(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("must be > 0")
	}
	return n, nil
}

// defaultProxy honors ALL_PROXY, then falls back to a local Tor SOCKS port.
func defaultProxy() string {
	if p := os.Getenv("ALL_PROXY"); p != "" {
		return p
	}

	if p := os.Getenv("all_proxy"); p != "" {
		return p
	}

	return "socks5h://127.0.0.1:9050"
}
