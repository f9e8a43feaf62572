package fetch

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksfetch/internal/dialer"
)

// DefaultUserAgent is sent when Config.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DefaultOutputName is the file name used for URLs without a path.
const DefaultOutputName = "response.html"

type Config struct {
	Dialer dialer.Dialer

	// NegotiationTimeout bounds the TLS handshake.
	NegotiationTimeout time.Duration

	// TLSConfig is cloned for every Fetcher. MinVersion is raised to TLS 1.2.
	TLSConfig *tls.Config

	UserAgent string

	Logger *zap.Logger
}

// StatusError reports a non-2xx response. The body has still been written.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %s", e.URL, e.Status)
}

// Result describes a completed fetch.
type Result struct {
	StatusCode int
	Bytes      int64
	Path       string
}

type Fetcher struct {
	client    *http.Client
	userAgent string
	logger    *zap.Logger
	buffers   *bufferPool
}

func New(cfg Config) (*Fetcher, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("fetch: missing dialer")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	return &Fetcher{
		client:    &http.Client{Transport: newTransport(cfg)},
		userAgent: ua,
		logger:    logger,
		buffers:   newBufferPool(32768),
	}, nil
}

func newTransport(cfg Config) *http.Transport {
	tlsConfig := &tls.Config{}
	if cfg.TLSConfig != nil {
		tlsConfig = cfg.TLSConfig.Clone()
	}
	if tlsConfig.MinVersion < tls.VersionTLS12 {
		tlsConfig.MinVersion = tls.VersionTLS12
	}

	// One request per tunnel, HTTP/1.1 only.
	return &http.Transport{
		DialContext:         cfg.Dialer.DialContext,
		DisableKeepAlives:   true,
		TLSHandshakeTimeout: cfg.NegotiationTimeout,
		TLSClientConfig:     tlsConfig,
		TLSNextProto:        map[string]func(string, *tls.Conn) http.RoundTripper{},
	}
}

// Fetch GETs rawURL and copies the response body to w. A non-2xx status
// returns the Result together with a *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, w io.Writer) (*Result, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	req.Close = true
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	buf := f.buffers.Get()
	n, err := io.CopyBuffer(w, resp.Body, buf)
	f.buffers.Put(buf)

	res := &Result{StatusCode: resp.StatusCode, Bytes: n}
	if err != nil {
		return res, fmt.Errorf("fetch %s: read body: %w", rawURL, err)
	}

	f.logger.Info("fetched",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int64("bytes", n),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return res, nil
}

// FetchToFile fetches rawURL into dir/OutputName(rawURL). The file is kept
// when the server returns a non-2xx status and removed on any other error.
func (f *Fetcher) FetchToFile(ctx context.Context, rawURL, dir string) (*Result, error) {
	name, err := OutputName(rawURL)
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, name)

	out, err := os.Create(p)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	res, err := f.Fetch(ctx, rawURL, out)
	if cerr := out.Close(); cerr != nil && err == nil {
		err = fmt.Errorf("fetch %s: %w", rawURL, cerr)
	}

	var statusErr *StatusError
	if err != nil && !errors.As(err, &statusErr) {
		_ = os.Remove(p)
		return res, err
	}

	res.Path = p
	return res, err
}

// OutputName picks a local file name for rawURL: the last path element, or
// DefaultOutputName when the path is empty or ends in a slash.
func OutputName(rawURL string) (string, error) {
	u, err := parseURL(rawURL)
	if err != nil {
		return "", err
	}

	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return DefaultOutputName, nil
	}
	name := path.Base(u.Path)
	if name == "." || name == ".." || name == "/" {
		return DefaultOutputName, nil
	}
	return name, nil
}

func parseURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	switch u.Scheme {
	case "http", "https":
	case "":
		return nil, fmt.Errorf("invalid url %q: missing scheme", rawURL)
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", rawURL)
	}
	return u, nil
}
