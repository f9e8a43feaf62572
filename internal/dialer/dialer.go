package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Dialer mirrors the net.Dialer interface.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// New parses proxyURL and constructs the appropriate outbound Dialer.
//
// Supported schemes:
//   - direct://
//   - socks5://host:port (target names are resolved locally)
//   - socks5h://host:port (target names are resolved by the proxy)
//
// A default port of 1080 is applied if the URL host is missing a port.
func New(cfg Config, proxyURL string) (Dialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)

	if u.Path != "" && u.Path != "/" {
		return nil, errors.New("invalid URL: path should be empty")
	}

	switch u.Scheme {
	case "":
		return nil, errors.New("invalid url: missing scheme")
	case "direct":
		return NewDirectDialer(cfg)
	case "socks5", "socks5h":
		if u.User != nil {
			return nil, errors.New("invalid url: socks5 authentication is not supported")
		}
		host := u.Hostname()
		if host == "" {
			return nil, errors.New("invalid url: missing host")
		}
		if u.Port() == "" {
			u.Host = net.JoinHostPort(host, "1080")
		}
		d, err := NewSOCKS5ProxyDialer(cfg, u.Host, u.Scheme == "socks5")
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("invalid url scheme: %q", u.Scheme)
	}
}
