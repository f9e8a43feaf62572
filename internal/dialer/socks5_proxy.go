package dialer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/die-net/socksfetch/internal/socks5"
)

// SOCKS5ProxyDialer dials outbound TCP connections through a SOCKS5 proxy
// using the CONNECT command with no authentication.
type SOCKS5ProxyDialer struct {
	cfg          Config
	proxyAddr    string
	localResolve bool
	direct       Dialer
	resolver     *net.Resolver
}

// NewSOCKS5ProxyDialer constructs a SOCKS5 dialer for the proxy at
// proxyAddr.
//
// If localResolve is set, target host names are resolved before the
// request is sent and the proxy only ever sees IP addresses (socks5://).
// Otherwise names are sent to the proxy as-is (socks5h://).
func NewSOCKS5ProxyDialer(cfg Config, proxyAddr string, localResolve bool) (*SOCKS5ProxyDialer, error) {
	if proxyAddr == "" {
		return nil, errors.New("socks5 dialer: missing proxy address")
	}

	direct, err := NewDirectDialer(cfg)
	if err != nil {
		return nil, err
	}

	return &SOCKS5ProxyDialer{
		cfg:          cfg,
		proxyAddr:    proxyAddr,
		localResolve: localResolve,
		direct:       direct,
		resolver:     net.DefaultResolver,
	}, nil
}

// ProxyAddr returns the proxy host:port.
func (f *SOCKS5ProxyDialer) ProxyAddr() string {
	return f.proxyAddr
}

// DialContext establishes a TCP connection to address via the configured
// SOCKS5 proxy. The returned net.Conn is a *Conn.
//
// If NegotiationTimeout is set, a deadline is applied during negotiation and
// cleared before returning. Canceling ctx during negotiation closes the
// proxy connection; after DialContext returns, ctx no longer affects it.
func (f *SOCKS5ProxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if !strings.HasPrefix(network, "tcp") {
		return nil, fmt.Errorf("socks5 proxy dial %s %s: unsupported network", network, address)
	}

	addr, port, err := f.target(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy dial %s: %w", address, err)
	}

	c, err := f.direct.DialContext(ctx, "tcp", f.proxyAddr)
	if err != nil {
		return nil, fmt.Errorf("socks5 proxy: %w", err)
	}

	if f.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Now().Add(f.cfg.NegotiationTimeout))
	}

	// Close conn if ctx is canceled during negotiation.
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})

	resp, err := socks5.Connect(c, addr, port, socks5.WithLogger(f.cfg.logger()))
	if !stop() {
		// The AfterFunc already ran and closed c.
		_ = c.Close()
		return nil, fmt.Errorf("socks5 proxy dial %s: %w", address, ctx.Err())
	}
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("socks5 proxy dial %s: %w", address, err)
	}

	if f.cfg.NegotiationTimeout > 0 {
		_ = c.SetDeadline(time.Time{})
	}

	if ce := f.cfg.logger().Check(zap.DebugLevel, "socks5 connected"); ce != nil {
		ce.Write(
			zap.String("proxy", f.proxyAddr),
			zap.String("target", address),
			zap.String("bound", resp.BoundAddr()),
		)
	}

	return &Conn{Conn: c, bound: resp}, nil
}

// target builds the SOCKS5 destination for address, resolving host names
// first when f.localResolve is set.
func (f *SOCKS5ProxyDialer) target(ctx context.Context, address string) (socks5.Address, uint16, error) {
	addr, port, err := socks5.SplitHostPort(address)
	if err != nil {
		return nil, 0, err
	}

	name, ok := addr.(socks5.DomainAddr)
	if !ok || !f.localResolve {
		return addr, port, nil
	}

	ips, err := f.resolver.LookupNetIP(ctx, "ip", string(name))
	if err != nil {
		return nil, 0, fmt.Errorf("resolve %s: %w", name, err)
	}
	if len(ips) == 0 {
		return nil, 0, fmt.Errorf("resolve %s: no addresses", name)
	}
	// Prefer IPv4.
	for _, ip := range ips {
		if ip.Unmap().Is4() {
			return socks5.AddressFromIP(ip), port, nil
		}
	}
	return socks5.AddressFromIP(ips[0]), port, nil
}

// Conn is a connection tunneled through a SOCKS5 proxy.
type Conn struct {
	net.Conn
	bound *socks5.Response
}

// Bound returns the proxy's relay response, which carries the address the
// proxy bound for the outbound connection.
func (c *Conn) Bound() *socks5.Response {
	return c.bound
}

// CloseWrite shuts down the sending side of the tunnel. It returns
// errors.ErrUnsupported if the underlying connection cannot half-close.
func (c *Conn) CloseWrite() error {
	if cw, ok := c.Conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return errors.ErrUnsupported
}
