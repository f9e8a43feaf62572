package dialer

import (
	"context"
	"fmt"
	"net"
)

type directDialer struct {
	dd net.Dialer
}

// NewDirectDialer returns a Dialer that connects without a proxy, applying
// cfg.DialTimeout and cfg.KeepAlive.
func NewDirectDialer(cfg Config) (Dialer, error) {
	return &directDialer{dd: net.Dialer{Timeout: cfg.DialTimeout, KeepAliveConfig: cfg.KeepAlive}}, nil
}

func (d *directDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.dd.DialContext(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, address, err)
	}
	return conn, nil
}
