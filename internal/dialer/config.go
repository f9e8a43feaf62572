package dialer

import (
	"net"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	// DialTimeout bounds DNS lookup and TCP connect to the proxy.
	DialTimeout time.Duration
	// NegotiationTimeout bounds the SOCKS5 handshake. Zero means no deadline.
	NegotiationTimeout time.Duration

	KeepAlive net.KeepAliveConfig

	Logger *zap.Logger
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
