// Package socks5 implements the client side of SOCKS5 (RFC 1928) used by
// socksfetch.
//
// It contains the wire codec for addresses, relay requests and relay
// responses, and a Handshake state machine that negotiates the
// "no authentication" method and issues a CONNECT over a Transport.
//
// The package holds no mutable package-level state; independent handshakes
// may run concurrently without locking. Timeouts and cancellation are the
// transport's concern (see internal/dialer).
package socks5
