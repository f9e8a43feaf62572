package socks5

import "io"

// Transport is the byte stream a Handshake negotiates over, typically a
// net.Conn to the proxy.
//
// Handshake reads through io.ReadFull, so a short read blocks until the
// message is complete or the stream fails; a stream that ends mid-message
// fails the negotiation with io.ErrUnexpectedEOF. Deadlines belong to the
// implementation, not to Handshake.
type Transport interface {
	io.Reader
	io.Writer
}
