// Package dialer provides outbound dialing implementations used by
// socksfetch.
//
// Dialers implement a small interface (DialContext) and establish outbound
// connections either directly or through a SOCKS5 proxy, whose negotiation
// is driven by internal/socks5 under the dialer's deadlines.
package dialer
