// Package fetch retrieves HTTP and HTTPS resources over a dialer.Dialer,
// typically a SOCKS5 tunnel, and streams the response body to a writer or
// a file on disk.
package fetch
