package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strconv"
)

// Response is a relay response:
//
//	+----+-----+-------+------+----------+----------+
//	|VER | REP |  RSV  | ATYP | BND.ADDR | BND.PORT |
//	+----+-----+-------+------+----------+----------+
//	| 1  |  1  | X'00' |  1   | Variable |    2     |
//	+----+-----+-------+------+----------+----------+
//
// A Response is only produced by ParseResponse or ReadResponse.
type Response struct {
	ver  byte
	rep  byte
	rsv  byte
	addr Address
	port uint16
}

func (r *Response) Version() byte  { return r.ver }
func (r *Response) Reply() byte    { return r.rep }
func (r *Response) Reserved() byte { return r.rsv }
func (r *Response) AddrType() byte { return r.addr.AddrType() }
func (r *Response) Addr() Address  { return r.addr }
func (r *Response) Port() uint16   { return r.port }

// BoundAddr returns BND.ADDR and BND.PORT as "host:port".
func (r *Response) BoundAddr() string {
	return net.JoinHostPort(r.addr.String(), strconv.Itoa(int(r.port)))
}

func (r *Response) String() string {
	return fmt.Sprintf("SOCKS5 Response{Reply=%s, Bound=%s, Version=%d, RSV=%#02x}",
		ReplyText(r.rep), r.BoundAddr(), r.ver, r.rsv)
}

// ParseResponse decodes a complete relay response from b.
//
// It fails if b is too short for the header, the address its ATYP declares,
// or the port, and if ATYP is unknown. Bytes after the port are ignored. VER
// and REP are not checked here.
func ParseResponse(b []byte) (*Response, error) {
	if len(b) < headerLen+1 {
		return nil, &TruncatedError{Field: "response header", Need: headerLen + 1, Have: len(b)}
	}

	addr, n, err := DecodeAddress(b, headerLen)
	if err != nil {
		return nil, err
	}

	rest := b[headerLen+n:]
	if len(rest) < portLen {
		return nil, &TruncatedError{Field: "port", Need: portLen, Have: len(rest)}
	}

	return &Response{
		ver:  b[0],
		rep:  b[1],
		rsv:  b[2],
		addr: addr,
		port: binary.BigEndian.Uint16(rest),
	}, nil
}

// ReadResponseHeader reads VER, REP, RSV and ATYP from r into a new buffer
// sized for the largest response.
func ReadResponseHeader(r io.Reader) ([]byte, error) {
	b := make([]byte, headerLen+1, headerLen+MaxAddressLen+portLen)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadResponseBody reads the rest of the response whose header is hdr and
// decodes the whole message. It reads exactly the bytes the ATYP requires,
// so nothing past BND.PORT is consumed.
func ReadResponseBody(r io.Reader, hdr []byte) (*Response, error) {
	if len(hdr) != headerLen+1 {
		return nil, &TruncatedError{Field: "response header", Need: headerLen + 1, Have: len(hdr)}
	}

	var need int
	switch atyp := hdr[headerLen]; atyp {
	case AddrTypeIPv4:
		need = len(IPv4Addr{}) + portLen
	case AddrTypeIPv6:
		need = len(IPv6Addr{}) + portLen
	case AddrTypeDomain:
		var ln [1]byte
		if _, err := io.ReadFull(r, ln[:]); err != nil {
			return nil, err
		}
		hdr = append(hdr, ln[0])
		need = int(ln[0]) + portLen
	default:
		return nil, UnknownAddressTypeError(atyp)
	}

	off := len(hdr)
	b := append(hdr, make([]byte, need)...)
	if _, err := io.ReadFull(r, b[off:]); err != nil {
		return nil, err
	}
	return ParseResponse(b)
}

// ReadResponse reads exactly one relay response from r in two steps: the
// fixed 4-byte header, then the address-dependent remainder.
func ReadResponse(r io.Reader) (*Response, error) {
	hdr, err := ReadResponseHeader(r)
	if err != nil {
		return nil, err
	}
	return ReadResponseBody(r, hdr)
}
