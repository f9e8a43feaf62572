package socks5

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
)

// Address is a SOCKS5 address: exactly one of IPv4Addr, DomainAddr or
// IPv6Addr. The wire tag is derived from the variant.
type Address interface {
	// AddrType returns the ATYP octet for the variant.
	AddrType() byte
	String() string

	socksAddress()
}

// IPv4Addr is a 4-octet IPv4 address in network byte order.
type IPv4Addr [4]byte

// DomainAddr is a domain name sent to the proxy for resolution. Its byte
// length must not exceed MaxDomainLen to be encodable.
type DomainAddr string

// IPv6Addr is a 16-octet IPv6 address in network byte order.
type IPv6Addr [16]byte

func (IPv4Addr) AddrType() byte   { return AddrTypeIPv4 }
func (DomainAddr) AddrType() byte { return AddrTypeDomain }
func (IPv6Addr) AddrType() byte   { return AddrTypeIPv6 }

func (a IPv4Addr) String() string   { return netip.AddrFrom4(a).String() }
func (a DomainAddr) String() string { return string(a) }
func (a IPv6Addr) String() string   { return netip.AddrFrom16(a).String() }

func (IPv4Addr) socksAddress()   {}
func (DomainAddr) socksAddress() {}
func (IPv6Addr) socksAddress()   {}

var errNilAddress = fmt.Errorf("%w: nil address", ErrAddressEncoding)

// AddressLen returns the encoded length of a, or 0 if a is nil.
func AddressLen(a Address) int {
	switch a := a.(type) {
	case IPv4Addr:
		return 1 + len(a)
	case DomainAddr:
		return 2 + len(a)
	case IPv6Addr:
		return 1 + len(a)
	default:
		return 0
	}
}

// AppendAddress appends the wire form of a (ATYP followed by the address
// payload) to b.
//
// A domain longer than MaxDomainLen bytes is rejected with a
// *DomainLengthError rather than truncated.
func AppendAddress(b []byte, a Address) ([]byte, error) {
	switch a := a.(type) {
	case IPv4Addr:
		b = append(b, AddrTypeIPv4)
		return append(b, a[:]...), nil
	case DomainAddr:
		if len(a) > MaxDomainLen {
			return b, &DomainLengthError{Len: len(a)}
		}
		b = append(b, AddrTypeDomain, byte(len(a)))
		return append(b, a...), nil
	case IPv6Addr:
		b = append(b, AddrTypeIPv6)
		return append(b, a[:]...), nil
	default:
		return b, errNilAddress
	}
}

// EncodeAddress returns the wire form of a.
func EncodeAddress(a Address) ([]byte, error) {
	return AppendAddress(make([]byte, 0, AddressLen(a)), a)
}

// DecodeAddress decodes the address whose ATYP octet is b[off].
//
// It returns the address and the number of bytes consumed, tag included, so
// the caller can find the field that follows. Domain bytes that are not
// valid UTF-8 are replaced with U+FFFD instead of failing the decode.
func DecodeAddress(b []byte, off int) (Address, int, error) {
	if off < 0 || off >= len(b) {
		return nil, 0, &TruncatedError{Field: "address type", Need: 1, Have: 0}
	}
	rest := b[off+1:]

	switch atyp := b[off]; atyp {
	case AddrTypeIPv4:
		var a IPv4Addr
		if len(rest) < len(a) {
			return nil, 0, &TruncatedError{Field: "IPv4 address", Need: len(a), Have: len(rest)}
		}
		copy(a[:], rest)
		return a, 1 + len(a), nil

	case AddrTypeDomain:
		if len(rest) < 1 {
			return nil, 0, &TruncatedError{Field: "domain length", Need: 1, Have: 0}
		}
		n := int(rest[0])
		if len(rest)-1 < n {
			return nil, 0, &TruncatedError{Field: "domain name", Need: n, Have: len(rest) - 1}
		}
		name := strings.ToValidUTF8(string(rest[1:1+n]), "\uFFFD")
		return DomainAddr(name), 2 + n, nil

	case AddrTypeIPv6:
		var a IPv6Addr
		if len(rest) < len(a) {
			return nil, 0, &TruncatedError{Field: "IPv6 address", Need: len(a), Have: len(rest)}
		}
		copy(a[:], rest)
		return a, 1 + len(a), nil

	default:
		return nil, 0, UnknownAddressTypeError(atyp)
	}
}

// AddressFromIP returns the IPv4 variant for IPv4 and IPv4-mapped IPv6
// addresses, and the IPv6 variant otherwise. It returns nil for the zero
// netip.Addr.
func AddressFromIP(ip netip.Addr) Address {
	switch {
	case !ip.IsValid():
		return nil
	case ip.Is4() || ip.Is4In6():
		return IPv4Addr(ip.Unmap().As4())
	default:
		return IPv6Addr(ip.As16())
	}
}

// ParseHost returns the IP variant for an IP literal (zones are dropped) and
// a DomainAddr for anything else.
func ParseHost(host string) Address {
	if ip, err := netip.ParseAddr(host); err == nil {
		return AddressFromIP(ip.WithZone(""))
	}
	return DomainAddr(host)
}

// SplitHostPort splits a "host:port" string into an Address and port. Named
// ports such as "https" are looked up with net.LookupPort.
func SplitHostPort(hostport string) (Address, uint16, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, 0, err
	}
	if host == "" {
		return nil, 0, fmt.Errorf("missing host in address %q", hostport)
	}

	port, err := parsePort(portStr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid port in address %q: %w", hostport, err)
	}

	a := ParseHost(host)
	if d, ok := a.(DomainAddr); ok && len(d) > MaxDomainLen {
		return nil, 0, &DomainLengthError{Len: len(d)}
	}
	return a, port, nil
}

func parsePort(s string) (uint16, error) {
	n, err := net.LookupPort("tcp", s)
	if err != nil {
		return 0, err
	}
	return uint16(n), nil //nolint:gosec // LookupPort returns 0-65535.
}
