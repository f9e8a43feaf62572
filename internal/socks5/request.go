package socks5

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"slices"
	"strconv"
)

// Request is a relay request:
//
//	+----+-----+-------+------+----------+----------+
//	|VER | CMD |  RSV  | ATYP | DST.ADDR | DST.PORT |
//	+----+-----+-------+------+----------+----------+
//	| 1  |  1  | X'00' |  1   | Variable |    2     |
//	+----+-----+-------+------+----------+----------+
//
// VER and RSV are fixed and ATYP follows the address variant, so a Request
// only stores the command, the address and the port.
type Request struct {
	cmd  byte
	addr Address
	port uint16
}

// NewRequest returns a Request for cmd. It fails if addr is nil or cannot be
// encoded.
func NewRequest(cmd byte, addr Address, port uint16) (Request, error) {
	if addr == nil {
		return Request{}, errNilAddress
	}
	if d, ok := addr.(DomainAddr); ok && len(d) > MaxDomainLen {
		return Request{}, &DomainLengthError{Len: len(d)}
	}
	return Request{cmd: cmd, addr: addr, port: port}, nil
}

// NewConnectRequest returns a CONNECT Request.
func NewConnectRequest(addr Address, port uint16) (Request, error) {
	return NewRequest(CmdConnect, addr, port)
}

func (r Request) Version() byte  { return Version }
func (r Request) Command() byte  { return r.cmd }
func (r Request) Reserved() byte { return 0x00 }
func (r Request) Addr() Address  { return r.addr }
func (r Request) Port() uint16   { return r.port }

// AddrType returns the ATYP octet of the destination address, or 0 for the
// zero Request.
func (r Request) AddrType() byte {
	if r.addr == nil {
		return 0
	}
	return r.addr.AddrType()
}

// Len returns the encoded length of r.
func (r Request) Len() int {
	return headerLen + AddressLen(r.addr) + portLen
}

// AppendBinary appends the wire form of r to b.
func (r Request) AppendBinary(b []byte) ([]byte, error) {
	b = slices.Grow(b, r.Len())
	b = append(b, Version, r.cmd, 0x00)
	b, err := AppendAddress(b, r.addr)
	if err != nil {
		return b, err
	}
	return binary.BigEndian.AppendUint16(b, r.port), nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r Request) MarshalBinary() ([]byte, error) {
	return r.AppendBinary(nil)
}

// WriteTo writes r to w with a single Write call.
// Implements io.WriterTo.
func (r Request) WriteTo(w io.Writer) (int64, error) {
	b, err := r.MarshalBinary()
	if err != nil {
		return 0, err
	}
	n, err := w.Write(b)
	return int64(n), err
}

// Target returns the destination as "host:port".
func (r Request) Target() string {
	if r.addr == nil {
		return ""
	}
	return net.JoinHostPort(r.addr.String(), strconv.Itoa(int(r.port)))
}

func (r Request) String() string {
	return fmt.Sprintf("SOCKS5 Request{Cmd=%s, Target=%s}", commandText(r.cmd), r.Target())
}

func commandText(cmd byte) string {
	switch cmd {
	case CmdConnect:
		return "CONNECT"
	case CmdBind:
		return "BIND"
	case CmdUDPAssociate:
		return "UDP_ASSOCIATE"
	default:
		return fmt.Sprintf("UNKNOWN(%#02x)", cmd)
	}
}
