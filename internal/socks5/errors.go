package socks5

import (
	"errors"
	"fmt"
)

// Failure categories of a negotiation. Every error returned by a Handshake
// matches exactly one of them with errors.Is.
var (
	ErrProtocolMismatch   = errors.New("socks5: protocol version mismatch")
	ErrNoAcceptableMethod = errors.New("socks5: no acceptable authentication method")
	ErrMalformedResponse  = errors.New("socks5: malformed response")
	ErrRelayRejected      = errors.New("socks5: relay request rejected")
	ErrAddressEncoding    = errors.New("socks5: address cannot be encoded")
	ErrTransport          = errors.New("socks5: transport failure")
)

// VersionError reports an unexpected VER octet.
type VersionError byte

func (v VersionError) Error() string {
	return fmt.Sprintf("socks5: unexpected version %#02x", byte(v))
}

func (VersionError) Is(target error) bool {
	return target == ErrProtocolMismatch
}

// MethodError reports a method selection the client cannot use: either
// MethodNoAcceptable or a method that was never offered.
type MethodError byte

func (m MethodError) Error() string {
	if m == MethodNoAcceptable {
		return "socks5: server accepted none of the offered methods"
	}
	return fmt.Sprintf("socks5: server selected method %#02x which was not offered", byte(m))
}

func (MethodError) Is(target error) bool {
	return target == ErrNoAcceptableMethod
}

// UnknownAddressTypeError reports an ATYP octet outside {0x01, 0x03, 0x04}.
type UnknownAddressTypeError byte

func (a UnknownAddressTypeError) Error() string {
	return fmt.Sprintf("socks5: unknown address type %#02x", byte(a))
}

func (UnknownAddressTypeError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// TruncatedError reports a buffer too short for the field being decoded.
type TruncatedError struct {
	Field string
	Need  int
	Have  int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("socks5: truncated %s: need %d bytes, have %d", e.Field, e.Need, e.Have)
}

func (*TruncatedError) Is(target error) bool {
	return target == ErrMalformedResponse
}

// ReplyError carries the REP octet of a relay response that did not succeed.
type ReplyError byte

func (r ReplyError) Error() string {
	return "socks5: " + ReplyText(byte(r))
}

func (ReplyError) Is(target error) bool {
	return target == ErrRelayRejected
}

// Code returns the server's reply code.
func (r ReplyError) Code() byte {
	return byte(r)
}

// DomainLengthError reports a domain name whose byte length does not fit the
// one-octet length prefix.
type DomainLengthError struct {
	Len int
}

func (e *DomainLengthError) Error() string {
	return fmt.Sprintf("socks5: domain name is %d bytes, limit is %d", e.Len, MaxDomainLen)
}

func (*DomainLengthError) Is(target error) bool {
	return target == ErrAddressEncoding
}

// TransportError wraps a read or write failure of the underlying stream.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("socks5: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (*TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ReplyText describes a REP octet using the RFC 1928 wording.
func ReplyText(code byte) string {
	switch code {
	case RepSuccess:
		return "succeeded"
	case RepGeneralFailure:
		return "general SOCKS server failure"
	case RepConnectionNotAllowed:
		return "connection not allowed by ruleset"
	case RepNetworkUnreachable:
		return "network unreachable"
	case RepHostUnreachable:
		return "host unreachable"
	case RepConnectionRefused:
		return "connection refused"
	case RepTTLExpired:
		return "TTL expired"
	case RepCommandNotSupported:
		return "command not supported"
	case RepAddrTypeNotSupported:
		return "address type not supported"
	default:
		return fmt.Sprintf("unknown reply code %#02x", code)
	}
}
