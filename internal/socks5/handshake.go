package socks5

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"go.uber.org/zap"
)

// State is a step of the client negotiation.
type State uint8

const (
	StateStart State = iota
	StateMethodNegotiated
	StateRelayRequested
	StateConnected
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateMethodNegotiated:
		return "method-negotiated"
	case StateRelayRequested:
		return "relay-requested"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateConnected || s == StateFailed
}

// Option configures a Handshake.
type Option func(*Handshake)

// WithLogger sets the logger used for per-transition debug logs.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handshake) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handshake drives one client negotiation over a Transport:
//
//	start -> method-negotiated -> relay-requested -> connected
//
// Any step may instead move to failed. Nothing is retried. Once connected,
// the Transport is a tunnel to the target and belongs to the caller.
//
// A Handshake is not safe for concurrent use; independent Handshakes share
// nothing.
type Handshake struct {
	t       Transport
	req     Request
	methods []byte
	logger  *zap.Logger

	state State
	err   error
	bound *Response
}

// NewHandshake returns a Handshake in StateStart that will send req over t.
func NewHandshake(t Transport, req Request, opts ...Option) *Handshake {
	h := &Handshake{
		t:       t,
		req:     req,
		methods: []byte{MethodNoAuth},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// State returns the current state.
func (h *Handshake) State() State { return h.state }

// Err returns the reason for StateFailed, or nil.
func (h *Handshake) Err() error { return h.err }

// Bound returns the relay response once connected, or nil.
func (h *Handshake) Bound() *Response { return h.bound }

// Step performs the transition out of the current state. In a terminal state
// it does no I/O and returns the failure reason (nil once connected).
func (h *Handshake) Step() error {
	var (
		next State
		err  error
	)
	switch h.state {
	case StateStart:
		next, err = StateMethodNegotiated, h.negotiate()
	case StateMethodNegotiated:
		next, err = StateRelayRequested, h.sendRequest()
	case StateRelayRequested:
		next, err = StateConnected, h.readReply()
	case StateConnected, StateFailed:
		return h.err
	default:
		next, err = StateFailed, fmt.Errorf("socks5: invalid handshake state %d", h.state)
	}

	prev := h.state
	if err != nil {
		h.state, h.err = StateFailed, err
	} else {
		h.state = next
	}

	if ce := h.logger.Check(zap.DebugLevel, "socks5 handshake transition"); ce != nil {
		ce.Write(
			zap.Stringer("from", prev),
			zap.Stringer("to", h.state),
			zap.String("target", h.req.Target()),
			zap.Error(err),
		)
	}
	return err
}

// Run steps until a terminal state and returns the relay response on
// success.
func (h *Handshake) Run() (*Response, error) {
	for !h.state.Terminal() {
		if err := h.Step(); err != nil {
			return nil, err
		}
	}
	if h.err != nil {
		return nil, h.err
	}
	return h.bound, nil
}

// negotiate sends the greeting and checks the method selection.
//
//	+----+----------+----------+      +----+--------+
//	|VER | NMETHODS | METHODS  |  ->  |VER | METHOD |
//	+----+----------+----------+      +----+--------+
func (h *Handshake) negotiate() error {
	greeting := make([]byte, 0, 2+len(h.methods))
	greeting = append(greeting, Version, byte(len(h.methods)))
	greeting = append(greeting, h.methods...)
	if _, err := h.t.Write(greeting); err != nil {
		return &TransportError{Op: "write greeting", Err: err}
	}

	var sel [2]byte
	if _, err := io.ReadFull(h.t, sel[:]); err != nil {
		return &TransportError{Op: "read method selection", Err: err}
	}
	if sel[0] != Version {
		return VersionError(sel[0])
	}
	if sel[1] == MethodNoAcceptable || !slices.Contains(h.methods, sel[1]) {
		return MethodError(sel[1])
	}
	return nil
}

func (h *Handshake) sendRequest() error {
	b, err := h.req.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := h.t.Write(b); err != nil {
		return &TransportError{Op: "write request", Err: err}
	}
	return nil
}

// readReply reads the relay response header, rejects failure replies
// without waiting for their address, then reads exactly the address and
// port.
func (h *Handshake) readReply() error {
	hdr, err := ReadResponseHeader(h.t)
	if err != nil {
		return &TransportError{Op: "read reply header", Err: err}
	}
	if hdr[0] != Version {
		return VersionError(hdr[0])
	}
	if hdr[1] != RepSuccess {
		return ReplyError(hdr[1])
	}

	resp, err := ReadResponseBody(h.t, hdr)
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return err
		}
		return &TransportError{Op: "read reply", Err: err}
	}
	h.bound = resp
	return nil
}

// Connect negotiates a CONNECT to addr:port over t and returns the relay
// response carrying BND.ADDR and BND.PORT.
func Connect(t Transport, addr Address, port uint16, opts ...Option) (*Response, error) {
	req, err := NewConnectRequest(addr, port)
	if err != nil {
		return nil, err
	}
	return NewHandshake(t, req, opts...).Run()
}
