package testutil

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"

	"github.com/txthinking/socks5"
)

// SOCKS5Server is a minimal no-auth CONNECT proxy built from the
// txthinking/socks5 server primitives. It records every requested target.
type SOCKS5Server struct {
	ln     net.Listener
	cancel context.CancelFunc

	mu      sync.Mutex
	targets []string
	wg      sync.WaitGroup
}

// StartSOCKS5Server starts a SOCKS5 proxy on 127.0.0.1 that serves until the
// returned server is closed or ctx is done. It is closed on test cleanup.
func StartSOCKS5Server(t *testing.T, ctx context.Context) *SOCKS5Server {
	t.Helper()

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s := &SOCKS5Server{ln: ln, cancel: cancel}
	context.AfterFunc(ctx, func() { _ = ln.Close() })

	s.wg.Go(func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			s.wg.Go(func() {
				stop := context.AfterFunc(ctx, func() { _ = c.Close() })
				defer stop()
				defer c.Close()
				_ = s.serve(ctx, c)
			})
		}
	})

	t.Cleanup(s.Close)
	return s
}

// Addr returns the proxy listen address.
func (s *SOCKS5Server) Addr() string {
	return s.ln.Addr().String()
}

// Targets returns the DST.ADDR:DST.PORT of every request seen so far.
func (s *SOCKS5Server) Targets() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.targets...)
}

// Close stops the server, drops in-flight tunnels and waits for their
// goroutines.
func (s *SOCKS5Server) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *SOCKS5Server) serve(ctx context.Context, c net.Conn) error {
	if _, err := socks5.NewNegotiationRequestFrom(c); err != nil {
		return err
	}
	if _, err := socks5.NewNegotiationReply(socks5.MethodNone).WriteTo(c); err != nil {
		return err
	}

	req, err := socks5.NewRequestFrom(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.targets = append(s.targets, req.Address())
	s.mu.Unlock()

	if req.Cmd != socks5.CmdConnect {
		_, _ = socks5.NewReply(socks5.RepCommandNotSupported, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}

	d := net.Dialer{}
	dst, err := d.DialContext(ctx, "tcp", req.Address())
	if err != nil {
		_, _ = socks5.NewReply(socks5.RepHostUnreachable, socks5.ATYPIPv4, []byte{0x00, 0x00, 0x00, 0x00}, []byte{0x00, 0x00}).WriteTo(c)
		return nil
	}
	defer dst.Close()
	stop := context.AfterFunc(ctx, func() { _ = dst.Close() })
	defer stop()

	a, addr, port, err := socks5.ParseAddress(dst.LocalAddr().String())
	if err != nil {
		return err
	}
	if a == socks5.ATYPDomain {
		addr = addr[1:]
	}
	if _, err := socks5.NewReply(socks5.RepSuccess, a, addr, port).WriteTo(c); err != nil {
		return err
	}

	go func() {
		_, _ = io.Copy(dst, c)
		if tc, ok := dst.(*net.TCPConn); ok {
			_ = tc.CloseWrite()
		}
	}()
	_, _ = io.Copy(c, dst)

	return nil
}
