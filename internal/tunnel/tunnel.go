// Package tunnel relays a local byte stream over an established connection.
package tunnel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Copy relays in to conn and conn to out until the remote side closes, ctx
// is done, or either direction fails. When in reaches EOF the write side of
// conn is half-closed so the peer sees the end of the request.
//
// conn is closed before Copy returns. If in blocks forever (a terminal
// stdin, say) its goroutine outlives Copy until the next read returns.
func Copy(ctx context.Context, conn net.Conn, in io.Reader, out io.Writer) error {
	defer conn.Close()

	up := make(chan error, 1)
	down := make(chan error, 1)

	go func() {
		_, err := io.Copy(conn, in)
		if err == nil {
			err = closeWrite(conn)
		}
		up <- err
	}()

	go func() {
		_, err := io.Copy(out, conn)
		down <- err
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-up:
			if err != nil {
				return fmt.Errorf("tunnel: send: %w", err)
			}
			up = nil
		case err := <-down:
			if err != nil {
				return fmt.Errorf("tunnel: receive: %w", err)
			}
			return nil
		}
	}
}

func closeWrite(c net.Conn) error {
	cw, ok := c.(interface{ CloseWrite() error })
	if !ok {
		return nil
	}
	if err := cw.CloseWrite(); err != nil && !errors.Is(err, errors.ErrUnsupported) {
		return err
	}
	return nil
}
