// Package stream wraps an established connection with buffered output and a consumable input stream.
package stream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

const DefaultReadSize = 4096

// Consumer is offered input bytes as they arrive.
type Consumer interface {
	// Consume returns how many bytes of chunk it used, and done once it wants no more.
	Consume(chunk []byte) (n int, done bool, err error)
	// EOF is called if the input ends before the consumer is done.
	EOF()
}

// Conn is one exchange's exclusive handle on a connection. It is not safe for concurrent use.
type Conn struct {
	conn     net.Conn
	w        *bufio.Writer
	pending  []byte // read from conn but not yet consumed
	readSize int
}

func New(conn net.Conn) *Conn {
	return &Conn{
		conn:     conn,
		w:        bufio.NewWriter(conn),
		readSize: DefaultReadSize,
	}
}

func (c *Conn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *Conn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }

// Write buffers p; nothing is sent until Flush.
func (c *Conn) Write(ctx context.Context, p []byte) error {
	return c.withContext(ctx, func() error {
		if _, err := c.w.Write(p); err != nil {
			return perrors.New(perrors.KindWrite, "write request", err)
		}
		return nil
	})
}

func (c *Conn) Flush(ctx context.Context) error {
	return c.withContext(ctx, func() error {
		if err := c.w.Flush(); err != nil {
			return perrors.New(perrors.KindWrite, "flush request", err)
		}
		return nil
	})
}

// Consume feeds input to consumer until it's done or the input ends.
// Bytes the consumer doesn't take are kept for the next read.
func (c *Conn) Consume(ctx context.Context, consumer Consumer) error {
	return c.withContext(ctx, func() error {
		for {
			if len(c.pending) > 0 {
				n, done, err := consumer.Consume(c.pending)
				c.pending = c.pending[n:]
				if err != nil {
					return err
				}
				if done {
					return nil
				}
			}

			buf := make([]byte, c.readSize)
			n, err := c.conn.Read(buf)
			c.pending = append(c.pending, buf[:n]...)
			if err != nil {
				if errors.Is(err, io.EOF) {
					if len(c.pending) > 0 {
						// Offer the final bytes before reporting the end
						n, done, cerr := consumer.Consume(c.pending)
						c.pending = c.pending[n:]
						if cerr != nil || done {
							return cerr
						}
					}
					consumer.EOF()
					return nil
				}
				return perrors.New(perrors.KindRead, "read response", err)
			}
		}
	})
}

// ReadExactly returns the next n bytes of input.
// If the input ends first, the bytes that did arrive are returned with a truncation error.
func (c *Conn) ReadExactly(ctx context.Context, n int64) ([]byte, error) {
	buf := make([]byte, n)
	var got int
	err := c.withContext(ctx, func() error {
		got = copy(buf, c.pending)
		c.pending = c.pending[got:]

		m, err := io.ReadFull(c.conn, buf[got:])
		got += m
		switch {
		case err == nil:
			return nil
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			return perrors.Errorf(perrors.KindTruncatedBody, "read body", "connection closed after %d of %d bytes", got, n)
		default:
			return perrors.New(perrors.KindRead, "read body", err)
		}
	})
	return buf[:got], err
}

// Close closes the underlying connection. Buffered, unflushed output is dropped.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// withContext makes blocking I/O in fn give up when ctx is done, by expiring the connection's deadline.
func (c *Conn) withContext(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	err := fn()
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ctx.Err(), err)
	}
	return err
}
