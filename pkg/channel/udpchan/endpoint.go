package udpchan

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/log"
)

const (
	// pollInterval bounds each blocking wait for a hello so ctx is honored.
	pollInterval = 100 * time.Millisecond

	readBufferSize = 4 << 20
)

// endpoint is the socket and handshake logic shared by Writer and Reader.
type endpoint struct {
	cfg    Config
	logger log.Logger

	conn atomic.Pointer[net.UDPConn]
	// peer is the client address learned by a server endpoint.
	peer *net.UDPAddr

	rbuf []byte
	wbuf []byte
}

func newEndpoint(cfg Config, logger log.Logger) *endpoint {
	return &endpoint{
		cfg:    cfg,
		logger: logger,
		// One spare byte so an oversized datagram is detected, not truncated.
		rbuf: make([]byte, MessagePos+cfg.MaxMessageSize+1),
		wbuf: make([]byte, MessagePos+cfg.MaxMessageSize),
	}
}

func (e *endpoint) open(ctx context.Context) error {
	var err error
	if e.cfg.Role == RoleServer {
		err = e.listen(ctx)
	} else {
		err = e.dial(ctx)
	}
	if err != nil {
		if c := e.conn.Swap(nil); c != nil {
			c.Close()
		}
	}
	return err
}

func (e *endpoint) listen(ctx context.Context) error {
	laddr, err := net.ResolveUDPAddr("udp", e.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", channel.ErrConnection, e.cfg.Address, err)
	}
	conn, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return fmt.Errorf("%w: listen %s: %v", channel.ErrConnection, e.cfg.Address, err)
	}
	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		e.logger.Debug("udp read buffer not resized", log.Transport("udp"), log.Err(err))
	}
	e.conn.Store(conn)

	return e.awaitHello(ctx, conn)
}

// awaitHello blocks until a client hello arrives, answers it and records
// the client as the peer.
func (e *endpoint) awaitHello(ctx context.Context, conn *net.UDPConn) error {
	deadline := time.Now().Add(e.cfg.handshakeWindow())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		now := time.Now()
		if !now.Before(deadline) {
			if d, ok := ctx.Deadline(); ok && !now.Before(d) {
				return context.DeadlineExceeded
			}
			return fmt.Errorf("%w: no client hello on %s within %v",
				channel.ErrConnection, conn.LocalAddr(), e.cfg.handshakeWindow())
		}
		step := now.Add(pollInterval)
		if step.After(deadline) {
			step = deadline
		}
		conn.SetReadDeadline(step)

		n, from, err := conn.ReadFromUDP(e.rbuf)
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return fmt.Errorf("%w: receive on %s: %v", channel.ErrConnection, conn.LocalAddr(), err)
		}
		p, err := decodePacket(e.rbuf[:n], e.cfg.MaxMessageSize)
		if err != nil || !p.control() || p.seq != seqHello {
			e.logger.Debug("udp datagram ignored while waiting for hello",
				log.Transport("udp"), log.String("from", from.String()))
			continue
		}

		e.peer = from
		conn.SetReadDeadline(time.Time{})
		if err := e.sendControl(seqHelloAck); err != nil {
			return fmt.Errorf("%w: answer hello from %s: %v", channel.ErrConnection, from, err)
		}
		e.logger.Debug("udp client connected", log.Transport("udp"), log.Any("peer", from))
		return nil
	}
}

// dial connects to the server and repeats the hello until it is answered.
func (e *endpoint) dial(ctx context.Context) error {
	raddr, err := net.ResolveUDPAddr("udp", e.cfg.Address)
	if err != nil {
		return fmt.Errorf("%w: resolve %s: %v", channel.ErrConnection, e.cfg.Address, err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", channel.ErrConnection, e.cfg.Address, err)
	}
	if err := conn.SetReadBuffer(readBufferSize); err != nil {
		e.logger.Debug("udp read buffer not resized", log.Transport("udp"), log.Err(err))
	}
	e.conn.Store(conn)

	pause := e.cfg.connectBackoff()
	var lastErr error
	for attempt := 1; attempt <= e.cfg.ConnectAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		wait := pause.Current()
		lastErr = e.hello(conn, time.Now().Add(wait))
		if lastErr == nil {
			conn.SetReadDeadline(time.Time{})
			return nil
		}

		e.logger.Debug("udp connect attempt failed",
			log.Transport("udp"),
			log.String("address", e.cfg.Address),
			log.Int("attempt", attempt),
			log.Duration("wait", wait),
			log.Err(lastErr),
		)
		if attempt == e.cfg.ConnectAttempts {
			break
		}
		// A timed-out attempt already waited; a refused one sleeps instead.
		if isTimeout(lastErr) {
			pause.Next()
		} else if err := pause.Sleep(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %s did not answer after %d attempts: %v",
		channel.ErrConnection, e.cfg.Address, e.cfg.ConnectAttempts, lastErr)
}

// hello sends one hello and waits until deadline for the answer. A refused
// port surfaces as a read error.
func (e *endpoint) hello(conn *net.UDPConn, deadline time.Time) error {
	if err := e.sendControl(seqHello); err != nil {
		return err
	}
	conn.SetReadDeadline(deadline)
	for {
		n, err := conn.Read(e.rbuf)
		if err != nil {
			return err
		}
		p, err := decodePacket(e.rbuf[:n], e.cfg.MaxMessageSize)
		if err == nil && p.control() && p.seq == seqHelloAck {
			return nil
		}
	}
}

func (e *endpoint) sendControl(seq int32) error {
	return e.send(controlType, seq, nil)
}

// send transmits one packet to the peer.
func (e *endpoint) send(typ, seq int32, payload []byte) error {
	conn := e.conn.Load()
	if conn == nil {
		return net.ErrClosed
	}
	n := encodePacket(e.wbuf, typ, seq, payload)

	var err error
	if e.peer != nil {
		_, err = conn.WriteToUDP(e.wbuf[:n], e.peer)
	} else {
		_, err = conn.Write(e.wbuf[:n])
	}
	return err
}

// receive blocks for the next well-formed datagram. Malformed datagrams are
// dropped. Hellos are answered so a client retrying its handshake settles.
func (e *endpoint) receive() (packet, error) {
	conn := e.conn.Load()
	if conn == nil {
		return packet{}, channel.ErrClosed
	}
	for {
		n, from, err := conn.ReadFromUDP(e.rbuf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return packet{}, channel.ErrClosed
			}
			return packet{}, fmt.Errorf("%w: receive on %s: %v", channel.ErrConnection, conn.LocalAddr(), err)
		}

		p, err := decodePacket(e.rbuf[:n], e.cfg.MaxMessageSize)
		if err != nil {
			e.logger.Warn("udp datagram dropped",
				log.Transport("udp"), log.String("from", from.String()), log.Err(err))
			continue
		}
		if p.control() && p.seq == seqHello {
			if e.cfg.Role == RoleServer {
				e.peer = from
				if err := e.sendControl(seqHelloAck); err != nil {
					e.logger.Warn("udp hello answer failed", log.Transport("udp"), log.Err(err))
				}
			}
			continue
		}
		if p.control() && p.seq == seqHelloAck {
			continue
		}
		return p, nil
	}
}

func (e *endpoint) localAddr() net.Addr {
	if c := e.conn.Load(); c != nil {
		return c.LocalAddr()
	}
	return nil
}

// close closes the socket, which also ends a receive blocked in another
// goroutine.
func (e *endpoint) close() error {
	if c := e.conn.Load(); c != nil {
		return c.Close()
	}
	return nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
