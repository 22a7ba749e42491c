package udpchan

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/frame"
	"github.com/bft-labs/msgchan/pkg/log"
)

// Reader receives one frame per datagram. HasNext and ReadMessage block in
// the receive; Close from another goroutine ends it.
type Reader struct {
	cfg    Config
	logger log.Logger
	lc     channel.Lifecycle

	mu      sync.Mutex
	ep      *endpoint
	pending *packet
}

// NewReader validates cfg and returns an unopened reader.
func NewReader(cfg Config, opts ...channel.Option) (*Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := channel.ApplyOptions(opts...)
	return &Reader{
		cfg:    cfg,
		logger: o.Logger,
		ep:     newEndpoint(cfg, o.Logger),
	}, nil
}

// MaxMessageSize returns the payload limit.
func (r *Reader) MaxMessageSize() int { return r.cfg.MaxMessageSize }

// LocalAddr returns the bound address once open.
func (r *Reader) LocalAddr() net.Addr { return r.ep.localAddr() }

// Open binds or dials per the configured role and completes the handshake.
func (r *Reader) Open(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lc.State() != channel.StateUnopened {
		return r.lc.Open()
	}
	if err := r.ep.open(ctx); err != nil {
		r.logger.Error("udp reader open failed",
			log.Transport("udp"), log.String("address", r.cfg.Address), log.String("role", r.cfg.Role.String()), log.Err(err))
		return err
	}
	if err := r.lc.Open(); err != nil {
		r.ep.close()
		return err
	}

	r.logger.Debug("udp reader opened",
		log.Transport("udp"),
		log.String("address", r.cfg.Address),
		log.String("role", r.cfg.Role.String()),
	)
	return nil
}

// HasNext blocks for one datagram and holds it for ReadMessage. The receive
// is the availability signal.
func (r *Reader) HasNext() (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return false, err
	}
	if err := r.fill(); err != nil {
		return false, err
	}
	return true, nil
}

// ReadMessage returns the held datagram or receives the next one. The
// payload aliases the receive buffer until the next call.
func (r *Reader) ReadMessage() (frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.lc.Check(); err != nil {
		return frame.Frame{}, err
	}
	if err := r.fill(); err != nil {
		return frame.Frame{}, err
	}
	p := r.pending
	r.pending = nil
	return frame.Frame{Type: p.typ, Sequence: p.seq, Payload: p.payload}, nil
}

// fill makes sure a data packet is pending.
func (r *Reader) fill() error {
	if r.pending != nil {
		return nil
	}
	p, err := r.ep.receive()
	if err != nil {
		if r.lc.State() == channel.StateClosed {
			return channel.ErrClosed
		}
		return err
	}
	if p.control() && p.seq == seqClose {
		if r.lc.MarkPeerClosed() {
			r.logger.Info("udp writer closed channel", log.Transport("udp"), log.String("address", r.cfg.Address))
		}
		return fmt.Errorf("%w: udp writer closed", channel.ErrEndOfStream)
	}
	r.pending = &p
	return nil
}

// Close closes the socket, ending a blocked receive with ErrClosed.
func (r *Reader) Close() error {
	if !r.lc.BeginClose() {
		return nil
	}
	// Not under mu: a blocked receive holds it until the socket closes.
	err := r.ep.close()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = nil

	r.logger.Debug("udp reader closed", log.Transport("udp"), log.String("address", r.cfg.Address))
	return err
}

var _ channel.Reader = (*Reader)(nil)
