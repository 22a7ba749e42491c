package udpchan

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/log"
)

// Writer sends one datagram per frame.
type Writer struct {
	cfg    Config
	logger log.Logger
	lc     channel.Lifecycle

	mu     sync.Mutex
	ep     *endpoint
	opened bool
}

// NewWriter validates cfg and returns an unopened writer.
func NewWriter(cfg Config, opts ...channel.Option) (*Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := channel.ApplyOptions(opts...)
	return &Writer{
		cfg:    cfg,
		logger: o.Logger,
		ep:     newEndpoint(cfg, o.Logger),
	}, nil
}

// MaxMessageSize returns the payload limit.
func (w *Writer) MaxMessageSize() int { return w.cfg.MaxMessageSize }

// LocalAddr returns the bound address once open.
func (w *Writer) LocalAddr() net.Addr { return w.ep.localAddr() }

// Open binds or dials per the configured role and completes the handshake.
func (w *Writer) Open(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.lc.State() != channel.StateUnopened {
		return w.lc.Open()
	}
	if err := w.ep.open(ctx); err != nil {
		w.logger.Error("udp writer open failed",
			log.Transport("udp"), log.String("address", w.cfg.Address), log.String("role", w.cfg.Role.String()), log.Err(err))
		return err
	}
	if err := w.lc.Open(); err != nil {
		w.ep.close()
		return err
	}
	w.opened = true

	w.logger.Debug("udp writer opened",
		log.Transport("udp"),
		log.String("address", w.cfg.Address),
		log.String("role", w.cfg.Role.String()),
		log.Int("max_message_size", w.cfg.MaxMessageSize),
	)
	return nil
}

// Write sends exactly one datagram. A server-role writer first answers any
// hello a client repeated after losing the ack.
func (w *Writer) Write(typ, seq int32, payload []byte) error {
	if err := channel.ValidateWrite(typ, payload, w.cfg.MaxMessageSize); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.lc.Check(); err != nil {
		return err
	}
	if w.cfg.Role == RoleServer {
		w.ep.drainHellos()
	}
	if err := w.ep.send(typ, seq, payload); err != nil {
		return fmt.Errorf("%w: send to %s: %v", channel.ErrConnection, w.cfg.Address, err)
	}
	return nil
}

// Close sends the close packet, ignoring send failures, and closes the socket.
func (w *Writer) Close() error {
	if !w.lc.BeginClose() {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.opened {
		return nil
	}
	if err := w.ep.sendControl(seqClose); err != nil {
		w.logger.Warn("udp close notification not sent", log.Transport("udp"), log.Err(err))
	}

	w.logger.Debug("udp writer closed", log.Transport("udp"), log.String("address", w.cfg.Address))
	return w.ep.close()
}

var _ channel.Writer = (*Writer)(nil)
