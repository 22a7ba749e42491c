// Package msgchan builds message channels from a single configuration.
//
// The channel contract lives in pkg/channel and each transport in its own
// sub-package; this package picks the transport named by Config.Transport
// and wires the shared options.
//
// Example usage:
//
//	cfg := msgchan.DefaultConfig()
//	cfg.Transport = msgchan.TransportMmap
//	cfg.Path = "/dev/shm/orders.chan"
//	w, err := msgchan.NewWriter(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := w.Open(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Close()
//	err = w.Write(1, 1, payload)
package msgchan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/channel/mmapchan"
	"github.com/bft-labs/msgchan/pkg/channel/queuechan"
	"github.com/bft-labs/msgchan/pkg/channel/ringchan"
	"github.com/bft-labs/msgchan/pkg/channel/udpchan"
	"github.com/bft-labs/msgchan/pkg/metrics"
)

// Transport names a channel implementation.
type Transport string

const (
	TransportMmap  Transport = "mmap"
	TransportRing  Transport = "ring"
	TransportQueue Transport = "queue"
	TransportUDP   Transport = "udp"
)

// Transports lists every supported transport.
var Transports = []Transport{TransportMmap, TransportRing, TransportQueue, TransportUDP}

// ParseTransport parses a transport name.
func ParseTransport(s string) (Transport, error) {
	t := Transport(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Transports {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown transport %q", channel.ErrInvalidArgument, s)
}

// CrossProcess reports whether the two ends may live in different processes.
func (t Transport) CrossProcess() bool {
	return t == TransportMmap || t == TransportUDP
}

// Config selects and configures a transport.
type Config struct {
	Transport Transport

	// MaxMessageSize is the payload limit of every transport.
	MaxMessageSize int

	// Path is the channel file of the mmap transport.
	Path string

	// Address, Role and the connect policy configure udp.
	Address         string
	Role            udpchan.Role
	ConnectAttempts int
	ConnectDelay    time.Duration
	MaxConnectDelay time.Duration

	// RingCapacity is the slot count of the ring transport, a power of two.
	RingCapacity int
	// QueueCapacity is the buffer size of the queue transport.
	QueueCapacity int

	CloseTimeout time.Duration

	// Metrics wraps the endpoints with Prometheus instrumentation.
	Metrics bool
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	udp := udpchan.DefaultConfig()
	return Config{
		Transport:       TransportQueue,
		MaxMessageSize:  1024,
		Address:         udp.Address,
		Role:            udp.Role,
		ConnectAttempts: udp.ConnectAttempts,
		ConnectDelay:    udp.ConnectDelay,
		RingCapacity:    1024,
		QueueCapacity:   1024,
		CloseTimeout:    channel.DefaultCloseTimeout,
	}
}

// Validate checks the settings the selected transport uses.
func (c Config) Validate() error {
	if _, err := ParseTransport(string(c.Transport)); err != nil {
		return err
	}
	if err := channel.ValidateMaxMessageSize(c.MaxMessageSize); err != nil {
		return err
	}
	switch c.Transport {
	case TransportMmap:
		if c.Path == "" {
			return fmt.Errorf("%w: mmap transport needs a path", channel.ErrInvalidArgument)
		}
	case TransportUDP:
		return c.udpConfig().Validate()
	case TransportRing:
		if c.RingCapacity <= 0 || c.RingCapacity&(c.RingCapacity-1) != 0 {
			return fmt.Errorf("%w: ring capacity %d is not a positive power of two", channel.ErrInvalidArgument, c.RingCapacity)
		}
	case TransportQueue:
		if c.QueueCapacity <= 0 {
			return fmt.Errorf("%w: queue capacity %d must be positive", channel.ErrInvalidArgument, c.QueueCapacity)
		}
	}
	return nil
}

func (c Config) udpConfig() udpchan.Config {
	return udpchan.Config{
		Address:         c.Address,
		Role:            c.Role,
		MaxMessageSize:  c.MaxMessageSize,
		ConnectAttempts: c.ConnectAttempts,
		ConnectDelay:    c.ConnectDelay,
		MaxConnectDelay: c.MaxConnectDelay,
	}
}

func (c Config) options(opts []channel.Option) []channel.Option {
	return append([]channel.Option{channel.WithCloseTimeout(c.CloseTimeout)}, opts...)
}

// NewWriter returns an unopened writer for a cross-process transport. The
// in-process ring and queue transports need both ends at once; use NewPipe.
func NewWriter(cfg Config, opts ...channel.Option) (channel.Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Transport.CrossProcess() {
		return nil, errInProcess(cfg.Transport)
	}
	opts = cfg.options(opts)

	var (
		w   channel.Writer
		err error
	)
	switch cfg.Transport {
	case TransportMmap:
		w, err = mmapchan.NewWriter(cfg.Path, cfg.MaxMessageSize, opts...)
	case TransportUDP:
		w, err = udpchan.NewWriter(cfg.udpConfig(), opts...)
	}
	if err != nil {
		return nil, err
	}
	return cfg.instrumentWriter(w), nil
}

func errInProcess(t Transport) error {
	return fmt.Errorf("%w: %s is an in-process transport, use NewPipe", channel.ErrInvalidArgument, t)
}

// NewReader returns an unopened reader for a cross-process transport.
func NewReader(cfg Config, opts ...channel.Option) (channel.Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Transport.CrossProcess() {
		return nil, errInProcess(cfg.Transport)
	}
	opts = cfg.options(opts)

	var (
		r   channel.Reader
		err error
	)
	switch cfg.Transport {
	case TransportMmap:
		r, err = mmapchan.NewReader(cfg.Path, cfg.MaxMessageSize, opts...)
	case TransportUDP:
		r, err = udpchan.NewReader(cfg.udpConfig(), opts...)
	}
	if err != nil {
		return nil, err
	}
	return cfg.instrumentReader(r), nil
}

// NewPipe returns both unopened ends of one channel. For udp the reader
// takes the server role and the writer the client role, whatever cfg.Role
// says; open them concurrently since the server's Open waits for the
// client's hello.
func NewPipe(cfg Config, opts ...channel.Option) (channel.Writer, channel.Reader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	opts = cfg.options(opts)

	var (
		w channel.Writer
		r channel.Reader
	)
	switch cfg.Transport {
	case TransportRing:
		ring, err := ringchan.NewRing(cfg.RingCapacity, cfg.MaxMessageSize)
		if err != nil {
			return nil, nil, err
		}
		w, r = ringchan.NewWriter(ring, opts...), ringchan.NewReader(ring, opts...)

	case TransportQueue:
		q, err := queuechan.New(cfg.QueueCapacity)
		if err != nil {
			return nil, nil, err
		}
		qopts := append(opts, channel.WithMaxMessageSize(cfg.MaxMessageSize))
		qw, err := queuechan.NewWriter(q, qopts...)
		if err != nil {
			return nil, nil, err
		}
		qr, err := queuechan.NewReader(q, qopts...)
		if err != nil {
			return nil, nil, err
		}
		w, r = qw, qr

	case TransportMmap:
		mw, err := mmapchan.NewWriter(cfg.Path, cfg.MaxMessageSize, opts...)
		if err != nil {
			return nil, nil, err
		}
		mr, err := mmapchan.NewReader(cfg.Path, cfg.MaxMessageSize, opts...)
		if err != nil {
			return nil, nil, err
		}
		w, r = mw, mr

	case TransportUDP:
		server, client := cfg.udpConfig(), cfg.udpConfig()
		server.Role, client.Role = udpchan.RoleServer, udpchan.RoleClient
		uw, err := udpchan.NewWriter(client, opts...)
		if err != nil {
			return nil, nil, err
		}
		ur, err := udpchan.NewReader(server, opts...)
		if err != nil {
			return nil, nil, err
		}
		w, r = uw, ur
	}
	return cfg.instrumentWriter(w), cfg.instrumentReader(r), nil
}

// OpenPipe opens both ends of a pipe concurrently. If either fails, both
// are closed and the first error is returned.
func OpenPipe(ctx context.Context, w channel.Writer, r channel.Reader) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return r.Open(gctx) })
	g.Go(func() error { return w.Open(gctx) })
	if err := g.Wait(); err != nil {
		w.Close()
		r.Close()
		return err
	}
	return nil
}

func (c Config) instrumentWriter(w channel.Writer) channel.Writer {
	if !c.Metrics {
		return w
	}
	return metrics.InstrumentWriter(w, string(c.Transport))
}

func (c Config) instrumentReader(r channel.Reader) channel.Reader {
	if !c.Metrics {
		return r
	}
	return metrics.InstrumentReader(r, string(c.Transport))
}
