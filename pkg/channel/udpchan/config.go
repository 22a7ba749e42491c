package udpchan

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/msgchan/internal/backoff"
	"github.com/bft-labs/msgchan/pkg/channel"
)

// MaxDatagramPayload is the largest frame payload a single UDP datagram can
// carry over IPv4.
const MaxDatagramPayload = 65507 - MessagePos

// Role selects whether an endpoint binds or dials.
type Role int

const (
	// RoleClient dials the address and performs the hello handshake.
	RoleClient Role = iota
	// RoleServer binds the address and waits for a client hello.
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole parses "client" or "server".
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "client":
		return RoleClient, nil
	case "server":
		return RoleServer, nil
	default:
		return 0, fmt.Errorf("%w: unknown udp role %q", channel.ErrInvalidArgument, s)
	}
}

// Config holds the datagram endpoint settings.
type Config struct {
	// Address is the server's host:port. Servers bind it; clients dial it.
	Address string
	Role    Role

	// MaxMessageSize is the largest payload, at most MaxDatagramPayload.
	MaxMessageSize int

	// ConnectAttempts bounds the client hello retries. For a server it
	// bounds, together with ConnectDelay, how long Open waits for a hello.
	ConnectAttempts int
	ConnectDelay    time.Duration

	// MaxConnectDelay, when above ConnectDelay, makes the client double its
	// wait after every attempt, with jitter, up to this cap. Zero keeps the
	// wait fixed at ConnectDelay.
	MaxConnectDelay time.Duration
}

// DefaultConfig returns a client configuration with the default retry policy.
func DefaultConfig() Config {
	return Config{
		Address:         "127.0.0.1:7400",
		Role:            RoleClient,
		MaxMessageSize:  1024,
		ConnectAttempts: 10,
		ConnectDelay:    time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("%w: udp address is required", channel.ErrInvalidArgument)
	}
	if c.Role != RoleClient && c.Role != RoleServer {
		return fmt.Errorf("%w: invalid udp role %v", channel.ErrInvalidArgument, c.Role)
	}
	if c.MaxMessageSize < 0 || c.MaxMessageSize > MaxDatagramPayload {
		return fmt.Errorf("%w: udp max message size %d out of range [0, %d]",
			channel.ErrInvalidArgument, c.MaxMessageSize, MaxDatagramPayload)
	}
	if c.ConnectAttempts < 1 {
		return fmt.Errorf("%w: connect attempts must be at least 1", channel.ErrInvalidArgument)
	}
	if c.ConnectDelay <= 0 {
		return fmt.Errorf("%w: connect delay must be positive", channel.ErrInvalidArgument)
	}
	if c.MaxConnectDelay < 0 {
		return fmt.Errorf("%w: max connect delay must not be negative", channel.ErrInvalidArgument)
	}
	return nil
}

// connectBackoff returns the pause policy between client hello attempts.
func (c Config) connectBackoff() *backoff.Backoff {
	if c.MaxConnectDelay > c.ConnectDelay {
		return backoff.New(c.ConnectDelay, c.MaxConnectDelay)
	}
	return backoff.Fixed(c.ConnectDelay)
}

// handshakeWindow is how long a server waits for the client hello: the
// client's whole retry schedule, jitter included.
func (c Config) handshakeWindow() time.Duration {
	b := c.connectBackoff()
	var total time.Duration
	for i := 0; i < c.ConnectAttempts; i++ {
		total += b.Current()
		b.Next()
	}
	if c.MaxConnectDelay > c.ConnectDelay {
		total += total / 4
	}
	return total
}
