package metrics

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/msgchan/pkg/channel"
)

const (
	DirectionWrite = "write"
	DirectionRead  = "read"
)

var (
	registerOnce sync.Once

	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgchan",
			Subsystem: "channel",
			Name:      "frames_total",
			Help:      "Frames written or read.",
		},
		[]string{"transport", "direction"},
	)
	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgchan",
			Subsystem: "channel",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes written or read.",
		},
		[]string{"transport", "direction"},
	)
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgchan",
			Subsystem: "channel",
			Name:      "errors_total",
			Help:      "Failed channel operations by error kind.",
		},
		[]string{"transport", "direction", "kind"},
	)
	endOfStreamTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "msgchan",
			Subsystem: "channel",
			Name:      "end_of_stream_total",
			Help:      "Close notifications observed.",
		},
		[]string{"transport", "direction"},
	)
	writeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "msgchan",
			Subsystem: "channel",
			Name:      "write_duration_seconds",
			Help:      "Write latency in seconds, including time blocked on backpressure.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
		[]string{"transport"},
	)
)

// RegisterMetrics registers the collectors with the default registry. It is
// safe to call more than once.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(framesTotal, bytesTotal, errorsTotal, endOfStreamTotal, writeDuration)
	})
}

// RecordWrite records one Write call.
func RecordWrite(transport string, n int, duration time.Duration, err error) {
	RegisterMetrics()
	writeDuration.WithLabelValues(transport).Observe(duration.Seconds())
	record(transport, DirectionWrite, n, err)
}

// RecordRead records one ReadMessage call.
func RecordRead(transport string, n int, err error) {
	RegisterMetrics()
	record(transport, DirectionRead, n, err)
}

func record(transport, direction string, n int, err error) {
	switch {
	case err == nil:
		framesTotal.WithLabelValues(transport, direction).Inc()
		bytesTotal.WithLabelValues(transport, direction).Add(float64(n))
	case errors.Is(err, channel.ErrEndOfStream):
		endOfStreamTotal.WithLabelValues(transport, direction).Inc()
	case errors.Is(err, channel.ErrNoMessage):
	default:
		errorsTotal.WithLabelValues(transport, direction, ErrorKind(err)).Inc()
	}
}

// ErrorKind maps an error to its metrics label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, channel.ErrEndOfStream):
		return "end_of_stream"
	case errors.Is(err, channel.ErrConnection):
		return "connection"
	case errors.Is(err, channel.ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, channel.ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, channel.ErrNotOpen):
		return "not_open"
	case errors.Is(err, channel.ErrAlreadyOpen):
		return "already_open"
	case errors.Is(err, channel.ErrClosed):
		return "closed"
	case errors.Is(err, channel.ErrNoMessage):
		return "no_message"
	default:
		return "other"
	}
}
