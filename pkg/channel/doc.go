// Package channel defines the synchronous message channel contract shared by
// every msgchan transport.
//
// A channel is one [Writer] and one [Reader] exchanging [frame.Frame] values
// over a transport-specific resource. Implementations live in sub-packages:
//
//   - mmapchan: a fixed record in a memory-mapped file, published with a
//     lock-free transaction marker; works across processes.
//   - ringchan: a lock-free single-producer/single-consumer ring buffer.
//   - queuechan: a buffered Go channel of prebuilt frames; the reference
//     implementation of the contract.
//   - udpchan: one UDP datagram per frame with a connect handshake.
//
// # Lifecycle
//
// Endpoints start Unopened, become Open after Open, and end Closed after
// Close. A reader that observes the peer's close notification moves to
// PeerClosed and reports [ErrEndOfStream] from then on. Close is idempotent.
//
// # Errors
//
// [ErrEndOfStream] is the normal termination path. [ErrConnection],
// [ErrInvalidArgument] and [ErrProtocolViolation] are fatal to the call or
// the endpoint. No transport retries internally except the datagram connect
// loop.
//
// # Concurrency
//
// Exactly one goroutine writes and one goroutine reads per channel. Close may
// be called from another goroutine to cancel a blocked call.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package channel
