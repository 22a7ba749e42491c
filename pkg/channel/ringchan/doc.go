// Package ringchan implements the channel contract over a lock-free
// single-producer/single-consumer ring of preallocated frame slots.
//
// The writer claims monotonically increasing sequences and publishes each
// filled slot by advancing the cursor. The reader releases a slot by
// advancing the gating sequence, which is what lets the writer reuse it.
// A slot returned by ReadMessage is released on the reader's next HasNext or
// ReadMessage call, so the returned payload aliases ring memory until then.
// With a capacity of one the writer therefore waits for that next call before
// it can publish again.
//
// Both ends of a [Ring] live in the same process. The ring carries closed
// flags for each side so that a blocked peer is released when the other end
// closes.
package ringchan
