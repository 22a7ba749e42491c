// Package queuechan implements the channel contract over a buffered Go
// channel of frames. It is the simplest transport and the reference for the
// contract's semantics.
//
// Writes enqueue an owned copy of the frame and block while the queue is
// full. Close enqueues the close-notification sentinel. Unbuffered channels
// are rejected because a synchronous handoff cannot carry the sentinel
// without a reader waiting on the other side.
package queuechan
