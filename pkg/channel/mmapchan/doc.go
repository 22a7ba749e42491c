// Package mmapchan implements the channel contract over a memory-mapped file
// shared by a writer and a reader, usually in different processes.
//
// The file holds exactly one frame record:
//
//	[ marker:1 ][ type:4 ][ sequence:4 ][ size:4 ][ payload:maxMessageSize ]
//
// # Transaction marker
//
// The marker byte is the only synchronization; there is no OS lock. A write
// moves it to WRITING, rewrites the fields, then publishes a committed value
// that alternates between COMMITTED_EVEN and COMMITTED_ODD. The reader only
// reads a committed value it has not consumed yet, so it never observes a
// frame whose fields come from different writes. After copying the frame the
// reader acknowledges it by setting the consumed bit on the marker; the
// writer waits for that acknowledgment before overwriting the record, which
// makes the channel lossless and FIFO. CLOSED is the close notification and
// either side may publish it.
//
// # File lifetime
//
// Whichever endpoint opens first creates and sizes the file. The writer
// removes it on Close after publishing CLOSED: the reader still mapping it
// observes the close, and a reader started for the next session finds no
// file and can wait for the next writer with [WaitForFile].
//
// Marker accesses are atomic operations on the first 32-bit word of the
// mapping, which orders the plain field stores before publication on every
// platform, in-process and across processes.
//
// # Limitations
//
// A writer that dies while the marker is WRITING leaves it there. The reader
// cannot tell this apart from a writer that has not written yet; it reports
// no new frame until a new writer opens the file, which resets the marker.
package mmapchan
