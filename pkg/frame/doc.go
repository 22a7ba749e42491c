// Package frame defines the wire-level unit exchanged over msgchan channels.
//
// A [Frame] carries a numeric type, a numeric sequence and an opaque payload.
// Frames come in three flavours that share the one value type:
//
//   - Owned frames, built with [New] or [Frame.Clone], hold their own copy of
//     the payload and stay valid forever.
//   - Buffer-view frames are returned by readers that avoid copying. Their
//     payload aliases a buffer owned by the reader and is only valid until the
//     next HasNext or ReadMessage call on that reader. Call [Frame.Clone] to
//     retain one.
//   - [Mutable] frames are reused across writes or reads to keep hot paths
//     free of allocations.
//
// # Reserved values
//
// The pair ([CloseNotifyType], [CloseNotifySequence]) denotes a close
// notification rather than user data. Writers reject user frames with
// [CloseNotifyType].
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
package frame
