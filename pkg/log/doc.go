// Package log provides the logging abstraction used by msgchan transports.
//
// Transports log through the [Logger] interface so that embedding
// applications can plug in their own logging stack. A zerolog adapter and a
// no-op logger (the default) are provided.
//
// # Usage
//
//	logger := log.NewZerologAdapter("debug")
//	w, err := mmapchan.NewWriter(path, 4096, channel.WithLogger(logger))
//
// # Levels
//
// Transports log opens and closes at debug, a peer's orderly close at info,
// swallowed close-notification failures at warn, and protocol violations at
// error. End of stream is never logged as an error.
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// See version.go for version constants that can be used programmatically.
package log
