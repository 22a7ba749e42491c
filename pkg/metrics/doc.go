// Package metrics exposes Prometheus instrumentation for msgchan channels.
//
// InstrumentWriter and InstrumentReader wrap any channel.Writer or
// channel.Reader and record frames, payload bytes, errors by kind and write
// latency, labelled by transport. Collectors register with the default
// Prometheus registry on first use.
package metrics
