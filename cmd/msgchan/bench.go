package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/msgchan"
	"github.com/bft-labs/msgchan/pkg/channel"
)

func newBenchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run a writer and a reader in this process and report throughput",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.bench()
		},
	}
}

func (a *app) bench() error {
	libCfg, err := a.cfg.ChannelConfig()
	if err != nil {
		return err
	}
	w, r, err := msgchan.NewPipe(libCfg, channel.WithLogger(a.logger))
	if err != nil {
		return err
	}
	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	ctx, cancel := a.signalContext()
	defer cancel()

	if err := msgchan.OpenPipe(ctx, w, r); err != nil {
		return fmt.Errorf("open pipe: %w", err)
	}
	payload := fillPayload(a.cfg.PayloadSize)
	typ := int32(a.cfg.MessageType)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	go closeOnDone(gctx, w)
	go closeOnDone(gctx, r)

	g.Go(func() error {
		for i := 0; i < a.cfg.Count; i++ {
			if err := w.Write(typ, int32(i), payload); err != nil {
				return fmt.Errorf("write frame %d: %w", i, err)
			}
		}
		return w.Close()
	})

	var received, reordered int
	g.Go(func() error {
		defer r.Close()
		next := int32(0)
		for {
			f, err := channel.ReadNext(gctx, r)
			if errors.Is(err, channel.ErrEndOfStream) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read frame %d: %w", received, err)
			}
			// Only udp may drop or reorder.
			if f.Sequence != next {
				reordered++
			}
			next = f.Sequence + 1
			received++
		}
	})

	err = g.Wait()
	elapsed := time.Since(start)
	if ctx.Err() != nil {
		return nil
	}
	if err != nil {
		return err
	}
	report(a.log().Info().
		Str("transport", string(libCfg.Transport)).
		Int("lost", a.cfg.Count-received).
		Int("out_of_sequence", reordered),
		"bench", received, a.cfg.PayloadSize, elapsed)
	return nil
}

// report logs a frame count with its rate.
func report(ev *zerolog.Event, what string, frames, payloadSize int, elapsed time.Duration) {
	secs := elapsed.Seconds()
	if secs <= 0 {
		secs = 1e-9
	}
	ev.Int("frames", frames).
		Int("payload_size", payloadSize).
		Dur("elapsed", elapsed).
		Float64("frames_per_sec", float64(frames)/secs).
		Float64("mib_per_sec", float64(frames*payloadSize)/secs/(1<<20)).
		Msg(what)
}
