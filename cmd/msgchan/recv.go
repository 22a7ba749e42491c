package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/msgchan"
	"github.com/bft-labs/msgchan/pkg/channel"
	"github.com/bft-labs/msgchan/pkg/channel/mmapchan"
)

func newRecvCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recv",
		Short: "Read frames from a cross-process channel (mmap or udp) until the writer closes it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.recv()
		},
	}
}

func (a *app) recv() error {
	libCfg, err := a.cfg.ChannelConfig()
	if err != nil {
		return err
	}
	r, err := msgchan.NewReader(libCfg, channel.WithLogger(a.logger))
	if err != nil {
		return err
	}
	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	ctx, cancel := a.signalContext()
	defer cancel()

	if libCfg.Transport == msgchan.TransportMmap {
		if err := a.waitForWriter(ctx, libCfg.Path); err != nil {
			return err
		}
	}

	if err := r.Open(ctx); err != nil {
		return fmt.Errorf("open reader: %w", err)
	}
	go closeOnDone(ctx, r)

	var (
		received int
		bytes    int
		start    = time.Now()
	)
	for {
		f, err := channel.ReadNext(ctx, r)
		if errors.Is(err, channel.ErrEndOfStream) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			r.Close()
			return fmt.Errorf("read frame %d: %w", received, err)
		}
		if received == 0 {
			start = time.Now()
		}
		received++
		bytes += f.Len()
		a.log().Debug().Int32("type", f.Type).Int32("seq", f.Sequence).Int("len", f.Len()).Msg("frame")
	}

	if err := r.Close(); err != nil {
		return fmt.Errorf("close reader: %w", err)
	}
	avg := 0
	if received > 0 {
		avg = bytes / received
	}
	report(a.log().Info(), "received", received, avg, time.Since(start))
	return nil
}

func (a *app) waitForWriter(ctx context.Context, path string) error {
	if a.cfg.WaitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.WaitTimeout)
		defer cancel()
	}
	if err := mmapchan.WaitForFile(ctx, path); err != nil {
		return fmt.Errorf("wait for %s: %w", path, err)
	}
	return nil
}
