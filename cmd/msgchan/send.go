package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bft-labs/msgchan"
	"github.com/bft-labs/msgchan/pkg/channel"
)

func newSendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Write --count frames to a cross-process channel (mmap or udp)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.send()
		},
	}
}

func (a *app) send() error {
	libCfg, err := a.cfg.ChannelConfig()
	if err != nil {
		return err
	}
	w, err := msgchan.NewWriter(libCfg, channel.WithLogger(a.logger))
	if err != nil {
		return err
	}
	stopMetrics := a.serveMetrics()
	defer stopMetrics()

	ctx, cancel := a.signalContext()
	defer cancel()

	if err := w.Open(ctx); err != nil {
		return fmt.Errorf("open writer: %w", err)
	}
	go closeOnDone(ctx, w)

	ev := a.log().Info().Str("transport", string(libCfg.Transport)).Int("count", a.cfg.Count)
	if s, ok := w.(channel.MaxMessageSizer); ok {
		ev = ev.Int("max_message_size", s.MaxMessageSize())
	}
	ev.Msg("writer open")

	payload := fillPayload(a.cfg.PayloadSize)
	start := time.Now()
	sent := 0
	for ; sent < a.cfg.Count; sent++ {
		if err := w.Write(int32(a.cfg.MessageType), int32(sent), payload); err != nil {
			if errors.Is(err, channel.ErrEndOfStream) {
				a.log().Info().Int("sent", sent).Msg("reader closed the channel")
				break
			}
			if ctx.Err() != nil {
				break
			}
			w.Close()
			return fmt.Errorf("write frame %d: %w", sent, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	report(a.log().Info(), "sent", sent, a.cfg.PayloadSize, time.Since(start))
	return nil
}

// closeOnDone closes c when ctx ends, releasing a blocked Write or HasNext.
func closeOnDone(ctx context.Context, c interface{ Close() error }) {
	<-ctx.Done()
	c.Close()
}

func fillPayload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i)
	}
	return p
}
