package channel

import (
	"context"

	"github.com/bft-labs/msgchan/internal/backoff"
	"github.com/bft-labs/msgchan/pkg/frame"
)

// ReadNext waits for the next frame by polling r.HasNext, pacing the loop
// with a spin/yield/sleep idle strategy. It returns ErrEndOfStream once the
// peer closed and ctx.Err() when ctx ends first. For the datagram transport
// HasNext itself blocks and the context is only checked between receives.
func ReadNext(ctx context.Context, r Reader) (frame.Frame, error) {
	idler := backoff.NewIdler()
	for {
		ok, err := r.HasNext()
		if err != nil {
			return frame.Frame{}, err
		}
		if ok {
			return r.ReadMessage()
		}
		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}
		idler.Idle()
	}
}
