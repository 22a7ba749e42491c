package mmapchan

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/bft-labs/msgchan/pkg/channel"
)

// errUnsupported is returned by platforms without mmap support.
var errUnsupported = errors.New("mmapchan: memory-mapped files are not supported on this platform")

// region is one mapping of a channel file.
type region struct {
	path string
	file *os.File
	mem  []byte
	head *uint32
}

// openRegion creates or opens the channel file, sizes it when it is new, and
// maps it shared and writable. Both endpoints map the file independently.
func openRegion(path string, maxMessageSize int) (*region, error) {
	size := RegionSize(maxMessageSize)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", channel.ErrConnection, path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: stat %s: %v", channel.ErrConnection, path, err)
	}

	switch {
	case info.Size() == 0:
		if err := f.Truncate(int64(size)); err != nil {
			f.Close()
			return nil, fmt.Errorf("%w: resize %s: %v", channel.ErrConnection, path, err)
		}
	case info.Size() != int64(size):
		f.Close()
		return nil, fmt.Errorf("%w: %s is %d bytes, want %d for max message size %d",
			channel.ErrInvalidArgument, path, info.Size(), size, maxMessageSize)
	}

	mem, err := mmapFile(f, size)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", channel.ErrConnection, err)
	}

	return &region{
		path: path,
		file: f,
		mem:  mem,
		// mmap returns page-aligned memory, so the first word is aligned.
		head: (*uint32)(unsafe.Pointer(&mem[0])),
	}, nil
}

func (r *region) loadHead() uint32 {
	return atomic.LoadUint32(r.head)
}

func (r *region) casHead(old, next uint32) bool {
	return atomic.CompareAndSwapUint32(r.head, old, next)
}

func (r *region) marker() Marker {
	return markerOf(r.loadHead())
}

// markClosed publishes MarkerClosed unless it is already set.
func (r *region) markClosed() {
	for {
		word := r.loadHead()
		if markerOf(word) == MarkerClosed {
			return
		}
		if r.casHead(word, withMarker(word, MarkerClosed)) {
			return
		}
	}
}

// close unmaps the region and closes the file.
func (r *region) close() error {
	var errs []error
	if err := munmapFile(r.mem); err != nil {
		errs = append(errs, err)
	}
	r.mem = nil
	r.head = nil
	if err := r.file.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
