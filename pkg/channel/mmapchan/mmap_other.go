//go:build !(linux || darwin || freebsd)

package mmapchan

import "os"

func mmapFile(f *os.File, size int) ([]byte, error) {
	return nil, errUnsupported
}

func munmapFile(mem []byte) error {
	return nil
}
