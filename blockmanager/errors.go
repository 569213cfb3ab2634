package blockmanager

import (
	"errors"
	"fmt"
)

var (
	// ErrSegmentNotFound is returned when a segment file does not exist.
	ErrSegmentNotFound = errors.New("blockmanager: segment not found")
	// ErrIndexLoad is returned when a segment's footer or index cannot be read.
	ErrIndexLoad = errors.New("blockmanager: index load failed")
	// ErrOutOfRange is returned for unknown segments, columns or blocks.
	ErrOutOfRange = errors.New("blockmanager: address out of range")
	// ErrDecode is returned when a block cannot be decompressed or decoded.
	ErrDecode = errors.New("blockmanager: block decode failed")
	// ErrShortRead is returned when fewer bytes than the block size were read.
	ErrShortRead = errors.New("blockmanager: short read")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("blockmanager: closed")
)

// BlockError describes a failed block read.
//
// The underlying error can be accessed via errors.Unwrap.
type BlockError struct {
	Addr  BlockAddress
	Op    string
	cause error
}

func (e *BlockError) Error() string {
	return fmt.Sprintf("blockmanager: %s block %s: %v", e.Op, e.Addr, e.cause)
}

func (e *BlockError) Unwrap() error { return e.cause }

func blockError(addr BlockAddress, op string, err error) error {
	var be *BlockError
	if errors.As(err, &be) {
		return err
	}
	return &BlockError{Addr: addr, Op: op, cause: err}
}
