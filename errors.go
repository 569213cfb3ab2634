package colframe

import (
	"errors"
	"fmt"

	"github.com/hupe1980/colframe/arraygroup"
	"github.com/hupe1980/colframe/blobstore"
	"github.com/hupe1980/colframe/blockmanager"
	"github.com/hupe1980/colframe/table"
)

var (
	// ErrNotFound is returned when an array group or segment file does not exist.
	ErrNotFound = errors.New("not found")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("engine closed")
	// ErrRowCountMismatch is returned when combined columns or tables differ in rows.
	ErrRowCountMismatch = errors.New("row count mismatch")
)

// ErrCorruptSegment indicates a segment whose index or blocks could not be
// decoded.
//
// The original underlying error can be accessed via errors.Unwrap.
type ErrCorruptSegment struct {
	Addr  string
	cause error
}

func (e *ErrCorruptSegment) Error() string {
	if e.Addr == "" {
		return fmt.Sprintf("corrupt segment: %v", e.cause)
	}
	return fmt.Sprintf("corrupt segment at %s: %v", e.Addr, e.cause)
}

func (e *ErrCorruptSegment) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Not found unification.
	if errors.Is(err, blockmanager.ErrSegmentNotFound) ||
		errors.Is(err, arraygroup.ErrNotFound) ||
		errors.Is(err, blobstore.ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	if errors.Is(err, blockmanager.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	if errors.Is(err, table.ErrRowCountMismatch) || errors.Is(err, arraygroup.ErrRowCountMismatch) {
		return fmt.Errorf("%w: %w", ErrRowCountMismatch, err)
	}

	// Data-layer corruption.
	if errors.Is(err, blockmanager.ErrIndexLoad) ||
		errors.Is(err, blockmanager.ErrDecode) ||
		errors.Is(err, arraygroup.ErrInvalidIndex) {
		var be *blockmanager.BlockError
		if errors.As(err, &be) {
			return &ErrCorruptSegment{Addr: be.Addr.String(), cause: err}
		}
		return &ErrCorruptSegment{cause: err}
	}

	return err
}
