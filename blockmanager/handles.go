package blockmanager

import (
	"container/list"
	"errors"
	"log/slog"
	"sync"

	"github.com/hupe1980/colframe/blobstore"
)

// handleRef names a pooled handle. It is only valid while the slot still
// carries the same generation.
type handleRef struct {
	slot int32
	gen  uint32
}

type handleSlot struct {
	gen   uint32
	blob  blobstore.Blob // nil when the slot is free
	seg   *segmentEntry
	inUse bool
	idle  *list.Element // position in handlePool.idle while pooled
}

// handlePool bounds the live blobs across all segments.
//
// Each segment keeps a LIFO stack of refs to its pooled handles
// (segmentEntry.handles, guarded by handlePool.mu). The pool keeps a global
// recency list of idle slots; under pressure the least recently pooled idle
// slot is closed and its generation bumped, which turns every outstanding
// ref to it stale.
type handlePool struct {
	limit  int
	open   func(seg *segmentEntry) (blobstore.Blob, error)
	logger *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	slots   []handleSlot
	free    []int32
	idle    *list.List // of int32 slot; front is most recently pooled
	live    int
	maxLive int
	closed  bool

	opens     int64
	evictions int64
	stale     int64
}

func newHandlePool(limit int, open func(*segmentEntry) (blobstore.Blob, error), logger *slog.Logger) *handlePool {
	if limit <= 0 {
		limit = DefaultMaxOpenHandles
	}
	p := &handlePool{
		limit:  limit,
		open:   open,
		logger: logger,
		idle:   list.New(),
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// acquire checks out a handle for seg, reusing one of its pooled handles when
// still live, otherwise opening a new one. It blocks while every live handle
// is checked out.
func (p *handlePool) acquire(seg *segmentEntry) (handleRef, blobstore.Blob, error) {
	p.mu.Lock()

	var victim blobstore.Blob
	var victimSeg *segmentEntry
	for {
		if p.closed {
			p.mu.Unlock()
			return handleRef{}, nil, ErrClosed
		}
		if ref, b, ok := p.reuseLocked(seg); ok {
			p.mu.Unlock()
			return ref, b, nil
		}
		if p.live < p.limit {
			break
		}
		if el := p.idle.Back(); el != nil {
			slot := el.Value.(int32)
			victimSeg = p.slots[slot].seg
			victim = p.releaseSlotLocked(slot)
			p.evictions++
			break
		}
		p.cond.Wait()
	}
	p.live++
	p.maxLive = max(p.maxLive, p.live)
	p.opens++
	p.mu.Unlock()

	if victim != nil {
		if err := victim.Close(); err != nil && p.logger != nil {
			p.logger.Warn("close evicted handle", "path", victimSeg.path, "error", err)
		}
		if p.logger != nil {
			p.logger.Debug("handle evicted", "path", victimSeg.path, "for", seg.path)
		}
	}

	b, err := p.open(seg)

	p.mu.Lock()
	defer p.mu.Unlock()
	if err != nil {
		p.live--
		p.cond.Signal()
		return handleRef{}, nil, err
	}
	if p.closed {
		p.live--
		_ = b.Close()
		return handleRef{}, nil, ErrClosed
	}

	slot := p.allocSlotLocked()
	s := &p.slots[slot]
	s.blob = b
	s.seg = seg
	s.inUse = true
	return handleRef{slot: slot, gen: s.gen}, b, nil
}

// reuseLocked pops seg's pooled refs until a live one is found.
func (p *handlePool) reuseLocked(seg *segmentEntry) (handleRef, blobstore.Blob, bool) {
	for n := len(seg.handles); n > 0; n = len(seg.handles) {
		ref := seg.handles[n-1]
		seg.handles = seg.handles[:n-1]

		s := &p.slots[ref.slot]
		if s.gen != ref.gen || s.blob == nil || s.seg != seg || s.inUse {
			// Reclaimed under pressure since it was pooled.
			p.stale++
			continue
		}
		p.idle.Remove(s.idle)
		s.idle = nil
		s.inUse = true
		return ref, s.blob, true
	}
	return handleRef{}, nil, false
}

// release returns a checked-out handle. Unhealthy handles (failed reads) and
// handles of purged segments are closed instead of pooled.
func (p *handlePool) release(seg *segmentEntry, ref handleRef, healthy bool) {
	p.mu.Lock()
	s := &p.slots[ref.slot]
	if s.gen != ref.gen || !s.inUse {
		p.mu.Unlock()
		return
	}
	if !healthy || p.closed || seg.purged {
		// Closed before the slot is handed out again.
		_ = p.releaseSlotLocked(ref.slot).Close()
		p.cond.Signal()
		p.mu.Unlock()
		return
	}

	s.inUse = false
	s.idle = p.idle.PushFront(ref.slot)
	seg.handles = append(seg.handles, ref)
	p.cond.Signal()
	p.mu.Unlock()
}

// demote makes seg's pooled handles the first eviction candidates.
func (p *handlePool) demote(seg *segmentEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ref := range seg.handles {
		s := &p.slots[ref.slot]
		if s.gen == ref.gen && s.idle != nil {
			p.idle.MoveToBack(s.idle)
		}
	}
}

// drop closes seg's pooled handles and closes its checked-out ones on release.
func (p *handlePool) drop(seg *segmentEntry) error {
	p.mu.Lock()
	seg.purged = true
	var blobs []blobstore.Blob
	for _, ref := range seg.handles {
		s := &p.slots[ref.slot]
		if s.gen == ref.gen && s.blob != nil && !s.inUse {
			blobs = append(blobs, p.releaseSlotLocked(ref.slot))
		}
	}
	seg.handles = nil
	err := closeAll(blobs)
	p.cond.Broadcast()
	p.mu.Unlock()
	return err
}

func (p *handlePool) close() error {
	p.mu.Lock()
	p.closed = true
	var blobs []blobstore.Blob
	for i := range p.slots {
		if s := &p.slots[i]; s.blob != nil && !s.inUse {
			blobs = append(blobs, p.releaseSlotLocked(int32(i)))
		}
	}
	err := closeAll(blobs)
	p.cond.Broadcast()
	p.mu.Unlock()
	return err
}

type handleStats struct {
	live, maxLive           int
	opens, evictions, stale int64
}

func (p *handlePool) stats() handleStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return handleStats{
		live:      p.live,
		maxLive:   p.maxLive,
		opens:     p.opens,
		evictions: p.evictions,
		stale:     p.stale,
	}
}

func (p *handlePool) allocSlotLocked() int32 {
	if n := len(p.free); n > 0 {
		slot := p.free[n-1]
		p.free = p.free[:n-1]
		return slot
	}
	p.slots = append(p.slots, handleSlot{})
	return int32(len(p.slots) - 1)
}

// releaseSlotLocked frees a slot, bumps its generation and returns the blob
// for the caller to close outside the lock.
func (p *handlePool) releaseSlotLocked(slot int32) blobstore.Blob {
	s := &p.slots[slot]
	if s.idle != nil {
		p.idle.Remove(s.idle)
		s.idle = nil
	}
	b := s.blob
	s.blob = nil
	s.seg = nil
	s.inUse = false
	s.gen++
	p.free = append(p.free, slot)
	p.live--
	return b
}

func closeAll(blobs []blobstore.Blob) error {
	var errs []error
	for _, b := range blobs {
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
