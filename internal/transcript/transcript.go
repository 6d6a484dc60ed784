// Package transcript implements the bounded, append-only byte log kept for
// each agent (spec §4.1). It is the simplest of botty's per-agent
// subsystems: a single struct with no locking of its own (the owning
// Agent's mutex guards it), generalized from the teacher's
// ad hoc rolling buffer (internal/daemon/instance.go's logBuf, trimmed with
// "if len(inst.logBuf) > maxLogBytes") into a capacity-respecting ring with
// versioning and epoch-qualified offsets so readers can resume after a
// clear() or an eviction.
package transcript

import "time"

// Offset identifies a position in a transcript's byte stream. Epoch
// changes whenever Clear() is called; an Offset from a prior epoch is
// always reported as truncated by Since.
type Offset struct {
	Epoch uint64
	Pos   int64
}

// checkpoint records the wall-clock time at which the transcript reached a
// given absolute byte position. Kept sparse (one per Append call) since
// readers only need this to qualify "how long ago"; the invariant that
// drives GLOSSARY's "timestamped segments".
type checkpoint struct {
	at      time.Time
	pos     int64
	version uint64
}

// Transcript is a fixed-capacity ring of raw bytes plus the bookkeeping
// needed to serve Since() after eviction. Append is the only mutator other
// than Clear. No method is safe for concurrent use; callers serialize
// access (Agent does so with its per-agent mutex).
type Transcript struct {
	capacity int

	epoch   uint64
	version uint64

	buf   []byte // currently retained bytes
	start int64  // absolute offset (within the epoch) of buf[0]

	checkpoints []checkpoint
}

// New returns a Transcript that retains at most capacity bytes.
func New(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = 1
	}
	return &Transcript{capacity: capacity}
}

// Append copies data into the ring, advancing version and evicting the
// oldest bytes if capacity would be exceeded. It returns the new version
// and whether eviction occurred.
func (t *Transcript) Append(data []byte) (version uint64, evicted bool) {
	if len(data) == 0 {
		return t.version, false
	}

	t.version++
	t.buf = append(t.buf, data...)

	if len(t.buf) > t.capacity {
		drop := len(t.buf) - t.capacity
		t.buf = t.buf[drop:]
		t.start += int64(drop)
		evicted = true
	}

	end := t.start + int64(len(t.buf))
	t.checkpoints = append(t.checkpoints, checkpoint{at: time.Now(), pos: end, version: t.version})
	// Drop checkpoints that now refer to evicted bytes; keep the list small.
	for len(t.checkpoints) > 0 && t.checkpoints[0].pos < t.start {
		t.checkpoints = t.checkpoints[1:]
	}

	return t.version, evicted
}

// Len returns the number of bytes currently retained.
func (t *Transcript) Len() int { return len(t.buf) }

// Version returns the current append counter.
func (t *Transcript) Version() uint64 { return t.version }

// Bytes returns a copy of the full retained contents.
func (t *Transcript) Bytes() []byte {
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}

// CurrentOffset returns the Offset one past the last byte appended so far,
// suitable as a starting point for a subsequent Since call that should only
// see future output.
func (t *Transcript) CurrentOffset() Offset {
	return Offset{Epoch: t.epoch, Pos: t.start + int64(len(t.buf))}
}

// Since returns the bytes appended after off, plus the offset to resume
// from next time. truncated is set when off refers to bytes that have
// already been evicted or to a prior epoch (Clear having intervened); in
// that case the returned bytes are whatever remains, which may have a gap
// before it that the caller cannot recover.
func (t *Transcript) Since(off Offset) (data []byte, next Offset, truncated bool) {
	end := t.start + int64(len(t.buf))

	if off.Epoch != t.epoch {
		data = t.Bytes()
		return data, Offset{Epoch: t.epoch, Pos: end}, true
	}

	pos := off.Pos
	if pos < t.start {
		truncated = true
		pos = t.start
	}
	if pos > end {
		pos = end
	}

	rel := pos - t.start
	out := make([]byte, end-pos)
	copy(out, t.buf[rel:])
	return out, Offset{Epoch: t.epoch, Pos: end}, truncated
}

// Epoch returns the current epoch, bumped by each Clear.
func (t *Transcript) Epoch() uint64 { return t.epoch }

// OffsetAtVersion returns the Offset immediately after the Append call
// that produced version v in the given epoch, so a caller (e.g. `tail
// --since-version`) can resume a byte stream by version number instead
// of a raw Offset. ok is false when v predates what the ring still
// retains or names a past epoch; the returned Offset then falls back to
// the oldest position still available, matching Since's own truncation
// behavior.
func (t *Transcript) OffsetAtVersion(epoch, v uint64) (off Offset, ok bool) {
	if epoch != t.epoch {
		return Offset{Epoch: t.epoch, Pos: t.start}, false
	}
	for _, cp := range t.checkpoints {
		if cp.version == v {
			return Offset{Epoch: t.epoch, Pos: cp.pos}, true
		}
	}
	return Offset{Epoch: t.epoch, Pos: t.start}, false
}

// Clear drops all retained contents, starts a new epoch, and resets the
// version counter. Used by explicit resize flows that want pre-resize
// bytes (sized to the old geometry) gone from the transcript.
func (t *Transcript) Clear() {
	t.epoch++
	t.version = 0
	t.start = 0
	t.buf = nil
	t.checkpoints = nil
}

// LastAppendTime returns the timestamp of the most recent Append, or the
// zero Time if nothing has been appended since the last Clear.
func (t *Transcript) LastAppendTime() time.Time {
	if len(t.checkpoints) == 0 {
		return time.Time{}
	}
	return t.checkpoints[len(t.checkpoints)-1].at
}
