package queue

import "songswipe/internal/core"

// State of a Cursor.
type State int

const (
	// StateEmpty means no working set has been loaded
	StateEmpty State = iota
	// StateReady means Current returns a track
	StateReady
	// StateExhausted means the set was consumed and a rebuild is due
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateExhausted:
		return "exhausted"
	default:
		return "empty"
	}
}

// Cursor walks a working set strictly forward. It is not safe for concurrent use;
// the session controller owns it.
type Cursor struct {
	set   *core.WorkingSet
	index int
	state State
}

// Reset points the cursor at the first track of set.
func (c *Cursor) Reset(set *core.WorkingSet) {
	c.set = set
	c.index = 0
	if set.Len() == 0 {
		c.state = StateEmpty
		return
	}
	c.state = StateReady
}

// Current returns the displayed track while Ready.
func (c *Cursor) Current() (core.Track, bool) {
	if c.state != StateReady {
		return core.Track{}, false
	}
	return c.set.Tracks[c.index], true
}

// Advance moves to the next track. It returns StateExhausted once the last track was consumed.
func (c *Cursor) Advance() State {
	if c.state != StateReady {
		return c.state
	}
	if c.index+1 < c.set.Len() {
		c.index++
		return c.state
	}
	c.state = StateExhausted
	return c.state
}

// Discard drops the working set regardless of position.
func (c *Cursor) Discard() {
	c.set = nil
	c.index = 0
	c.state = StateEmpty
}

// Version is the working set version the cursor points into, zero when empty.
func (c *Cursor) Version() uint64 {
	if c.set == nil {
		return 0
	}
	return c.set.Version
}

func (c *Cursor) Index() int     { return c.index }
func (c *Cursor) State() State   { return c.state }
func (c *Cursor) Remaining() int { return max(c.set.Len()-c.index-1, 0) }
