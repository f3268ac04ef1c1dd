// Package gesture turns pointer input on a track card into like/dislike decisions.
package gesture

import (
	"math"
	"sync"
	"time"

	"songswipe/internal/core"
)

// Phase of the card interaction.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseDragging
	// PhaseCommitting plays the exit animation; input is ignored
	PhaseCommitting
)

func (p Phase) String() string {
	switch p {
	case PhaseDragging:
		return "dragging"
	case PhaseCommitting:
		return "committing"
	default:
		return "idle"
	}
}

// Card presentation constants
const (
	// DefaultThreshold is the horizontal distance a drag must exceed to commit
	DefaultThreshold = 100.0
	// IndicatorThreshold is where the like/dislike badge appears
	IndicatorThreshold = 50.0
	// RotationPerPixel is degrees of tilt per pixel of horizontal offset
	RotationPerPixel = 0.1
	// OpacityDecayPerPixel fades the card while dragging
	OpacityDecayPerPixel = 0.002
	// MinOpacity keeps a dragged card visible
	MinOpacity = 0.5
	// ExitOffset is where the card flies to on commit
	ExitOffset = 1000.0
	// DefaultExitDuration of the commit animation
	DefaultExitDuration = 500 * time.Millisecond
)

// Point is a position or offset in logical pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// View is what a renderer needs to draw the card.
type View struct {
	Phase          Phase         `json:"-"`
	PhaseName      string        `json:"phase"`
	Offset         Point         `json:"offset"`
	Rotation       float64       `json:"rotation"`
	Opacity        float64       `json:"opacity"`
	Indicator      string        `json:"indicator,omitempty"`
	ButtonsEnabled bool          `json:"buttonsEnabled"`
	Pending        core.Decision `json:"-"`
}

// Scheduler runs f after d and returns a function that cancels it. f must not run before Scheduler returns.
type Scheduler func(d time.Duration, f func()) (cancel func())

// RealScheduler uses time.AfterFunc.
func RealScheduler(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

type Option func(*Machine)

func WithThreshold(px float64) Option {
	return func(m *Machine) { m.threshold = px }
}

func WithExitDuration(d time.Duration) Option {
	return func(m *Machine) { m.exitDuration = d }
}

// WithScheduler replaces the animation timer, e.g. with a manual clock in tests.
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) { m.schedule = s }
}

// Machine is the state of one card surface. At most one decision is emitted per card:
// once committing, every input is ignored until the decision callback has returned.
type Machine struct {
	mu     sync.Mutex
	phase  Phase
	origin Point
	offset Point

	pending core.Decision
	cancel  func()
	// gen identifies the running commit; Stop and every new commit bump it
	gen uint64

	threshold    float64
	exitDuration time.Duration
	schedule     Scheduler
	onCommit     func(core.Decision)
}

// New builds an idle machine. onCommit runs on the scheduler's goroutine after the exit animation.
func New(onCommit func(core.Decision), opts ...Option) *Machine {
	m := &Machine{
		threshold:    DefaultThreshold,
		exitDuration: DefaultExitDuration,
		schedule:     RealScheduler,
		onCommit:     onCommit,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PointerDown starts a drag. It reports false when the card is not idle.
func (m *Machine) PointerDown(at Point) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return false
	}
	m.phase = PhaseDragging
	m.origin = at
	m.offset = Point{}
	return true
}

// PointerMove updates the drag offset.
func (m *Machine) PointerMove(at Point) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase == PhaseDragging {
		m.offset = at.Sub(m.origin)
	}
}

// PointerUp ends a drag. Past the threshold it commits in the drag direction and
// returns the decision; otherwise the card snaps back and DecisionNone is returned.
func (m *Machine) PointerUp() core.Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseDragging {
		return core.DecisionNone
	}

	if math.Abs(m.offset.X) <= m.threshold {
		m.phase = PhaseIdle
		m.offset = Point{}
		return core.DecisionNone
	}

	d := core.DecisionDislike
	if m.offset.X > 0 {
		d = core.DecisionLike
	}
	m.commitLocked(d)
	return d
}

// PointerLeave is treated as a release.
func (m *Machine) PointerLeave() core.Decision {
	return m.PointerUp()
}

// Press commits from a button, bypassing the drag. It reports false while busy.
func (m *Machine) Press(d core.Decision) bool {
	if d != core.DecisionLike && d != core.DecisionDislike {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.phase != PhaseIdle {
		return false
	}
	m.commitLocked(d)
	return true
}

func (m *Machine) commitLocked(d core.Decision) {
	m.phase = PhaseCommitting
	m.pending = d
	m.offset = Point{X: ExitOffset, Y: m.offset.Y}
	if d == core.DecisionDislike {
		m.offset.X = -ExitOffset
	}
	m.gen++
	gen := m.gen
	m.cancel = m.schedule(m.exitDuration, func() { m.complete(gen) })
}

// complete emits the pending decision of commit gen, then readies the machine for the
// next card. A commit superseded by Stop or by a later commit leaves the machine alone.
func (m *Machine) complete(gen uint64) {
	m.mu.Lock()
	if m.phase != PhaseCommitting || m.gen != gen {
		m.mu.Unlock()
		return
	}
	d := m.pending
	m.mu.Unlock()

	if m.onCommit != nil {
		m.onCommit(d)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return
	}
	m.phase = PhaseIdle
	m.pending = core.DecisionNone
	m.offset = Point{}
	m.cancel = nil
}

// Stop cancels a running exit animation without emitting its decision.
func (m *Machine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.gen++
	m.phase = PhaseIdle
	m.pending = core.DecisionNone
	m.offset = Point{}
}

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

// View returns the current presentation values.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{
		Phase:          m.phase,
		PhaseName:      m.phase.String(),
		Offset:         m.offset,
		Rotation:       m.offset.X * RotationPerPixel,
		Opacity:        1,
		ButtonsEnabled: m.phase == PhaseIdle,
		Pending:        m.pending,
	}
	if m.phase == PhaseDragging {
		v.Opacity = math.Max(MinOpacity, 1-math.Abs(m.offset.X)*OpacityDecayPerPixel)
		switch {
		case m.offset.X > IndicatorThreshold:
			v.Indicator = core.DecisionLike.String()
		case m.offset.X < -IndicatorThreshold:
			v.Indicator = core.DecisionDislike.String()
		}
	}
	if m.phase == PhaseCommitting {
		v.Indicator = m.pending.String()
	}
	return v
}
