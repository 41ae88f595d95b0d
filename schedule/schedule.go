// Package schedule decides, once per solution step, whether the mesh
// should be remeshed, and drives the error-driven refinement loop.
//
// A Scheduler moves through Idle, Triggered, InProgress and Cooldown. It
// never fails and has no terminal state.
package schedule

import (
	"fmt"

	"github.com/notargets/remesh/config"
)

// State is the scheduler state.
type State int

const (
	Idle State = iota
	Triggered
	InProgress
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Triggered:
		return "Triggered"
	case InProgress:
		return "InProgress"
	case Cooldown:
		return "Cooldown"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the step-triggering parameters.
type Config struct {
	InitialStep      int  // first solution step that may trigger
	StepFrequency    int  // steps between remeshes, 0 disables stepping
	InitialRemeshing bool // remesh once at initialization and never per step
}

// ConfigFromSettings extracts the schedule parameters.
func ConfigFromSettings(s *config.Settings) Config {
	return Config{
		InitialStep:      s.InitialStep,
		StepFrequency:    s.StepFrequency,
		InitialRemeshing: s.InitialRemeshing,
	}
}

// Decision is the outcome of one Decide call.
type Decision struct {
	Trigger          bool
	ConsumedModified bool
	Counter          int
	State            State
}

// Status is a snapshot of the scheduler bookkeeping.
type Status struct {
	State           State
	Counter         int
	InitialStepDone bool
	ErrorEstimate   float64
	Cycle           int
}

// Scheduler is the remesh trigger state machine. It is not safe for
// concurrent use; the host calls it from its step loop.
type Scheduler struct {
	cfg             Config
	state           State
	counter         int
	initialStepDone bool
	loop            *ConvergenceLoop
}

// New creates an idle scheduler. loop may be nil when remeshing is not
// error driven.
func New(cfg Config, loop *ConvergenceLoop) *Scheduler {
	return &Scheduler{cfg: cfg, loop: loop}
}

// State returns the current state.
func (s *Scheduler) State() State { return s.state }

// Counter returns the number of steps since the last remesh.
func (s *Scheduler) Counter() int { return s.counter }

// InitialStepDone reports whether a remesh has completed.
func (s *Scheduler) InitialStepDone() bool { return s.initialStepDone }

// Loop returns the convergence loop, or nil.
func (s *Scheduler) Loop() *ConvergenceLoop { return s.loop }

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() Status {
	st := Status{
		State:           s.state,
		Counter:         s.counter,
		InitialStepDone: s.initialStepDone,
	}
	if s.loop != nil {
		st.ErrorEstimate = s.loop.Estimate()
		st.Cycle = s.loop.Cycle()
	}
	return st
}

// Decide evaluates the trigger condition for solution step step. A mesh
// already marked modified is consumed: the counter restarts and nothing is
// triggered this step. In initial remeshing mode Decide never triggers and
// leaves the modified flag to the host.
func (s *Scheduler) Decide(step int, modified bool) Decision {
	switch s.state {
	case Cooldown:
		s.state = Idle
	case Triggered:
		// Not yet handed to the executor
		return s.decision(true, false)
	case InProgress:
		return s.decision(false, false)
	}

	if s.cfg.InitialRemeshing {
		// Only the remesh at initialization
		return s.decision(false, false)
	}
	if modified {
		s.counter = 0
		return s.decision(false, true)
	}

	s.counter++
	if s.cfg.StepFrequency <= 0 {
		return s.decision(false, false)
	}
	if step >= s.cfg.InitialStep && (!s.initialStepDone || s.counter >= s.cfg.StepFrequency) {
		s.state = Triggered
		return s.decision(true, false)
	}
	return s.decision(false, false)
}

// Force moves an idle scheduler to Triggered regardless of the step
// counter, for the initial remesh and error-driven refinements.
func (s *Scheduler) Force() bool {
	if s.state == Cooldown {
		s.state = Idle
	}
	if s.state != Idle {
		return false
	}
	s.state = Triggered
	return true
}

// Begin hands a triggered remesh to the executor.
func (s *Scheduler) Begin() bool {
	if s.state != Triggered {
		return false
	}
	s.state = InProgress
	return true
}

// Complete records a finished remesh. The counter restarts and the
// scheduler cools down until the next Decide.
func (s *Scheduler) Complete() bool {
	if s.state != InProgress {
		return false
	}
	s.state = Cooldown
	s.counter = 0
	s.initialStepDone = true
	return true
}

// Abort returns to Idle after a remesh failed before touching the mesh.
// The counter is kept, so the decision is retried on the next step.
func (s *Scheduler) Abort() bool {
	if s.state != Triggered && s.state != InProgress {
		return false
	}
	s.state = Idle
	return true
}

func (s *Scheduler) decision(trigger, consumed bool) Decision {
	return Decision{
		Trigger:          trigger,
		ConsumedModified: consumed,
		Counter:          s.counter,
		State:            s.state,
	}
}
