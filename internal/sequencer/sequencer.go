// Package sequencer validates the branching semantics of a pulse sequence
// and compiles it into the ordered play-list the pulse generator executes.
// The compiler statically simulates the step state machine: it never
// blocks on triggers, it only records which waits and jumps the hardware
// layer has to observe.
package sequencer

import (
	"fmt"

	"github.com/xleonplayz/IQO-s/internal/pulse"
)

// StateStart is the virtual state before the first step. The virtual
// terminal state is returned by Machine.Terminal.
const StateStart = -1

// A PlayStep is one entry of the compiled play-list: the waveform to play
// plus the branching requirements the hardware sequencer must honor.
type PlayStep struct {
	Index    int
	Ensemble string
	// Waveform is the name tag of the waveform sampled for this step.
	Waveform string
	// Repetitions is the raw repetition field: the step plays
	// Repetitions+1 passes, or indefinitely for -1.
	Repetitions  int
	GoTo         int
	EventJumpTo  int
	EventTrigger string
	WaitFor      string
	FlagTrigger  []string
	FlagHigh     []string
}

// Passes returns the number of waveform passes, or -1 for indefinite.
func (p *PlayStep) Passes() int {
	if p.Repetitions < 0 {
		return -1
	}
	return p.Repetitions + 1
}

// A Playlist is the compiled, hardware-ready form of a sequence together
// with the structural warnings found during static analysis.
type Playlist struct {
	Name     string
	Steps    []PlayStep
	Warnings []string
}

// Machine is the explicit finite-state machine over step indices. States
// are 0..N-1 plus StateStart and the terminal state N.
type Machine struct {
	steps []pulse.SequenceStep
}

// NewMachine builds the state machine for a validated sequence.
func NewMachine(seq *pulse.Sequence) *Machine {
	return &Machine{steps: seq.Steps}
}

// Terminal returns the virtual terminal state index.
func (m *Machine) Terminal() int { return len(m.steps) }

// resolveTarget maps a 1-based jump field to a state index. The sentinel
// values 0 and -1 fall through to the next step in list order.
func (m *Machine) resolveTarget(field, current int) int {
	if field <= 0 {
		return current + 1
	}
	return field - 1
}

// NextState is the pure transition function: the state after finishing all
// passes of current, given whether the step's event trigger fired.
func (m *Machine) NextState(current int, triggered bool) int {
	if current == StateStart {
		if len(m.steps) == 0 {
			return m.Terminal()
		}
		return 0
	}
	if current >= m.Terminal() {
		return m.Terminal()
	}
	step := &m.steps[current]
	var next int
	if triggered && step.HasEventJump() {
		next = m.resolveTarget(step.EventJumpTo, current)
	} else {
		next = m.resolveTarget(step.GoTo, current)
	}
	if next >= m.Terminal() {
		return m.Terminal()
	}
	return next
}

// Analysis is the result of statically simulating a sequence.
type Analysis struct {
	// Reachable lists step indices reachable from START, ascending.
	Reachable []int
	// TerminalReachable reports whether any execution path reaches the
	// terminal state without external triggers beyond the declared ones.
	TerminalReachable bool
	Warnings          []string
}

// Analyze enumerates the reachable step set and flags unreachable steps
// and trigger-less infinite loops (live-lock).
func Analyze(seq *pulse.Sequence) (*Analysis, error) {
	if err := validateTargets(seq); err != nil {
		return nil, err
	}
	m := NewMachine(seq)
	n := len(seq.Steps)
	a := &Analysis{}

	// Breadth-first over both transition kinds.
	reachable := make([]bool, n+1)
	queue := []int{m.NextState(StateStart, false)}
	for len(queue) > 0 {
		state := queue[0]
		queue = queue[1:]
		if reachable[state] {
			continue
		}
		reachable[state] = true
		if state == m.Terminal() {
			continue
		}
		queue = append(queue, m.NextState(state, false))
		if seq.Steps[state].HasEventJump() {
			queue = append(queue, m.NextState(state, true))
		}
	}
	for i := 0; i < n; i++ {
		if reachable[i] {
			a.Reachable = append(a.Reachable, i)
		} else {
			a.Warnings = append(a.Warnings,
				fmt.Sprintf("step %d (%q) is unreachable from start", i, seq.Steps[i].Ensemble))
		}
	}
	a.TerminalReachable = reachable[m.Terminal()]

	// Live-lock detection walks the trigger-less path from START. Each
	// state has exactly one trigger-less successor, so the walk either
	// terminates or closes a cycle within n+1 transitions.
	visitedAt := make(map[int]int, n)
	path := []int{}
	state := m.NextState(StateStart, false)
	for state != m.Terminal() {
		step := &seq.Steps[state]
		if step.Repetitions < 0 {
			if !step.HasWait() && !step.HasEventJump() {
				a.Warnings = append(a.Warnings, fmt.Sprintf(
					"step %d (%q) repeats indefinitely with no wait_for or event_trigger exit (live-lock)",
					state, step.Ensemble))
			}
			// Indefinite repetition absorbs the trigger-less walk either way.
			break
		}
		if at, seen := visitedAt[state]; seen {
			cycle := path[at:]
			if !cycleHasExit(seq, cycle) {
				a.Warnings = append(a.Warnings, fmt.Sprintf(
					"steps %v form a loop with no wait_for or event_trigger exit (live-lock)", cycle))
			}
			break
		}
		visitedAt[state] = len(path)
		path = append(path, state)
		state = m.NextState(state, false)
	}
	return a, nil
}

func cycleHasExit(seq *pulse.Sequence, cycle []int) bool {
	for _, i := range cycle {
		step := &seq.Steps[i]
		if step.HasWait() || step.HasEventJump() {
			return true
		}
	}
	return false
}

func validateTargets(seq *pulse.Sequence) error {
	n := len(seq.Steps)
	for i := range seq.Steps {
		step := &seq.Steps[i]
		if step.GoTo < -1 || step.GoTo > n {
			return &pulse.StructuralError{
				Object: seq.Name,
				Index:  i,
				Reason: fmt.Sprintf("go_to target %d outside valid range [-1, %d]", step.GoTo, n),
			}
		}
		if step.EventJumpTo < -1 || step.EventJumpTo > n {
			return &pulse.StructuralError{
				Object: seq.Name,
				Index:  i,
				Reason: fmt.Sprintf("event_jump_to target %d outside valid range [-1, %d]", step.EventJumpTo, n),
			}
		}
	}
	return nil
}

// Compile validates the sequence against the resolved ensembles, runs the
// static analysis and produces the play-list. Structural errors abort
// compilation; analysis findings are returned as warnings on the playlist.
func Compile(seq *pulse.Sequence, ensembles map[string]*pulse.BlockEnsemble) (*Playlist, error) {
	if err := seq.Validate(); err != nil {
		return nil, err
	}
	for i := range seq.Steps {
		if _, ok := ensembles[seq.Steps[i].Ensemble]; !ok {
			return nil, &pulse.StructuralError{
				Object: seq.Name,
				Index:  i,
				Reason: fmt.Sprintf("referenced ensemble %q is not loaded", seq.Steps[i].Ensemble),
			}
		}
	}
	analysis, err := Analyze(seq)
	if err != nil {
		return nil, err
	}

	pl := &Playlist{Name: seq.Name, Warnings: analysis.Warnings}
	for i := range seq.Steps {
		step := &seq.Steps[i]
		pl.Steps = append(pl.Steps, PlayStep{
			Index:        i,
			Ensemble:     step.Ensemble,
			Waveform:     seq.StepNameTag(i),
			Repetitions:  step.Repetitions,
			GoTo:         step.GoTo,
			EventJumpTo:  step.EventJumpTo,
			EventTrigger: step.EventTrigger,
			WaitFor:      step.WaitFor,
			FlagTrigger:  append([]string(nil), step.FlagTrigger...),
			FlagHigh:     append([]string(nil), step.FlagHigh...),
		})
	}
	return pl, nil
}
