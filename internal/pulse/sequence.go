package pulse

import (
	"encoding/json"
	"fmt"
)

// TriggerOff is the sentinel meaning "no trigger line configured".
const TriggerOff = "OFF"

// A SequenceStep plays one ensemble with branching control fields.
//
// Repetitions: 0 plays once, n>0 plays n+1 times, -1 repeats until
// externally aborted. GoTo and EventJumpTo are 1-based step indices; 0 and
// -1 both mean "fall through to the next step in list order".
type SequenceStep struct {
	Ensemble     string   `json:"ensemble"`
	Repetitions  int      `json:"repetitions"`
	GoTo         int      `json:"go_to"`
	EventJumpTo  int      `json:"event_jump_to"`
	EventTrigger string   `json:"event_trigger"`
	WaitFor      string   `json:"wait_for"`
	FlagTrigger  []string `json:"flag_trigger"`
	FlagHigh     []string `json:"flag_high"`
}

// NewSequenceStep returns a step for the named ensemble with default
// control fields: played once, falling through, no triggers, no flags.
func NewSequenceStep(ensemble string) SequenceStep {
	return SequenceStep{
		Ensemble:     ensemble,
		Repetitions:  0,
		GoTo:         -1,
		EventJumpTo:  -1,
		EventTrigger: TriggerOff,
		WaitFor:      TriggerOff,
		FlagTrigger:  []string{},
		FlagHigh:     []string{},
	}
}

// HasEventJump reports whether the step listens for a trigger to jump.
func (s *SequenceStep) HasEventJump() bool {
	return s.EventTrigger != TriggerOff && s.EventTrigger != ""
}

// HasWait reports whether the step gates its start on a trigger line.
func (s *SequenceStep) HasWait() bool {
	return s.WaitFor != TriggerOff && s.WaitFor != ""
}

// UnmarshalJSON decodes a persisted step, applying the default control
// fields for keys absent from the document.
func (s *SequenceStep) UnmarshalJSON(data []byte) error {
	*s = NewSequenceStep("")
	type plain SequenceStep
	if err := json.Unmarshal(data, (*plain)(s)); err != nil {
		return err
	}
	if s.Ensemble == "" {
		return fmt.Errorf("sequence step is missing mandatory \"ensemble\" entry")
	}
	if s.FlagTrigger == nil {
		s.FlagTrigger = []string{}
	}
	if s.FlagHigh == nil {
		s.FlagHigh = []string{}
	}
	return nil
}

// A Sequence is an ordered list of steps playing ensembles with hardware
// sequencer branching (repetitions, jumps, trigger waits, flags).
type Sequence struct {
	Name  string
	Steps []SequenceStep
	// RotatingFrame preserves analog phase across step boundaries. Phase
	// preservation inside a single ensemble is controlled by the ensemble
	// itself, not by this flag.
	RotatingFrame bool
}

// StepNameTag returns the waveform name tag for step i: index-suffixed in
// the rotating frame (distinct offsets need distinct waveforms), the bare
// ensemble name otherwise.
func (q *Sequence) StepNameTag(i int) string {
	if q.RotatingFrame {
		return fmt.Sprintf("%s_%03d", q.Steps[i].Ensemble, i)
	}
	return q.Steps[i].Ensemble
}

// IsFinite reports whether every step has a finite repetition count.
func (q *Sequence) IsFinite() bool {
	for i := range q.Steps {
		if q.Steps[i].Repetitions < 0 {
			return false
		}
	}
	return true
}

// EnsembleNames returns the distinct ensemble names referenced by the
// sequence, in first-use order.
func (q *Sequence) EnsembleNames() []string {
	seen := make(map[string]bool, len(q.Steps))
	names := make([]string, 0, len(q.Steps))
	for i := range q.Steps {
		name := q.Steps[i].Ensemble
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	return names
}

// Validate checks step-local constraints. Jump target validity is checked
// by the sequence compiler, which also knows about reachability.
func (q *Sequence) Validate() error {
	if q.Name == "" {
		return NewStructuralError("(unnamed sequence)", "sequence name must not be empty")
	}
	for i := range q.Steps {
		step := &q.Steps[i]
		if step.Ensemble == "" {
			return &StructuralError{Object: q.Name, Index: i, Reason: "step has no ensemble name"}
		}
		if step.Repetitions < -1 {
			return &StructuralError{
				Object: q.Name,
				Index:  i,
				Reason: fmt.Sprintf("repetitions must be >= -1, got %d", step.Repetitions),
			}
		}
	}
	return nil
}

type sequenceJSON struct {
	Name          string         `json:"name"`
	RotatingFrame bool           `json:"rotating_frame"`
	EnsembleList  []SequenceStep `json:"ensemble_list"`
}

// MarshalJSON encodes the sequence in the persisted object format.
func (q *Sequence) MarshalJSON() ([]byte, error) {
	return json.Marshal(sequenceJSON{
		Name:          q.Name,
		RotatingFrame: q.RotatingFrame,
		EnsembleList:  q.Steps,
	})
}

// UnmarshalJSON decodes and validates a persisted sequence document.
func (q *Sequence) UnmarshalJSON(data []byte) error {
	var doc sequenceJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	q.Name = doc.Name
	q.RotatingFrame = doc.RotatingFrame
	q.Steps = doc.EnsembleList
	return q.Validate()
}
