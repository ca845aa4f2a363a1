package sampler

import (
	"fmt"

	"github.com/xleonplayz/IQO-s/internal/pulse"
)

// StepWaveform associates one sequence step with the waveform generated
// for it.
type StepWaveform struct {
	StepIndex int
	Waveform  *Waveform
}

// SampleSequence discretizes every step of a sequence. With the sequence
// rotating frame set, each step is sampled at the running bin offset and
// gets an index-suffixed name tag so identical ensembles at different
// offsets become distinct waveforms; otherwise steps reuse one waveform
// per ensemble.
func SampleSequence(seq *pulse.Sequence, ensembles map[string]*pulse.BlockEnsemble, blocks map[string]*pulse.Block, settings *Settings) ([]StepWaveform, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	var out []StepWaveform
	sampled := make(map[string]*Waveform)
	var offsetBin int64
	for i := range seq.Steps {
		step := &seq.Steps[i]
		ens, ok := ensembles[step.Ensemble]
		if !ok {
			return nil, &pulse.StructuralError{
				Object: seq.Name,
				Index:  i,
				Reason: fmt.Sprintf("ensemble %q not resolved", step.Ensemble),
			}
		}

		nameTag := seq.StepNameTag(i)
		if !seq.RotatingFrame {
			offsetBin = 0
			if wf, done := sampled[nameTag]; done {
				out = append(out, StepWaveform{StepIndex: i, Waveform: wf})
				continue
			}
		}

		wf, newOffset, err := Sample(ens, blocks, settings, offsetBin, nameTag)
		if err != nil {
			return nil, fmt.Errorf("sampling step %d of sequence %q: %w", i, seq.Name, err)
		}
		offsetBin = newOffset
		sampled[nameTag] = wf
		out = append(out, StepWaveform{StepIndex: i, Waveform: wf})
	}
	return out, nil
}
