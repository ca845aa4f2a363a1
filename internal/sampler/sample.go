package sampler

import (
	"github.com/xleonplayz/IQO-s/internal/pulse"
)

// A Waveform is the discretized output for one ensemble: one float64 array
// per analog channel (normalized to full scale) and one bool array per
// digital channel, all of identical length.
type Waveform struct {
	Name       string
	SampleRate float64
	Analog     map[string][]float64
	Digital    map[string][]bool
	// BlockNames lists the contributing blocks in waveform order, for
	// per-waveform hardware addressing.
	BlockNames []string
	Info       *EnsembleInfo
}

// Samples returns the waveform length in samples.
func (w *Waveform) Samples() int64 {
	return w.Info.NumberOfSamples
}

// SamplingInfo converts the sampling outcome into the metadata persisted
// on the ensemble after a successful discretization.
func (w *Waveform) SamplingInfo() *pulse.SamplingInfo {
	activation := make([]string, 0, len(w.Info.AnalogChannels)+len(w.Info.DigitalChannels))
	activation = append(activation, w.Info.AnalogChannels...)
	activation = append(activation, w.Info.DigitalChannels...)
	return &pulse.SamplingInfo{
		SampleRate:       w.SampleRate,
		ActivationConfig: activation,
		Waveforms:        []string{w.Name},
		NumberOfSamples:  w.Info.NumberOfSamples,
		IdealLength:      w.Info.IdealLength,
		LaserRisingBins:  append([]int64(nil), w.Info.LaserRisingBins...),
		LaserFallingBins: append([]int64(nil), w.Info.LaserFallingBins...),
	}
}

// Sample discretizes the full ensemble (all block repetitions, increments
// applied per repetition). offsetBin is the absolute bin position of the
// waveform start, used for rotating-frame phase continuity across chained
// waveforms; the updated offset is returned for the next call. nameTag
// overrides the waveform name when sequences sample the same ensemble at
// several offsets.
func Sample(ens *pulse.BlockEnsemble, blocks map[string]*pulse.Block, settings *Settings, offsetBin int64, nameTag string) (*Waveform, int64, error) {
	if err := settings.Validate(); err != nil {
		return nil, offsetBin, err
	}
	if err := checkActivation(ens, blocks, settings); err != nil {
		return nil, offsetBin, err
	}
	elements := expandRepetitions(ens, blocks)
	info, err := analyzeExpanded(ens, elements, settings)
	if err != nil {
		return nil, offsetBin, err
	}
	return sampleExpanded(ens, elements, info, settings, offsetBin, nameTag)
}

// SampleSweepPoint discretizes one sweep point: each element's duration is
// increased by k times its increment before rounding. The rotating frame,
// if set, always starts at bin zero because a single sweep point stands
// alone.
func SampleSweepPoint(ens *pulse.BlockEnsemble, blocks map[string]*pulse.Block, settings *Settings, k int) (*Waveform, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if k < 0 {
		return nil, &ConfigurationError{Object: ens.Name, Reason: "sweep index must be >= 0"}
	}
	if err := checkActivation(ens, blocks, settings); err != nil {
		return nil, err
	}
	elements := expandSweepPoint(ens, blocks, k)
	info, err := analyzeExpanded(ens, elements, settings)
	if err != nil {
		return nil, err
	}
	wf, _, err := sampleExpanded(ens, elements, info, settings, 0, "")
	return wf, err
}

func sampleExpanded(ens *pulse.BlockEnsemble, elements []expandedElement, info *EnsembleInfo, settings *Settings, offsetBin int64, nameTag string) (*Waveform, int64, error) {
	name := nameTag
	if name == "" {
		name = ens.Name
	}
	wf := &Waveform{
		Name:       name,
		SampleRate: settings.SampleRate,
		Analog:     make(map[string][]float64, len(info.AnalogChannels)),
		Digital:    make(map[string][]bool, len(info.DigitalChannels)),
		Info:       info,
	}
	for _, ch := range info.AnalogChannels {
		wf.Analog[ch] = make([]float64, info.NumberOfSamples)
	}
	for _, ch := range info.DigitalChannels {
		wf.Digital[ch] = make([]bool, info.NumberOfSamples)
	}

	var writeIndex int64
	prevBlock := ""
	for i, ee := range elements {
		if ee.blockName != prevBlock {
			wf.BlockNames = append(wf.BlockNames, ee.blockName)
			prevBlock = ee.blockName
		}
		length := info.ElementLengthsBins[i]
		el := ee.el

		for ch, state := range el.DigitalHigh {
			dst := wf.Digital[ch]
			for j := int64(0); j < length; j++ {
				dst[writeIndex+j] = state
			}
		}
		for ch, fn := range el.PulseFunction {
			dst := wf.Analog[ch]
			scale := settings.peakToPeak(ch) / 2
			for j := int64(0); j < length; j++ {
				var t float64
				if ens.RotatingFrame {
					// Phase time runs from the absolute waveform start so
					// sinusoids stay continuous across element boundaries.
					t = float64(offsetBin+writeIndex+j) / settings.SampleRate
				} else {
					t = float64(j) / settings.SampleRate
				}
				dst[writeIndex+j] = fn.Sample(t) / scale
			}
		}
		writeIndex += length
	}
	// Granularity padding stays at idle levels: zero analog output, all
	// digital channels low.

	if ens.RotatingFrame {
		offsetBin += writeIndex
	}
	return wf, offsetBin, nil
}
