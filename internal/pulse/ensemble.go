package pulse

import (
	"encoding/json"
	"fmt"
)

// A BlockRef names a block together with its repetition count. Repetitions
// follow hardware convention: 0 plays the block once, n plays it n+1 times.
type BlockRef struct {
	Name        string
	Repetitions int
}

// MarshalJSON encodes the reference as a ["name", repetitions] pair, the
// persisted block_list entry format.
func (r BlockRef) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{r.Name, r.Repetitions})
}

// UnmarshalJSON decodes a ["name", repetitions] pair.
func (r *BlockRef) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("block_list entry must be a [name, repetitions] pair, got %d entries", len(pair))
	}
	if err := json.Unmarshal(pair[0], &r.Name); err != nil {
		return fmt.Errorf("block_list entry name: %w", err)
	}
	if err := json.Unmarshal(pair[1], &r.Repetitions); err != nil {
		return fmt.Errorf("block_list entry repetitions: %w", err)
	}
	if r.Repetitions < 0 {
		return fmt.Errorf("block_list repetitions must be >= 0, got %d", r.Repetitions)
	}
	return nil
}

// SamplingInfo records how an ensemble was discretized. It is populated by
// the sampler, not by the user, and cleared whenever the block list changes.
type SamplingInfo struct {
	SampleRate       float64  `json:"sample_rate"`
	ActivationConfig []string `json:"activation_config"`
	Waveforms        []string `json:"waveforms"`
	NumberOfSamples  int64    `json:"number_of_samples"`
	IdealLength      float64  `json:"ideal_length_s"`
	LaserRisingBins  []int64  `json:"laser_rising_bins"`
	LaserFallingBins []int64  `json:"laser_falling_bins"`
}

// MeasurementInfo describes how the sampled waveform maps onto a
// measurement: which laser pulses belong to which sweep value and how the
// analysis should combine them.
type MeasurementInfo struct {
	Alternating bool `json:"alternating"`
	// LaserIgnoreList holds laser pulse indices excluded from signal
	// aggregation (calibration pulses and the like).
	LaserIgnoreList []int `json:"laser_ignore_list"`
	// ControlledVariable holds one sweep value per logical sweep point,
	// doubled if Alternating.
	ControlledVariable []float64 `json:"controlled_variable"`
	Units              []string  `json:"units"`
	Labels             []string  `json:"labels"`
	NumberOfLasers     int       `json:"number_of_lasers"`
}

// Validate checks the internal consistency of the measurement settings.
func (m *MeasurementInfo) Validate() error {
	if m.Alternating && m.NumberOfLasers%2 != 0 {
		return fmt.Errorf("alternating measurement requires an even number of laser pulses, got %d",
			m.NumberOfLasers)
	}
	for _, idx := range m.LaserIgnoreList {
		if idx < 0 || idx >= m.NumberOfLasers {
			return fmt.Errorf("laser_ignore_list index %d out of range [0, %d)", idx, m.NumberOfLasers)
		}
	}
	return nil
}

// A BlockEnsemble is an ordered list of block references defining one
// complete, sweepable measurement waveform.
type BlockEnsemble struct {
	Name      string
	BlockList []BlockRef
	// RotatingFrame keeps analog phase continuous across block and element
	// boundaries (and across sweep repetitions). When false every element
	// restarts at phase zero.
	RotatingFrame bool
	// Sampling is populated by the sampler after discretization.
	Sampling *SamplingInfo
	// Measurement is populated by whatever generated the ensemble and
	// drives the analysis pipeline.
	Measurement *MeasurementInfo
}

// Validate checks the measurement settings if present. Block references are
// validated against the registry at resolution time, not here.
func (e *BlockEnsemble) Validate() error {
	if e.Name == "" {
		return NewStructuralError("(unnamed ensemble)", "ensemble name must not be empty")
	}
	if e.Measurement != nil {
		if err := e.Measurement.Validate(); err != nil {
			return NewStructuralError(e.Name, err.Error())
		}
	}
	return nil
}

// BlockNames returns the distinct block names referenced by the ensemble,
// in first-use order.
func (e *BlockEnsemble) BlockNames() []string {
	seen := make(map[string]bool, len(e.BlockList))
	names := make([]string, 0, len(e.BlockList))
	for _, ref := range e.BlockList {
		if !seen[ref.Name] {
			seen[ref.Name] = true
			names = append(names, ref.Name)
		}
	}
	return names
}

// ClearSamplingInfo drops sampler-derived metadata. Called when the block
// list changes so stale discretization data never survives an edit.
func (e *BlockEnsemble) ClearSamplingInfo() {
	e.Sampling = nil
}

type ensembleJSON struct {
	Name          string           `json:"name"`
	RotatingFrame bool             `json:"rotating_frame"`
	BlockList     []BlockRef       `json:"block_list"`
	Sampling      *SamplingInfo    `json:"sampling_information,omitempty"`
	Measurement   *MeasurementInfo `json:"measurement_information,omitempty"`
}

// MarshalJSON encodes the ensemble in the persisted object format.
func (e *BlockEnsemble) MarshalJSON() ([]byte, error) {
	return json.Marshal(ensembleJSON{
		Name:          e.Name,
		RotatingFrame: e.RotatingFrame,
		BlockList:     e.BlockList,
		Sampling:      e.Sampling,
		Measurement:   e.Measurement,
	})
}

// UnmarshalJSON decodes and validates a persisted ensemble document.
func (e *BlockEnsemble) UnmarshalJSON(data []byte) error {
	var doc ensembleJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	e.Name = doc.Name
	e.RotatingFrame = doc.RotatingFrame
	e.BlockList = doc.BlockList
	e.Sampling = doc.Sampling
	e.Measurement = doc.Measurement
	return e.Validate()
}
