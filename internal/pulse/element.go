// Package pulse contains the hierarchical object model for pulsed
// measurements: BlockElement → Block → BlockEnsemble → Sequence. Objects
// reference lower levels by name; resolution and persistence live in the
// store subpackage.
package pulse

import (
	"encoding/json"
	"fmt"
	"sort"
)

// A BlockElement is one atomic timed segment: a fixed set of digital levels
// and one analog function per active analog channel, held for InitLength
// seconds (plus Increment seconds per sweep repetition).
type BlockElement struct {
	// InitLength is the base duration in seconds, must be >= 0.
	InitLength float64
	// Increment is added to the duration once per sweep repetition. It may
	// be negative as long as the resulting duration stays >= 0 over the
	// whole sweep.
	Increment float64
	// LaserOn marks this element as a laser pulse for channel setups where
	// the laser is not driven through a digital channel.
	LaserOn bool
	// DigitalHigh maps digital channel descriptors ("d_ch1", ...) to their
	// logic level during this element.
	DigitalHigh map[string]bool
	// PulseFunction maps analog channel descriptors ("a_ch1", ...) to the
	// function generating that channel's samples.
	PulseFunction map[string]SamplingFunction
}

// AnalogChannels returns the sorted analog channel descriptors used by e.
func (e *BlockElement) AnalogChannels() []string {
	chs := make([]string, 0, len(e.PulseFunction))
	for ch := range e.PulseFunction {
		chs = append(chs, ch)
	}
	sort.Strings(chs)
	return chs
}

// DigitalChannels returns the sorted digital channel descriptors used by e.
func (e *BlockElement) DigitalChannels() []string {
	chs := make([]string, 0, len(e.DigitalHigh))
	for ch := range e.DigitalHigh {
		chs = append(chs, ch)
	}
	sort.Strings(chs)
	return chs
}

// ChannelSet returns the union of analog and digital channels as a set.
func (e *BlockElement) ChannelSet() map[string]bool {
	set := make(map[string]bool, len(e.PulseFunction)+len(e.DigitalHigh))
	for ch := range e.PulseFunction {
		set[ch] = true
	}
	for ch := range e.DigitalHigh {
		set[ch] = true
	}
	return set
}

// Validate checks the element's numeric constraints.
func (e *BlockElement) Validate() error {
	if e.InitLength < 0 {
		return fmt.Errorf("element init_length_s must be >= 0, got %g", e.InitLength)
	}
	return nil
}

// funcSpec is the persisted form of a SamplingFunction.
type funcSpec struct {
	Name   string             `json:"name"`
	Params map[string]float64 `json:"params"`
}

// elementJSON mirrors the persisted element document.
type elementJSON struct {
	InitLengthS   float64             `json:"init_length_s"`
	IncrementS    float64             `json:"increment_s"`
	LaserOn       bool                `json:"laser_on"`
	DigitalHigh   map[string]bool     `json:"digital_high"`
	PulseFunction map[string]funcSpec `json:"pulse_function"`
}

// MarshalJSON encodes the element in the persisted object format.
func (e *BlockElement) MarshalJSON() ([]byte, error) {
	doc := elementJSON{
		InitLengthS:   e.InitLength,
		IncrementS:    e.Increment,
		LaserOn:       e.LaserOn,
		DigitalHigh:   e.DigitalHigh,
		PulseFunction: make(map[string]funcSpec, len(e.PulseFunction)),
	}
	if doc.DigitalHigh == nil {
		doc.DigitalHigh = map[string]bool{}
	}
	for ch, fn := range e.PulseFunction {
		doc.PulseFunction[ch] = funcSpec{Name: fn.Name(), Params: fn.Params()}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes the persisted object format, reconstructing the
// sampling function for each analog channel.
func (e *BlockElement) UnmarshalJSON(data []byte) error {
	var doc elementJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	e.InitLength = doc.InitLengthS
	e.Increment = doc.IncrementS
	e.LaserOn = doc.LaserOn
	e.DigitalHigh = doc.DigitalHigh
	if e.DigitalHigh == nil {
		e.DigitalHigh = map[string]bool{}
	}
	e.PulseFunction = make(map[string]SamplingFunction, len(doc.PulseFunction))
	for ch, spec := range doc.PulseFunction {
		fn, err := NewSamplingFunction(spec.Name, spec.Params)
		if err != nil {
			return fmt.Errorf("channel %q: %w", ch, err)
		}
		e.PulseFunction[ch] = fn
	}
	return nil
}
