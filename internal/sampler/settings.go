// Package sampler discretizes pulse block ensembles into per-channel
// sample arrays. Durations are rounded to the sample grid with a
// carry-forward remainder so the total length error never exceeds one
// sample period, and rotating-frame phase is preserved through an absolute
// bin offset that callers thread across waveform boundaries.
package sampler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xleonplayz/IQO-s/internal/pulse"
)

// ConfigurationError reports a mismatch between the generator settings and
// the objects being sampled. It is raised before any sample is produced.
type ConfigurationError struct {
	Object string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error sampling %q: %s", e.Object, e.Reason)
}

// Settings holds the resolved pulse generator configuration used for
// discretization.
type Settings struct {
	// SampleRate in samples per second.
	SampleRate float64
	// ActivationConfig lists the active channel descriptors. Every block
	// must use exactly this channel set.
	ActivationConfig []string
	// AnalogPeakToPeak holds the peak-to-peak output voltage per analog
	// channel. Samples are normalized to full scale by Vpp/2; channels
	// absent from the map default to 2.0 Vpp (unit full scale).
	AnalogPeakToPeak map[string]float64
	// LaserChannel names the digital channel driving the laser, or "" when
	// the laser is marked through the element laser_on flag instead.
	LaserChannel string
	// GateChannel overrides LaserChannel for gated counting setups.
	GateChannel string
	// Granularity is the required waveform length multiple of the target
	// hardware. Waveforms are padded with idle samples to the next
	// multiple. Zero or one disables padding.
	Granularity int64
}

// Validate checks the settings before sampling.
func (s *Settings) Validate() error {
	if s.SampleRate <= 0 {
		return &ConfigurationError{Object: "settings", Reason: fmt.Sprintf("sample rate must be > 0, got %g", s.SampleRate)}
	}
	if len(s.ActivationConfig) == 0 {
		return &ConfigurationError{Object: "settings", Reason: "activation config is empty"}
	}
	return nil
}

// laserSource returns the channel used for laser timing extraction, with
// the gate channel taking precedence for gated counting.
func (s *Settings) laserSource() string {
	if s.GateChannel != "" {
		return s.GateChannel
	}
	return s.LaserChannel
}

func (s *Settings) peakToPeak(channel string) float64 {
	if v, ok := s.AnalogPeakToPeak[channel]; ok && v > 0 {
		return v
	}
	return 2.0
}

// activationSet returns the activation config as a set.
func (s *Settings) activationSet() map[string]bool {
	set := make(map[string]bool, len(s.ActivationConfig))
	for _, ch := range s.ActivationConfig {
		set[ch] = true
	}
	return set
}

// checkActivation verifies that every block referenced by the ensemble uses
// exactly the activated channel set. This runs before any sampling so a
// mismatch can never yield partial output.
func checkActivation(ens *pulse.BlockEnsemble, blocks map[string]*pulse.Block, settings *Settings) error {
	want := settings.activationSet()
	for _, ref := range ens.BlockList {
		block, ok := blocks[ref.Name]
		if !ok {
			return &ConfigurationError{Object: ens.Name, Reason: fmt.Sprintf("block %q not resolved", ref.Name)}
		}
		got := block.ChannelSet()
		if len(block.Elements) == 0 {
			continue
		}
		if !setsEqual(want, got) {
			return &ConfigurationError{
				Object: ens.Name,
				Reason: fmt.Sprintf("block %q uses channels {%s} but activation config is {%s}",
					ref.Name, joinSet(got), joinSet(want)),
			}
		}
	}
	return nil
}

func setsEqual(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func joinSet(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
