package config

import (
	"github.com/xleonplayz/IQO-s/internal/analysis"
	"github.com/xleonplayz/IQO-s/internal/sampler"
)

// SamplerSettings builds the discretization settings from the config.
func (c *TuningConfig) SamplerSettings() *sampler.Settings {
	return &sampler.Settings{
		SampleRate:       c.GetSampleRate(),
		ActivationConfig: append([]string(nil), c.ActivationConfig...),
		LaserChannel:     c.GetLaserChannel(),
		GateChannel:      c.GetGateChannel(),
		Granularity:      c.GetGranularity(),
	}
}

// AnalysisSettings builds the per-pulse reduction settings from the config.
func (c *TuningConfig) AnalysisSettings() *analysis.Settings {
	return &analysis.Settings{
		Method:        analysis.Method(c.GetMethod()),
		SignalStart:   c.GetSignalStartBin(),
		SignalEnd:     c.GetSignalEndBin(),
		Normalization: analysis.Normalization(c.GetNormalization()),
		NormStart:     c.GetNormStartBin(),
		NormEnd:       c.GetNormEndBin(),
	}
}

// Mode returns the configured alternating combination mode.
func (c *TuningConfig) Mode() analysis.AlternatingMode {
	return analysis.AlternatingMode(c.GetAlternatingMode())
}
