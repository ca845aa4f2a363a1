package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xleonplayz/IQO-s/internal/analysis"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	require.Equal(t, 25e9, cfg.GetSampleRate())
	require.Equal(t, "d_ch1", cfg.GetLaserChannel())
	require.Equal(t, "", cfg.GetGateChannel())
	require.EqualValues(t, 1, cfg.GetGranularity())
	require.Equal(t, "mean", cfg.GetMethod())
	require.EqualValues(t, 200, cfg.GetSignalEndBin())
	require.Equal(t, "none", cfg.GetNormalization())
	require.Equal(t, "delta", cfg.GetAlternatingMode())
	require.Equal(t, 0, cfg.GetSweeps())
	require.Equal(t, 1, cfg.GetWorkers())
	require.Equal(t, "/dev/ttyUSB0", cfg.GetMicrowavePort())
	require.Equal(t, 115200, cfg.GetBaudRate())
}

func TestLoadPartialConfig(t *testing.T) {
	path := writeConfig(t, "tuning.json", `{
		"sample_rate": 1.25e9,
		"method": "sum",
		"sweeps": 500
	}`)

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)
	require.Equal(t, 1.25e9, cfg.GetSampleRate())
	require.Equal(t, "sum", cfg.GetMethod())
	require.Equal(t, 500, cfg.GetSweeps())
	// Everything omitted keeps its default.
	require.Equal(t, "d_ch1", cfg.GetLaserChannel())
	require.Equal(t, 115200, cfg.GetBaudRate())
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"wrong extension", "tuning.yaml", `{}`},
		{"malformed json", "tuning.json", `{"sample_rate": `},
		{"negative sample rate", "tuning.json", `{"sample_rate": -1}`},
		{"bad method", "tuning.json", `{"method": "median"}`},
		{"bad normalization", "tuning.json", `{"normalization": "log"}`},
		{"bad alternating mode", "tuning.json", `{"alternating_mode": "both"}`},
		{"zero workers", "tuning.json", `{"workers": 0}`},
		{"negative sweeps", "tuning.json", `{"sweeps": -1}`},
		{"zero baud rate", "tuning.json", `{"baud_rate": 0}`},
		{"zero granularity", "tuning.json", `{"granularity": 0}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)
			_, err := LoadTuningConfig(path)
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestSettingsBridges(t *testing.T) {
	cfg := &TuningConfig{
		SampleRate:       ptrFloat64(1e9),
		LaserChannel:     ptrString("d_ch2"),
		GateChannel:      ptrString("d_ch3"),
		Granularity:      ptrInt64(16),
		ActivationConfig: []string{"a_ch1", "d_ch2", "d_ch3"},
		Method:           ptrString("sum"),
		SignalStartBin:   ptrInt64(10),
		SignalEndBin:     ptrInt64(60),
		Normalization:    ptrString("ratio"),
		NormStartBin:     ptrInt64(100),
		NormEndBin:       ptrInt64(150),
		AlternatingMode:  ptrString("parallel"),
	}
	require.NoError(t, cfg.Validate())

	ss := cfg.SamplerSettings()
	require.Equal(t, 1e9, ss.SampleRate)
	require.Equal(t, "d_ch2", ss.LaserChannel)
	require.Equal(t, "d_ch3", ss.GateChannel)
	require.EqualValues(t, 16, ss.Granularity)
	require.Equal(t, []string{"a_ch1", "d_ch2", "d_ch3"}, ss.ActivationConfig)

	as := cfg.AnalysisSettings()
	require.NoError(t, as.Validate())
	require.Equal(t, analysis.MethodSum, as.Method)
	require.Equal(t, analysis.NormRatio, as.Normalization)
	require.EqualValues(t, 10, as.SignalStart)
	require.EqualValues(t, 150, as.NormEnd)

	require.Equal(t, analysis.AltParallel, cfg.Mode())

	// The bridge copies the activation config.
	ss.ActivationConfig[0] = "mutated"
	require.Equal(t, "a_ch1", cfg.ActivationConfig[0])
}
