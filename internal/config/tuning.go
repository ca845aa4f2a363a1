package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig represents the root configuration for measurement tuning
// parameters: discretization, extraction windows, analysis method and the
// microwave serial link. Fields are pointers so a partial JSON file only
// overrides what it names; the Get* methods supply defaults for the rest.
type TuningConfig struct {
	// Sampling params
	SampleRate       *float64 `json:"sample_rate,omitempty"`
	LaserChannel     *string  `json:"laser_channel,omitempty"`
	GateChannel      *string  `json:"gate_channel,omitempty"`
	Granularity      *int64   `json:"granularity,omitempty"`
	ActivationConfig []string `json:"activation_config,omitempty"`

	// Analysis params
	Method          *string `json:"method,omitempty"` // "sum" or "mean"
	SignalStartBin  *int64  `json:"signal_start_bin,omitempty"`
	SignalEndBin    *int64  `json:"signal_end_bin,omitempty"`
	Normalization   *string `json:"normalization,omitempty"` // "none", "ratio", "diff"
	NormStartBin    *int64  `json:"norm_start_bin,omitempty"`
	NormEndBin      *int64  `json:"norm_end_bin,omitempty"`
	AlternatingMode *string `json:"alternating_mode,omitempty"` // "delta" or "parallel"

	// Acquisition params
	Sweeps  *int `json:"sweeps,omitempty"`
	Workers *int `json:"workers,omitempty"`

	// Microwave serial link params
	MicrowavePort *string `json:"microwave_port,omitempty"`
	BaudRate      *int    `json:"baud_rate,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }
func ptrInt64(v int64) *int64       { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the JSON file retain their default values, so partial configs are
// safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.SampleRate != nil && *c.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %f", *c.SampleRate)
	}

	if c.Granularity != nil && *c.Granularity < 1 {
		return fmt.Errorf("granularity must be >= 1, got %d", *c.Granularity)
	}

	if c.Method != nil {
		switch *c.Method {
		case "sum", "mean":
		default:
			return fmt.Errorf("method must be \"sum\" or \"mean\", got %q", *c.Method)
		}
	}

	if c.Normalization != nil {
		switch *c.Normalization {
		case "none", "ratio", "diff":
		default:
			return fmt.Errorf("normalization must be \"none\", \"ratio\" or \"diff\", got %q", *c.Normalization)
		}
	}

	if c.AlternatingMode != nil {
		switch *c.AlternatingMode {
		case "delta", "parallel":
		default:
			return fmt.Errorf("alternating_mode must be \"delta\" or \"parallel\", got %q", *c.AlternatingMode)
		}
	}

	if c.Sweeps != nil && *c.Sweeps < 0 {
		return fmt.Errorf("sweeps must be non-negative, got %d", *c.Sweeps)
	}

	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", *c.Workers)
	}

	if c.BaudRate != nil && *c.BaudRate <= 0 {
		return fmt.Errorf("baud_rate must be positive, got %d", *c.BaudRate)
	}

	return nil
}

// GetSampleRate returns the sample_rate value or the default.
func (c *TuningConfig) GetSampleRate() float64 {
	if c.SampleRate == nil {
		return 25e9 // default: 25 GS/s
	}
	return *c.SampleRate
}

// GetLaserChannel returns the laser_channel value or the default.
func (c *TuningConfig) GetLaserChannel() string {
	if c.LaserChannel == nil {
		return "d_ch1"
	}
	return *c.LaserChannel
}

// GetGateChannel returns the gate_channel value or the default (no gate).
func (c *TuningConfig) GetGateChannel() string {
	if c.GateChannel == nil {
		return ""
	}
	return *c.GateChannel
}

// GetGranularity returns the granularity value or the default.
func (c *TuningConfig) GetGranularity() int64 {
	if c.Granularity == nil {
		return 1
	}
	return *c.Granularity
}

// GetMethod returns the method value or the default.
func (c *TuningConfig) GetMethod() string {
	if c.Method == nil {
		return "mean"
	}
	return *c.Method
}

// GetSignalStartBin returns the signal_start_bin value or the default.
func (c *TuningConfig) GetSignalStartBin() int64 {
	if c.SignalStartBin == nil {
		return 0
	}
	return *c.SignalStartBin
}

// GetSignalEndBin returns the signal_end_bin value or the default.
func (c *TuningConfig) GetSignalEndBin() int64 {
	if c.SignalEndBin == nil {
		return 200
	}
	return *c.SignalEndBin
}

// GetNormalization returns the normalization value or the default.
func (c *TuningConfig) GetNormalization() string {
	if c.Normalization == nil {
		return "none"
	}
	return *c.Normalization
}

// GetNormStartBin returns the norm_start_bin value or the default.
func (c *TuningConfig) GetNormStartBin() int64 {
	if c.NormStartBin == nil {
		return 0
	}
	return *c.NormStartBin
}

// GetNormEndBin returns the norm_end_bin value or the default.
func (c *TuningConfig) GetNormEndBin() int64 {
	if c.NormEndBin == nil {
		return 0
	}
	return *c.NormEndBin
}

// GetAlternatingMode returns the alternating_mode value or the default.
func (c *TuningConfig) GetAlternatingMode() string {
	if c.AlternatingMode == nil {
		return "delta"
	}
	return *c.AlternatingMode
}

// GetSweeps returns the sweeps value or the default (run until cancelled).
func (c *TuningConfig) GetSweeps() int {
	if c.Sweeps == nil {
		return 0
	}
	return *c.Sweeps
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 1
	}
	return *c.Workers
}

// GetMicrowavePort returns the microwave_port value or the default.
func (c *TuningConfig) GetMicrowavePort() string {
	if c.MicrowavePort == nil {
		return "/dev/ttyUSB0"
	}
	return *c.MicrowavePort
}

// GetBaudRate returns the baud_rate value or the default.
func (c *TuningConfig) GetBaudRate() int {
	if c.BaudRate == nil {
		return 115200
	}
	return *c.BaudRate
}
