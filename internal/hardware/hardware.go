// Package hardware defines the capability interfaces of the lab devices a
// pulsed measurement needs: a pulse generator to play the sampled
// waveforms, a photon counter delivering binned count traces, and a
// microwave source. Drivers and mocks implement the same interfaces, so
// the measurement loop never knows which one it talks to.
package hardware

import (
	"context"

	"github.com/xleonplayz/IQO-s/internal/sampler"
	"github.com/xleonplayz/IQO-s/internal/sequencer"
)

// PulseGenerator plays sampled waveforms, either standalone or under
// sequencer control.
type PulseGenerator interface {
	// LoadWaveform transfers one sampled waveform into device memory
	// under its name tag.
	LoadWaveform(ctx context.Context, wf *sampler.Waveform) error
	// ArmSequence programs the compiled play-list. All waveforms it
	// references must be loaded first.
	ArmSequence(ctx context.Context, pl *sequencer.Playlist) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// PhotonCounter delivers the accumulated count trace of the running
// acquisition. Implementations block until a fresh trace is available or
// the context is done.
type PhotonCounter interface {
	// ReadCountTrace returns the binned counts of one sweep.
	ReadCountTrace(ctx context.Context) ([]int64, error)
}

// GatedPhotonCounter is implemented by counters that gate on the laser
// and deliver one row per pulse instead of a flat trace.
type GatedPhotonCounter interface {
	ReadGatedTrace(ctx context.Context) ([][]int64, error)
}

// MicrowaveSource drives the CW or swept microwave output.
type MicrowaveSource interface {
	SetFrequency(ctx context.Context, hz float64) error
	SetPower(ctx context.Context, dbm float64) error
	On(ctx context.Context) error
	Off(ctx context.Context) error
}
