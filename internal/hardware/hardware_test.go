package hardware

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xleonplayz/IQO-s/internal/sampler"
	"github.com/xleonplayz/IQO-s/internal/sequencer"
)

func TestMockGeneratorArmRequiresLoadedWaveforms(t *testing.T) {
	ctx := context.Background()
	gen := NewMockPulseGenerator()

	pl := &sequencer.Playlist{
		Name:  "seq",
		Steps: []sequencer.PlayStep{{Waveform: "rabi_000"}},
	}
	require.Error(t, gen.ArmSequence(ctx, pl))

	require.NoError(t, gen.LoadWaveform(ctx, &sampler.Waveform{Name: "rabi_000"}))
	require.NoError(t, gen.ArmSequence(ctx, pl))
	require.Same(t, pl, gen.Armed)

	require.NoError(t, gen.Start(ctx))
	require.True(t, gen.Running)
	require.NoError(t, gen.Stop(ctx))
	require.False(t, gen.Running)
}

func TestMockGeneratorFaultInjection(t *testing.T) {
	ctx := context.Background()
	gen := NewMockPulseGenerator()

	boom := errors.New("device busy")
	gen.FailNext = boom
	require.ErrorIs(t, gen.Start(ctx), boom)
	// The fault fires once.
	require.NoError(t, gen.Start(ctx))
}

func TestMockCounterReplaysTraces(t *testing.T) {
	ctx := context.Background()
	counter := NewMockPhotonCounter([]int64{1, 2}, []int64{3, 4})

	first, err := counter.ReadCountTrace(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, first)

	second, err := counter.ReadCountTrace(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4}, second)

	// Exhausted counters repeat the last trace.
	third, err := counter.ReadCountTrace(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4}, third)

	// Returned traces are copies.
	third[0] = 99
	again, err := counter.ReadCountTrace(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 4}, again)
}

func TestMockCounterHonorsContext(t *testing.T) {
	counter := NewMockPhotonCounter([]int64{1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := counter.ReadCountTrace(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

// scriptedPort answers every Request with the next prepared reply.
type scriptedPort struct {
	replies  []string
	commands []string
}

func (p *scriptedPort) Request(_ context.Context, command string) (string, error) {
	p.commands = append(p.commands, command)
	if len(p.replies) == 0 {
		return "", errors.New("no reply prepared")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return reply, nil
}

func TestSerialMicrowaveSource(t *testing.T) {
	ctx := context.Background()
	port := &scriptedPort{replies: []string{"OK", "OK", "OK", "OK"}}
	src := NewSerialMicrowaveSource(port)

	require.NoError(t, src.SetFrequency(ctx, 2.87e9))
	require.NoError(t, src.SetPower(ctx, -10))
	require.NoError(t, src.On(ctx))
	require.NoError(t, src.Off(ctx))

	require.Equal(t, []string{
		"FREQ 2.870000000e+09",
		"POW -10.000",
		"OUTP ON",
		"OUTP OFF",
	}, port.commands)
}

func TestSerialMicrowaveSourceRejectedCommand(t *testing.T) {
	ctx := context.Background()
	src := NewSerialMicrowaveSource(&scriptedPort{replies: []string{"ERR -222"}})

	err := src.SetPower(ctx, 99)
	require.Error(t, err)
	require.Contains(t, err.Error(), "rejected")
}

func TestSerialMicrowaveSourceFrequencyRange(t *testing.T) {
	src := NewSerialMicrowaveSource(&scriptedPort{})
	require.Error(t, src.SetFrequency(context.Background(), 0))
	require.Error(t, src.SetFrequency(context.Background(), -1e9))
}
