package hardware

import (
	"context"
	"fmt"
	"sync"

	"github.com/xleonplayz/IQO-s/internal/sampler"
	"github.com/xleonplayz/IQO-s/internal/sequencer"
)

// MockPulseGenerator is an in-memory pulse generator for tests and dry
// runs. It enforces the load-before-arm ordering a real device would.
type MockPulseGenerator struct {
	mu        sync.Mutex
	Waveforms map[string]*sampler.Waveform
	Armed     *sequencer.Playlist
	Running   bool
	// FailNext makes the next call return an error, for fault injection.
	FailNext error
}

func NewMockPulseGenerator() *MockPulseGenerator {
	return &MockPulseGenerator{Waveforms: make(map[string]*sampler.Waveform)}
}

func (g *MockPulseGenerator) takeFault() error {
	err := g.FailNext
	g.FailNext = nil
	return err
}

func (g *MockPulseGenerator) LoadWaveform(_ context.Context, wf *sampler.Waveform) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFault(); err != nil {
		return err
	}
	g.Waveforms[wf.Name] = wf
	return nil
}

func (g *MockPulseGenerator) ArmSequence(_ context.Context, pl *sequencer.Playlist) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFault(); err != nil {
		return err
	}
	for i := range pl.Steps {
		if _, ok := g.Waveforms[pl.Steps[i].Waveform]; !ok {
			return fmt.Errorf("arming %q: waveform %q not loaded", pl.Name, pl.Steps[i].Waveform)
		}
	}
	g.Armed = pl
	return nil
}

func (g *MockPulseGenerator) Start(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFault(); err != nil {
		return err
	}
	g.Running = true
	return nil
}

func (g *MockPulseGenerator) Stop(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.takeFault(); err != nil {
		return err
	}
	g.Running = false
	return nil
}

// MockPhotonCounter replays a fixed list of traces, one per sweep.
type MockPhotonCounter struct {
	mu     sync.Mutex
	Traces [][]int64
	next   int
}

func NewMockPhotonCounter(traces ...[]int64) *MockPhotonCounter {
	return &MockPhotonCounter{Traces: traces}
}

// ReadCountTrace returns the next prepared trace, then keeps repeating
// the last one so open-ended acquisitions never starve.
func (c *MockPhotonCounter) ReadCountTrace(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Traces) == 0 {
		return nil, fmt.Errorf("mock counter has no traces")
	}
	idx := c.next
	if idx >= len(c.Traces) {
		idx = len(c.Traces) - 1
	} else {
		c.next++
	}
	trace := make([]int64, len(c.Traces[idx]))
	copy(trace, c.Traces[idx])
	return trace, nil
}

// MockMicrowaveSource records every setting change for assertions.
type MockMicrowaveSource struct {
	mu        sync.Mutex
	Frequency float64
	Power     float64
	Output    bool
	Calls     []string
}

func NewMockMicrowaveSource() *MockMicrowaveSource {
	return &MockMicrowaveSource{}
}

func (m *MockMicrowaveSource) SetFrequency(_ context.Context, hz float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Frequency = hz
	m.Calls = append(m.Calls, fmt.Sprintf("freq %g", hz))
	return nil
}

func (m *MockMicrowaveSource) SetPower(_ context.Context, dbm float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Power = dbm
	m.Calls = append(m.Calls, fmt.Sprintf("power %g", dbm))
	return nil
}

func (m *MockMicrowaveSource) On(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Output = true
	m.Calls = append(m.Calls, "on")
	return nil
}

func (m *MockMicrowaveSource) Off(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Output = false
	m.Calls = append(m.Calls, "off")
	return nil
}
