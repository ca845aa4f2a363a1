package pulse

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func laserElement(length float64) BlockElement {
	return BlockElement{
		InitLength:  length,
		LaserOn:     true,
		DigitalHigh: map[string]bool{"d_ch1": true},
		PulseFunction: map[string]SamplingFunction{
			"a_ch1": Idle{},
		},
	}
}

func waitElement(length, increment float64) BlockElement {
	return BlockElement{
		InitLength:  length,
		Increment:   increment,
		DigitalHigh: map[string]bool{"d_ch1": false},
		PulseFunction: map[string]SamplingFunction{
			"a_ch1": Sin{Amplitude: 0.25, Frequency: 2.87e9, Phase: 0},
		},
	}
}

func TestBlockRejectsMixedChannelSets(t *testing.T) {
	other := BlockElement{
		InitLength:  1e-6,
		DigitalHigh: map[string]bool{"d_ch2": true},
	}
	_, err := NewBlock("mixed", []BlockElement{laserElement(1e-6), other})
	require.Error(t, err)

	var structural *StructuralError
	require.ErrorAs(t, err, &structural)
	require.Equal(t, 1, structural.Index)
}

func TestBlockDurations(t *testing.T) {
	b, err := NewBlock("rabi", []BlockElement{laserElement(3e-6), waitElement(1e-6, 1e-8)})
	require.NoError(t, err)

	require.InDelta(t, 4e-6, b.InitLength(), 1e-18)
	require.InDelta(t, 1e-8, b.Increment(), 1e-18)
}

func TestBlockJSONRoundTrip(t *testing.T) {
	b, err := NewBlock("rabi", []BlockElement{laserElement(3e-6), waitElement(1e-6, 1e-8)})
	require.NoError(t, err)

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var got Block
	require.NoError(t, json.Unmarshal(data, &got))

	if diff := cmp.Diff(b, &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestBlockJSONFieldNames(t *testing.T) {
	b, err := NewBlock("rabi", []BlockElement{waitElement(1e-6, 1e-8)})
	require.NoError(t, err)

	data, err := json.Marshal(b)
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Contains(t, doc, "name")
	require.Contains(t, doc, "element_list")

	var elements []map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(doc["element_list"], &elements))
	require.Len(t, elements, 1)
	for _, key := range []string{"init_length_s", "increment_s", "laser_on", "digital_high", "pulse_function"} {
		require.Contains(t, elements[0], key)
	}
}

func TestBlockRefJSONPairEncoding(t *testing.T) {
	ref := BlockRef{Name: "rabi", Repetitions: 49}
	data, err := json.Marshal(ref)
	require.NoError(t, err)
	require.JSONEq(t, `["rabi", 49]`, string(data))

	var got BlockRef
	require.NoError(t, json.Unmarshal([]byte(`["rabi", 49]`), &got))
	require.Equal(t, ref, got)
}

func TestEnsembleJSONRoundTrip(t *testing.T) {
	ens := &BlockEnsemble{
		Name:          "rabi_ensemble",
		BlockList:     []BlockRef{{Name: "rabi", Repetitions: 49}},
		RotatingFrame: true,
		Measurement: &MeasurementInfo{
			ControlledVariable: []float64{1e-8, 2e-8, 3e-8},
			Units:              []string{"s"},
			Labels:             []string{"tau"},
			NumberOfLasers:     3,
		},
	}

	data, err := json.Marshal(ens)
	require.NoError(t, err)

	var got BlockEnsemble
	require.NoError(t, json.Unmarshal(data, &got))

	if diff := cmp.Diff(ens, &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestMeasurementInfoValidate(t *testing.T) {
	tests := []struct {
		name    string
		info    MeasurementInfo
		wantErr bool
	}{
		{
			name: "valid",
			info: MeasurementInfo{NumberOfLasers: 4, ControlledVariable: []float64{1, 2, 3, 4}},
		},
		{
			name:    "alternating with odd laser count",
			info:    MeasurementInfo{Alternating: true, NumberOfLasers: 5},
			wantErr: true,
		},
		{
			name:    "ignore index out of range",
			info:    MeasurementInfo{NumberOfLasers: 2, LaserIgnoreList: []int{2}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.info.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSequenceStepDefaults(t *testing.T) {
	var step SequenceStep
	require.NoError(t, json.Unmarshal([]byte(`{"ensemble": "odmr"}`), &step))

	require.Equal(t, "odmr", step.Ensemble)
	require.Equal(t, 0, step.Repetitions)
	require.Equal(t, -1, step.GoTo)
	require.Equal(t, -1, step.EventJumpTo)
	require.Equal(t, TriggerOff, step.EventTrigger)
	require.Equal(t, TriggerOff, step.WaitFor)
	require.NotNil(t, step.FlagTrigger)
	require.NotNil(t, step.FlagHigh)
}

func TestSequenceStepRequiresEnsemble(t *testing.T) {
	var step SequenceStep
	require.Error(t, json.Unmarshal([]byte(`{"repetitions": 3}`), &step))
}

func TestSequenceStepNameTag(t *testing.T) {
	seq := &Sequence{
		Name:          "xy8",
		RotatingFrame: true,
		Steps:         []SequenceStep{NewSequenceStep("a"), NewSequenceStep("a")},
	}
	if got := seq.StepNameTag(1); got != "a_001" {
		t.Errorf("rotating StepNameTag = %q, want %q", got, "a_001")
	}
	seq.RotatingFrame = false
	if got := seq.StepNameTag(1); got != "a" {
		t.Errorf("non-rotating StepNameTag = %q, want %q", got, "a")
	}
}

func TestSequenceIsFinite(t *testing.T) {
	seq := &Sequence{Name: "loop", Steps: []SequenceStep{NewSequenceStep("a")}}
	require.True(t, seq.IsFinite())
	seq.Steps[0].Repetitions = -1
	require.False(t, seq.IsFinite())
}
