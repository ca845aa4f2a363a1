package sampler

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xleonplayz/IQO-s/internal/pulse"
)

// EnsembleInfo describes the discretization of one ensemble: element
// lengths on the sample grid, digital transition positions and the laser
// pulse timing needed by the extraction stage.
type EnsembleInfo struct {
	NumberOfSamples    int64
	NumberOfElements   int
	ElementLengthsBins []int64
	DigitalRisingBins  map[string][]int64
	DigitalFallingBins map[string][]int64
	LaserRisingBins    []int64
	LaserFallingBins   []int64
	AnalogChannels     []string
	DigitalChannels    []string
	// IdealLength is the undiscretized total duration in seconds.
	IdealLength float64
	// PaddingBins counts idle samples appended to satisfy the waveform
	// length granularity.
	PaddingBins int64
}

// LaserIntervals pairs rising and falling laser bins into [start, end)
// intervals. Unpaired leading or trailing flanks are dropped and reported
// through the returned warning, mirroring what happens when a waveform
// starts or ends with the laser on.
func (info *EnsembleInfo) LaserIntervals() ([][2]int64, string) {
	rising := append([]int64(nil), info.LaserRisingBins...)
	falling := append([]int64(nil), info.LaserFallingBins...)
	var warnings []string
	for len(rising) != len(falling) {
		if len(rising) > len(falling) {
			if len(falling) == 0 || rising[len(rising)-1] >= falling[len(falling)-1] {
				rising = rising[:len(rising)-1]
			} else {
				rising = rising[1:]
			}
		} else {
			if len(rising) == 0 || rising[0] >= falling[0] {
				falling = falling[1:]
			} else {
				falling = falling[:len(falling)-1]
			}
		}
		warnings = append(warnings, "dropped unpaired laser flank")
	}
	intervals := make([][2]int64, len(rising))
	for i := range rising {
		intervals[i] = [2]int64{rising[i], falling[i]}
	}
	return intervals, strings.Join(warnings, "; ")
}

// expandedElement is one element occurrence in waveform order, with the
// factor its increment is multiplied by before discretization.
type expandedElement struct {
	el        *pulse.BlockElement
	factor    int
	blockName string
}

// expandRepetitions flattens the ensemble in waveform order. The increment
// factor equals the repetition index of the enclosing block, so repeated
// blocks grow by one increment per pass (the tau sweep encoding).
func expandRepetitions(ens *pulse.BlockEnsemble, blocks map[string]*pulse.Block) []expandedElement {
	var out []expandedElement
	for _, ref := range ens.BlockList {
		block := blocks[ref.Name]
		for rep := 0; rep <= ref.Repetitions; rep++ {
			for i := range block.Elements {
				out = append(out, expandedElement{el: &block.Elements[i], factor: rep, blockName: ref.Name})
			}
		}
	}
	return out
}

// expandSweepPoint flattens the ensemble with a fixed sweep index k: every
// element's duration becomes init_length + k*increment.
func expandSweepPoint(ens *pulse.BlockEnsemble, blocks map[string]*pulse.Block, k int) []expandedElement {
	var out []expandedElement
	for _, ref := range ens.BlockList {
		block := blocks[ref.Name]
		for rep := 0; rep <= ref.Repetitions; rep++ {
			for i := range block.Elements {
				out = append(out, expandedElement{el: &block.Elements[i], factor: k, blockName: ref.Name})
			}
		}
	}
	return out
}

// Analyze discretizes the ensemble without generating samples: element
// lengths in bins via carry-forward rounding plus digital and laser
// transition bookkeeping.
func Analyze(ens *pulse.BlockEnsemble, blocks map[string]*pulse.Block, settings *Settings) (*EnsembleInfo, error) {
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	if err := checkActivation(ens, blocks, settings); err != nil {
		return nil, err
	}
	elements := expandRepetitions(ens, blocks)
	return analyzeExpanded(ens, elements, settings)
}

func analyzeExpanded(ens *pulse.BlockEnsemble, elements []expandedElement, settings *Settings) (*EnsembleInfo, error) {
	info := &EnsembleInfo{
		DigitalRisingBins:  make(map[string][]int64),
		DigitalFallingBins: make(map[string][]int64),
	}
	if len(elements) == 0 {
		return info, nil
	}

	info.AnalogChannels = elements[0].el.AnalogChannels()
	info.DigitalChannels = elements[0].el.DigitalChannels()
	for _, ch := range info.DigitalChannels {
		info.DigitalRisingBins[ch] = []int64{}
		info.DigitalFallingBins[ch] = []int64{}
	}

	// Transition tracking starts from the state of the very last element so
	// a seamlessly looping waveform still records its initial edge.
	last := elements[len(elements)-1].el
	prevDigital := make(map[string]bool, len(last.DigitalHigh))
	for ch, state := range last.DigitalHigh {
		prevDigital[ch] = state
	}
	prevLaserOn := last.LaserOn

	laserSource := settings.laserSource()
	laserIsDigital := strings.HasPrefix(laserSource, "d")

	var currentEndTime float64
	var currentStartBin int64
	for _, ee := range elements {
		el := ee.el
		for ch, state := range el.DigitalHigh {
			if prevDigital[ch] != state {
				if state {
					info.DigitalRisingBins[ch] = append(info.DigitalRisingBins[ch], currentStartBin)
				} else {
					info.DigitalFallingBins[ch] = append(info.DigitalFallingBins[ch], currentStartBin)
				}
				prevDigital[ch] = state
			}
		}
		if !laserIsDigital && prevLaserOn != el.LaserOn {
			if el.LaserOn {
				info.LaserRisingBins = append(info.LaserRisingBins, currentStartBin)
			} else {
				info.LaserFallingBins = append(info.LaserFallingBins, currentStartBin)
			}
			prevLaserOn = el.LaserOn
		}

		length := el.InitLength + float64(ee.factor)*el.Increment
		if length < 0 {
			return nil, &ConfigurationError{
				Object: ens.Name,
				Reason: fmt.Sprintf("element in block %q has negative duration %g s at sweep factor %d",
					ee.blockName, length, ee.factor),
			}
		}
		currentEndTime += length

		// Round the cumulative time, not the element length: the remainder
		// carries into the next element so the total never drifts by more
		// than one sample period.
		currentEndBin := int64(math.Round(currentEndTime * settings.SampleRate))
		info.ElementLengthsBins = append(info.ElementLengthsBins, currentEndBin-currentStartBin)
		currentStartBin = currentEndBin
	}

	info.NumberOfElements = len(info.ElementLengthsBins)
	info.NumberOfSamples = currentStartBin
	info.IdealLength = currentEndTime

	if settings.Granularity > 1 && info.NumberOfSamples%settings.Granularity != 0 {
		info.PaddingBins = settings.Granularity - info.NumberOfSamples%settings.Granularity
		info.NumberOfSamples += info.PaddingBins
	}

	if laserIsDigital {
		info.LaserRisingBins = append([]int64(nil), info.DigitalRisingBins[laserSource]...)
		info.LaserFallingBins = append([]int64(nil), info.DigitalFallingBins[laserSource]...)
	}
	sortBins(info.LaserRisingBins)
	sortBins(info.LaserFallingBins)
	return info, nil
}

func sortBins(bins []int64) {
	sort.Slice(bins, func(i, j int) bool { return bins[i] < bins[j] })
}
