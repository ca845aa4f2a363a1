package pulse

import (
	"encoding/json"
	"fmt"
	"sort"
)

// A Block is an ordered list of BlockElements forming one logical unit of a
// measurement (e.g. a pi-pulse with padding). All elements of a block must
// declare the same channel set.
type Block struct {
	Name     string
	Elements []BlockElement
}

// NewBlock builds a Block and validates channel set uniformity across its
// elements. Mixed channel sets are a structural error.
func NewBlock(name string, elements []BlockElement) (*Block, error) {
	b := &Block{Name: name, Elements: elements}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate checks element constraints and channel set uniformity.
func (b *Block) Validate() error {
	var ref map[string]bool
	for i := range b.Elements {
		e := &b.Elements[i]
		if err := e.Validate(); err != nil {
			return &StructuralError{Object: b.Name, Index: i, Reason: err.Error()}
		}
		set := e.ChannelSet()
		if ref == nil {
			ref = set
			continue
		}
		if !sameChannelSet(ref, set) {
			return &StructuralError{
				Object: b.Name,
				Index:  i,
				Reason: fmt.Sprintf("element channel set %v differs from block channel set %v",
					sortedKeys(set), sortedKeys(ref)),
			}
		}
	}
	return nil
}

// InitLength returns the summed base duration of all elements in seconds.
func (b *Block) InitLength() float64 {
	var total float64
	for i := range b.Elements {
		total += b.Elements[i].InitLength
	}
	return total
}

// Increment returns the summed per-repetition duration increment in seconds.
func (b *Block) Increment() float64 {
	var total float64
	for i := range b.Elements {
		total += b.Elements[i].Increment
	}
	return total
}

// ChannelSet returns the channel set shared by all elements, empty for an
// empty block.
func (b *Block) ChannelSet() map[string]bool {
	if len(b.Elements) == 0 {
		return map[string]bool{}
	}
	return b.Elements[0].ChannelSet()
}

// AnalogChannels returns the sorted analog channels used by the block.
func (b *Block) AnalogChannels() []string {
	if len(b.Elements) == 0 {
		return nil
	}
	return b.Elements[0].AnalogChannels()
}

// DigitalChannels returns the sorted digital channels used by the block.
func (b *Block) DigitalChannels() []string {
	if len(b.Elements) == 0 {
		return nil
	}
	return b.Elements[0].DigitalChannels()
}

type blockJSON struct {
	Name        string          `json:"name"`
	ElementList []*BlockElement `json:"element_list"`
}

// MarshalJSON encodes the block in the persisted object format.
func (b *Block) MarshalJSON() ([]byte, error) {
	doc := blockJSON{Name: b.Name, ElementList: make([]*BlockElement, len(b.Elements))}
	for i := range b.Elements {
		doc.ElementList[i] = &b.Elements[i]
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes and validates a persisted block document.
func (b *Block) UnmarshalJSON(data []byte) error {
	var doc blockJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	b.Name = doc.Name
	b.Elements = make([]BlockElement, len(doc.ElementList))
	for i, e := range doc.ElementList {
		b.Elements[i] = *e
	}
	return b.Validate()
}

func sameChannelSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for ch := range a {
		if !b[ch] {
			return false
		}
	}
	return true
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
