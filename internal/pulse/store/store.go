// Package store persists pulse objects as JSON documents in three flat
// namespaces (blocks, ensembles, sequences) and keeps an eagerly loaded
// in-memory registry per namespace. Higher-level objects reference lower
// levels by name; the store resolves those references at load time and
// refuses deletions and renames that would leave dangling references.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xleonplayz/IQO-s/internal/pulse"
)

const (
	blocksDir    = "blocks"
	ensemblesDir = "ensembles"
	sequencesDir = "sequences"
)

// MissingDependencyError reports a name reference that cannot be resolved
// in the store.
type MissingDependencyError struct {
	Kind    string // "block" or "ensemble"
	Name    string // missing object name
	Referer string // object holding the dangling reference
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s %q referenced by %q is not in the store", e.Kind, e.Name, e.Referer)
}

// ReferencedError reports a deletion or rename blocked by live references.
type ReferencedError struct {
	Kind     string
	Name     string
	Referers []string
}

func (e *ReferencedError) Error() string {
	return fmt.Sprintf("%s %q is still referenced by: %s", e.Kind, e.Name, strings.Join(e.Referers, ", "))
}

// Store is a registry of pulse objects backed by one JSON file per object.
// All methods are safe for concurrent use.
type Store struct {
	root string

	mu        sync.RWMutex
	blocks    map[string]*pulse.Block
	ensembles map[string]*pulse.BlockEnsemble
	sequences map[string]*pulse.Sequence
}

// Open creates the namespace directories under root if needed and loads
// every persisted object into memory. Malformed documents fail the load.
func Open(root string) (*Store, error) {
	s := &Store{
		root:      root,
		blocks:    make(map[string]*pulse.Block),
		ensembles: make(map[string]*pulse.BlockEnsemble),
		sequences: make(map[string]*pulse.Sequence),
	}
	for _, dir := range []string{blocksDir, ensemblesDir, sequencesDir} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create namespace directory: %w", err)
		}
	}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	if err := loadNamespace(filepath.Join(s.root, blocksDir), s.blocks, func() *pulse.Block {
		return &pulse.Block{}
	}, func(b *pulse.Block) string { return b.Name }); err != nil {
		return err
	}
	if err := loadNamespace(filepath.Join(s.root, ensemblesDir), s.ensembles, func() *pulse.BlockEnsemble {
		return &pulse.BlockEnsemble{}
	}, func(e *pulse.BlockEnsemble) string { return e.Name }); err != nil {
		return err
	}
	return loadNamespace(filepath.Join(s.root, sequencesDir), s.sequences, func() *pulse.Sequence {
		return &pulse.Sequence{}
	}, func(q *pulse.Sequence) string { return q.Name })
}

func loadNamespace[T any](dir string, into map[string]T, newT func() T, nameOf func(T) string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read namespace %s: %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		obj := newT()
		if err := json.Unmarshal(data, obj); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		into[nameOf(obj)] = obj
	}
	return nil
}

func writeObject(dir, name string, obj interface{}) error {
	data, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", name, err)
	}
	path := filepath.Join(dir, name+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// SaveBlock validates and persists a block, replacing any previous version.
func (s *Store) SaveBlock(b *pulse.Block) error {
	if b.Name == "" {
		return pulse.NewStructuralError("(unnamed block)", "block name must not be empty")
	}
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeObject(filepath.Join(s.root, blocksDir), b.Name, b); err != nil {
		return err
	}
	s.blocks[b.Name] = b
	return nil
}

// GetBlock returns the named block or a MissingDependencyError.
func (s *Store) GetBlock(name string) (*pulse.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blocks[name]
	if !ok {
		return nil, &MissingDependencyError{Kind: "block", Name: name, Referer: "(direct lookup)"}
	}
	return b, nil
}

// DeleteBlock removes a block unless an ensemble still references it.
func (s *Store) DeleteBlock(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blocks[name]; !ok {
		return &MissingDependencyError{Kind: "block", Name: name, Referer: "(direct lookup)"}
	}
	if referers := s.blockReferers(name); len(referers) > 0 {
		return &ReferencedError{Kind: "block", Name: name, Referers: referers}
	}
	if err := os.Remove(filepath.Join(s.root, blocksDir, name+".json")); err != nil {
		return fmt.Errorf("failed to delete block file: %w", err)
	}
	delete(s.blocks, name)
	return nil
}

// RenameBlock renames a block unless an ensemble still references the old
// name.
func (s *Store) RenameBlock(oldName, newName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blocks[oldName]
	if !ok {
		return &MissingDependencyError{Kind: "block", Name: oldName, Referer: "(direct lookup)"}
	}
	if referers := s.blockReferers(oldName); len(referers) > 0 {
		return &ReferencedError{Kind: "block", Name: oldName, Referers: referers}
	}
	if _, exists := s.blocks[newName]; exists {
		return fmt.Errorf("block %q already exists", newName)
	}
	b.Name = newName
	if err := writeObject(filepath.Join(s.root, blocksDir), newName, b); err != nil {
		b.Name = oldName
		return err
	}
	if err := os.Remove(filepath.Join(s.root, blocksDir, oldName+".json")); err != nil {
		return fmt.Errorf("failed to remove old block file: %w", err)
	}
	delete(s.blocks, oldName)
	s.blocks[newName] = b
	return nil
}

// BlockNames returns all stored block names, sorted.
func (s *Store) BlockNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedNames(s.blocks)
}

// SaveEnsemble validates and persists an ensemble. Every referenced block
// must already be in the store (eager resolution, spec'd fail-fast).
func (s *Store) SaveEnsemble(e *pulse.BlockEnsemble) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ref := range e.BlockList {
		if _, ok := s.blocks[ref.Name]; !ok {
			return &MissingDependencyError{Kind: "block", Name: ref.Name, Referer: e.Name}
		}
	}
	if err := writeObject(filepath.Join(s.root, ensemblesDir), e.Name, e); err != nil {
		return err
	}
	s.ensembles[e.Name] = e
	return nil
}

// GetEnsemble returns the named ensemble or a MissingDependencyError.
func (s *Store) GetEnsemble(name string) (*pulse.BlockEnsemble, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.ensembles[name]
	if !ok {
		return nil, &MissingDependencyError{Kind: "ensemble", Name: name, Referer: "(direct lookup)"}
	}
	return e, nil
}

// ResolveEnsemble returns the ensemble plus all referenced blocks, failing
// with a MissingDependencyError if any reference dangles.
func (s *Store) ResolveEnsemble(name string) (*pulse.BlockEnsemble, map[string]*pulse.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.ensembles[name]
	if !ok {
		return nil, nil, &MissingDependencyError{Kind: "ensemble", Name: name, Referer: "(direct lookup)"}
	}
	blocks := make(map[string]*pulse.Block)
	for _, ref := range e.BlockList {
		b, ok := s.blocks[ref.Name]
		if !ok {
			return nil, nil, &MissingDependencyError{Kind: "block", Name: ref.Name, Referer: e.Name}
		}
		blocks[ref.Name] = b
	}
	return e, blocks, nil
}

// DeleteEnsemble removes an ensemble unless a sequence still references it.
func (s *Store) DeleteEnsemble(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ensembles[name]; !ok {
		return &MissingDependencyError{Kind: "ensemble", Name: name, Referer: "(direct lookup)"}
	}
	if referers := s.ensembleReferers(name); len(referers) > 0 {
		return &ReferencedError{Kind: "ensemble", Name: name, Referers: referers}
	}
	if err := os.Remove(filepath.Join(s.root, ensemblesDir, name+".json")); err != nil {
		return fmt.Errorf("failed to delete ensemble file: %w", err)
	}
	delete(s.ensembles, name)
	return nil
}

// EnsembleNames returns all stored ensemble names, sorted.
func (s *Store) EnsembleNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedNames(s.ensembles)
}

// SaveSequence validates and persists a sequence. Every referenced ensemble
// (and transitively every block) must already be in the store.
func (s *Store) SaveSequence(q *pulse.Sequence) error {
	if err := q.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range q.Steps {
		ens, ok := s.ensembles[q.Steps[i].Ensemble]
		if !ok {
			return &MissingDependencyError{Kind: "ensemble", Name: q.Steps[i].Ensemble, Referer: q.Name}
		}
		for _, ref := range ens.BlockList {
			if _, ok := s.blocks[ref.Name]; !ok {
				return &MissingDependencyError{Kind: "block", Name: ref.Name, Referer: ens.Name}
			}
		}
	}
	if err := writeObject(filepath.Join(s.root, sequencesDir), q.Name, q); err != nil {
		return err
	}
	s.sequences[q.Name] = q
	return nil
}

// GetSequence returns the named sequence or a MissingDependencyError.
func (s *Store) GetSequence(name string) (*pulse.Sequence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.sequences[name]
	if !ok {
		return nil, &MissingDependencyError{Kind: "sequence", Name: name, Referer: "(direct lookup)"}
	}
	return q, nil
}

// ResolveSequence returns the sequence plus all transitively referenced
// ensembles and blocks, failing on the first dangling reference.
func (s *Store) ResolveSequence(name string) (*pulse.Sequence, map[string]*pulse.BlockEnsemble, map[string]*pulse.Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.sequences[name]
	if !ok {
		return nil, nil, nil, &MissingDependencyError{Kind: "sequence", Name: name, Referer: "(direct lookup)"}
	}
	ensembles := make(map[string]*pulse.BlockEnsemble)
	blocks := make(map[string]*pulse.Block)
	for i := range q.Steps {
		ensName := q.Steps[i].Ensemble
		ens, ok := s.ensembles[ensName]
		if !ok {
			return nil, nil, nil, &MissingDependencyError{Kind: "ensemble", Name: ensName, Referer: q.Name}
		}
		ensembles[ensName] = ens
		for _, ref := range ens.BlockList {
			b, ok := s.blocks[ref.Name]
			if !ok {
				return nil, nil, nil, &MissingDependencyError{Kind: "block", Name: ref.Name, Referer: ensName}
			}
			blocks[ref.Name] = b
		}
	}
	return q, ensembles, blocks, nil
}

// DeleteSequence removes a sequence. Sequences are top-level, nothing
// references them.
func (s *Store) DeleteSequence(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sequences[name]; !ok {
		return &MissingDependencyError{Kind: "sequence", Name: name, Referer: "(direct lookup)"}
	}
	if err := os.Remove(filepath.Join(s.root, sequencesDir, name+".json")); err != nil {
		return fmt.Errorf("failed to delete sequence file: %w", err)
	}
	delete(s.sequences, name)
	return nil
}

// SequenceNames returns all stored sequence names, sorted.
func (s *Store) SequenceNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedNames(s.sequences)
}

// blockReferers lists ensembles referencing the named block. Callers hold
// the lock.
func (s *Store) blockReferers(name string) []string {
	var referers []string
	for ensName, ens := range s.ensembles {
		for _, ref := range ens.BlockList {
			if ref.Name == name {
				referers = append(referers, ensName)
				break
			}
		}
	}
	sort.Strings(referers)
	return referers
}

// ensembleReferers lists sequences referencing the named ensemble. Callers
// hold the lock.
func (s *Store) ensembleReferers(name string) []string {
	var referers []string
	for seqName, seq := range s.sequences {
		for i := range seq.Steps {
			if seq.Steps[i].Ensemble == name {
				referers = append(referers, seqName)
				break
			}
		}
	}
	sort.Strings(referers)
	return referers
}

func sortedNames[T any](m map[string]T) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
