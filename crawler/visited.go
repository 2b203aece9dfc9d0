package crawler

import (
	"errors"
	"fmt"
	"os"
	"sync"

	bloom "github.com/bits-and-blooms/bloom/v3"
	"github.com/edsrzf/mmap-go"
)

// VisitedSet records links already verified as alive during one run.
// Implementations are safe for concurrent use.
type VisitedSet interface {
	Contains(link string) bool
	Add(link string)
	Close() error
}

// MemorySet is an exact, map-backed VisitedSet.
type MemorySet struct {
	mu    sync.Mutex
	links map[string]struct{}
}

// NewMemorySet returns an empty MemorySet.
func NewMemorySet() *MemorySet {
	return &MemorySet{links: make(map[string]struct{})}
}

func (s *MemorySet) Contains(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.links[link]
	return ok
}

func (s *MemorySet) Add(link string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link] = struct{}{}
}

func (s *MemorySet) Close() error { return nil }

const (
	bloomCapacity = 100_000
	bloomFPRate   = 0.001
	bloomSyncEach = 1000
)

// BloomSet is a disk-backed VisitedSet with a constant memory footprint.
// The filter is mirrored into a memory-mapped temp file.
//
// A false positive makes a live-but-unchecked link look visited, so a
// broken link can be missed with probability bloomFPRate. Use MemorySet
// when exact results matter more than memory.
type BloomSet struct {
	mu      sync.Mutex
	filter  *bloom.BloomFilter
	file    *os.File
	mmap    mmap.MMap
	tmpPath string
	pending uint64 // links added since last sync
	lastErr error  // last periodic sync failure
}

// NewBloomSet creates a BloomSet backed by a file in the OS temp directory.
func NewBloomSet() (*BloomSet, error) {
	filter := bloom.NewWithEstimates(bloomCapacity, bloomFPRate)

	data, err := filter.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal bloom filter: %w", err)
	}

	f, err := os.CreateTemp("", "zombiemap-visited-*.bloom")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	s := &BloomSet{filter: filter, file: f, tmpPath: f.Name()}

	if err := f.Truncate(int64(len(data))); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("truncate temp file: %w", err)
	}
	s.mmap, err = mmap.MapRegion(f, len(data), mmap.RDWR, 0, 0)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("mmap temp file: %w", err)
	}
	copy(s.mmap, data)
	return s, nil
}

func (s *BloomSet) Contains(link string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter.TestString(link)
}

func (s *BloomSet) Add(link string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter.AddString(link)
	s.pending++
	if s.pending >= bloomSyncEach {
		if err := s.syncLocked(); err != nil {
			s.lastErr = err
		}
	}
}

// syncLocked copies the filter into the mapping and flushes it.
// Must be called with mu held.
func (s *BloomSet) syncLocked() error {
	data, err := s.filter.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshal bloom filter: %w", err)
	}
	copy(s.mmap, data)
	if err := s.mmap.Flush(); err != nil {
		return fmt.Errorf("flush mmap: %w", err)
	}
	s.pending = 0
	return nil
}

// Close flushes pending state, unmaps and removes the temp file.
func (s *BloomSet) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.lastErr != nil {
		errs = append(errs, s.lastErr)
	}
	if s.mmap != nil {
		if s.pending > 0 {
			if err := s.syncLocked(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := s.mmap.Unmap(); err != nil {
			errs = append(errs, fmt.Errorf("unmap: %w", err))
		}
		s.mmap = nil
	}
	if s.file != nil {
		if err := s.file.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close file: %w", err))
		}
		s.file = nil
	}
	if s.tmpPath != "" {
		if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove temp file: %w", err))
		}
		s.tmpPath = ""
	}

	if len(errs) > 0 {
		return fmt.Errorf("close visited set: %w", errors.Join(errs...))
	}
	return nil
}
