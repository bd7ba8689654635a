package monitor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ===== Clock =====

type systemClock struct{}

// NewSystemClock returns a Clock implementation backed by time.Now.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

// ===== ID Generator =====

type uuidGenerator struct{}

// NewUUIDGenerator returns an IDGenerator that produces v7 UUIDs where available, falling back to v4.
func NewUUIDGenerator() IDGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) NewID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// ===== Simulated usage source =====

// SimulatedSource stands in for the OS-level usage sensor when no backend is
// configured. Each sample accumulates a small random number of minutes per
// package, so usage only ever grows within a day.
type SimulatedSource struct {
	mu      sync.Mutex
	rng     *rand.Rand
	minutes map[string]int
	maxStep int
}

// NewSimulatedSource builds a simulated sensor using the provided random
// source. maxStep bounds the per-sample increment in minutes.
func NewSimulatedSource(rng *rand.Rand, maxStep int) *SimulatedSource {
	if maxStep <= 0 {
		maxStep = 3
	}
	return &SimulatedSource{
		rng:     rng,
		minutes: make(map[string]int),
		maxStep: maxStep,
	}
}

func (s *SimulatedSource) Sample(_ context.Context, packageName string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minutes[packageName] += s.rng.Intn(s.maxStep + 1)
	return s.minutes[packageName], nil
}

// ResetDay clears the accumulated simulation at a day rollover.
func (s *SimulatedSource) ResetDay() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minutes = make(map[string]int)
}
