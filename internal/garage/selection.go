package garage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/autolinkhq/autolink-backend/internal/registry"
)

// Empty-result copy for the vehicle picker.
const (
	MsgNoMakesFound  = "No makes found for that year."
	MsgNoModelsFound = "No models found for that make/year."
)

// ErrStaleSelection marks a lookup that was superseded by a newer request for
// the same picker input before it completed.
var ErrStaleSelection = errors.New("selection superseded by a newer request")

// Selector serves the vehicle picker. Each (session, input) pair carries a
// generation counter: a response is only returned if no newer request for the
// same input started while it was in flight.
type Selector struct {
	registry registry.Service

	mu   sync.Mutex
	gens map[string]uint64
}

// NewSelector builds a picker selector on top of the registry service.
func NewSelector(reg registry.Service) (*Selector, error) {
	if reg == nil {
		return nil, fmt.Errorf("registry service required")
	}
	return &Selector{
		registry: reg,
		gens:     make(map[string]uint64),
	}, nil
}

// Makes resolves the manufacturer list for a picker session and year. Empty
// results carry user-facing copy instead of an error.
func (s *Selector) Makes(ctx context.Context, sessionID string, year int) ([]registry.Make, string, error) {
	scope := fmt.Sprintf("makes:%s", sessionID)
	gen := s.next(scope)

	makes, err := s.registry.Makes(ctx, year)
	if !s.isCurrent(scope, gen) {
		return nil, "", ErrStaleSelection
	}
	if err != nil {
		return nil, "", err
	}
	if len(makes) == 0 {
		return []registry.Make{}, MsgNoMakesFound, nil
	}
	return makes, "", nil
}

// Models resolves the model list for a picker session, year, and make.
func (s *Selector) Models(ctx context.Context, sessionID string, year int, makeID int64) ([]registry.Model, string, error) {
	scope := fmt.Sprintf("models:%s", sessionID)
	gen := s.next(scope)

	models, err := s.registry.Models(ctx, year, makeID)
	if !s.isCurrent(scope, gen) {
		return nil, "", ErrStaleSelection
	}
	if err != nil {
		return nil, "", err
	}
	if len(models) == 0 {
		return []registry.Model{}, MsgNoModelsFound, nil
	}
	return models, "", nil
}

func (s *Selector) next(scope string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gens[scope]++
	return s.gens[scope]
}

func (s *Selector) isCurrent(scope string, gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gens[scope] == gen
}
