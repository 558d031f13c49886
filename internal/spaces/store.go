// Package spaces holds the space registry the presence layer joins
// against. The full CRUD backend lives elsewhere; the realtime server
// only needs "id -> width/height", so this is a plain in-memory store
// fed over the HTTP surface.
package spaces

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Arena/internal/core"
	"github.com/dkeye/Arena/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	spaces map[domain.SpaceID]*domain.Space
}

func NewStore() *Store {
	return &Store{spaces: make(map[domain.SpaceID]*domain.Space)}
}

var _ core.SpaceLookup = (*Store)(nil)

func (s *Store) Create(name string, width, height int) (*domain.Space, error) {
	space, err := domain.NewSpace(domain.SpaceID(uuid.NewString()), name, width, height)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.spaces[space.ID] = space
	s.mu.Unlock()
	log.Info().Str("module", "spaces").Str("space", string(space.ID)).
		Int("width", width).Int("height", height).Msg("space created")
	return space, nil
}

// Put registers a space under an externally assigned id.
func (s *Store) Put(space *domain.Space) {
	s.mu.Lock()
	s.spaces[space.ID] = space
	s.mu.Unlock()
}

func (s *Store) Space(_ context.Context, id domain.SpaceID) (*domain.Space, error) {
	s.mu.RLock()
	space, ok := s.spaces[id]
	s.mu.RUnlock()
	if !ok {
		return nil, core.ErrSpaceNotFound
	}
	return space, nil
}

func (s *Store) List() []*domain.Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Space, 0, len(s.spaces))
	for _, space := range s.spaces {
		out = append(out, space)
	}
	return out
}
