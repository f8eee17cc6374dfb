// Package memory is a mutex-guarded in-process identity store.
package memory

import (
	"context"
	"fmt"
	"sync"

	webster "github.com/babymilooo/webster-backend"
	"github.com/google/uuid"
)

// Store keeps identities in memory. The zero value is not usable; call New.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]webster.Identity
	byEmail map[string]string
}

func New() *Store {
	return &Store{
		byID:    make(map[string]webster.Identity),
		byEmail: make(map[string]string),
	}
}

func (s *Store) FindByID(_ context.Context, id string) (webster.Identity, error) {
	const op = "storage.memory.FindByID"

	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.byID[id]
	if !ok {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return identity, nil
}

func (s *Store) FindByEmail(_ context.Context, email string) (webster.Identity, error) {
	const op = "storage.memory.FindByEmail"

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	return s.byID[id], nil
}

// Create assigns a random UUID when identity.ID is empty.
func (s *Store) Create(_ context.Context, identity webster.Identity) (webster.Identity, error) {
	const op = "storage.memory.Create"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[identity.Email]; taken {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
	}
	if identity.ID == "" {
		identity.ID = uuid.NewString()
	}
	if _, taken := s.byID[identity.ID]; taken {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
	}

	s.byID[identity.ID] = identity
	s.byEmail[identity.Email] = identity.ID
	return identity, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, id, hash string) error {
	return s.update("storage.memory.UpdatePasswordHash", id, func(i *webster.Identity) {
		i.PasswordHash = hash
	})
}

func (s *Store) SwapPasswordHash(_ context.Context, id, current, next string) error {
	const op = "storage.memory.SwapPasswordHash"

	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	if identity.PasswordHash != current {
		return fmt.Errorf("%s: %w", op, webster.ErrStaleWrite)
	}
	identity.PasswordHash = next
	s.byID[id] = identity
	return nil
}

func (s *Store) MarkEmailVerified(_ context.Context, id string) error {
	return s.update("storage.memory.MarkEmailVerified", id, func(i *webster.Identity) {
		i.EmailVerified = true
	})
}

func (s *Store) UpdateProfile(_ context.Context, id string, p webster.Profile) (webster.Identity, error) {
	const op = "storage.memory.UpdateProfile"

	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	if owner, taken := s.byEmail[p.Email]; taken && owner != id {
		return webster.Identity{}, fmt.Errorf("%s: %w", op, webster.ErrAccountExists)
	}

	delete(s.byEmail, identity.Email)
	identity.UserName = p.UserName
	identity.Email = p.Email
	identity.EmailVerified = p.EmailVerified
	s.byID[id] = identity
	s.byEmail[identity.Email] = id
	return identity, nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	const op = "storage.memory.Delete"

	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	delete(s.byID, id)
	delete(s.byEmail, identity.Email)
	return nil
}

// Len returns the number of stored identities.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

func (s *Store) update(op, id string, mutate func(*webster.Identity)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, ok := s.byID[id]
	if !ok {
		return fmt.Errorf("%s: %w", op, webster.ErrUserNotFound)
	}
	mutate(&identity)
	s.byID[id] = identity
	return nil
}

var _ webster.IdentityStore = (*Store)(nil)
