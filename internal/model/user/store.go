package user

import "errors"

// ErrUserNotFound is returned when no user has the requested id.
var ErrUserNotFound = errors.New("user not found")

// Store exposes read-only user lookups.
type Store interface {
	FindByID(id string) (User, bool)
	ListPatients(consultantID string) []User
}

// MemoryStore implements Store over a fixed slice.
type MemoryStore struct {
	items []User
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied users.
func NewMemoryStore(items []User) *MemoryStore {
	return &MemoryStore{items: append([]User(nil), items...)}
}

// FindByID looks up a user by identifier.
func (s *MemoryStore) FindByID(id string) (User, bool) {
	for _, item := range s.items {
		if item.ID == id {
			return item, true
		}
	}
	return User{}, false
}

// ListPatients returns the users whose profile names consultantID.
func (s *MemoryStore) ListPatients(consultantID string) []User {
	var patients []User
	for _, item := range s.items {
		if item.Role != RoleUser || item.Profile == nil {
			continue
		}
		if item.Profile.ConsultantID == consultantID {
			patients = append(patients, item)
		}
	}
	return patients
}
