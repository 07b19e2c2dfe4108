package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diony/gallery-auth/internal/models"
	"github.com/diony/gallery-auth/internal/storage"
)

// UserRepository is the in-memory twin of the postgres user store, used
// by service-level tests.
type UserRepository struct {
	mu      sync.RWMutex
	byID    map[string]models.User
	byEmail map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[string]models.User),
		byEmail: make(map[string]string),
	}
}

func (r *UserRepository) CreateUser(_ context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return nil, storage.ErrUserEmailTaken
	}

	created := *user
	created.ID = uuid.NewString()
	created.CreatedAt = time.Now()

	r.byID[created.ID] = created
	r.byEmail[created.Email] = created.ID

	return &created, nil
}

func (r *UserRepository) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	user := r.byID[id]
	return &user, nil
}

func (r *UserRepository) GetUserByID(_ context.Context, id string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return &user, nil
}

// DeleteUser exists for tests that exercise the token-subject-vanished
// path; the real user store owns deletion.
func (r *UserRepository) DeleteUser(_ context.Context, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.byID[id]; ok {
		delete(r.byEmail, user.Email)
		delete(r.byID, id)
	}
}
