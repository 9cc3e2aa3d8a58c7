package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/resume-analyzer-api/internal/domain/entity"
	"github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
)

// UserRepository keeps users in a map. Records are copied on the way in
// and out, so a caller never holds a pointer into the store.
type UserRepository struct {
	mu    sync.RWMutex
	byID  map[string]*entity.User
	email map[string]string
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:  make(map[string]*entity.User),
		email: make(map[string]string),
	}
}

func (r *UserRepository) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := entity.NormalizeEmail(u.Email)
	if _, ok := r.email[key]; ok {
		return repository.ErrDuplicateEmail
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	r.byID[u.ID] = u.Clone()
	r.email[key] = u.ID
	return nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *UserRepository) FindByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.email[entity.NormalizeEmail(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.byID[id].Clone(), nil
}

func (r *UserRepository) FindByResetToken(_ context.Context, digest string) (*entity.User, error) {
	return r.findFirst(func(u *entity.User) bool {
		return digest != "" && u.Security.PasswordResetToken == digest
	})
}

func (r *UserRepository) FindByVerificationToken(_ context.Context, digest string) (*entity.User, error) {
	return r.findFirst(func(u *entity.User) bool {
		return digest != "" && u.Security.EmailVerificationToken == digest
	})
}

// Save replaces the stored record. Changing the email re-keys the index.
func (r *UserRepository) Save(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.byID[u.ID]
	if !ok {
		return repository.ErrNotFound
	}
	oldKey := entity.NormalizeEmail(old.Email)
	newKey := entity.NormalizeEmail(u.Email)
	if oldKey != newKey {
		if _, taken := r.email[newKey]; taken {
			return repository.ErrDuplicateEmail
		}
		delete(r.email, oldKey)
		r.email[newKey] = u.ID
	}
	r.byID[u.ID] = u.Clone()
	return nil
}

func (r *UserRepository) UpdateLoginState(_ context.Context, id string, st repository.LoginState, now time.Time) error {
	return r.update(id, func(u *entity.User) bool {
		u.Security.LoginAttempts = st.LoginAttempts
		u.Security.LockUntil = cloneTime(st.LockUntil)
		u.Security.LastLogin = cloneTime(st.LastLogin)
		u.UpdatedAt = now
		return true
	})
}

func (r *UserRepository) SetPasswordReset(_ context.Context, id, digest string, expires, now time.Time) error {
	return r.update(id, func(u *entity.User) bool {
		u.Security.SetPasswordReset(digest, expires)
		u.UpdatedAt = now
		return true
	})
}

func (r *UserRepository) ConsumePasswordReset(_ context.Context, digest, newHash string, now time.Time) (*entity.User, error) {
	return r.consume(func(u *entity.User) bool {
		if digest == "" || u.Security.PasswordResetToken != digest || !u.Security.ResetTokenUsable(now) {
			return false
		}
		u.PasswordHash = newHash
		u.Security.ClearPasswordReset()
		u.Security.LoginAttempts = 0
		u.Security.LockUntil = nil
		u.UpdatedAt = now
		return true
	})
}

func (r *UserRepository) SetVerificationToken(_ context.Context, id, digest string, now time.Time) error {
	return r.update(id, func(u *entity.User) bool {
		if u.Security.EmailVerified {
			return false
		}
		u.Security.EmailVerificationToken = digest
		u.UpdatedAt = now
		return true
	})
}

func (r *UserRepository) ConsumeVerificationToken(_ context.Context, digest string, now time.Time) (*entity.User, error) {
	return r.consume(func(u *entity.User) bool {
		if digest == "" || u.Security.EmailVerificationToken != digest {
			return false
		}
		u.Security.MarkEmailVerified()
		u.UpdatedAt = now
		return true
	})
}

// update applies apply to the stored record under the write lock.
// apply returning false leaves the record untouched and yields ErrNotFound.
func (r *UserRepository) update(id string, apply func(*entity.User) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[id]
	if !ok {
		return repository.ErrNotFound
	}
	next := cur.Clone()
	if !apply(next) {
		return repository.ErrNotFound
	}
	r.byID[id] = next
	return nil
}

// consume finds the first record apply accepts and stores the result, all
// under one write lock.
func (r *UserRepository) consume(apply func(*entity.User) bool) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, cur := range r.byID {
		next := cur.Clone()
		if apply(next) {
			r.byID[id] = next
			return next.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (r *UserRepository) findFirst(match func(*entity.User) bool) (*entity.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			return u.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

var _ repository.UserRepository = (*UserRepository)(nil)
