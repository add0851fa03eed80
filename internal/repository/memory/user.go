package memory

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/dtroode/auth-server/internal/model"
)

var _ model.UserStore = (*UserRepository)(nil)

var errHashChanged = errors.New("password hash changed")

type UserRepository struct {
	s *Store
}

func NewUserRepository(s *Store) *UserRepository {
	return &UserRepository{s: s}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (r *UserRepository) GetByIDForShare(ctx context.Context, id uuid.UUID) (model.User, error) {
	return r.GetByID(ctx, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (model.User, error) {
	defer r.s.lock(ctx)()

	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, model.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user model.User) (model.User, error) {
	defer r.s.lock(ctx)()

	for _, u := range r.s.users {
		if u.Email == user.Email {
			return model.User{}, model.ErrEmailAlreadyRegistered
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.TokenVersion == 0 {
		user.TokenVersion = model.InitialTokenVersion
	}
	now := r.s.now().UTC()
	user.CreatedAt, user.UpdatedAt = now, now

	r.s.users[user.ID] = user
	return user, nil
}

func (r *UserRepository) IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error) {
	var version int
	err := r.update(ctx, id, func(u *model.User) error {
		u.TokenVersion++
		version = u.TokenVersion
		return nil
	})
	return version, err
}

func (r *UserRepository) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	return r.update(ctx, id, func(u *model.User) error {
		for otherID, other := range r.s.users {
			if otherID != id && other.Email == email {
				return model.ErrEmailAlreadyRegistered
			}
		}
		u.Email = email
		return nil
	})
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(ctx, id, func(u *model.User) error {
		u.PasswordHash = passwordHash
		return nil
	})
}

func (r *UserRepository) ReplacePasswordHash(ctx context.Context, id uuid.UUID, current, next string) (bool, error) {
	err := r.update(ctx, id, func(u *model.User) error {
		if u.PasswordHash != current {
			return errHashChanged
		}
		u.PasswordHash = next
		return nil
	})
	if errors.Is(err, errHashChanged) || errors.Is(err, model.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *UserRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.update(ctx, id, func(u *model.User) error {
		u.IsActive = active
		return nil
	})
}

func (r *UserRepository) update(ctx context.Context, id uuid.UUID, fn func(u *model.User) error) error {
	defer r.s.lock(ctx)()

	u, ok := r.s.users[id]
	if !ok {
		return model.ErrNotFound
	}
	if err := fn(&u); err != nil {
		return err
	}
	u.UpdatedAt = r.s.now().UTC()
	r.s.users[id] = u
	return nil
}
