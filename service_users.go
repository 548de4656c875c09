package plume

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// User returns a public profile with a live count of the user's posts.
func (s *Service) User(ctx context.Context, id string) (Profile, error) {
	if err := parseID(id, "user"); err != nil {
		return Profile{}, err
	}

	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, E(ErrNotFound, "User not found")
		}
		return Profile{}, fmt.Errorf("get user: %w", err)
	}

	postCount, err := s.store.CountPostsByUser(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("get user: %w", err)
	}

	return Profile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Bio:       user.Bio,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
		PostCount: postCount,
	}, nil
}

// UpdateUser applies a self-only profile update. Each field is
// independently optional; the name is sanitized and must not come out
// empty, the bio is sanitized, the avatar URL is stored verbatim.
func (s *Service) UpdateUser(ctx context.Context, callerID, id string, upd UserUpdate) (Profile, error) {
	if err := parseID(id, "user"); err != nil {
		return Profile{}, err
	}
	if callerID != id {
		return Profile{}, E(ErrForbidden, "Access denied. You can only update your own profile")
	}

	user, err := s.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Profile{}, E(ErrNotFound, "User not found")
		}
		return Profile{}, fmt.Errorf("update user: %w", err)
	}

	if upd.Name != nil {
		name := SanitizeName(*upd.Name)
		if name == "" {
			return Profile{}, E(ErrInvalidInput, "Name cannot be empty")
		}
		user.Name = name
	}
	if upd.Avatar != nil {
		user.Avatar = *upd.Avatar
	}
	if upd.Bio != nil {
		user.Bio = SanitizeBio(*upd.Bio)
	}
	user.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateUser(ctx, user); err != nil {
		return Profile{}, fmt.Errorf("update user: %w", err)
	}

	postCount, err := s.store.CountPostsByUser(ctx, id)
	if err != nil {
		return Profile{}, fmt.Errorf("update user: %w", err)
	}

	return Profile{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Avatar:    user.Avatar,
		Bio:       user.Bio,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
		PostCount: postCount,
	}, nil
}

// UserPosts lists the caller's own posts. Requesting another user's
// listing is an ownership failure like every other owner-scoped mutation.
func (s *Service) UserPosts(ctx context.Context, callerID, id string, page, limit int) (PostPage, error) {
	if err := parseID(id, "user"); err != nil {
		return PostPage{}, err
	}
	if callerID != id {
		return PostPage{}, E(ErrForbidden, "Access denied. You can only list your own posts")
	}

	return s.Posts(ctx, PostQuery{UserID: id, Page: page, Limit: limit})
}
