package service

import (
	"context"
	"fmt"

	"github.com/set-night/watchearn/internal/domain"
	"github.com/set-night/watchearn/internal/repository"
)

type UserService struct {
	queries *repository.Queries
}

func NewUserService(queries *repository.Queries) *UserService {
	return &UserService{queries: queries}
}

// FindOrCreate returns the user for telegramID, creating it on first contact.
// The bool reports whether the user was created.
func (s *UserService) FindOrCreate(ctx context.Context, telegramID int64, firstName, username string, isAdmin bool) (*domain.User, bool, error) {
	user, err := s.queries.GetUserByTelegramID(ctx, telegramID)
	if err == nil {
		if user.FirstName != firstName || user.Username != username || user.IsAdmin != isAdmin {
			if err := s.queries.UpdateUserInfo(ctx, user.ID, firstName, username, isAdmin); err != nil {
				return nil, false, fmt.Errorf("update user info: %w", err)
			}
			user.FirstName, user.Username, user.IsAdmin = firstName, username, isAdmin
		}
		return &user, false, nil
	}
	if !repository.IsNoRows(err) {
		return nil, false, fmt.Errorf("get user: %w", err)
	}

	user, err = s.queries.CreateUser(ctx, repository.CreateUserParams{
		TelegramID: telegramID,
		FirstName:  firstName,
		Username:   username,
		IsAdmin:    isAdmin,
	})
	if err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return &user, true, nil
}

func (s *UserService) GetByTelegramID(ctx context.Context, telegramID int64) (*domain.User, error) {
	user, err := s.queries.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	user, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if repository.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return &user, nil
}

func (s *UserService) UpdateLastInteraction(ctx context.Context, userID int64) error {
	return s.queries.UpdateUserLastInteraction(ctx, userID)
}

func (s *UserService) SetBlocked(ctx context.Context, telegramID int64, blocked bool) error {
	n, err := s.queries.SetUserBlocked(ctx, telegramID, blocked)
	if err != nil {
		return fmt.Errorf("set blocked: %w", err)
	}
	if n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
